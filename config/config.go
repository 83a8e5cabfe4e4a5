package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Master    MasterConfig    `mapstructure:"master"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type MasterConfig struct {
	DisplayName string `mapstructure:"display_name"`
}

// SchedulerConfig holds the response-scheduling constants. All durations
// are in seconds in the config file.
type SchedulerConfig struct {
	TickSeconds                int    `mapstructure:"tick_seconds"`
	MinMessages                int    `mapstructure:"min_messages"`
	MinSecondsBetweenResponses int    `mapstructure:"min_seconds_between_responses"`
	MinSecondsBetweenLLMCalls  int    `mapstructure:"min_seconds_between_llm_calls"`
	WindowSize                 int    `mapstructure:"window_size"`
	DefaultRoomID              string `mapstructure:"default_room_id"`
}

func (s SchedulerConfig) TickInterval() time.Duration {
	return time.Duration(s.TickSeconds) * time.Second
}

func (s SchedulerConfig) ResponseGap() time.Duration {
	return time.Duration(s.MinSecondsBetweenResponses) * time.Second
}

func (s SchedulerConfig) OracleGap() time.Duration {
	return time.Duration(s.MinSecondsBetweenLLMCalls) * time.Second
}

func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8090")
	v.SetDefault("database.path", "hearth.db")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 300)
	v.SetDefault("openai.temperature", 0.8)
	v.SetDefault("master.display_name", "The Master")
	v.SetDefault("scheduler.tick_seconds", 15)
	v.SetDefault("scheduler.min_messages", 1)
	v.SetDefault("scheduler.min_seconds_between_responses", 30)
	v.SetDefault("scheduler.min_seconds_between_llm_calls", 45)
	v.SetDefault("scheduler.window_size", 10)
	v.SetDefault("scheduler.default_room_id", "lobby")

	v.AutomaticEnv()

	// The config file is optional; env vars and defaults carry a bare
	// deployment.
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := v.GetString("OPENAI_API_KEY"); key != "" {
		cfg.OpenAI.APIKey = key
	}
	if addr := v.GetString("HEARTH_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	} else if port := v.GetString("PORT"); port != "" {
		// Railway, Render, etc. set PORT
		cfg.Server.Addr = ":" + port
	}
	if dbPath := v.GetString("HEARTH_DB"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	return &cfg, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
