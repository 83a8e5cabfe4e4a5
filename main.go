package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hearthchat/hearth-server/config"
	"github.com/hearthchat/hearth-server/db"
	"github.com/hearthchat/hearth-server/oracle"
	"github.com/hearthchat/hearth-server/rpc"
	"github.com/hearthchat/hearth-server/scheduler"
	"github.com/hearthchat/hearth-server/ws"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	configPath := flag.String("config", "config.yaml", "Config file path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err), zap.String("path", *configPath))
	}

	database, err := db.Open(cfg.Database.Path, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer database.Close()

	// The fallback room exists from the start so stray messages always
	// have somewhere to land.
	if err := database.EnsureRoom(cfg.Scheduler.DefaultRoomID, "Lobby", scheduler.MasterID); err != nil {
		logger.Fatal("failed to ensure default room", zap.Error(err))
	}

	hub := ws.NewHub(database, logger)
	go hub.Run()

	orc := oracle.NewOpenAI(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.MaxTokens,
		cfg.OpenAI.Temperature,
		cfg.Master.DisplayName,
		logger,
	)

	poster := &rpc.MasterPoster{Hub: hub, DB: database, Logger: logger}

	sched := scheduler.New(scheduler.Config{
		TickInterval:  cfg.Scheduler.TickInterval(),
		WindowSize:    cfg.Scheduler.WindowSize,
		DefaultRoomID: cfg.Scheduler.DefaultRoomID,
		MasterName:    cfg.Master.DisplayName,
		Policy: scheduler.Policy{
			MinMessages: cfg.Scheduler.MinMessages,
			ResponseGap: cfg.Scheduler.ResponseGap(),
			OracleGap:   cfg.Scheduler.OracleGap(),
		},
	}, scheduler.NewRegistry(), orc, poster, logger)

	rpc.NewRouter(hub, database, sched, logger)

	go sched.Run(context.Background())

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("upgrade failed", zap.Error(err))
			return
		}
		client := ws.NewClient(hub, conn, logger)
		hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	})

	// Health check
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Scheduler snapshot — diagnostics only, nothing consumes this for
	// control decisions.
	http.HandleFunc("/debug/master", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sched.Status())
	})

	logger.Info("hearth-server starting", zap.String("addr", cfg.Server.Addr))
	if err := http.ListenAndServe(cfg.Server.Addr, nil); err != nil {
		logger.Error("server failed", zap.Error(err))
		os.Exit(1)
	}
}
