package oracle

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hearthchat/hearth-server/scheduler"
)

const systemPrompt = `You are %s, the ever-present host of a chat house. You watch the
conversation in each room and occasionally join in — a short remark, an
answer to a question left hanging, a welcome for someone new. You are not
a chatbot that answers every message: most of the time the right move is
to stay out of the way.

You will be shown the most recent messages from one room. If the
conversation genuinely calls for you — someone addressed you, asked
something nobody answered, or the room just came alive — reply with what
you would say, in one or two sentences, no preamble. Otherwise reply with
exactly the single word %s.`

// OpenAI is the chat-completion-backed oracle.
type OpenAI struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	masterName  string
	logger      *zap.Logger
}

func NewOpenAI(apiKey, model string, maxTokens int, temperature float64, masterName string, logger *zap.Logger) *OpenAI {
	return &OpenAI{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
		masterName:  masterName,
		logger:      logger,
	}
}

// GenerateResponse implements scheduler.Oracle. A decline comes back as
// ("", nil); transport or API failures come back as errors and the caller
// decides what to retry.
func (o *OpenAI) GenerateResponse(ctx context.Context, window []scheduler.ChatMessage) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf(systemPrompt, o.masterName, passSentinel),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: transcript(window),
			},
		},
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}

	reply := parseReply(resp.Choices[0].Message.Content)
	if reply == "" {
		o.logger.Debug("oracle passed", zap.Int("window", len(window)))
	}
	return reply, nil
}
