package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const sentimentSystemPrompt = `You classify the sentiment of insurance claim descriptions.
Reply with a JSON object {"label": "POSITIVE" | "NEGATIVE", "score": <confidence between 0 and 1>}.`

// OpenAISentiment asks a chat-completions model for a POSITIVE/NEGATIVE verdict.
// Any OpenAI-compatible server works through BaseURL.
type OpenAISentiment struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAISentiment builds the backend. An empty model falls back to gpt-4o-mini.
func NewOpenAISentiment(apiKey, baseURL, model string, timeout time.Duration) (*OpenAISentiment, error) {
	if apiKey == "" && baseURL == "" {
		return nil, fmt.Errorf("openai sentiment needs an API key or base URL: %w", ErrModelUnavailable)
	}
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAISentiment{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: timeout,
	}, nil
}

type openAISentimentReply struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify sends text as the user message and parses the JSON verdict.
func (s *OpenAISentiment) Classify(ctx context.Context, text string) (Sentiment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: sentimentSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		MaxTokens: 32,
	})
	if err != nil {
		return Sentiment{}, fmt.Errorf("openai sentiment: %v: %w", err, ErrModelUnavailable)
	}
	if len(resp.Choices) == 0 {
		return Sentiment{}, fmt.Errorf("openai sentiment returned no choices: %w", ErrModelUnavailable)
	}
	return parseOpenAISentiment(resp.Choices[0].Message.Content)
}

func parseOpenAISentiment(content string) (Sentiment, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var reply openAISentimentReply
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &reply); err != nil {
		return Sentiment{}, fmt.Errorf("decode openai sentiment %q: %v: %w", content, err, ErrModelUnavailable)
	}
	label := NormalizeSentimentLabel(reply.Label)
	if label == "" {
		return Sentiment{}, fmt.Errorf("unexpected sentiment label %q: %w", reply.Label, ErrModelUnavailable)
	}
	score := min(max(reply.Score, 0), 1)
	return Sentiment{Label: label, Score: score}, nil
}
