package nlp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
			t.Errorf("expected json_object response format, got %+v", req.ResponseFormat)
		}
		resp := openai.ChatCompletionResponse{
			ID:     "chatcmpl-1",
			Object: "chat.completion",
			Model:  req.Model,
			Choices: []openai.ChatCompletionChoice{
				{
					Message: openai.ChatCompletionMessage{
						Role:    openai.ChatMessageRoleAssistant,
						Content: content,
					},
					FinishReason: "stop",
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestOpenAISentimentClassify(t *testing.T) {
	server := chatServer(t, `{"label": "negative", "score": 0.91}`)
	defer server.Close()

	s, err := NewOpenAISentiment("test-key", server.URL, "gpt-4o-mini", 5*time.Second)
	if err != nil {
		t.Fatalf("NewOpenAISentiment: %v", err)
	}
	got, err := s.Classify(context.Background(), "The basement flooded and everything is ruined.")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.Label != LabelNegative || got.Score != 0.91 {
		t.Fatalf("got %+v", got)
	}
}

func TestOpenAISentimentBadReply(t *testing.T) {
	server := chatServer(t, `I think it is neutral`)
	defer server.Close()

	s, err := NewOpenAISentiment("test-key", server.URL, "", time.Second)
	if err != nil {
		t.Fatalf("NewOpenAISentiment: %v", err)
	}
	if _, err := s.Classify(context.Background(), "x"); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestNewOpenAISentimentRequiresKeyOrBaseURL(t *testing.T) {
	if _, err := NewOpenAISentiment("", "", "", 0); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestParseOpenAISentiment(t *testing.T) {
	cases := []struct {
		in    string
		label string
		score float64
		ok    bool
	}{
		{`{"label":"POSITIVE","score":0.7}`, LabelPositive, 0.7, true},
		{"```json\n{\"label\":\"NEGATIVE\",\"score\":1.4}\n```", LabelNegative, 1, true},
		{`{"label":"NEUTRAL","score":0.5}`, "", 0, false},
		{`not json`, "", 0, false},
	}
	for _, tc := range cases {
		got, err := parseOpenAISentiment(tc.in)
		if tc.ok != (err == nil) {
			t.Fatalf("parseOpenAISentiment(%q) err = %v", tc.in, err)
		}
		if tc.ok && (got.Label != tc.label || got.Score != tc.score) {
			t.Fatalf("parseOpenAISentiment(%q) = %+v", tc.in, got)
		}
	}
}
