package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultMaxResponseBytes = 4 * 1024 * 1024

// remoteClient speaks the Hugging Face Inference API shape: POST {"inputs": ...}
// with an optional bearer token.
type remoteClient struct {
	url              string
	apiKey           string
	client           *http.Client
	maxResponseBytes int64
}

func newRemoteClient(url, apiKey string, timeout time.Duration) *remoteClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &remoteClient{
		url:              strings.TrimSpace(url),
		apiKey:           apiKey,
		maxResponseBytes: defaultMaxResponseBytes,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type remoteRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type remoteErrorResponse struct {
	Error string `json:"error"`
}

// post sends payload and returns the raw body. Transport failures and 5xx
// replies mean the model is unavailable; other 4xx replies are plain errors.
func (c *remoteClient) post(ctx context.Context, payload remoteRequest) ([]byte, error) {
	if c.url == "" {
		return nil, fmt.Errorf("remote model url is empty: %w", ErrModelUnavailable)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal remote request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create remote request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-Id", id)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call remote model: %v: %w", err, ErrModelUnavailable)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read remote response: %v: %w", err, ErrModelUnavailable)
	}
	if int64(len(respBody)) > c.maxResponseBytes {
		return nil, fmt.Errorf("remote response exceeded limit (%d bytes)", c.maxResponseBytes)
	}

	if resp.StatusCode >= 400 {
		msg := strings.TrimSpace(string(respBody))
		var errBody remoteErrorResponse
		if json.Unmarshal(respBody, &errBody) == nil && errBody.Error != "" {
			msg = errBody.Error
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("remote model status %d: %s: %w", resp.StatusCode, msg, ErrModelUnavailable)
		}
		return nil, fmt.Errorf("remote model status %d: %s", resp.StatusCode, msg)
	}
	return respBody, nil
}

type remoteLabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// RemoteSentiment classifies text through a hosted text-classification endpoint.
type RemoteSentiment struct {
	client *remoteClient
}

// NewRemoteSentiment returns a sentiment backend for url.
func NewRemoteSentiment(url, apiKey string, timeout time.Duration) *RemoteSentiment {
	return &RemoteSentiment{client: newRemoteClient(url, apiKey, timeout)}
}

// Classify returns the highest scoring label. Both [[{label,score}]] and
// [{label,score}] reply shapes are accepted.
func (s *RemoteSentiment) Classify(ctx context.Context, text string) (Sentiment, error) {
	raw, err := s.client.post(ctx, remoteRequest{Inputs: text})
	if err != nil {
		return Sentiment{}, err
	}
	scores, err := decodeLabelScores(raw)
	if err != nil {
		return Sentiment{}, fmt.Errorf("decode remote sentiment: %v: %w", err, ErrModelUnavailable)
	}
	return bestSentiment(scores)
}

func decodeLabelScores(raw []byte) ([]remoteLabelScore, error) {
	var nested [][]remoteLabelScore
	if err := json.Unmarshal(raw, &nested); err == nil {
		var flat []remoteLabelScore
		for _, row := range nested {
			flat = append(flat, row...)
		}
		return flat, nil
	}
	var flat []remoteLabelScore
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, err
	}
	return flat, nil
}

func bestSentiment(scores []remoteLabelScore) (Sentiment, error) {
	if len(scores) == 0 {
		return Sentiment{}, fmt.Errorf("empty sentiment output: %w", ErrModelUnavailable)
	}
	best := scores[0]
	for _, sc := range scores[1:] {
		if sc.Score > best.Score {
			best = sc
		}
	}
	label := NormalizeSentimentLabel(best.Label)
	if label == "" {
		return Sentiment{}, fmt.Errorf("unexpected sentiment label %q: %w", best.Label, ErrModelUnavailable)
	}
	return Sentiment{Label: label, Score: best.Score}, nil
}

// RemoteRecognizer calls a hosted token-classification endpoint with simple
// aggregation so spans come back already merged.
type RemoteRecognizer struct {
	client *remoteClient
}

// NewRemoteRecognizer returns an NER backend for url.
func NewRemoteRecognizer(url, apiKey string, timeout time.Duration) *RemoteRecognizer {
	return &RemoteRecognizer{client: newRemoteClient(url, apiKey, timeout)}
}

type remoteEntity struct {
	EntityGroup string  `json:"entity_group"`
	Entity      string  `json:"entity"`
	Score       float64 `json:"score"`
	Word        string  `json:"word"`
	Start       *int    `json:"start"`
	End         *int    `json:"end"`
}

// Recognize returns the remote spans. The endpoint reports code-point offsets;
// offsets that do not fit text are dropped and the reported word is kept as
// the entity text.
func (r *RemoteRecognizer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	raw, err := r.client.post(ctx, remoteRequest{
		Inputs:     text,
		Parameters: map[string]any{"aggregation_strategy": "simple"},
	})
	if err != nil {
		return nil, err
	}
	var items []remoteEntity
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode remote ner: %v: %w", err, ErrModelUnavailable)
	}
	out := make([]Entity, 0, len(items))
	for _, it := range items {
		label := it.EntityGroup
		if label == "" {
			_, label = splitLabel(it.Entity)
		}
		if label == "" {
			continue
		}
		e := Entity{Label: strings.ToUpper(label), Text: strings.TrimSpace(it.Word), StartByte: -1, EndByte: -1, Source: SourceRemote}
		if it.Start != nil && it.End != nil {
			if start, end, ok := runeSpanToBytes(text, *it.Start, *it.End); ok {
				e.StartByte, e.EndByte = start, end
				e.Text = text[start:end]
			}
		}
		if e.Text == "" {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// runeSpanToBytes maps a [start, end) code-point span onto byte offsets of text.
func runeSpanToBytes(text string, start, end int) (int, int, bool) {
	if start < 0 || end <= start {
		return 0, 0, false
	}
	startByte, endByte := -1, -1
	i := 0
	for idx := range text {
		if i == start {
			startByte = idx
		}
		if i == end {
			endByte = idx
			break
		}
		i++
	}
	if endByte < 0 && i == end {
		endByte = len(text)
	}
	if startByte < 0 || endByte < 0 {
		return 0, 0, false
	}
	return startByte, endByte, true
}
