package nlp

import (
	"context"
	"errors"
	"os"
	"strings"
)

// Sentiment labels returned by every SentimentClassifier.
const (
	LabelPositive = "POSITIVE"
	LabelNegative = "NEGATIVE"
)

// Entity sources.
const (
	SourceONNX   = "ner:onnx"
	SourceProse  = "ner:prose"
	SourceRemote = "ner:remote"
)

// ErrModelUnavailable is wrapped by every backend failure, at load time or per call.
var ErrModelUnavailable = errors.New("model unavailable")

// Entity is a labeled span with byte offsets into the analyzed text.
type Entity struct {
	Label     string `json:"label"`
	Text      string `json:"text"`
	StartByte int    `json:"start_byte"`
	EndByte   int    `json:"end_byte"`
	Source    string `json:"source"`
}

// Sentiment is a binary polarity classification.
type Sentiment struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Recognizer finds named entities in text.
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]Entity, error)
}

// SentimentClassifier labels text POSITIVE or NEGATIVE.
type SentimentClassifier interface {
	Classify(ctx context.Context, text string) (Sentiment, error)
}

// Segmenter splits text into sentences.
type Segmenter interface {
	Sentences(ctx context.Context, text string) ([]string, error)
}

type requestIDKey struct{}

// WithRequestID stores the request id in context for debug logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || strings.TrimSpace(requestID) == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the id stored by WithRequestID, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// NormalizeSentimentLabel maps model-native labels onto POSITIVE/NEGATIVE.
// LABEL_1/1/pos are positive, LABEL_0/0/neg are negative. Unknown labels return "".
func NormalizeSentimentLabel(lbl string) string {
	switch strings.ToLower(strings.TrimSpace(lbl)) {
	case "positive", "pos", "label_1", "1":
		return LabelPositive
	case "negative", "neg", "label_0", "0":
		return LabelNegative
	default:
		return ""
	}
}

func debugML() bool {
	return strings.TrimSpace(os.Getenv("CLAIMLENS_DEBUG_ML")) == "1"
}
