package nlp

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/claimlens/claimlens/internal/config"
	"github.com/claimlens/claimlens/internal/redact"
)

// Backends is the set of loaded model handles. Build it once per process and
// share it; Close releases ONNX sessions.
type Backends struct {
	Recognizer Recognizer
	Sentiment  SentimentClassifier
	Segmenter  Segmenter

	closers []func()
}

// Close releases every backend that holds native resources.
func (b *Backends) Close() {
	if b == nil {
		return
	}
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// Load builds the backends selected in cfg. Any failure closes what was already
// loaded and wraps ErrModelUnavailable.
func Load(cfg config.ModelsConfig) (*Backends, error) {
	rt := ResolveRuntime(cfg.Runtime)
	b := &Backends{}

	rec, err := loadRecognizer(cfg, rt, b)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Recognizer = rec

	sent, err := loadSentiment(cfg, rt, b)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Sentiment = sent

	switch strings.ToLower(strings.TrimSpace(cfg.Segmenter)) {
	case "", "prose":
		b.Segmenter = NewProseSegmenter()
	default:
		b.Close()
		return nil, fmt.Errorf("unknown segmenter %q: %w", cfg.Segmenter, ErrModelUnavailable)
	}

	redact.Logf("claimlens nlp: backends ner=%s sentiment=%s segmenter=%s", backendName(cfg.NER), backendName(cfg.Sentiment), cfg.Segmenter)
	return b, nil
}

func loadRecognizer(cfg config.ModelsConfig, rt RuntimeSettings, b *Backends) (Recognizer, error) {
	switch backendName(cfg.NER) {
	case "onnx":
		r, err := LoadONNXRecognizer(cfg.ModelDir(cfg.NER), cfg.SeqLen, rt)
		if err != nil {
			return nil, fmt.Errorf("load ner: %w", err)
		}
		b.closers = append(b.closers, r.Close)
		return r, nil
	case "prose":
		return NewProseRecognizer(), nil
	case "remote":
		return NewRemoteRecognizer(cfg.NER.URL, envSecret(cfg.Remote.APIKeyEnv), seconds(cfg.Remote.TimeoutSeconds)), nil
	default:
		return nil, fmt.Errorf("unknown ner backend %q: %w", cfg.NER.Backend, ErrModelUnavailable)
	}
}

func loadSentiment(cfg config.ModelsConfig, rt RuntimeSettings, b *Backends) (SentimentClassifier, error) {
	switch backendName(cfg.Sentiment) {
	case "onnx":
		s, err := LoadONNXSentiment(cfg.ModelDir(cfg.Sentiment), cfg.SeqLen, rt)
		if err != nil {
			return nil, fmt.Errorf("load sentiment: %w", err)
		}
		b.closers = append(b.closers, s.Close)
		return s, nil
	case "remote":
		return NewRemoteSentiment(cfg.Sentiment.URL, envSecret(cfg.Remote.APIKeyEnv), seconds(cfg.Remote.TimeoutSeconds)), nil
	case "openai":
		s, err := NewOpenAISentiment(envSecret(cfg.OpenAI.APIKeyEnv), cfg.OpenAI.BaseURL, cfg.OpenAI.Model, seconds(cfg.OpenAI.TimeoutSeconds))
		if err != nil {
			return nil, fmt.Errorf("load sentiment: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown sentiment backend %q: %w", cfg.Sentiment.Backend, ErrModelUnavailable)
	}
}

func backendName(b config.BackendConfig) string {
	name := strings.ToLower(strings.TrimSpace(b.Backend))
	if name == "" {
		return "onnx"
	}
	return name
}

func envSecret(name string) string {
	if strings.TrimSpace(name) == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(name))
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// IsModelUnavailable reports whether err came from a backend failure.
func IsModelUnavailable(err error) bool {
	return errors.Is(err, ErrModelUnavailable)
}
