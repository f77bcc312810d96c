package claims

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/claimlens/claimlens/internal/nlp"
)

type stubRecognizer struct {
	entities []nlp.Entity
	err      error
}

func (s stubRecognizer) Recognize(ctx context.Context, text string) ([]nlp.Entity, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.entities, nil
}

type stubSentiment struct {
	label string
	score float64
	err   error

	mu     sync.Mutex
	inputs []string
}

func (s *stubSentiment) Classify(ctx context.Context, text string) (nlp.Sentiment, error) {
	s.mu.Lock()
	s.inputs = append(s.inputs, text)
	s.mu.Unlock()
	if s.err != nil {
		return nlp.Sentiment{}, s.err
	}
	return nlp.Sentiment{Label: s.label, Score: s.score}, nil
}

func (s *stubSentiment) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.inputs...)
}

// periodSegmenter splits after ". " like a naive sentence splitter.
type periodSegmenter struct {
	err error
}

func (s periodSegmenter) Sentences(ctx context.Context, text string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []string
	for _, part := range strings.SplitAfter(text, ". ") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

type recordingObserver struct {
	mu     sync.Mutex
	done   []*AnalysisResult
	failed []string
}

func (o *recordingObserver) AnalysisDone(res *AnalysisResult, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.done = append(o.done, res)
}

func (o *recordingObserver) StageFailed(stage string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed = append(o.failed, stage)
}

func newTestAnalyzer(rec nlp.Recognizer, sent nlp.SentimentClassifier) *Analyzer {
	return New(Deps{Recognizer: rec, Sentiment: sent, Segmenter: periodSegmenter{}})
}
