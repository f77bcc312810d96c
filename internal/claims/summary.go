package claims

import (
	"context"
	"unicode/utf8"

	"github.com/claimlens/claimlens/internal/nlp"
)

const (
	NoSummary      = "No summary available"
	maxSummaryLen  = 100
	summaryEllipse = "..."
)

// Summarizer reduces a claim to its lead sentence.
type Summarizer struct {
	segmenter nlp.Segmenter
}

// NewSummarizer returns a Summarizer that splits sentences with seg.
func NewSummarizer(seg nlp.Segmenter) *Summarizer {
	return &Summarizer{segmenter: seg}
}

// Summarize returns the first sentence, cut to 97 runes plus "..." when it is
// longer than 100 runes, or NoSummary when no sentence is found.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	sents, err := s.segmenter.Sentences(ctx, text)
	if err != nil {
		return "", err
	}
	if len(sents) == 0 {
		return NoSummary, nil
	}
	return capSummary(sents[0]), nil
}

func capSummary(sentence string) string {
	if utf8.RuneCountInString(sentence) <= maxSummaryLen {
		return sentence
	}
	return truncateRunes(sentence, maxSummaryLen-len(summaryEllipse)) + summaryEllipse
}
