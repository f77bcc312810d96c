package claims

import (
	"context"
	"strings"

	"github.com/claimlens/claimlens/internal/nlp"
)

var (
	highSeverityKeywords = []string{
		"total loss", "severe", "destroyed", "major", "significant",
		"urgent", "emergency", "critical", "extensive", "complete",
	}
	mediumSeverityKeywords = []string{"moderate", "damaged", "broken", "cracked", "dented"}
	lowSeverityKeywords    = []string{"minor", "small", "slight", "scratch", "chip", "tiny"}
)

// DefaultSentimentMaxChars bounds the text handed to the sentiment model.
const DefaultSentimentMaxChars = 512

// SeverityClassifier combines keyword evidence with a sentiment verdict.
type SeverityClassifier struct {
	sentiment nlp.SentimentClassifier
	maxChars  int
}

// NewSeverityClassifier returns a classifier that sends at most maxChars runes
// to the sentiment model. maxChars <= 0 means DefaultSentimentMaxChars.
func NewSeverityClassifier(sent nlp.SentimentClassifier, maxChars int) *SeverityClassifier {
	if maxChars <= 0 {
		maxChars = DefaultSentimentMaxChars
	}
	return &SeverityClassifier{sentiment: sent, maxChars: maxChars}
}

// Classify counts keywords over the whole text, asks the sentiment model about
// the leading maxChars runes and applies the tier rules.
func (c *SeverityClassifier) Classify(ctx context.Context, text string) (SeverityAssessment, error) {
	counts := CountSeverityKeywords(text)
	sent, err := c.sentiment.Classify(ctx, truncateRunes(text, c.maxChars))
	if err != nil {
		return SeverityAssessment{}, err
	}
	tier, conf := severityTier(counts, sent.Label)
	return SeverityAssessment{
		Tier:          tier,
		Confidence:    conf,
		Sentiment:     sent,
		KeywordCounts: counts,
	}, nil
}

// CountSeverityKeywords counts how many distinct keywords of each tier appear
// as substrings of the lower-cased text, so "majority" counts as "major" and a
// repeated keyword counts once.
func CountSeverityKeywords(text string) KeywordCounts {
	lower := strings.ToLower(text)
	return KeywordCounts{
		High:   countPresent(lower, highSeverityKeywords),
		Medium: countPresent(lower, mediumSeverityKeywords),
		Low:    countPresent(lower, lowSeverityKeywords),
	}
}

// severityTier applies the rules in precedence order. The medium count never
// affects the outcome.
func severityTier(counts KeywordCounts, sentimentLabel string) (Tier, float64) {
	switch {
	case counts.High >= 2 || (counts.High >= 1 && sentimentLabel == nlp.LabelNegative):
		return TierHigh, min(0.7+0.1*float64(counts.High), 0.95)
	case counts.Low >= 2 || (counts.Low >= 1 && sentimentLabel == nlp.LabelPositive):
		return TierLow, min(0.6+0.1*float64(counts.Low), 0.9)
	default:
		return TierMedium, 0.65
	}
}

func countPresent(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

// countOccurrences sums every occurrence of every keyword.
func countOccurrences(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		n += strings.Count(lower, kw)
	}
	return n
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for idx := range s {
		if i == n {
			return s[:idx]
		}
		i++
	}
	return s
}
