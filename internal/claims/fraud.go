package claims

import (
	"fmt"
	"strings"
)

var (
	fraudKeywords = []string{
		"stolen", "theft", "burglar", "missing", "disappeared",
		"false alarm", "mistake", "forgot", "confused",
	}
	retractionPhrases = []string{"false alarm", "mistake"}
	urgencyWords      = []string{"urgent", "immediately", "asap", "emergency"}
)

const (
	IndicatorRetraction = "Claim retraction mentioned"
	IndicatorShort      = "Very short description (lack of detail)"
	IndicatorUrgency    = "Excessive urgency language"

	shortDescriptionWords = 20
	minUrgencyHits        = 2
)

// DetectFraud evaluates every rule in a fixed order and never short-circuits.
// A retraction phrase scores under both the keyword rule and the retraction rule.
func DetectFraud(text string) FraudAssessment {
	lower := strings.ToLower(text)
	indicators := []string{}
	score := 0

	for _, kw := range fraudKeywords {
		if strings.Contains(lower, kw) {
			indicators = append(indicators, fmt.Sprintf("Contains keyword: '%s'", kw))
			score++
		}
	}

	for _, phrase := range retractionPhrases {
		if strings.Contains(lower, phrase) {
			indicators = append(indicators, IndicatorRetraction)
			score += 2
			break
		}
	}

	if len(strings.Fields(text)) < shortDescriptionWords {
		indicators = append(indicators, IndicatorShort)
		score++
	}

	if countOccurrences(lower, urgencyWords) >= minUrgencyHits {
		indicators = append(indicators, IndicatorUrgency)
		score++
	}

	return FraudAssessment{
		Tier:       FraudTier(score),
		Score:      score,
		Indicators: indicators,
	}
}

// FraudTier maps a score to a tier: 3 and up is High, 2 is Medium.
func FraudTier(score int) Tier {
	switch {
	case score >= 3:
		return TierHigh
	case score >= 2:
		return TierMedium
	default:
		return TierLow
	}
}
