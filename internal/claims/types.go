package claims

import (
	"time"

	"github.com/claimlens/claimlens/internal/nlp"
)

// Tier is a coarse Low/Medium/High classification.
type Tier string

const (
	TierLow    Tier = "Low"
	TierMedium Tier = "Medium"
	TierHigh   Tier = "High"
)

// Sentiment is the raw classifier verdict carried on every result.
type Sentiment = nlp.Sentiment

// EntityBundle groups extracted spans by category in discovery order.
// Duplicates are kept and nothing is normalized.
type EntityBundle struct {
	Locations     []string `json:"locations"`
	Dates         []string `json:"dates"`
	Money         []string `json:"money"`
	Organizations []string `json:"organizations"`
	Vehicles      []string `json:"vehicles"`
}

// NewEntityBundle returns a bundle whose categories serialize as [] rather than null.
func NewEntityBundle() EntityBundle {
	return EntityBundle{
		Locations:     []string{},
		Dates:         []string{},
		Money:         []string{},
		Organizations: []string{},
		Vehicles:      []string{},
	}
}

// KeywordCounts are the severity keyword hits per tier list.
type KeywordCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// SeverityAssessment is the severity tier with the evidence behind it.
type SeverityAssessment struct {
	Tier          Tier          `json:"tier"`
	Confidence    float64       `json:"confidence"`
	Sentiment     Sentiment     `json:"sentiment"`
	KeywordCounts KeywordCounts `json:"keyword_counts"`
}

// FraudAssessment is the fraud score, its risk tier and the indicators that fired.
type FraudAssessment struct {
	Tier       Tier     `json:"tier"`
	Score      int      `json:"score"`
	Indicators []string `json:"indicators"`
}

// AnalysisResult is the full per-claim record. It is built fresh for every call
// and belongs to the caller once returned.
type AnalysisResult struct {
	Summary            string       `json:"summary"`
	Severity           Tier         `json:"severity"`
	SeverityConfidence float64      `json:"severity_confidence"`
	Sentiment          Sentiment    `json:"sentiment"`
	FraudRisk          Tier         `json:"fraud_risk"`
	FraudIndicators    []string     `json:"fraud_indicators"`
	FraudScore         int          `json:"fraud_score"`
	Entities           EntityBundle `json:"entities"`
	WordCount          int          `json:"word_count"`
}

// Observer receives pipeline outcomes. Implementations must be safe for
// concurrent use and must not retain res.
type Observer interface {
	AnalysisDone(res *AnalysisResult, elapsed time.Duration)
	StageFailed(stage string, err error)
}

type noopObserver struct{}

func (noopObserver) AnalysisDone(*AnalysisResult, time.Duration) {}
func (noopObserver) StageFailed(string, error)                   {}

// Observers fans out to every non-nil observer.
type Observers []Observer

func (o Observers) AnalysisDone(res *AnalysisResult, elapsed time.Duration) {
	for _, ob := range o {
		if ob != nil {
			ob.AnalysisDone(res, elapsed)
		}
	}
}

func (o Observers) StageFailed(stage string, err error) {
	for _, ob := range o {
		if ob != nil {
			ob.StageFailed(stage, err)
		}
	}
}
