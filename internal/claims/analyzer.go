package claims

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/claimlens/claimlens/internal/nlp"
	"github.com/claimlens/claimlens/internal/redact"
)

// Pipeline stage names, used for spans, errors and failure metrics.
const (
	StageEntities = "entities"
	StageSeverity = "severity"
	StageFraud    = "fraud"
	StageSummary  = "summary"
)

// WarmupSample exercises every stage without hitting any keyword list.
const WarmupSample = "Vehicle was hit in a parking lot in Denver on March 3 and repairs cost $1,200."

// Deps are the handles an Analyzer is built from. Recognizer, Sentiment and
// Segmenter are required; the rest default to no-ops.
type Deps struct {
	Recognizer        nlp.Recognizer
	Sentiment         nlp.SentimentClassifier
	Segmenter         nlp.Segmenter
	SentimentMaxChars int
	Tracer            trace.Tracer
	Observer          Observer
}

// Analyzer owns the model handles and runs the four stages for one claim at a
// time. It holds no per-call state and is safe for concurrent use when its
// backends are.
type Analyzer struct {
	extractor  *Extractor
	severity   *SeverityClassifier
	summarizer *Summarizer
	tracer     trace.Tracer
	observer   Observer
}

// New builds an Analyzer. It panics when a required backend is missing, since
// that is a wiring bug rather than a runtime condition.
func New(d Deps) *Analyzer {
	if d.Recognizer == nil || d.Sentiment == nil || d.Segmenter == nil {
		panic("claims: New requires Recognizer, Sentiment and Segmenter")
	}
	tracer := d.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("claimlens/claims")
	}
	var observer Observer = noopObserver{}
	if d.Observer != nil {
		observer = d.Observer
	}
	return &Analyzer{
		extractor:  NewExtractor(d.Recognizer),
		severity:   NewSeverityClassifier(d.Sentiment, d.SentimentMaxChars),
		summarizer: NewSummarizer(d.Segmenter),
		tracer:     tracer,
		observer:   observer,
	}
}

// StageError reports which stage failed. It unwraps to the backend error, so
// errors.Is(err, nlp.ErrModelUnavailable) still holds.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage recorded in err, or "".
func FailedStage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Analyze runs entity extraction, severity classification, fraud detection and
// summarization in that order. The first failing stage aborts the call.
func (a *Analyzer) Analyze(ctx context.Context, text string) (*AnalysisResult, error) {
	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "claims.Analyze")
	defer span.End()

	var (
		entities EntityBundle
		severity SeverityAssessment
		fraud    FraudAssessment
		summary  string
	)

	err := a.stage(ctx, StageEntities, func(ctx context.Context) (err error) {
		entities, err = a.extractor.Extract(ctx, text)
		return err
	})
	if err == nil {
		err = a.stage(ctx, StageSeverity, func(ctx context.Context) (err error) {
			severity, err = a.severity.Classify(ctx, text)
			return err
		})
	}
	if err == nil {
		err = a.stage(ctx, StageFraud, func(context.Context) error {
			fraud = DetectFraud(text)
			return nil
		})
	}
	if err == nil {
		err = a.stage(ctx, StageSummary, func(ctx context.Context) (err error) {
			summary, err = a.summarizer.Summarize(ctx, text)
			return err
		})
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, FailedStage(err))
		redact.Logf("claimlens: analysis failed request_id=%s %s: %v", nlp.RequestIDFromContext(ctx), redact.TextStats(text), err)
		return nil, err
	}

	res := &AnalysisResult{
		Summary:            summary,
		Severity:           severity.Tier,
		SeverityConfidence: severity.Confidence,
		Sentiment:          severity.Sentiment,
		FraudRisk:          fraud.Tier,
		FraudIndicators:    fraud.Indicators,
		FraudScore:         fraud.Score,
		Entities:           entities,
		WordCount:          len(strings.Fields(text)),
	}
	span.SetAttributes(
		attribute.String("claims.severity", string(res.Severity)),
		attribute.Float64("claims.severity_confidence", res.SeverityConfidence),
		attribute.String("claims.fraud_risk", string(res.FraudRisk)),
		attribute.Int("claims.fraud_score", res.FraudScore),
		attribute.Int("claims.word_count", res.WordCount),
	)
	a.observer.AnalysisDone(res, time.Since(start))
	return res, nil
}

func (a *Analyzer) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := a.tracer.Start(ctx, "claims."+name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, name)
		a.observer.StageFailed(name, err)
		return &StageError{Stage: name, Err: err}
	}
	return nil
}

// Warmup runs one analysis of WarmupSample so lazy backend setup happens before
// the first real claim.
func (a *Analyzer) Warmup(ctx context.Context) (time.Duration, error) {
	if a == nil {
		return 0, errors.New("analyzer not initialized")
	}
	start := time.Now()
	if _, err := a.Analyze(ctx, WarmupSample); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
