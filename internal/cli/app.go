package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/claimlens/claimlens/internal/claims"
	"github.com/claimlens/claimlens/internal/config"
	"github.com/claimlens/claimlens/internal/metrics"
	"github.com/claimlens/claimlens/internal/nlp"
	"github.com/claimlens/claimlens/internal/redact"
	"github.com/claimlens/claimlens/internal/telemetry"
)

// app is the process-wide analyzer context plus the ambient providers it reports to.
type app struct {
	cfg       *config.Config
	analyzer  *claims.Analyzer
	backends  *nlp.Backends
	telemetry *telemetry.Provider
	metrics   *metrics.Collector
}

// loadBackends is swapped in tests to avoid real model bundles.
var loadBackends = nlp.Load

func buildApp(ctx context.Context, cfg *config.Config, version string) (*app, error) {
	tel, err := telemetry.NewProvider(ctx, cfg.Telemetry, version)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	a := &app{cfg: cfg, telemetry: tel}
	observers := claims.Observers{tel}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewCollector(cfg.Metrics, nil)
		observers = append(observers, a.metrics)
	}

	backends, err := loadBackends(cfg.Models)
	if err != nil {
		tel.Shutdown(ctx)
		return nil, err
	}
	a.backends = backends

	a.analyzer = claims.New(claims.Deps{
		Recognizer:        backends.Recognizer,
		Sentiment:         backends.Sentiment,
		Segmenter:         backends.Segmenter,
		SentimentMaxChars: cfg.Models.SentimentMaxChars,
		Tracer:            tel.Tracer(),
		Observer:          observers,
	})

	if cfg.Models.Warmup {
		elapsed, err := a.analyzer.Warmup(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("warmup: %w", err)
		}
		redact.Logf("warmup analysis finished in %s", elapsed.Round(time.Millisecond))
	}
	return a, nil
}

// Close releases model sessions and flushes telemetry.
func (a *app) Close() {
	if a == nil {
		return
	}
	if a.backends != nil {
		a.backends.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.telemetry.Shutdown(ctx)
}
