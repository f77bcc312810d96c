package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/claimlens/claimlens/internal/claims"
	"github.com/claimlens/claimlens/internal/config"
	"github.com/claimlens/claimlens/internal/nlp"
	"github.com/claimlens/claimlens/internal/redact"
)

func main() {
	cfgPath := flag.String("config", "", "path to config yaml (required)")
	n := flag.Int("n", 200, "number of iterations")
	text := flag.String("text", "Severe hail destroyed the roof of our home in Austin on March 3, 2024. The contractor quoted $18,000 for a complete replacement.", "claim text to analyze")
	flag.Parse()

	if *cfgPath == "" {
		redact.Fatalf("config flag is required")
	}

	// Force single session to avoid queueing noise in the benchmark.
	if err := os.Setenv("CLAIMLENS_MAX_SESSIONS", "1"); err != nil {
		redact.Fatalf("set CLAIMLENS_MAX_SESSIONS: %v", err)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		redact.Fatalf("load config: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		redact.Fatalf("invalid config: %v", err)
	}

	backends, err := nlp.Load(cfg.Models)
	if err != nil {
		redact.Fatalf("load models: %v", err)
	}
	defer backends.Close()

	analyzer := claims.New(claims.Deps{
		Recognizer:        backends.Recognizer,
		Sentiment:         backends.Sentiment,
		Segmenter:         backends.Segmenter,
		SentimentMaxChars: cfg.Models.SentimentMaxChars,
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := analyzer.Analyze(ctx, *text); err != nil {
			redact.Fatalf("warmup analyze failed: %v", err)
		}
	}

	if *n <= 0 {
		*n = 1
	}

	durations := make([]time.Duration, 0, *n)
	for i := 0; i < *n; i++ {
		start := time.Now()
		if _, err := analyzer.Analyze(ctx, *text); err != nil {
			redact.Fatalf("analyze failed: %v", err)
		}
		durations = append(durations, time.Since(start))
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var total time.Duration
	for _, d := range durations {
		total += d
	}

	avg := float64(total.Microseconds()) / 1000.0 / float64(len(durations))
	p50 := float64(durations[len(durations)/2].Microseconds()) / 1000.0
	p95 := float64(durations[int(float64(len(durations))*0.95)].Microseconds()) / 1000.0

	fmt.Printf("bench: n=%d avg_ms=%.2f p50_ms=%.2f p95_ms=%.2f seq_len=%d ner=%s sentiment=%s bundle_dir=%s\n",
		len(durations),
		avg,
		p50,
		p95,
		cfg.Models.SeqLen,
		cfg.Models.NER.Backend,
		cfg.Models.Sentiment.Backend,
		cfg.Models.BundleDir,
	)
}
