// Package batch analyzes many claims with a bounded worker pool and writes the
// results back in input order.
package batch

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/claimlens/claimlens/internal/claims"
	"github.com/claimlens/claimlens/internal/redact"
)

// Analyzer is the slice of *claims.Analyzer the runner needs.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*claims.AnalysisResult, error)
}

// Recorder counts processed rows; *metrics.Collector satisfies it.
type Recorder interface {
	RecordBatchClaim(status string)
}

// Item is the outcome for one input claim. Exactly one of Result and Error is set.
type Item struct {
	Index          int                    `json:"-"`
	ClaimID        string                 `json:"claim_id"`
	ActualSeverity string                 `json:"actual_severity,omitempty"`
	Result         *claims.AnalysisResult `json:"result,omitempty"`
	Error          string                 `json:"error,omitempty"`
	Stage          string                 `json:"stage,omitempty"`

	err error
}

// Err returns the analysis error, if any.
func (i *Item) Err() error { return i.err }

// Agreement compares predicted severity against actual_severity where present.
type Agreement struct {
	Compared int     `json:"compared"`
	Matched  int     `json:"matched"`
	Rate     float64 `json:"rate"`
}

// Report is a finished run.
type Report struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Items     []*Item       `json:"items"`
	Failed    int           `json:"failed"`
	Agreement *Agreement    `json:"agreement,omitempty"`
}

// Options tune a Runner.
type Options struct {
	Workers  int
	Limiter  *Limiter
	Recorder Recorder
}

// Runner drives analyses over a claim list.
type Runner struct {
	analyzer Analyzer
	opts     Options
}

// NewRunner returns a Runner. Fewer than one worker means one.
func NewRunner(a Analyzer, opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Runner{analyzer: a, opts: opts}
}

type claimJob struct {
	index    int
	claim    Claim
	analyzer Analyzer
	limiter  *Limiter
}

func (j *claimJob) Execute(ctx context.Context) Result {
	item := &Item{Index: j.index, ClaimID: j.claim.ID, ActualSeverity: j.claim.ActualSeverity}
	if err := j.limiter.Wait(ctx); err != nil {
		item.setErr(err)
		return item
	}
	res, err := j.analyzer.Analyze(ctx, j.claim.Description)
	if err != nil {
		item.setErr(err)
		return item
	}
	item.Result = res
	return item
}

func (i *Item) setErr(err error) {
	i.err = err
	i.Error = err.Error()
	i.Stage = claims.FailedStage(err)
}

// GetError implements Result.
func (i *Item) GetError() error { return i.err }

// Run analyzes every claim. A failing claim is recorded on its Item and the
// run continues. Items come back in input order. Run only returns an error
// when ctx ends before all claims were processed.
func (r *Runner) Run(ctx context.Context, in []Claim) (*Report, error) {
	rep := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Items:     make([]*Item, len(in)),
	}
	redact.Logf("batch %s: analyzing %d claims with %d workers", rep.RunID, len(in), r.opts.Workers)

	pool := NewPool(ctx, r.opts.Workers)
	pool.Start()
	defer pool.Shutdown()
	go func() {
		defer pool.Close()
		for i, c := range in {
			if !pool.Submit(&claimJob{index: i, claim: c, analyzer: r.analyzer, limiter: r.opts.Limiter}) {
				return
			}
		}
	}()

	for res := range pool.Results() {
		item := res.(*Item)
		rep.Items[item.Index] = item
		status := "ok"
		if item.err != nil {
			status = "error"
			rep.Failed++
			redact.Logf("batch %s: claim %s failed at %s: %v", rep.RunID, item.ClaimID, item.Stage, item.err)
		}
		if r.opts.Recorder != nil {
			r.opts.Recorder.RecordBatchClaim(status)
		}
	}
	rep.Duration = time.Since(rep.StartedAt)

	if err := ctx.Err(); err != nil {
		return rep, err
	}
	rep.Agreement = agreement(rep.Items)
	redact.Logf("batch %s: done in %s, %d failed", rep.RunID, rep.Duration.Round(time.Millisecond), rep.Failed)
	return rep, nil
}

// agreement is nil when no row carries an actual severity.
func agreement(items []*Item) *Agreement {
	var a Agreement
	for _, it := range items {
		if it == nil || it.Result == nil || it.ActualSeverity == "" {
			continue
		}
		a.Compared++
		if strings.EqualFold(it.ActualSeverity, string(it.Result.Severity)) {
			a.Matched++
		}
	}
	if a.Compared == 0 {
		return nil
	}
	a.Rate = float64(a.Matched) / float64(a.Compared)
	return &a
}
