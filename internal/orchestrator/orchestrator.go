// Package orchestrator sequences the phases of run plans and applies the
// cross-plan failure policy.
//
// Each plan moves through
//
//	planned -> directories provisioned -> build? -> run -> analyze? -> completed | failed(phase)
//
// while a dry run goes straight from planned to explained without touching
// any surface.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/dineshadepu/wrestler/internal/errors"
	"github.com/dineshadepu/wrestler/internal/executor"
	"github.com/dineshadepu/wrestler/internal/logging"
	"github.com/dineshadepu/wrestler/internal/plan"
)

// Status is the terminal state of one plan.
type Status string

const (
	StatusPlanned   Status = "planned"
	StatusExplained Status = "explained"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Policy decides what happens to the remaining plans once one fails.
type Policy string

const (
	// ContinueOnFailure runs every plan and aggregates the failures.
	ContinueOnFailure Policy = "continue"
	// FailFast stops dispatching plans after the first failure.
	FailFast Policy = "fail-fast"
)

// Options configures an Orchestrator.
type Options struct {
	Policy      Policy
	MaxParallel int
}

// Callbacks observe plan progress. Any field may be nil. With MaxParallel
// above 1 callbacks are invoked from several goroutines.
type Callbacks struct {
	OnPlanStart    func(rp *plan.RunPlan)
	OnPhaseStart   func(rp *plan.RunPlan, phase, command string)
	OnPlanComplete func(res PlanResult)
}

// PlanResult is the outcome of one plan.
type PlanResult struct {
	Plan        *plan.RunPlan
	Status      Status
	FailedPhase string
	Err         error
	Phases      []executor.PhaseResult
	Duration    time.Duration
}

// Orchestrator drives run plans through an Executor.
type Orchestrator struct {
	exec      *executor.Executor
	opts      Options
	logger    *logging.Logger
	callbacks Callbacks
}

// New creates an Orchestrator. MaxParallel below 1 is treated as 1 and an
// empty policy as ContinueOnFailure.
func New(exec *executor.Executor, opts Options, logger *logging.Logger) *Orchestrator {
	if opts.MaxParallel < 1 {
		opts.MaxParallel = 1
	}
	if opts.Policy == "" {
		opts.Policy = ContinueOnFailure
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Orchestrator{exec: exec, opts: opts, logger: logger}
}

// SetCallbacks installs progress callbacks.
func (o *Orchestrator) SetCallbacks(cb Callbacks) {
	o.callbacks = cb
}

// Banner returns the header printed above every plan.
func Banner(rp *plan.RunPlan) string {
	rule := strings.Repeat("=", 52)
	return fmt.Sprintf("%s\n[%s | %s | %s]\n%s", rule, rp.Problem, rp.Target, rp.Name, rule)
}

// Explain writes the dry-run description of rp: a banner followed by the
// exact command line of every declared phase. It performs no surface
// operation.
func (o *Orchestrator) Explain(w io.Writer, rp *plan.RunPlan) error {
	var sb strings.Builder
	sb.WriteString("\n" + Banner(rp) + "\n(dry-run)\n")
	for _, p := range rp.Phases() {
		fmt.Fprintf(&sb, "\n[%s | %s | %s | %s]\n> %s\n", rp.Problem, rp.Target, rp.Name, p.Name, o.exec.CommandLine(p))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// ExplainAll explains every plan in order and returns their results.
func (o *Orchestrator) ExplainAll(w io.Writer, plans []*plan.RunPlan) (Summary, error) {
	summary := Summary{Results: make([]PlanResult, len(plans))}
	for i, rp := range plans {
		if err := o.Explain(w, rp); err != nil {
			return summary, err
		}
		summary.Results[i] = PlanResult{Plan: rp, Status: StatusExplained}
	}
	return summary, nil
}

// RunPlan provisions the run directories of rp and executes its phases in
// order. The first failing phase aborts the remaining ones.
func (o *Orchestrator) RunPlan(ctx context.Context, rp *plan.RunPlan) (res PlanResult) {
	logger := o.logger.WithProblem(rp.Problem).WithTarget(rp.Target).WithRun(rp.Name)
	res = PlanResult{Plan: rp, Status: StatusPlanned}
	start := time.Now()

	if o.callbacks.OnPlanStart != nil {
		o.callbacks.OnPlanStart(rp)
	}
	defer func() {
		res.Duration = time.Since(start)
		if o.callbacks.OnPlanComplete != nil {
			o.callbacks.OnPlanComplete(res)
		}
	}()

	if err := o.exec.Surface().EnsureDirs(ctx, rp.Dirs()...); err != nil {
		logger.Error("failed to provision run directories", "error", err.Error())
		res.Status = StatusFailed
		res.Err = err
		return res
	}
	logger.Debug("run directories provisioned", "run_root", rp.RunRoot)

	for _, p := range rp.Phases() {
		if o.callbacks.OnPhaseStart != nil {
			o.callbacks.OnPhaseStart(rp, p.Name, o.exec.CommandLine(p))
		}
		pr, err := o.exec.Execute(ctx, rp, p)
		res.Phases = append(res.Phases, pr)
		if err != nil {
			logger.Warn("run failed", "phase", p.Name, "error", err.Error())
			res.Status = StatusFailed
			res.FailedPhase = p.Name
			res.Err = err
			return res
		}
	}

	res.Status = StatusCompleted
	logger.Info("run completed", "phases", len(res.Phases))
	return res
}

// RunAll executes plans with at most MaxParallel running at once and
// reports results in plan order. Under FailFast, plans not yet started when
// a failure is observed are reported as skipped; so are plans not started
// before ctx was canceled.
func (o *Orchestrator) RunAll(ctx context.Context, plans []*plan.RunPlan) Summary {
	results := make([]PlanResult, len(plans))
	var stop atomic.Bool

	p := pool.New().WithMaxGoroutines(o.opts.MaxParallel)
	for i, rp := range plans {
		p.Go(func() {
			if stop.Load() || ctx.Err() != nil {
				results[i] = PlanResult{Plan: rp, Status: StatusSkipped, Err: ctx.Err()}
				return
			}
			res := o.RunPlan(ctx, rp)
			if res.Status == StatusFailed && o.opts.Policy == FailFast {
				stop.Store(true)
			}
			results[i] = res
		})
	}
	p.Wait()

	summary := Summary{Results: results}
	completed, failed, skipped := summary.Counts()
	o.logger.Info("sweep finished",
		"plans", len(plans), "completed", completed, "failed", failed, "skipped", skipped)
	return summary
}

// Summary aggregates the results of one sweep.
type Summary struct {
	Results []PlanResult
}

// Counts returns the number of completed, failed and skipped plans.
func (s Summary) Counts() (completed, failed, skipped int) {
	for _, r := range s.Results {
		switch r.Status {
		case StatusCompleted, StatusExplained:
			completed++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return completed, failed, skipped
}

// Failed returns the results of failed plans, in plan order.
func (s Summary) Failed() []PlanResult {
	var failed []PlanResult
	for _, r := range s.Results {
		if r.Status == StatusFailed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err returns a *errors.PlanFailuresError naming every failed plan and
// phase, or nil when no plan failed.
func (s Summary) Err() error {
	failed := s.Failed()
	if len(failed) == 0 {
		return nil
	}
	agg := &errors.PlanFailuresError{Total: len(s.Results)}
	for _, r := range failed {
		agg.Failures = append(agg.Failures, errors.PlanFailure{Plan: r.Plan.Name, Phase: r.FailedPhase, Err: r.Err})
	}
	return agg
}
