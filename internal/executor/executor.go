// Package executor runs one resolved phase of a run plan against a surface
// and persists its captured output under the plan's logs directory.
package executor

import (
	"context"
	"time"

	"github.com/dineshadepu/wrestler/internal/errors"
	"github.com/dineshadepu/wrestler/internal/logging"
	"github.com/dineshadepu/wrestler/internal/plan"
	"github.com/dineshadepu/wrestler/internal/surface"
)

// PhaseResult records what happened to one phase.
type PhaseResult struct {
	Phase    string
	Command  string
	ExitCode int
	Stdout   int64
	Stderr   int64
	Duration time.Duration
	Err      error
}

// Succeeded reports whether the phase ran and exited 0 with its logs stored.
func (r PhaseResult) Succeeded() bool {
	return r.Err == nil
}

// Options configures an Executor.
type Options struct {
	// ApplyEnv prefixes command lines with the phase environment.
	ApplyEnv bool
	// PhaseTimeout bounds every phase; zero means no limit.
	PhaseTimeout time.Duration
}

// Executor executes phases on a single surface.
type Executor struct {
	surface surface.Surface
	opts    Options
	logger  *logging.Logger
}

// New creates an Executor. A nil logger disables logging.
func New(s surface.Surface, opts Options, logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Executor{surface: s, opts: opts, logger: logger}
}

// Surface returns the surface phases run on.
func (e *Executor) Surface() surface.Surface {
	return e.surface
}

// CommandLine returns the exact string Execute hands to the surface for p.
func (e *Executor) CommandLine(p *plan.ConcretePhase) string {
	if e.opts.ApplyEnv {
		return p.CommandLineWithEnv()
	}
	return p.CommandLine()
}

// Execute runs phase p of rp:
//  1. ensures the phase working directory exists
//  2. runs the command line on the surface
//  3. writes {phase}.stdout and {phase}.stderr under the logs directory,
//     also when the command failed
//
// The returned error is a *errors.PhaseExecutionError when the phase could
// not run or exited non-zero, and a *errors.LogPersistError when only the
// log write failed.
func (e *Executor) Execute(ctx context.Context, rp *plan.RunPlan, p *plan.ConcretePhase) (PhaseResult, error) {
	logger := e.logger.WithRun(rp.Name).WithPhase(p.Name)
	res := PhaseResult{Phase: p.Name, Command: e.CommandLine(p), ExitCode: -1}

	phaseFailed := func(cause error) *errors.PhaseExecutionError {
		return errors.NewPhaseExecutionError(p.Name, cause).WithPlan(rp.Name)
	}

	if err := e.surface.EnsureDirs(ctx, p.Cwd); err != nil {
		logger.Error("failed to create working directory", "cwd", p.Cwd, "error", err.Error())
		res.Err = phaseFailed(err)
		return res, res.Err
	}

	runCtx := ctx
	if e.opts.PhaseTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.opts.PhaseTimeout)
		defer cancel()
	}

	logger.Debug("executing phase", "command", res.Command, "surface", e.surface.Name())
	start := time.Now()
	out, runErr := e.surface.Run(runCtx, res.Command)
	res.Duration = time.Since(start)
	res.ExitCode = out.ExitCode
	res.Stdout = int64(len(out.Stdout))
	res.Stderr = int64(len(out.Stderr))

	if runErr != nil && errors.Is(runErr, errors.ErrTransport) {
		logger.Error("remote shell failed", "error", runErr.Error())
		res.Err = phaseFailed(runErr)
		return res, res.Err
	}

	persistErr := e.persist(ctx, rp, p.Name, out)

	switch {
	case runErr != nil:
		logger.Error("phase did not complete", "error", runErr.Error(), "duration", res.Duration)
		res.Err = phaseFailed(runErr)
	case !out.Success():
		logger.Warn("phase exited non-zero", "exit_code", out.ExitCode, "duration", res.Duration)
		res.Err = phaseFailed(errors.ErrPhaseFailed).WithExitCode(out.ExitCode)
	default:
		logger.Info("phase completed", "duration", res.Duration, "stdout_bytes", res.Stdout, "stderr_bytes", res.Stderr)
	}

	if persistErr != nil {
		logger.Error("failed to persist phase output", "error", persistErr.Error())
		if res.Err == nil {
			res.Err = persistErr
		} else {
			res.Err = errors.Join(res.Err, persistErr)
		}
	}
	return res, res.Err
}

func (e *Executor) persist(ctx context.Context, rp *plan.RunPlan, phase string, out surface.Result) error {
	logs := []struct {
		path string
		data []byte
	}{
		{rp.StdoutLog(phase), out.Stdout},
		{rp.StderrLog(phase), out.Stderr},
	}
	for _, l := range logs {
		if err := e.surface.WriteFile(ctx, l.path, l.data); err != nil {
			return errors.NewLogPersistError(l.path, err)
		}
	}
	return nil
}
