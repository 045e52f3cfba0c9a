package cmd

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dineshadepu/wrestler/internal/config"
	"github.com/dineshadepu/wrestler/internal/errors"
	"github.com/dineshadepu/wrestler/internal/executor"
	"github.com/dineshadepu/wrestler/internal/orchestrator"
	"github.com/dineshadepu/wrestler/internal/plan"
	"github.com/dineshadepu/wrestler/internal/styles"
	"github.com/dineshadepu/wrestler/internal/surface"
	"github.com/dineshadepu/wrestler/internal/util"
)

var runCmd = &cobra.Command{
	Use:   "run <problem>",
	Short: "Expand a problem's sweep and execute every run on a target",
	Long: `Expand the parameter sweep of a problem into one run per combination
and execute the build, run and analyze phases of each run on the target.

On a terminal a live progress view shows the runs in flight; piped
output and --no-progress print one line per phase and run instead.

A failing phase stops the remaining phases of its run. Other runs still
execute unless --fail-fast is given. The exit status is non-zero if any
run failed.

Examples:
  # Execute every run of "heat" on the local target
  wrestler run heat --target local

  # Show the resolved commands without executing anything
  wrestler run heat --target cluster --dry-run

  # Dump the resolved plans as YAML
  wrestler run heat --target cluster --dry-run --format yaml

  # Run four plans at a time and stop at the first failure
  wrestler run heat --target local --parallel 4 --fail-fast`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var (
	runTarget string
	runDryRun     bool
	runFormat     string
	runNoProgress bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runTarget, "target", "t", "", "Target to run on (required)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Print the resolved commands without executing them")
	runCmd.Flags().StringVar(&runFormat, "format", "text", "Dry-run output format: text or yaml")
	runCmd.Flags().IntP("parallel", "j", 1, "Maximum number of runs executed at once")
	runCmd.Flags().Bool("fail-fast", false, "Stop starting new runs after the first failure")
	runCmd.Flags().BoolVar(&runNoProgress, "no-progress", false, "Print plain status lines even on a terminal")
	_ = runCmd.MarkFlagRequired("target")
	_ = viper.BindPFlag("execution.max_parallel", runCmd.Flags().Lookup("parallel"))
	_ = viper.BindPFlag("execution.fail_fast", runCmd.Flags().Lookup("fail-fast"))
}

func runRun(cmd *cobra.Command, args []string) error {
	if runFormat != "text" && runFormat != "yaml" {
		return errors.NewValidationError("unsupported output format").WithField("format").WithValue(runFormat)
	}

	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.close()

	spec, err := resolveSpec(sess.cfg, args[0], runTarget)
	if err != nil {
		return err
	}
	logger := sess.logger.WithProblem(spec.ProblemName).WithTarget(spec.TargetName)

	plans, warnings, err := plan.BuildWithWarnings(spec)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		logger.Warn("unresolved token in template", "run", w.Plan, "field", w.Field, "detail", w.Message)
	}

	out := cmd.OutOrStdout()
	if len(plans) == 0 {
		fmt.Fprintf(out, "Problem %q has an empty parameter list; nothing to run.\n", spec.ProblemName)
		return nil
	}

	execCfg := sess.cfg.Execution
	exec := executor.New(
		surface.New(spec.Target, execCfg),
		executor.Options{ApplyEnv: execCfg.ApplyEnv, PhaseTimeout: execCfg.PhaseTimeout},
		logger,
	)
	policy := orchestrator.ContinueOnFailure
	if execCfg.FailFast {
		policy = orchestrator.FailFast
	}
	orch := orchestrator.New(exec, orchestrator.Options{Policy: policy, MaxParallel: execCfg.MaxParallel}, logger)

	if runDryRun {
		logger.Info("explaining plans", "plans", len(plans))
		if runFormat == "yaml" {
			return writePlansYAML(out, plans, exec)
		}
		_, err := orch.ExplainAll(out, plans)
		return err
	}

	logger.Info("executing plans", "plans", len(plans), "max_parallel", execCfg.MaxParallel, "policy", string(policy))
	printer := styles.NewPrinter(out)
	var summary orchestrator.Summary
	if printer.IsTerminal() && !runNoProgress {
		summary, err = runWithProgress(cmd.Context(), printer, orch, plans)
		if err != nil {
			logger.Warn("live progress view failed", "error", err.Error())
		}
	} else {
		rep := &reporter{p: printer, sequential: execCfg.MaxParallel <= 1}
		orch.SetCallbacks(rep.callbacks())
		summary = orch.RunAll(cmd.Context(), plans)
	}
	printSummary(printer, summary)

	if err := cmd.Context().Err(); err != nil {
		return errors.Join(errors.ErrCanceled, err, summary.Err())
	}
	return summary.Err()
}

// resolveSpec looks up the problem and target before any planning happens.
func resolveSpec(cfg *config.Config, problemName, targetName string) (plan.Spec, error) {
	problem, err := cfg.LookupProblem(problemName)
	if err != nil {
		return plan.Spec{}, err
	}
	target, err := cfg.LookupTarget(targetName)
	if err != nil {
		return plan.Spec{}, err
	}
	return plan.Spec{
		ProblemName: problemName,
		Problem:     *problem,
		TargetName:  targetName,
		Target:      *target,
	}, nil
}

// reporter prints run progress. With parallel runs every line is prefixed
// with its run name.
type reporter struct {
	mu         sync.Mutex
	p          *styles.Printer
	sequential bool
}

func (r *reporter) callbacks() orchestrator.Callbacks {
	return orchestrator.Callbacks{
		OnPlanStart:    r.planStarted,
		OnPhaseStart:   r.phaseStarted,
		OnPlanComplete: r.planCompleted,
	}
}

func (r *reporter) planStarted(rp *plan.RunPlan) {
	if !r.sequential {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.p.Writer(), "\n%s\n", r.p.Render(styles.Header, orchestrator.Banner(rp)))
}

func (r *reporter) phaseStarted(rp *plan.RunPlan, phase, command string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.p.Writer()
	if r.sequential {
		fmt.Fprintf(w, "\n--- Executing phase: %s ---\n%s\n", phase, r.p.Render(styles.Command, "> "+command))
		return
	}
	line := fmt.Sprintf("[%s] %s: > %s", rp.Name, phase, command)
	fmt.Fprintln(w, util.TruncateANSI(line, r.p.Width()))
}

func (r *reporter) planCompleted(res orchestrator.PlanResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.p.Writer(), statusLine(r.p, res))
}

func statusLine(p *styles.Printer, res orchestrator.PlanResult) string {
	elapsed := res.Duration.Round(time.Millisecond)
	switch res.Status {
	case orchestrator.StatusCompleted:
		return fmt.Sprintf("%s %s (%s)", p.Render(styles.Success, "✓"), res.Plan.Name, elapsed)
	case orchestrator.StatusSkipped:
		return fmt.Sprintf("%s %s skipped", p.Render(styles.Warning, "-"), res.Plan.Name)
	default:
		where := "setup"
		if res.FailedPhase != "" {
			where = res.FailedPhase
		}
		line := fmt.Sprintf("%s %s failed at %s: %s", p.Render(styles.Failure, "✗"), res.Plan.Name, where, util.FirstLine(errString(res.Err)))
		return util.TruncateANSI(line, p.Width())
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func printSummary(p *styles.Printer, summary orchestrator.Summary) {
	completed, failed, skipped := summary.Counts()
	w := p.Writer()

	fmt.Fprintf(w, "\n%s\n", p.Render(styles.Header, "Summary"))
	fmt.Fprintf(w, "  %d completed, %d failed, %d skipped\n", completed, failed, skipped)
	for _, res := range summary.Failed() {
		fmt.Fprintf(w, "  %s\n", statusLine(p, res))
		for _, ph := range res.Phases {
			if ph.Phase == res.FailedPhase {
				fmt.Fprintf(w, "    %s\n", p.Render(styles.Muted, fmt.Sprintf(
					"exit %d, stdout %s, stderr %s, see %s", ph.ExitCode, util.Bytes(ph.Stdout), util.Bytes(ph.Stderr), res.Plan.StderrLog(ph.Phase))))
			}
		}
	}
}

// planExport is the YAML shape of a resolved plan.
type planExport struct {
	Name    string            `yaml:"name"`
	RunRoot string            `yaml:"run_root"`
	Params  map[string]string `yaml:"params,omitempty"`
	Phases  []phaseExport     `yaml:"phases"`
}

type phaseExport struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Cwd     string            `yaml:"cwd"`
	Env     map[string]string `yaml:"env,omitempty"`
}

func writePlansYAML(w io.Writer, plans []*plan.RunPlan, exec *executor.Executor) error {
	exports := make([]planExport, 0, len(plans))
	for _, rp := range plans {
		pe := planExport{Name: rp.Name, RunRoot: rp.RunRoot, Params: rp.Params.Map()}
		for _, p := range rp.Phases() {
			pe.Phases = append(pe.Phases, phaseExport{
				Name:    p.Name,
				Command: exec.CommandLine(p),
				Cwd:     p.Cwd,
				Env:     maps.Clone(p.Env),
			})
		}
		exports = append(exports, pe)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(exports); err != nil {
		return fmt.Errorf("failed to encode plans: %w", err)
	}
	return enc.Close()
}

// sortedNames is used by listings that print map-backed names.
func sortedNames[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
