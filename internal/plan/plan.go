// Package plan turns a problem definition into concrete, fully resolved run
// plans: one per parameter combination, each with its own run root.
package plan

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/dineshadepu/wrestler/internal/config"
	"github.com/dineshadepu/wrestler/internal/errors"
	"github.com/dineshadepu/wrestler/internal/sweep"
	"github.com/dineshadepu/wrestler/internal/tmpl"
)

// Phase names, in execution order.
const (
	PhaseBuild   = "build"
	PhaseRun     = "run"
	PhaseAnalyze = "analyze"
)

// Subdirectories provisioned under every run root.
const (
	LogsDirName     = "logs"
	RunDirName      = "run"
	AnalysisDirName = "analysis"
)

// OutputsDirName is the directory under a target root that holds every run.
const OutputsDirName = "wrestler_outputs"

// RunsBase returns {root}/wrestler_outputs/problems/{problem}/runs/{target},
// the directory holding every run of a problem on a target.
func RunsBase(root, problem, target string) string {
	return root + "/" + OutputsDirName + "/problems/" + problem + "/runs/" + target
}

// RunRoot returns the output directory of one run. It is plain string
// joining with no escaping or cleaning, so equal inputs always give equal
// paths.
func RunRoot(root, problem, target, runName string) string {
	return RunsBase(root, problem, target) + "/" + runName
}

// ConcretePhase is a phase with every template resolved.
type ConcretePhase struct {
	Name    string
	Program string
	Args    []string
	Cwd     string
	Env     map[string]string
}

// CommandLine renders the shell command executed for the phase:
// "cd {cwd} && {program} {args...}".
func (p *ConcretePhase) CommandLine() string {
	return fmt.Sprintf("cd %s && %s %s", p.Cwd, p.Program, strings.Join(p.Args, " "))
}

// CommandLineWithEnv is CommandLine with the phase's environment exported
// through env(1), keys sorted and values single-quoted. Without env entries
// it equals CommandLine.
func (p *ConcretePhase) CommandLineWithEnv() string {
	if len(p.Env) == 0 {
		return p.CommandLine()
	}
	keys := slices.Sorted(maps.Keys(p.Env))
	assignments := make([]string, len(keys))
	for i, k := range keys {
		assignments[i] = k + "=" + ShellQuote(p.Env[k])
	}
	return fmt.Sprintf("cd %s && env %s %s %s", p.Cwd, strings.Join(assignments, " "), p.Program, strings.Join(p.Args, " "))
}

// ShellQuote wraps s in single quotes for POSIX sh.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// RunPlan is one fully resolved execution unit for one parameter
// combination. Plans share no state; treat them as read-only.
type RunPlan struct {
	Problem string
	Target  string
	Name    string
	RunRoot string
	Params  sweep.Combination

	Build   *ConcretePhase
	Run     *ConcretePhase
	Analyze *ConcretePhase
}

// Clone returns a deep copy of the phase.
func (p *ConcretePhase) Clone() *ConcretePhase {
	if p == nil {
		return nil
	}
	c := *p
	c.Args = slices.Clone(p.Args)
	c.Env = maps.Clone(p.Env)
	return &c
}

// Phases returns copies of the declared phases in build, run, analyze
// order. Mutating them does not affect the plan.
func (p *RunPlan) Phases() []*ConcretePhase {
	phases := make([]*ConcretePhase, 0, 3)
	if p.Build != nil {
		phases = append(phases, p.Build.Clone())
	}
	phases = append(phases, p.Run.Clone())
	if p.Analyze != nil {
		phases = append(phases, p.Analyze.Clone())
	}
	return phases
}

// LogsDir returns {run_root}/logs.
func (p *RunPlan) LogsDir() string { return p.RunRoot + "/" + LogsDirName }

// RunDir returns {run_root}/run.
func (p *RunPlan) RunDir() string { return p.RunRoot + "/" + RunDirName }

// AnalysisDir returns {run_root}/analysis.
func (p *RunPlan) AnalysisDir() string { return p.RunRoot + "/" + AnalysisDirName }

// Dirs returns the directories provisioned before any phase runs.
func (p *RunPlan) Dirs() []string {
	return []string{p.LogsDir(), p.RunDir(), p.AnalysisDir()}
}

// StdoutLog returns the path the phase's stdout is persisted to.
func (p *RunPlan) StdoutLog(phase string) string {
	return p.LogsDir() + "/" + phase + ".stdout"
}

// StderrLog returns the path the phase's stderr is persisted to.
func (p *RunPlan) StderrLog(phase string) string {
	return p.LogsDir() + "/" + phase + ".stderr"
}

// Spec names everything the builder needs.
type Spec struct {
	ProblemName string
	Problem     config.Problem
	TargetName  string
	Target      config.Target
}

// Warning is a non-fatal finding of the builder, such as a placeholder no
// token resolves.
type Warning struct {
	Plan    string
	Field   string
	Message string
}

// Build expands the problem's sweep and materializes one RunPlan per
// combination, in sweep order. An empty parameter list yields no plans.
func Build(spec Spec) ([]*RunPlan, error) {
	plans, _, err := BuildWithWarnings(spec)
	return plans, err
}

// BuildWithWarnings is Build that also reports unresolved placeholders.
func BuildWithWarnings(spec Spec) ([]*RunPlan, []Warning, error) {
	combos, err := sweep.Expand(spec.Problem.Parameters)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "problem %s", spec.ProblemName)
	}

	var warnings []Warning
	plans := make([]*RunPlan, 0, len(combos))
	for _, combo := range combos {
		p, w, err := buildOne(spec, combo)
		if err != nil {
			return nil, nil, err
		}
		plans = append(plans, p)
		warnings = append(warnings, w...)
	}

	if err := CheckCollisions(plans); err != nil {
		return nil, nil, err
	}
	return plans, warnings, nil
}

func buildOne(spec Spec, combo sweep.Combination) (*RunPlan, []Warning, error) {
	subs := tmpl.Map(combo.Map())
	subs[tmpl.ProjectRoot] = spec.Target.Root

	runName := tmpl.Substitute(spec.Problem.RunName, subs)
	if err := ValidateRunName(runName); err != nil {
		return nil, nil, err.WithField(fmt.Sprintf("problems.%s.run_name", spec.ProblemName))
	}

	runRoot := RunRoot(spec.Target.Root, spec.ProblemName, spec.TargetName, runName)
	subs[tmpl.RunDir] = runRoot

	p := &RunPlan{
		Problem: spec.ProblemName,
		Target:  spec.TargetName,
		Name:    runName,
		RunRoot: runRoot,
		Params:  combo,
	}

	var warnings []Warning
	collect := func(field, template string) {
		if missing := tmpl.Unresolved(template, subs); len(missing) > 0 {
			warnings = append(warnings, Warning{
				Plan:    runName,
				Field:   field,
				Message: "unresolved placeholders: {" + strings.Join(missing, "}, {") + "}",
			})
		}
	}
	collect("run_name", spec.Problem.RunName)

	phases := spec.Problem.Phases
	if phases.Build != nil {
		p.Build = materialize(PhaseBuild, phases.Build, subs, spec.Target.Root, collect)
	}
	p.Run = materialize(PhaseRun, &phases.Run, subs, p.RunDir(), collect)
	if phases.Analyze != nil {
		p.Analyze = materialize(PhaseAnalyze, phases.Analyze, subs, p.AnalysisDir(), collect)
	}

	return p, warnings, nil
}

func materialize(name string, t *config.PhaseTemplate, subs tmpl.Map, defaultCwd string, collect func(field, template string)) *ConcretePhase {
	field := "phases." + name
	collect(field+".program", t.Program)
	for i, a := range t.Args {
		collect(fmt.Sprintf("%s.args[%d]", field, i), a)
	}

	cwd := defaultCwd
	if t.Cwd != "" {
		collect(field+".cwd", t.Cwd)
		cwd = tmpl.Substitute(t.Cwd, subs)
	}

	env := make(map[string]string, len(t.Env))
	for k, v := range t.Env {
		collect(field+".env."+k, v)
		env[k] = tmpl.Substitute(v, subs)
	}

	args := tmpl.SubstituteAll(t.Args, subs)
	if args == nil {
		args = []string{}
	}

	return &ConcretePhase{
		Name:    name,
		Program: tmpl.Substitute(t.Program, subs),
		Args:    args,
		Cwd:     cwd,
		Env:     env,
	}
}

// ValidateRunName rejects resolved run names that would escape or alias the
// runs directory.
func ValidateRunName(name string) *errors.ValidationError {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.NewValidationError("run name resolves to an empty string").WithValue(name)
	case name == "." || name == "..":
		return errors.NewValidationError("run name must not be . or ..").WithValue(name)
	case strings.Contains(name, "/"):
		return errors.NewValidationError("run name must not contain '/'").WithValue(name)
	}
	return nil
}

// CheckCollisions reports plans that share a run root. Two combinations
// collide when the run name template ignores a parameter that varies.
func CheckCollisions(plans []*RunPlan) error {
	byRoot := make(map[string][]*RunPlan, len(plans))
	for _, p := range plans {
		byRoot[p.RunRoot] = append(byRoot[p.RunRoot], p)
	}

	var dups []string
	for root, group := range byRoot {
		if len(group) < 2 {
			continue
		}
		params := make([]string, len(group))
		for i, p := range group {
			params[i] = "[" + p.Params.String() + "]"
		}
		dups = append(dups, fmt.Sprintf("%s <- %s", root, strings.Join(params, ", ")))
	}
	if len(dups) == 0 {
		return nil
	}

	sort.Strings(dups)
	return errors.NewValidationError("distinct parameter combinations resolve to the same run: " + strings.Join(dups, "; ")).
		WithField("run_name").
		WithCause(errors.ErrCollision)
}
