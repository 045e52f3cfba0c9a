package plan

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dineshadepu/wrestler/internal/config"
	"github.com/dineshadepu/wrestler/internal/errors"
)

func heatSpec() Spec {
	return Spec{
		ProblemName: "heat",
		TargetName:  "local",
		Target:      config.Target{Root: "/proj"},
		Problem: config.Problem{
			RunName: "{mode}-{n}",
			Parameters: map[string][]any{
				"n":    {int64(1), int64(2)},
				"mode": {"fast"},
			},
			Phases: config.Phases{
				Build: &config.PhaseTemplate{Program: "make", Args: []string{"-C", "{project_root}"}},
				Run: config.PhaseTemplate{
					Program: "{project_root}/bin/heat",
					Args:    []string{"--n", "{n}", "--out", "{run_dir}/run/out.dat"},
					Env:     map[string]string{"OMP_NUM_THREADS": "{n}", "LABEL": "x"},
				},
				Analyze: &config.PhaseTemplate{Program: "python3", Args: []string{"plot.py", "{mode}"}},
			},
		},
	}
}

func TestRunRoot(t *testing.T) {
	tests := []struct {
		root, problem, target, run string
		want                       string
	}{
		{"/proj", "heat", "local", "fast-1", "/proj/wrestler_outputs/problems/heat/runs/local/fast-1"},
		{".", "p", "t", "r", "./wrestler_outputs/problems/p/runs/t/r"},
		{"/with space", "a b", "t:1", "x*?$y", "/with space/wrestler_outputs/problems/a b/runs/t:1/x*?$y"},
		{"/trailing/", "p", "t", "r", "/trailing//wrestler_outputs/problems/p/runs/t/r"},
		{"~/proj", "p", "t", "0.5", "~/proj/wrestler_outputs/problems/p/runs/t/0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := RunRoot(tt.root, tt.problem, tt.target, tt.run); got != tt.want {
				t.Errorf("RunRoot() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuild_NamesFromSweep(t *testing.T) {
	plans, err := Build(heatSpec())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var names []string
	for _, p := range plans {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff([]string{"fast-1", "fast-2"}, names); diff != "" {
		t.Errorf("plan names mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_ResolvesPhases(t *testing.T) {
	plans, err := Build(heatSpec())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	p := plans[1]

	root := "/proj/wrestler_outputs/problems/heat/runs/local/fast-2"
	if p.RunRoot != root {
		t.Errorf("RunRoot = %q, want %q", p.RunRoot, root)
	}
	if p.Problem != "heat" || p.Target != "local" {
		t.Errorf("Problem/Target = %q/%q", p.Problem, p.Target)
	}

	wantBuild := &ConcretePhase{Name: "build", Program: "make", Args: []string{"-C", "/proj"}, Cwd: "/proj", Env: map[string]string{}}
	if diff := cmp.Diff(wantBuild, p.Build); diff != "" {
		t.Errorf("Build mismatch (-want +got):\n%s", diff)
	}

	wantRun := &ConcretePhase{
		Name:    "run",
		Program: "/proj/bin/heat",
		Args:    []string{"--n", "2", "--out", root + "/run/out.dat"},
		Cwd:     root + "/run",
		Env:     map[string]string{"OMP_NUM_THREADS": "2", "LABEL": "x"},
	}
	if diff := cmp.Diff(wantRun, p.Run); diff != "" {
		t.Errorf("Run mismatch (-want +got):\n%s", diff)
	}

	wantAnalyze := &ConcretePhase{Name: "analyze", Program: "python3", Args: []string{"plot.py", "fast"}, Cwd: root + "/analysis", Env: map[string]string{}}
	if diff := cmp.Diff(wantAnalyze, p.Analyze); diff != "" {
		t.Errorf("Analyze mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_ExplicitCwd(t *testing.T) {
	spec := heatSpec()
	spec.Problem.Phases.Run.Cwd = "{run_dir}/work-{n}"

	plans, err := Build(spec)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	want := "/proj/wrestler_outputs/problems/heat/runs/local/fast-1/work-1"
	if plans[0].Run.Cwd != want {
		t.Errorf("Run.Cwd = %q, want %q", plans[0].Run.Cwd, want)
	}
}

func TestBuild_OptionalPhases(t *testing.T) {
	spec := heatSpec()
	spec.Problem.Phases.Build = nil
	spec.Problem.Phases.Analyze = nil

	plans, err := Build(spec)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	phases := plans[0].Phases()
	if len(phases) != 1 || phases[0].Name != "run" {
		t.Errorf("Phases() = %v, want only run", phases)
	}
	if plans[0].Run.Args == nil {
		t.Error("Args should never be nil")
	}
}

func TestBuild_PhaseOrder(t *testing.T) {
	plans, err := Build(heatSpec())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	var names []string
	for _, ph := range plans[0].Phases() {
		names = append(names, ph.Name)
	}
	if diff := cmp.Diff([]string{"build", "run", "analyze"}, names); diff != "" {
		t.Errorf("Phases() order mismatch (-want +got):\n%s", diff)
	}
}

func TestPhases_ReturnsCopies(t *testing.T) {
	plans, err := Build(heatSpec())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	rp := plans[0]
	wantArgs := append([]string(nil), rp.Run.Args...)
	wantLine := rp.Run.CommandLineWithEnv()

	for _, ph := range rp.Phases() {
		ph.Program = "rm"
		if len(ph.Args) > 0 {
			ph.Args[0] = "-rf"
		}
		ph.Env["INJECTED"] = "1"
	}

	if diff := cmp.Diff(wantArgs, rp.Run.Args); diff != "" {
		t.Errorf("Run.Args changed through Phases() (-want +got):\n%s", diff)
	}
	if _, ok := rp.Run.Env["INJECTED"]; ok {
		t.Error("Run.Env changed through Phases()")
	}
	if got := rp.Run.CommandLineWithEnv(); got != wantLine {
		t.Errorf("CommandLineWithEnv() = %q, want %q", got, wantLine)
	}
}

func TestBuild_EmptySweep(t *testing.T) {
	spec := heatSpec()
	spec.Problem.Parameters["mode"] = []any{}

	plans, err := Build(spec)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(plans) != 0 {
		t.Errorf("len(plans) = %d, want 0", len(plans))
	}
}

func TestBuild_NoParameters(t *testing.T) {
	spec := heatSpec()
	spec.Problem.Parameters = nil
	spec.Problem.RunName = "baseline"

	plans, err := Build(spec)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(plans) != 1 || plans[0].Name != "baseline" {
		t.Errorf("plans = %v, want one baseline plan", plans)
	}
}

func TestBuild_DistinctRunRoots(t *testing.T) {
	spec := heatSpec()
	spec.Problem.RunName = "{mode}-{n}-{dt}"
	spec.Problem.Parameters = map[string][]any{
		"n":    {int64(1), int64(2), int64(3)},
		"mode": {"fast", "slow"},
		"dt":   {0.1, 0.25},
	}

	plans, err := Build(spec)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(plans) != 12 {
		t.Fatalf("len(plans) = %d, want 12", len(plans))
	}
	seen := map[string]bool{}
	for _, p := range plans {
		if seen[p.RunRoot] {
			t.Errorf("duplicate run root %s", p.RunRoot)
		}
		seen[p.RunRoot] = true
	}
}

func TestBuild_DetectsCollision(t *testing.T) {
	spec := heatSpec()
	spec.Problem.RunName = "{mode}"

	_, err := Build(spec)
	if err == nil {
		t.Fatal("Build should reject a run name that ignores a varying parameter")
	}
	if !errors.Is(err, errors.ErrCollision) {
		t.Errorf("error = %v, want ErrCollision", err)
	}
	if !strings.Contains(err.Error(), "mode=fast n=1") || !strings.Contains(err.Error(), "mode=fast n=2") {
		t.Errorf("error should name both combinations: %v", err)
	}
}

func TestBuild_RejectsUnsafeRunNames(t *testing.T) {
	tests := []struct {
		name    string
		runName string
		params  map[string][]any
	}{
		{"empty", "{tag}", map[string][]any{"tag": {""}}},
		{"dot dot", "{tag}", map[string][]any{"tag": {".."}}},
		{"slash", "{tag}", map[string][]any{"tag": {"a/b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := heatSpec()
			spec.Problem.RunName = tt.runName
			spec.Problem.Parameters = tt.params

			_, err := Build(spec)
			var verr *errors.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Build error = %v, want *errors.ValidationError", err)
			}
			if verr.Field != "problems.heat.run_name" {
				t.Errorf("Field = %q", verr.Field)
			}
		})
	}
}

func TestBuild_InvalidParameter(t *testing.T) {
	spec := heatSpec()
	spec.Problem.Parameters["n"] = []any{map[string]any{"x": 1}}

	_, err := Build(spec)
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Build error = %v, want ErrInvalidInput", err)
	}
}

func TestBuildWithWarnings(t *testing.T) {
	spec := heatSpec()
	spec.Problem.Phases.Run.Args = append(spec.Problem.Phases.Run.Args, "{sizee}")

	plans, warnings, err := BuildWithWarnings(spec)
	if err != nil {
		t.Fatalf("BuildWithWarnings failed: %v", err)
	}
	if len(warnings) != len(plans) {
		t.Fatalf("len(warnings) = %d, want one per plan (%d)", len(warnings), len(plans))
	}
	if warnings[0].Field != "phases.run.args[4]" || !strings.Contains(warnings[0].Message, "{sizee}") {
		t.Errorf("warning = %+v", warnings[0])
	}
	if plans[0].Run.Args[4] != "{sizee}" {
		t.Errorf("unknown token should stay literal, got %q", plans[0].Run.Args[4])
	}
}

func TestBuild_DoesNotShareState(t *testing.T) {
	plans, err := Build(heatSpec())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	plans[0].Run.Env["OMP_NUM_THREADS"] = "99"
	plans[0].Run.Args[1] = "99"
	if plans[1].Run.Env["OMP_NUM_THREADS"] != "2" || plans[1].Run.Args[1] != "2" {
		t.Error("plans share env or args storage")
	}
}

func TestCommandLine(t *testing.T) {
	p := &ConcretePhase{Program: "./heat", Args: []string{"--n", "2"}, Cwd: "/r/run"}
	if got, want := p.CommandLine(), "cd /r/run && ./heat --n 2"; got != want {
		t.Errorf("CommandLine() = %q, want %q", got, want)
	}

	noArgs := &ConcretePhase{Program: "make", Args: []string{}, Cwd: "/proj"}
	if got, want := noArgs.CommandLine(), "cd /proj && make "; got != want {
		t.Errorf("CommandLine() = %q, want %q", got, want)
	}
}

func TestCommandLineWithEnv(t *testing.T) {
	p := &ConcretePhase{
		Program: "./heat",
		Args:    []string{"--n", "2"},
		Cwd:     "/r/run",
		Env:     map[string]string{"OMP_NUM_THREADS": "2", "NOTE": "it's"},
	}
	want := `cd /r/run && env NOTE='it'\''s' OMP_NUM_THREADS='2' ./heat --n 2`
	if got := p.CommandLineWithEnv(); got != want {
		t.Errorf("CommandLineWithEnv() = %q, want %q", got, want)
	}

	p.Env = nil
	if p.CommandLineWithEnv() != p.CommandLine() {
		t.Error("CommandLineWithEnv() without env should equal CommandLine()")
	}
}

func TestRunPlan_Paths(t *testing.T) {
	p := &RunPlan{RunRoot: "/r"}
	if diff := cmp.Diff([]string{"/r/logs", "/r/run", "/r/analysis"}, p.Dirs()); diff != "" {
		t.Errorf("Dirs() mismatch (-want +got):\n%s", diff)
	}
	if p.StdoutLog("build") != "/r/logs/build.stdout" {
		t.Errorf("StdoutLog() = %q", p.StdoutLog("build"))
	}
	if p.StderrLog("run") != "/r/logs/run.stderr" {
		t.Errorf("StderrLog() = %q", p.StderrLog("run"))
	}
	if RunsBase("/proj", "heat", "hpc") != "/proj/wrestler_outputs/problems/heat/runs/hpc" {
		t.Errorf("RunsBase() = %q", RunsBase("/proj", "heat", "hpc"))
	}
}
