package executor

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/dineshadepu/wrestler/internal/errors"
	"github.com/dineshadepu/wrestler/internal/plan"
	"github.com/dineshadepu/wrestler/internal/surface"
	"github.com/dineshadepu/wrestler/internal/testutil"
)

func testPlan() *plan.RunPlan {
	root := plan.RunRoot("/proj", "heat", "local", "fast-1")
	return &plan.RunPlan{
		Problem: "heat",
		Target:  "local",
		Name:    "fast-1",
		RunRoot: root,
		Run: &plan.ConcretePhase{
			Name:    plan.PhaseRun,
			Program: "./heat",
			Args:    []string{"--n", "1"},
			Cwd:     root + "/run",
			Env:     map[string]string{"OMP_NUM_THREADS": "1"},
		},
	}
}

func TestExecute_Success(t *testing.T) {
	s := testutil.NewRecordingSurface().Respond("./heat", surface.Result{Stdout: []byte("done\n"), Stderr: []byte("warn\n")}, nil)
	rp := testPlan()
	e := New(s, Options{}, nil)

	res, err := e.Execute(context.Background(), rp, rp.Run)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.ExitCode != 0 || res.Stdout != 5 || res.Stderr != 5 {
		t.Errorf("result = %+v", res)
	}

	wantCalls := []testutil.Call{
		{Op: "mkdir", Args: []string{rp.Run.Cwd}},
		{Op: "run", Args: []string{rp.Run.CommandLine()}},
		{Op: "write", Args: []string{rp.StdoutLog("run")}},
		{Op: "write", Args: []string{rp.StderrLog("run")}},
	}
	if diff := cmp.Diff(wantCalls, s.Calls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}

	data, _ := afero.ReadFile(s.Fs, rp.StdoutLog("run"))
	if string(data) != "done\n" {
		t.Errorf("stdout log = %q, want %q", data, "done\n")
	}
}

func TestExecute_ApplyEnv(t *testing.T) {
	s := testutil.NewRecordingSurface()
	rp := testPlan()
	e := New(s, Options{ApplyEnv: true}, nil)

	if _, err := e.Execute(context.Background(), rp, rp.Run); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	want := "cd " + rp.Run.Cwd + " && env OMP_NUM_THREADS='1' ./heat --n 1"
	if got := s.Commands(); len(got) != 1 || got[0] != want {
		t.Errorf("commands = %q, want [%q]", got, want)
	}
	if e.CommandLine(rp.Run) != want {
		t.Errorf("CommandLine() = %q, want %q", e.CommandLine(rp.Run), want)
	}
}

func TestExecute_NonZeroExitPersistsLogs(t *testing.T) {
	s := testutil.NewRecordingSurface().Respond("./heat", surface.Result{Stderr: []byte("segfault\n"), ExitCode: 139}, nil)
	rp := testPlan()
	e := New(s, Options{}, nil)

	res, err := e.Execute(context.Background(), rp, rp.Run)

	var pe *errors.PhaseExecutionError
	if !errors.As(err, &pe) {
		t.Fatalf("Execute() error = %v, want *PhaseExecutionError", err)
	}
	if pe.Phase != "run" || pe.ExitCode != 139 || pe.Plan != "fast-1" {
		t.Errorf("PhaseExecutionError = %+v", pe)
	}
	if !errors.Is(err, errors.ErrPhaseFailed) {
		t.Error("error should match ErrPhaseFailed")
	}
	if res.ExitCode != 139 {
		t.Errorf("ExitCode = %d, want 139", res.ExitCode)
	}

	data, err := afero.ReadFile(s.Fs, rp.StderrLog("run"))
	if err != nil || string(data) != "segfault\n" {
		t.Errorf("stderr log = %q, %v; want persisted output", data, err)
	}
}

func TestExecute_TransportFailureSkipsLogs(t *testing.T) {
	transport := errors.NewRemoteTransportError("me@hpc", io.ErrUnexpectedEOF)
	s := testutil.NewRecordingSurface().Respond("./heat", surface.Result{ExitCode: 255}, transport)
	s.Remote = true
	rp := testPlan()

	_, err := New(s, Options{}, nil).Execute(context.Background(), rp, rp.Run)
	if !errors.Is(err, errors.ErrTransport) {
		t.Fatalf("Execute() error = %v, want transport error", err)
	}
	if errors.FailedPhase(err) != "run" {
		t.Errorf("FailedPhase() = %q, want run", errors.FailedPhase(err))
	}
	for _, c := range s.Calls() {
		if c.Op == "write" {
			t.Errorf("unexpected log write after transport failure: %v", c)
		}
	}
}

type failingWrites struct {
	*testutil.RecordingSurface
}

func (f failingWrites) WriteFile(context.Context, string, []byte) error {
	return io.ErrShortWrite
}

func TestExecute_LogPersistError(t *testing.T) {
	s := failingWrites{testutil.NewRecordingSurface()}
	rp := testPlan()

	_, err := New(s, Options{}, nil).Execute(context.Background(), rp, rp.Run)

	var lpe *errors.LogPersistError
	if !errors.As(err, &lpe) {
		t.Fatalf("Execute() error = %v, want *LogPersistError", err)
	}
	if lpe.Path != rp.StdoutLog("run") {
		t.Errorf("Path = %q, want %q", lpe.Path, rp.StdoutLog("run"))
	}
	var pe *errors.PhaseExecutionError
	if errors.As(err, &pe) {
		t.Error("a successful phase with a failed log write is not a phase failure")
	}
}

func TestExecute_WorkingDirFailure(t *testing.T) {
	s := testutil.NewRecordingSurface()
	s.Fs = afero.NewReadOnlyFs(afero.NewMemMapFs())
	rp := testPlan()

	_, err := New(s, Options{}, nil).Execute(context.Background(), rp, rp.Run)
	if errors.FailedPhase(err) != "run" {
		t.Fatalf("Execute() error = %v, want run phase failure", err)
	}
	if len(s.Commands()) != 0 {
		t.Errorf("commands = %q, want none", s.Commands())
	}
}

func TestExecute_LocalTimeout(t *testing.T) {
	dir := t.TempDir()
	rp := &plan.RunPlan{
		Name:    "slow",
		RunRoot: dir,
		Run:     &plan.ConcretePhase{Name: "run", Program: "sleep", Args: []string{"5"}, Cwd: dir + "/run"},
	}
	local := surface.NewLocal(afero.NewOsFs())
	if err := local.EnsureDirs(context.Background(), rp.LogsDir()); err != nil {
		t.Fatal(err)
	}
	e := New(local, Options{PhaseTimeout: 50 * time.Millisecond}, nil)

	start := time.Now()
	_, err := e.Execute(context.Background(), rp, rp.Run)
	if !errors.Is(err, errors.ErrCanceled) {
		t.Fatalf("Execute() error = %v, want ErrCanceled", err)
	}
	if time.Since(start) > 4*time.Second {
		t.Error("phase timeout did not stop the command")
	}
	if _, statErr := afero.NewOsFs().Stat(rp.StdoutLog("run")); statErr != nil {
		t.Errorf("stdout log not persisted after timeout: %v", statErr)
	}
}
