package surface

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/dineshadepu/wrestler/internal/config"
	"github.com/dineshadepu/wrestler/internal/errors"
)

// fakeClient records every command and replays canned results.
type fakeClient struct {
	mu       sync.Mutex
	commands []string
	stdins   [][]byte
	respond  func(command string) (Result, error)
}

func (f *fakeClient) Exec(_ context.Context, command string, stdin io.Reader) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, command)
	var data []byte
	if stdin != nil {
		data, _ = io.ReadAll(stdin)
	}
	f.stdins = append(f.stdins, data)
	if f.respond != nil {
		return f.respond(command)
	}
	return Result{}, nil
}

func TestNew_SelectsSurfaceByTarget(t *testing.T) {
	exec := config.Default().Execution

	local := New(config.Target{Root: "/data"}, exec)
	if _, ok := local.(*Local); !ok {
		t.Fatalf("New(no ssh) = %T, want *Local", local)
	}
	if local.IsRemote() {
		t.Error("local surface reports IsRemote() = true")
	}

	remote := New(config.Target{Root: "/scratch", SSH: "me@hpc"}, exec)
	r, ok := remote.(*Remote)
	if !ok {
		t.Fatalf("New(ssh) = %T, want *Remote", remote)
	}
	if r.Name() != "me@hpc" {
		t.Errorf("Name() = %q, want %q", r.Name(), "me@hpc")
	}
}

func TestSSHClient_Args(t *testing.T) {
	c := NewSSHClient("", []string{"-o", "BatchMode=yes"}, "me@hpc")
	got := c.Args("cd /r && ./sim 4")
	want := []string{"-o", "BatchMode=yes", "me@hpc", "cd /r && ./sim 4"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Args() mismatch (-want +got):\n%s", diff)
	}
	if c.Binary != "ssh" {
		t.Errorf("Binary = %q, want default ssh", c.Binary)
	}
}

func TestSSHClient_SpawnFailureIsTransportError(t *testing.T) {
	c := NewSSHClient(filepath.Join(t.TempDir(), "no-such-ssh"), nil, "me@hpc")
	_, err := c.Exec(context.Background(), "true", nil)
	if !errors.Is(err, errors.ErrTransport) {
		t.Fatalf("Exec() error = %v, want transport error", err)
	}
	var rte *errors.RemoteTransportError
	if !errors.As(err, &rte) || rte.Host != "me@hpc" {
		t.Errorf("As(*RemoteTransportError) host = %+v", rte)
	}
}

func TestSSHClient_ExitStatusMapping(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	// A stand-in "ssh" that ignores its arguments and exits with the code
	// given in the remote command line.
	bin := filepath.Join(t.TempDir(), "fake-ssh")
	script := "#!/bin/sh\neval \"exit_code=\\${$#}\"\necho oops >&2\nexit $exit_code\n"
	fs := afero.NewOsFs()
	if err := afero.WriteFile(fs, bin, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	c := NewSSHClient(bin, nil, "me@hpc")

	res, err := c.Exec(context.Background(), "3", nil)
	if err != nil {
		t.Fatalf("Exec(exit 3) error = %v, want nil", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}

	_, err = c.Exec(context.Background(), "255", nil)
	var rte *errors.RemoteTransportError
	if !errors.As(err, &rte) {
		t.Fatalf("Exec(exit 255) error = %v, want *RemoteTransportError", err)
	}
	if rte.Output != "oops" {
		t.Errorf("Output = %q, want %q", rte.Output, "oops")
	}
}

func TestRemote_EnsureDirsSingleCommand(t *testing.T) {
	fc := &fakeClient{}
	r := NewRemote("me@hpc", fc)

	err := r.EnsureDirs(context.Background(), "/s/logs", "~/runs/a b")
	if err != nil {
		t.Fatalf("EnsureDirs() error = %v", err)
	}
	want := []string{"mkdir -p '/s/logs' ~/'runs/a b'"}
	if diff := cmp.Diff(want, fc.commands); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestRemote_EnsureDirsFailure(t *testing.T) {
	fc := &fakeClient{respond: func(string) (Result, error) {
		return Result{ExitCode: 1, Stderr: []byte("mkdir: Permission denied\n")}, nil
	}}
	r := NewRemote("me@hpc", fc)

	err := r.EnsureDirs(context.Background(), "/root/x")
	var dpe *errors.DirectoryProvisionError
	if !errors.As(err, &dpe) {
		t.Fatalf("EnsureDirs() error = %v, want *DirectoryProvisionError", err)
	}
	if dpe.Host != "me@hpc" {
		t.Errorf("Host = %q, want me@hpc", dpe.Host)
	}
	if !strings.Contains(err.Error(), "Permission denied") {
		t.Errorf("error %q does not carry remote stderr", err)
	}
}

func TestRemote_WriteFileStreamsStdin(t *testing.T) {
	fc := &fakeClient{}
	r := NewRemote("me@hpc", fc)

	if err := r.WriteFile(context.Background(), "/s/logs/run.stdout", []byte("hello\n")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if fc.commands[0] != "cat > '/s/logs/run.stdout'" {
		t.Errorf("command = %q", fc.commands[0])
	}
	if !bytes.Equal(fc.stdins[0], []byte("hello\n")) {
		t.Errorf("stdin = %q, want %q", fc.stdins[0], "hello\n")
	}
}

func TestRemote_ListDirAndReadFile(t *testing.T) {
	fc := &fakeClient{respond: func(command string) (Result, error) {
		switch {
		case strings.HasPrefix(command, "ls -1 "):
			return Result{Stdout: []byte("fast-1\nfast-2\n\n")}, nil
		case strings.Contains(command, "missing"):
			return Result{ExitCode: 1, Stderr: []byte("cat: missing: No such file or directory")}, nil
		default:
			return Result{Stdout: []byte("log body")}, nil
		}
	}}
	r := NewRemote("me@hpc", fc)
	ctx := context.Background()

	names, err := r.ListDir(ctx, "/s/runs")
	if err != nil {
		t.Fatalf("ListDir() error = %v", err)
	}
	if diff := cmp.Diff([]string{"fast-1", "fast-2"}, names); diff != "" {
		t.Errorf("ListDir() mismatch (-want +got):\n%s", diff)
	}

	data, err := r.ReadFile(ctx, "/s/log")
	if err != nil || string(data) != "log body" {
		t.Errorf("ReadFile() = %q, %v", data, err)
	}

	if _, err := r.ReadFile(ctx, "/s/missing"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("ReadFile(missing) error = %v, want ErrNotFound", err)
	}
}

func TestQuotePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/abs/path", "'/abs/path'"},
		{"~", "~"},
		{"~/rel", "~/'rel'"},
		{"it's", `'it'\''s'`},
	}
	for _, tt := range tests {
		if got := QuotePath(tt.in); got != tt.want {
			t.Errorf("QuotePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLocal_FileOperations(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := NewLocal(fs)
	ctx := context.Background()

	if err := l.EnsureDirs(ctx, "/w/logs", "/w/run"); err != nil {
		t.Fatalf("EnsureDirs() error = %v", err)
	}
	if err := l.WriteFile(ctx, "/w/logs/run.stdout", []byte("out")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	data, err := l.ReadFile(ctx, "/w/logs/run.stdout")
	if err != nil || string(data) != "out" {
		t.Errorf("ReadFile() = %q, %v", data, err)
	}
	names, err := l.ListDir(ctx, "/w")
	if err != nil {
		t.Fatalf("ListDir() error = %v", err)
	}
	if diff := cmp.Diff([]string{"logs", "run"}, names); diff != "" {
		t.Errorf("ListDir() mismatch (-want +got):\n%s", diff)
	}
}

func TestLocal_EnsureDirsFailure(t *testing.T) {
	l := NewLocal(afero.NewReadOnlyFs(afero.NewMemMapFs()))
	err := l.EnsureDirs(context.Background(), "/w/logs")
	var dpe *errors.DirectoryProvisionError
	if !errors.As(err, &dpe) {
		t.Fatalf("EnsureDirs() error = %v, want *DirectoryProvisionError", err)
	}
}

func TestLocal_Run(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	l := NewLocal(afero.NewOsFs())
	dir := t.TempDir()

	res, err := l.Run(context.Background(), "cd "+dir+" && echo hi && echo err >&2 && exit 4")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ExitCode != 4 || res.Success() {
		t.Errorf("ExitCode = %d, want 4", res.ExitCode)
	}
	if string(res.Stdout) != "hi\n" || string(res.Stderr) != "err\n" {
		t.Errorf("Stdout = %q, Stderr = %q", res.Stdout, res.Stderr)
	}
}

func TestLocal_RunCanceled(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocal(afero.NewOsFs()).Run(ctx, "sleep 5")
	if !errors.Is(err, errors.ErrCanceled) {
		t.Errorf("Run() error = %v, want ErrCanceled", err)
	}
}

func TestLocal_SpawnFailure(t *testing.T) {
	l := NewLocal(afero.NewOsFs()).WithShell(filepath.Join(t.TempDir(), "no-shell"))
	_, err := l.Run(context.Background(), "true")
	if err == nil {
		t.Fatal("Run() with missing shell should fail")
	}
}
