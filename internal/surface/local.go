package surface

import (
	"bytes"
	"context"
	"os/exec"
	"sort"

	"github.com/spf13/afero"

	"github.com/dineshadepu/wrestler/internal/errors"
)

// DefaultShell runs local command lines.
const DefaultShell = "sh"

// Local executes on this machine. File operations go through an afero.Fs;
// commands run through "sh -c".
type Local struct {
	fs    afero.Fs
	shell string
}

// NewLocal creates a Local surface backed by fs.
func NewLocal(fs afero.Fs) *Local {
	return &Local{fs: fs, shell: DefaultShell}
}

// WithShell overrides the shell used by Run.
func (l *Local) WithShell(shell string) *Local {
	l.shell = shell
	return l
}

// Name returns "local".
func (l *Local) Name() string { return "local" }

// IsRemote returns false.
func (l *Local) IsRemote() bool { return false }

// EnsureDirs creates every path and its parents.
func (l *Local) EnsureDirs(_ context.Context, paths ...string) error {
	for _, p := range paths {
		if err := l.fs.MkdirAll(p, 0755); err != nil {
			return errors.NewDirectoryProvisionError(paths, err)
		}
	}
	return nil
}

// Run executes command with "sh -c" and captures both output streams.
func (l *Local) Run(ctx context.Context, command string) (Result, error) {
	cmd := exec.CommandContext(ctx, l.shell, "-c", command)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if ctx.Err() != nil {
		res.ExitCode = -1
		return res, errors.Join(errors.ErrCanceled, ctx.Err())
	}
	res.ExitCode = -1
	return res, err
}

// WriteFile replaces the file at path with data.
func (l *Local) WriteFile(_ context.Context, path string, data []byte) error {
	return afero.WriteFile(l.fs, path, data, 0644)
}

// ReadFile returns the contents of path.
func (l *Local) ReadFile(_ context.Context, path string) ([]byte, error) {
	return afero.ReadFile(l.fs, path)
}

// ListDir returns the entry names of path, sorted.
func (l *Local) ListDir(_ context.Context, path string) ([]string, error) {
	infos, err := afero.ReadDir(l.fs, path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Fs exposes the filesystem, for callers that need to watch local files.
func (l *Local) Fs() afero.Fs { return l.fs }
