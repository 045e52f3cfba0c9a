package surface

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/dineshadepu/wrestler/internal/errors"
	"github.com/dineshadepu/wrestler/internal/plan"
)

// Remote executes every operation as a shell command on an ssh endpoint.
type Remote struct {
	endpoint string
	client   Client
}

// NewRemote creates a Remote surface for endpoint using client.
func NewRemote(endpoint string, client Client) *Remote {
	return &Remote{endpoint: endpoint, client: client}
}

// Name returns the ssh endpoint.
func (r *Remote) Name() string { return r.endpoint }

// IsRemote returns true.
func (r *Remote) IsRemote() bool { return true }

// EnsureDirs issues a single "mkdir -p" covering every path.
func (r *Remote) EnsureDirs(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	quoted := make([]string, len(paths))
	for i, p := range paths {
		quoted[i] = QuotePath(p)
	}
	res, err := r.client.Exec(ctx, "mkdir -p "+strings.Join(quoted, " "), nil)
	if err == nil && !res.Success() {
		err = commandFailed("mkdir", res)
	}
	if err != nil {
		return errors.NewDirectoryProvisionError(paths, err).WithHost(r.endpoint)
	}
	return nil
}

// Run executes command on the remote host.
func (r *Remote) Run(ctx context.Context, command string) (Result, error) {
	return r.client.Exec(ctx, command, nil)
}

// WriteFile streams data into path through "cat".
func (r *Remote) WriteFile(ctx context.Context, path string, data []byte) error {
	res, err := r.client.Exec(ctx, "cat > "+QuotePath(path), bytes.NewReader(data))
	if err != nil {
		return err
	}
	if !res.Success() {
		return commandFailed("cat", res)
	}
	return nil
}

// ReadFile returns the contents of path.
func (r *Remote) ReadFile(ctx context.Context, path string) ([]byte, error) {
	res, err := r.client.Exec(ctx, "cat "+QuotePath(path), nil)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, notFoundOr(path, commandFailed("cat", res))
	}
	return res.Stdout, nil
}

// ListDir returns the entry names of path in "ls" order.
func (r *Remote) ListDir(ctx context.Context, path string) ([]string, error) {
	res, err := r.client.Exec(ctx, "ls -1 "+QuotePath(path), nil)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, notFoundOr(path, commandFailed("ls", res))
	}
	var names []string
	for _, line := range strings.Split(string(res.Stdout), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// QuotePath shell-quotes p while leaving a leading "~/" unquoted so the
// remote shell still expands it.
func QuotePath(p string) string {
	if p == "~" {
		return p
	}
	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		return "~/" + plan.ShellQuote(rest)
	}
	return plan.ShellQuote(p)
}

func commandFailed(name string, res Result) error {
	msg := strings.TrimSpace(string(res.Stderr))
	if msg == "" {
		return fmt.Errorf("%s exited with status %d", name, res.ExitCode)
	}
	return fmt.Errorf("%s exited with status %d: %s", name, res.ExitCode, msg)
}

func notFoundOr(path string, err error) error {
	if strings.Contains(err.Error(), "No such file") {
		return errors.Wrapf(errors.ErrNotFound, "%s", path)
	}
	return err
}
