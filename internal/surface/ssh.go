package surface

import (
	"bytes"
	"context"
	"io"
	"os/exec"

	"github.com/dineshadepu/wrestler/internal/errors"
)

// TransportExitCode is the status the ssh client uses for its own failures.
const TransportExitCode = 255

// Client runs one shell command line on a remote host.
type Client interface {
	Exec(ctx context.Context, command string, stdin io.Reader) (Result, error)
}

// SSHClient invokes the system ssh binary. The remote command line is passed
// as a single argument after the endpoint.
type SSHClient struct {
	Binary   string
	Options  []string
	Endpoint string
}

var _ Client = (*SSHClient)(nil)

// NewSSHClient creates a client for endpoint. An empty binary means "ssh".
func NewSSHClient(binary string, options []string, endpoint string) *SSHClient {
	if binary == "" {
		binary = "ssh"
	}
	return &SSHClient{Binary: binary, Options: options, Endpoint: endpoint}
}

// Args returns the full argument vector for command.
func (c *SSHClient) Args(command string) []string {
	args := make([]string, 0, len(c.Options)+2)
	args = append(args, c.Options...)
	return append(args, c.Endpoint, command)
}

// Exec runs command on the endpoint. Spawn failures and exit status 255 are
// reported as *errors.RemoteTransportError.
func (c *SSHClient) Exec(ctx context.Context, command string, stdin io.Reader) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Binary, c.Args(command)...)
	cmd.WaitDelay = waitDelay
	cmd.Stdin = stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		res.ExitCode = -1
		return res, errors.Join(errors.ErrCanceled, ctx.Err())
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		res.ExitCode = -1
		return res, errors.NewRemoteTransportError(c.Endpoint, err)
	}
	res.ExitCode = exitErr.ExitCode()
	if res.ExitCode == TransportExitCode {
		return res, errors.NewRemoteTransportError(c.Endpoint, err).WithOutput(stderr.String())
	}
	return res, nil
}
