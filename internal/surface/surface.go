// Package surface abstracts where phases execute. A Surface can create
// directories, run a shell command line and read or write files, either on
// the local machine or on a remote host through ssh.
package surface

import (
	"context"
	"time"

	"github.com/spf13/afero"

	"github.com/dineshadepu/wrestler/internal/config"
)

// waitDelay bounds how long a canceled command may keep its output pipes
// open through orphaned children.
const waitDelay = time.Second

// Result is the captured outcome of one command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Success reports whether the command exited with status 0.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Surface is the execution capability of one target.
//
// Run returns an error only when the command could not be started (or, for
// remote surfaces, when the connection failed). A command that ran and
// exited non-zero is reported through Result.ExitCode.
type Surface interface {
	// Name identifies the surface in logs: "local" or the ssh endpoint.
	Name() string
	IsRemote() bool

	EnsureDirs(ctx context.Context, paths ...string) error
	Run(ctx context.Context, command string) (Result, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	ReadFile(ctx context.Context, path string) ([]byte, error)
	ListDir(ctx context.Context, path string) ([]string, error)
}

// Ensure both implementations satisfy Surface at compile time.
var (
	_ Surface = (*Local)(nil)
	_ Surface = (*Remote)(nil)
)

// New returns the surface for target: Local when it has no ssh endpoint,
// Remote otherwise.
func New(target config.Target, exec config.ExecutionConfig) Surface {
	if !target.IsRemote() {
		return NewLocal(afero.NewOsFs())
	}
	return NewRemote(target.SSH, NewSSHClient(exec.SSHBinary, exec.SSHOptions, target.SSH))
}
