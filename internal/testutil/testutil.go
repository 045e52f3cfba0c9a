// Package testutil provides testing utilities for wrestler tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"

	"github.com/dineshadepu/wrestler/internal/surface"
)

// WriteConfig writes content to wrestler.toml in a fresh temporary
// directory and returns the file path.
func WriteConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "wrestler.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// Call is one operation observed by a RecordingSurface.
type Call struct {
	Op   string // "mkdir", "run", "write", "read" or "list"
	Args []string
}

// RecordingSurface is an in-memory surface.Surface that records every call.
// Files live in an afero MemMapFs; Run returns the result of the first
// Responder whose pattern occurs in the command line, or exit 0.
type RecordingSurface struct {
	Fs     afero.Fs
	Remote bool

	mu         sync.Mutex
	calls      []Call
	responders []responder
}

type responder struct {
	pattern string
	result  surface.Result
	err     error
}

var _ surface.Surface = (*RecordingSurface)(nil)

// NewRecordingSurface creates an empty RecordingSurface.
func NewRecordingSurface() *RecordingSurface {
	return &RecordingSurface{Fs: afero.NewMemMapFs()}
}

// Respond makes Run return result (and err) for commands containing pattern.
func (s *RecordingSurface) Respond(pattern string, result surface.Result, err error) *RecordingSurface {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responders = append(s.responders, responder{pattern: pattern, result: result, err: err})
	return s
}

// Calls returns a copy of the recorded calls.
func (s *RecordingSurface) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Commands returns the command lines passed to Run, in order.
func (s *RecordingSurface) Commands() []string {
	var cmds []string
	for _, c := range s.Calls() {
		if c.Op == "run" {
			cmds = append(cmds, c.Args[0])
		}
	}
	return cmds
}

// Mutations counts calls that would change the filesystem or spawn a process.
func (s *RecordingSurface) Mutations() int {
	n := 0
	for _, c := range s.Calls() {
		switch c.Op {
		case "mkdir", "run", "write":
			n++
		}
	}
	return n
}

func (s *RecordingSurface) record(op string, args ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: op, Args: args})
}

// Name returns "recording".
func (s *RecordingSurface) Name() string { return "recording" }

// IsRemote returns the Remote field.
func (s *RecordingSurface) IsRemote() bool { return s.Remote }

// EnsureDirs records the call and creates the directories in memory.
func (s *RecordingSurface) EnsureDirs(_ context.Context, paths ...string) error {
	s.record("mkdir", paths...)
	for _, p := range paths {
		if err := s.Fs.MkdirAll(p, 0755); err != nil {
			return err
		}
	}
	return nil
}

// Run records the command and returns the scripted result.
func (s *RecordingSurface) Run(ctx context.Context, command string) (surface.Result, error) {
	s.record("run", command)
	if err := ctx.Err(); err != nil {
		return surface.Result{ExitCode: -1}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.responders {
		if strings.Contains(command, r.pattern) {
			return r.result, r.err
		}
	}
	return surface.Result{Stdout: []byte("ok\n")}, nil
}

// WriteFile records the call and stores data in memory.
func (s *RecordingSurface) WriteFile(_ context.Context, path string, data []byte) error {
	s.record("write", path)
	return afero.WriteFile(s.Fs, path, data, 0644)
}

// ReadFile returns the in-memory file contents.
func (s *RecordingSurface) ReadFile(_ context.Context, path string) ([]byte, error) {
	s.record("read", path)
	return afero.ReadFile(s.Fs, path)
}

// ListDir returns the entry names of path.
func (s *RecordingSurface) ListDir(_ context.Context, path string) ([]string, error) {
	s.record("list", path)
	infos, err := afero.ReadDir(s.Fs, path)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(infos))
	for i, fi := range infos {
		names[i] = fi.Name()
	}
	return names, nil
}
