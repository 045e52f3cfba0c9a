// Package runlog browses the stored output of past runs: it lists the run
// directories of a problem on a target and reads or follows phase logs.
package runlog

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/dineshadepu/wrestler/internal/errors"
	"github.com/dineshadepu/wrestler/internal/plan"
	"github.com/dineshadepu/wrestler/internal/surface"
)

// Stream selects which captured output of a phase to read.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// Browser reads run logs of one problem on one target.
type Browser struct {
	surface surface.Surface
	base    string
}

// New creates a Browser over {root}/wrestler_outputs/problems/{problem}/runs/{target}.
func New(s surface.Surface, root, problem, target string) *Browser {
	return &Browser{surface: s, base: plan.RunsBase(root, problem, target)}
}

// Base returns the directory holding every run.
func (b *Browser) Base() string {
	return b.base
}

// LogPath returns the path of a phase log of run.
func (b *Browser) LogPath(run, phase string, stream Stream) string {
	return b.base + "/" + run + "/" + plan.LogsDirName + "/" + phase + "." + string(stream)
}

// Runs lists the run names under Base. A non-empty pattern keeps only names
// matching the glob.
func (b *Browser) Runs(ctx context.Context, pattern string) ([]string, error) {
	var matcher glob.Glob
	if pattern != "" {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.NewValidationError("invalid run pattern").
				WithField("match").WithValue(pattern).WithCause(err)
		}
		matcher = g
	}

	names, err := b.surface.ListDir(ctx, b.base)
	if err != nil {
		return nil, notFound(b.base, err)
	}
	if matcher == nil {
		return names, nil
	}
	filtered := names[:0]
	for _, n := range names {
		if matcher.Match(n) {
			filtered = append(filtered, n)
		}
	}
	return filtered, nil
}

// Read returns the stored log of phase in run.
func (b *Browser) Read(ctx context.Context, run, phase string, stream Stream) ([]byte, error) {
	if verr := plan.ValidateRunName(run); verr != nil {
		return nil, verr
	}
	path := b.LogPath(run, phase, stream)
	data, err := b.surface.ReadFile(ctx, path)
	if err != nil {
		return nil, notFound(path, err)
	}
	return data, nil
}

// Follow copies the log of phase in run to w and keeps copying appended
// output until ctx is done. The log need not exist yet. Only local
// surfaces can be followed.
func (b *Browser) Follow(ctx context.Context, run, phase string, stream Stream, w io.Writer) error {
	if b.surface.IsRemote() {
		return errors.Wrapf(errors.ErrUnsupported, "following logs on %s", b.surface.Name())
	}
	if verr := plan.ValidateRunName(run); verr != nil {
		return verr
	}
	return FollowFile(ctx, b.LogPath(run, phase, stream), w)
}

// FollowFile tails path into w until ctx is done. The parent directory must
// exist; the file itself may appear later. A file that shrinks is assumed
// to have been rewritten and is copied again from the start.
func FollowFile(ctx context.Context, path string, w io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return notFound(dir, err)
	}

	t := &tail{path: path, w: w}
	if err := t.copy(); err != nil {
		return err
	}

	// Periodic polling covers filesystems that drop events.
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := t.copy(); err != nil {
				return err
			}

		case <-ticker.C:
			if err := t.copy(); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

type tail struct {
	path   string
	w      io.Writer
	offset int64
}

// copy writes everything past the last offset.
func (t *tail) copy() error {
	f, err := os.Open(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() < t.offset {
		t.offset = 0
	}
	if info.Size() == t.offset {
		return nil
	}
	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return err
	}
	n, err := io.Copy(t.w, f)
	t.offset += n
	return err
}

func notFound(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, errors.ErrNotFound) {
		return errors.Wrapf(errors.ErrNotFound, "%s", path)
	}
	return err
}
