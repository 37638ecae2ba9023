package dropfolder

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ppesuite/internal/bootstrap/logging"
	"ppesuite/internal/errs"
	"ppesuite/internal/usecase/upload"
)

const (
	defaultSettle      = 500 * time.Millisecond
	defaultConcurrency = 2
)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

// Uploader stores an image and waits for its compliance result.
type Uploader interface {
	UploadAndCorrelate(ctx context.Context, input upload.Input) (upload.Output, error)
}

type Options struct {
	Dir          string
	ArchiveDir   string
	Budget       time.Duration
	PollInterval time.Duration
	// Settle is how long a file must stay unchanged before it is picked up.
	Settle      time.Duration
	Concurrency int
}

// Report is delivered once per processed file.
type Report struct {
	Path   string
	Output upload.Output
	Err    error
}

// Watcher uploads every image dropped into a folder, the way a camera or a
// shared scanner folder feeds the station.
type Watcher struct {
	uploader Uploader
	options  Options
}

func NewWatcher(uploader Uploader, options Options) *Watcher {
	if options.Settle <= 0 {
		options.Settle = defaultSettle
	}
	if options.Concurrency <= 0 {
		options.Concurrency = defaultConcurrency
	}
	return &Watcher{uploader: uploader, options: options}
}

// Run blocks until ctx is done. report is called from worker goroutines.
func (w *Watcher) Run(ctx context.Context, report func(Report)) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if w.uploader == nil {
		return errors.New("uploader is required")
	}
	dir := strings.TrimSpace(w.options.Dir)
	if dir == "" {
		return errors.New("watch dir is required")
	}
	if w.options.ArchiveDir != "" {
		if err := os.MkdirAll(w.options.ArchiveDir, 0o755); err != nil {
			return errs.Wrap(err, "create archive dir")
		}
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.dropfolder"), slog.String("dir", dir))

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.WithStack(errs.Wrap(err, "create fs watcher"))
	}
	defer func() {
		_ = fsw.Close()
	}()
	if err := fsw.Add(dir); err != nil {
		return errs.WithStack(errs.Wrapf(err, "watch %s", dir))
	}
	logging.Info(logCtx, "watching drop folder", slog.Duration("settle", w.options.Settle), slog.Int("concurrency", w.options.Concurrency))

	ready := make(chan settled)
	sem := make(chan struct{}, w.options.Concurrency)
	var wg sync.WaitGroup
	tracker := newSettleTracker(w.options.Settle)
	defer func() {
		tracker.stopAll()
		wg.Wait()
	}()
	fire := func(s settled) {
		select {
		case ready <- s:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case <-ctx.Done():
			logging.Info(logCtx, "drop folder watcher stopped")
			return nil
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logging.Warn(logCtx, "fs watcher error", slog.Any("err", errs.Loggable(err)))
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !IsImage(event.Name) {
				continue
			}
			tracker.touch(event.Name, fire)
		case s := <-ready:
			if !tracker.accept(s) {
				continue
			}
			name := s.name
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				result := w.Process(logCtx, name)
				if report != nil {
					report(result)
				}
			}()
		}
	}
}

// Process uploads one file and archives it when the upload itself succeeded.
func (w *Watcher) Process(ctx context.Context, path string) Report {
	body, err := os.ReadFile(path)
	if err != nil {
		return Report{Path: path, Err: errs.Wrap(err, "read dropped file")}
	}

	out, err := w.uploader.UploadAndCorrelate(ctx, upload.Input{
		Filename:     filepath.Base(path),
		Body:         body,
		Budget:       w.options.Budget,
		PollInterval: w.options.PollInterval,
	})
	if err != nil {
		logging.Warn(ctx, "dropped file not correlated", slog.String("path", path), slog.Any("err", errs.Loggable(err)))
	}

	if out.Upload.ImageKey != "" && w.options.ArchiveDir != "" {
		target := filepath.Join(w.options.ArchiveDir, filepath.Base(path))
		if moveErr := os.Rename(path, target); moveErr != nil {
			logging.Warn(ctx, "archive dropped file failed", slog.String("path", path), slog.Any("err", errs.Loggable(moveErr)))
		}
	}
	return Report{Path: path, Output: out, Err: err}
}

// IsImage reports whether the watcher picks up name.
func IsImage(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(base))]
	return ok
}
