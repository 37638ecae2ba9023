package dropfolder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ppesuite/internal/domain/compliance"
	"ppesuite/internal/usecase/upload"
)

type fakeUploader struct {
	mu     sync.Mutex
	inputs []upload.Input
	err    error
}

func (f *fakeUploader) UploadAndCorrelate(_ context.Context, input upload.Input) (upload.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return upload.Output{}, f.err
	}
	key := "uploads/" + input.Filename
	return upload.Output{
		Upload: compliance.UploadRecord{ImageKey: key},
		Result: compliance.PendingResult(key),
	}, nil
}

func TestIsImage(t *testing.T) {
	for name, want := range map[string]bool{
		"a.jpg":         true,
		"dir/B.PNG":     true,
		"c.jpeg":        true,
		".hidden.png":   false,
		"notes.txt":     false,
		"photo.png.tmp": false,
	} {
		if got := IsImage(name); got != want {
			t.Fatalf("IsImage(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestProcessArchivesUploadedFile(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "done")
	if err := os.MkdirAll(archive, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, "cam1.png")
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	uploader := &fakeUploader{}
	w := NewWatcher(uploader, Options{Dir: dir, ArchiveDir: archive, Budget: 5 * time.Second})
	report := w.Process(context.Background(), path)
	if report.Err != nil || report.Output.Upload.ImageKey != "uploads/cam1.png" {
		t.Fatalf("Process() = %+v", report)
	}
	if uploader.inputs[0].Budget != 5*time.Second || string(uploader.inputs[0].Body) != "png" {
		t.Fatalf("input = %+v", uploader.inputs[0])
	}
	if _, err := os.Stat(filepath.Join(archive, "cam1.png")); err != nil {
		t.Fatalf("archived file missing: %v", err)
	}
}

func TestProcessKeepsFileWhenUploadFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cam1.jpg")
	if err := os.WriteFile(path, []byte("jpg"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	w := NewWatcher(&fakeUploader{err: errors.New("bucket gone")}, Options{Dir: dir, ArchiveDir: filepath.Join(dir, "done")})
	if report := w.Process(context.Background(), path); report.Err == nil {
		t.Fatalf("Process() error = nil")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("failed upload should stay in place: %v", err)
	}
}

func TestRunPicksUpDroppedImages(t *testing.T) {
	dir := t.TempDir()
	uploader := &fakeUploader{}
	w := NewWatcher(uploader, Options{Dir: dir, Settle: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reports := make(chan Report, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(r Report) { reports <- r })
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cam2.png"), []byte("png"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case r := <-reports:
		if filepath.Base(r.Path) != "cam2.png" || r.Err != nil {
			t.Fatalf("report = %+v", r)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no report for dropped image")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run() did not stop after cancel")
	}

	uploader.mu.Lock()
	defer uploader.mu.Unlock()
	if len(uploader.inputs) != 1 {
		t.Fatalf("uploads = %d, want 1", len(uploader.inputs))
	}
}

func TestRunValidatesOptions(t *testing.T) {
	if err := NewWatcher(&fakeUploader{}, Options{}).Run(context.Background(), nil); err == nil {
		t.Fatalf("Run() without dir error = nil")
	}
	if err := NewWatcher(nil, Options{Dir: t.TempDir()}).Run(context.Background(), nil); err == nil {
		t.Fatalf("Run() without uploader error = nil")
	}
}
