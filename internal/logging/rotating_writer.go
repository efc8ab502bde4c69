package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RotatingWriter writes to log files that rotate each UTC day and roll over
// within a day once MaxBytes would be exceeded.
//
// For a base path logs/lumenchat.log the output files are named
// logs/lumenchat-2026-08-28.log, logs/lumenchat-2026-08-28-2.log, and so on.
type RotatingWriter struct {
	basePath string
	maxBytes int64

	mu      sync.Mutex
	curDate string
	curIdx  int
	file    *os.File
	size    int64
}

// NewRotatingWriter creates a rotating writer for basePath. A base path of
// "-" disables file output entirely.
func NewRotatingWriter(basePath string, maxBytes int64) (io.WriteCloser, error) {
	if strings.TrimSpace(basePath) == "-" {
		return nopWriteCloser{io.Discard}, nil
	}
	w := &RotatingWriter{basePath: basePath, maxBytes: maxBytes}
	if err := w.rotateIfNeeded(0); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.rotateIfNeeded(int64(len(p))); err != nil {
		return 0, err
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Close releases the current file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}

func (w *RotatingWriter) rotateIfNeeded(incoming int64) error {
	today := time.Now().UTC().Format("2006-01-02")
	if w.file == nil || w.curDate != today {
		w.curDate = today
		w.curIdx = 1
		return w.openCurrent()
	}
	if w.maxBytes > 0 && w.size+incoming > w.maxBytes {
		w.curIdx++
		return w.openCurrent()
	}
	return nil
}

func (w *RotatingWriter) openCurrent() error {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	dir := filepath.Dir(w.basePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	base := filepath.Base(w.basePath)
	prefix := strings.TrimSuffix(base, filepath.Ext(base))
	name := fmt.Sprintf("%s-%s.log", prefix, w.curDate)
	if w.curIdx > 1 {
		name = fmt.Sprintf("%s-%s-%d.log", prefix, w.curDate, w.curIdx)
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	w.file = f
	w.size = info.Size()
	return nil
}

type nopWriteCloser struct {
	w io.Writer
}

func (n nopWriteCloser) Write(p []byte) (int, error) { return n.w.Write(p) }
func (n nopWriteCloser) Close() error                { return nil }
