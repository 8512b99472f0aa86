// Package store persists accepted objects to their destination path.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrDestinationExists is reported when the destination is already present
// and the strategy does not allow overwriting it.
var ErrDestinationExists = errors.New("destination exists")

// Status is the result of a write attempt.
type Status int

const (
	StatusStored Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusStored:
		return "stored"
	case StatusSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Result describes a write attempt.
type Result struct {
	Status Status
	Path   string
	Bytes  int64
	Err    error
}

// Writable is anything that can serialize itself in file form.
type Writable interface {
	WriteTo(w io.Writer) (int64, error)
}

// Writer creates destination directories and files.
type Writer struct {
	DirMode  os.FileMode
	FileMode os.FileMode
}

// NewWriter returns a Writer with 0755 directories and 0644 files.
func NewWriter() *Writer {
	return &Writer{DirMode: 0o755, FileMode: 0o644}
}

// Exists reports whether something is already present at path.
//
// It is a cheap pre-check that lets callers skip work for a destination that
// will not be written. It is not authoritative: Write still creates the file
// exclusively.
func (w *Writer) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Write persists obj at path.
//
// Parameters:
//   - ctx: Checked once before any filesystem work
//   - path: Absolute destination; missing parent directories are created
//   - overwrite: Replace an existing destination instead of skipping it
//   - obj: Serialized with WriteTo
//
// Returns a Result; write errors are carried in Result.Err, never panicked.
//
// Without overwrite the file is created exclusively, so an existing file (or
// one created concurrently by another request) yields StatusSkipped and is
// left untouched. With overwrite the object is written to a temporary file in
// the same directory and renamed over the destination.
func (w *Writer) Write(ctx context.Context, path string, overwrite bool, obj Writable) Result {
	if err := ctx.Err(); err != nil {
		return Result{Status: StatusFailed, Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, w.DirMode); err != nil {
		return Result{Status: StatusFailed, Path: path, Err: fmt.Errorf("create directory %s: %w", dir, err)}
	}

	if !overwrite {
		return w.writeExclusive(path, obj)
	}
	return w.writeReplace(path, obj)
}

func (w *Writer) writeExclusive(path string, obj Writable) Result {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, w.FileMode)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return Result{Status: StatusSkipped, Path: path, Err: ErrDestinationExists}
		}
		return Result{Status: StatusFailed, Path: path, Err: fmt.Errorf("create %s: %w", path, err)}
	}

	n, err := obj.WriteTo(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return Result{Status: StatusFailed, Path: path, Err: fmt.Errorf("write %s: %w", path, err)}
	}

	return Result{Status: StatusStored, Path: path, Bytes: n}
}

func (w *Writer) writeReplace(path string, obj Writable) Result {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return Result{Status: StatusFailed, Path: path, Err: fmt.Errorf("create temporary file for %s: %w", path, err)}
	}
	tmpName := tmp.Name()

	n, err := obj.WriteTo(tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmpName, w.FileMode)
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return Result{Status: StatusFailed, Path: path, Err: fmt.Errorf("write %s: %w", path, err)}
	}

	return Result{Status: StatusStored, Path: path, Bytes: n}
}
