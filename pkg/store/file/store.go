// Package file persists recorded mappings as individual files in a
// directory. Files are written atomically so a concurrent reader (or the
// mapping directory loader at startup) never sees a partial document.
package file

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/getmockd/mockrelay/pkg/logging"
)

// ErrInvalidName is returned for names that would escape the directory.
var ErrInvalidName = errors.New("invalid mapping file name")

// ErrReadOnly is returned when writes are disabled.
var ErrReadOnly = errors.New("mapping store is read-only")

// MappingWriter writes mapping documents into a directory.
type MappingWriter struct {
	dir      string
	readOnly atomic.Bool
	written  atomic.Int64
	log      *slog.Logger
}

// NewMappingWriter creates a writer for dir. The directory is created on the
// first write.
func NewMappingWriter(dir string, logger *slog.Logger) *MappingWriter {
	if logger == nil {
		logger = logging.Nop()
	}
	return &MappingWriter{dir: dir, log: logger}
}

// Dir returns the target directory.
func (w *MappingWriter) Dir() string {
	return w.dir
}

// SetReadOnly enables or disables writes.
func (w *MappingWriter) SetReadOnly(ro bool) {
	w.readOnly.Store(ro)
}

// Written returns the number of files written successfully.
func (w *MappingWriter) Written() int64 {
	return w.written.Load()
}

// WriteMappingFile writes data to dir/name, replacing any existing file.
// name must be a plain file name.
func (w *MappingWriter) WriteMappingFile(name string, data []byte) error {
	if w.readOnly.Load() {
		return ErrReadOnly
	}
	if err := validateName(name); err != nil {
		return err
	}

	if err := os.MkdirAll(w.dir, 0700); err != nil {
		return fmt.Errorf("failed to create mapping directory: %w", err)
	}

	// Atomic write: write to temp file, then rename
	tmp, err := os.CreateTemp(w.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write mapping file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write mapping file: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to set file mode: %w", err)
	}

	target := filepath.Join(w.dir, name)
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName) // Clean up temp file on failure
		return fmt.Errorf("failed to replace mapping file: %w", err)
	}

	w.written.Add(1)
	w.log.Debug("mapping file written", "path", target, "bytes", len(data))
	return nil
}

func validateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case filepath.Base(name) != name:
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
