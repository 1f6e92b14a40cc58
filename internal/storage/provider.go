// Package storage defines the image library file-system abstraction.
package storage

import (
	"io"
	"strings"

	"github.com/starford/aishow/internal/models"
)

// Library subdirectories.
const (
	UploadsDir    = "uploads"
	ThumbnailsDir = "thumbnails"
)

// Naming conventions for files that are still being written. Reconciliation
// leaves them alone until they go stale.
const (
	TempPrefix   = "temp_"
	atomicPrefix = ".aishow-tmp-"
	keepFile     = ".gitkeep"
)

// WriteResult describes a completed streaming write.
type WriteResult struct {
	Size     int64
	Checksum string
}

// Provider is the interface for library file operations. All paths are
// relative to the library root.
type Provider interface {
	// List returns metadata for the regular files directly inside dir.
	List(dir string) ([]models.FileMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// WriteStream atomically writes everything read from r to path.
	WriteStream(path string, r io.Reader) (WriteResult, error)
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// Exists reports whether a file exists at path.
	Exists(path string) (bool, error)
	// Abs resolves path to an absolute file-system path.
	Abs(path string) (string, error)
}

// IsInFlight reports whether name follows one of the naming conventions for
// files that are still being written.
func IsInFlight(name string) bool {
	return strings.HasPrefix(name, TempPrefix) || strings.HasPrefix(name, atomicPrefix)
}

// IsPlaceholder reports whether name is a directory placeholder file.
func IsPlaceholder(name string) bool {
	return name == keepFile
}
