package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// FileHandler serves stored uploads and thumbnails from one library
// subdirectory.
type FileHandler struct {
	dir string // absolute path
}

// NewFileHandler creates a handler serving files from dir.
func NewFileHandler(dir string) *FileHandler {
	return &FileHandler{dir: filepath.Clean(dir)}
}

// safeName validates that the filename is a plain name (no path separators,
// no traversal) and returns its absolute path.
func (h *FileHandler) safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.ContainsRune(name, '\\') {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	abs := filepath.Join(h.dir, cleaned)
	if !strings.HasPrefix(abs, h.dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes library directory")
	}
	return abs, nil
}

// ServeFile handles GET /{dir}/{filename}.
func (h *FileHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	abs, err := h.safeName(chi.URLParam(r, "filename"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	info, statErr := os.Stat(abs)
	if statErr != nil || !info.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}
