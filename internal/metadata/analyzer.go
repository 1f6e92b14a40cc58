package metadata

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/aishow/internal/pngmeta"
)

// AuxDecoder extracts auxiliary key/value metadata from an image file.
type AuxDecoder interface {
	DecodeAuxiliary(path string) (map[string]string, error)
}

// Analyzer runs the classifier against files on disk.
type Analyzer struct {
	decoder AuxDecoder
	logger  *slog.Logger
}

// NewAnalyzer creates an Analyzer. A nil decoder disables the fallback stage.
func NewAnalyzer(decoder AuxDecoder, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{decoder: decoder, logger: logger}
}

// AnalyzeFile classifies the metadata embedded in the file at path.
//
// Only a failure to open the file is reported through Result.Error. Malformed
// chunks, non-PNG input and fallback decoder failures all end in a plain
// not-found result.
func (a *Analyzer) AnalyzeFile(path string) Result {
	a.logger.Info("analyzing image", slog.String("path", path))

	f, err := os.Open(path)
	if err != nil {
		a.logger.Error("image analysis failed", slog.String("path", path), slog.String("error", err.Error()))
		return Result{Error: fmt.Sprintf("image analysis failed: %v", err)}
	}
	defer f.Close()

	cr, err := pngmeta.NewReader(f)
	if err != nil {
		a.logger.Info("not a PNG file", slog.String("path", path))
		return Result{}
	}

	var fallback FallbackFunc
	if a.decoder != nil {
		fallback = func() (map[string]string, error) {
			info, err := a.decoder.DecodeAuxiliary(path)
			if err != nil {
				a.logger.Error("reading auxiliary metadata failed", slog.String("path", path), slog.String("error", err.Error()))
			}
			return info, err
		}
	}

	res := Classify(cr.Chunks(), fallback)
	if err := cr.Err(); err != nil && !errors.Is(err, pngmeta.ErrTruncated) {
		a.logger.Warn("chunk scan stopped early", slog.String("path", path), slog.String("error", err.Error()))
	} else if err != nil {
		a.logger.Debug("chunk stream truncated", slog.String("path", path))
	}

	if res.Found {
		a.logger.Info("metadata found", slog.String("path", path), slog.String("kind", res.Kind.String()))
	} else {
		a.logger.Info("no metadata found in image", slog.String("path", path))
	}
	return res
}
