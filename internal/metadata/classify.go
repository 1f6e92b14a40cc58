// Package metadata decides whether an image carries generation metadata and
// whether it is a ComfyUI workflow or Stable Diffusion parameters.
package metadata

import (
	"bytes"
	"encoding/json"
	"iter"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/starford/aishow/internal/pngmeta"
)

// Kind is the category of metadata found in an image.
type Kind int

const (
	KindNone Kind = iota
	KindWorkflow
	KindParameters
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindWorkflow:
		return "workflow"
	case KindParameters:
		return "parameters"
	default:
		return "none"
	}
}

// Well-known text keywords.
const (
	KeyWorkflow   = "workflow"
	KeyParameters = "parameters"
	KeyPrompt     = "prompt"
	KeyComment    = "Comment"
)

const (
	markerSteps    = "Steps:"
	markerNegative = "Negative prompt:"
)

// Result is the outcome of one analysis. Kind is KindNone whenever Found is
// false. Error is set only when the input could not be accessed at all.
type Result struct {
	Found   bool
	Kind    Kind
	Content string
	Error   string
}

func found(kind Kind, content string) Result {
	return Result{Found: true, Kind: kind, Content: content}
}

// FallbackFunc supplies the auxiliary key/value metadata consulted when no
// text chunk matches. It is called at most once.
type FallbackFunc func() (map[string]string, error)

// Classify scans chunks for tEXt metadata and, if none qualifies, consults
// fallback. A nil fallback, or one that fails, counts as an empty map.
func Classify(chunks iter.Seq[pngmeta.Chunk], fallback FallbackFunc) Result {
	if res, ok := classifyChunks(chunks); ok {
		return res
	}
	if fallback == nil {
		return Result{}
	}
	info, err := fallback()
	if err != nil {
		return Result{}
	}
	return ClassifyInfo(info)
}

func classifyChunks(chunks iter.Seq[pngmeta.Chunk]) (Result, bool) {
	for c := range chunks {
		if c.Type != pngmeta.TypeText {
			continue
		}
		k, v, ok := pngmeta.SplitText(c.Data)
		if !ok {
			continue
		}
		keyword, text := pngmeta.Latin1(k), pngmeta.Latin1(v)

		if keyword == KeyWorkflow {
			return found(KindWorkflow, text), true
		}
		if keyword == KeyParameters || hasBothMarkers(text) {
			return found(KindParameters, text), true
		}
		if keyword == KeyPrompt && hasAnyMarker(text) {
			return found(KindParameters, text), true
		}
	}
	return Result{}, false
}

// ClassifyInfo applies the fallback rules to decoded auxiliary metadata.
func ClassifyInfo(info map[string]string) Result {
	if v, ok := info[KeyParameters]; ok {
		return found(KindParameters, v)
	}
	if v, ok := info[KeyWorkflow]; ok {
		return found(KindWorkflow, v)
	}
	comment, ok := info[KeyComment]
	if !ok {
		return Result{}
	}
	if hasBothMarkers(comment) {
		return found(KindParameters, comment)
	}
	if wf, ok := commentWorkflow(comment); ok {
		return found(KindWorkflow, wf)
	}
	return Result{}
}

// commentDoc is the structured form some tools write into Comment.
type commentDoc struct {
	Workflow json.RawMessage `json:"workflow"`
}

// commentWorkflow parses comment as a JSON object and returns its workflow
// field pretty-printed. ok is false when comment is not structured or has no
// workflow field.
func commentWorkflow(comment string) (string, bool) {
	raw := jsonc.ToJSON([]byte(comment))
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false
	}
	var doc commentDoc
	if err := json.Unmarshal(trimmed, &doc); err != nil || doc.Workflow == nil {
		return "", false
	}
	var out bytes.Buffer
	if err := json.Indent(&out, doc.Workflow, "", "  "); err != nil {
		return "", false
	}
	return out.String(), true
}

func hasBothMarkers(s string) bool {
	return strings.Contains(s, markerSteps) && strings.Contains(s, markerNegative)
}

func hasAnyMarker(s string) bool {
	return strings.Contains(s, markerSteps) || strings.Contains(s, markerNegative)
}
