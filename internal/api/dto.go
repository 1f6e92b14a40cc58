package api

import (
	"github.com/starford/aishow/internal/imageservice"
	"github.com/starford/aishow/internal/metadata"
	"github.com/starford/aishow/internal/models"
)

// Image is the image response type (aliased from the domain layer).
type Image = models.Image

// ImageListResponse wraps image listings.
type ImageListResponse struct {
	Images []Image `json:"images" validate:"required"`
}

// UpdateImageRequest is the request body for editing an image.
type UpdateImageRequest struct {
	Type     string `json:"type" example:"SD"`
	Details  string `json:"details" example:"first try with the new sampler"`
	Hidden   bool   `json:"is_hidden"`
	Keywords string `json:"keywords" example:"cat, sunset"`
}

// AnalyzeResponse reports the metadata embedded in an analyzed image.
// Data maps the metadata kind to its content and is null when nothing was
// found.
type AnalyzeResponse struct {
	Found bool              `json:"found" validate:"required"`
	Kind  string            `json:"kind,omitempty" example:"parameters"`
	Data  map[string]string `json:"data"`
	Error string            `json:"error,omitempty"`
}

func newAnalyzeResponse(res metadata.Result) AnalyzeResponse {
	out := AnalyzeResponse{Found: res.Found, Error: res.Error}
	if res.Found {
		out.Kind = res.Kind.String()
		out.Data = map[string]string{out.Kind: res.Content}
	}
	return out
}

// AnalyzeKeywordsRequest is the request body for prompt keyword matching.
type AnalyzeKeywordsRequest struct {
	Prompt string `json:"prompt" example:"a cat, sunset over the sea" validate:"required"`
}

// KeywordsResponse wraps a keyword list.
type KeywordsResponse struct {
	Success  bool     `json:"success"`
	Keywords []string `json:"keywords" validate:"required"`
}

// AddKeywordRequest is the request body for adding a vocabulary keyword.
type AddKeywordRequest struct {
	Keyword string `json:"keyword" example:"cat" validate:"required"`
}

// SuccessResponse acknowledges an operation without a payload.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// CleanupResponse reports a reconciliation pass.
type CleanupResponse struct {
	Success bool `json:"success"`
	imageservice.CleanupResult
}
