package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/aishow/internal/imageservice"
)

// RouterConfig carries the optional parts of the API router.
type RouterConfig struct {
	AuthEnabled    bool
	Token          string
	SSEHandler     http.Handler // mounted at GET /events when non-nil
	MaxUploadBytes int64
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *imageservice.Service, cfg RouterConfig) chi.Router {
	h := NewHandler(svc, cfg.MaxUploadBytes)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	// Images CRUD.
	r.Get("/images", h.ListImages)
	r.Post("/images", h.UploadImage)
	r.Get("/images/{id}", h.GetImage)
	r.Put("/images/{id}", h.UpdateImage)
	r.Delete("/images/{id}", h.DeleteImage)

	// Metadata and keyword analysis.
	r.Post("/analyze", h.Analyze)
	r.Post("/analyze_keywords", h.AnalyzeKeywords)

	// Vocabulary.
	r.Get("/suggest", h.Suggest)
	r.Get("/keywords", h.ListKeywords)
	r.Post("/keyword", h.AddKeyword)

	r.Post("/cleanup", h.Cleanup)

	// SSE endpoint (protected by same auth middleware).
	if cfg.SSEHandler != nil {
		r.Get("/events", cfg.SSEHandler.ServeHTTP)
	}

	return r
}

// NewFileRouter serves uploads and thumbnails from the library root.
func NewFileRouter(uploadsDir, thumbnailsDir string) chi.Router {
	uploads := NewFileHandler(uploadsDir)
	thumbs := NewFileHandler(thumbnailsDir)

	r := chi.NewRouter()
	r.Get("/uploads/{filename}", uploads.ServeFile)
	r.Get("/thumbnails/{filename}", thumbs.ServeFile)
	return r
}
