package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/aishow/internal/imageservice"
	"github.com/starford/aishow/internal/index"
	"github.com/starford/aishow/internal/keyword"
)

const (
	maxJSONBytes          = 1 << 20
	defaultMaxUploadBytes = 50 << 20 // 50 MB
	uploadField           = "image"
)

// Handler holds API route handlers.
type Handler struct {
	svc            *imageservice.Service
	maxUploadBytes int64
}

// NewHandler creates a new Handler. A non-positive maxUploadBytes selects
// the default limit.
func NewHandler(svc *imageservice.Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{svc: svc, maxUploadBytes: maxUploadBytes}
}

func imageID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// ListImages handles GET /api/images.
//
//	@Summary		List images, newest first
//	@Tags			images
//	@Produce		json
//	@Param			visibility	query		string	false	"Hidden flag filter"	Enums(hide_restricted, only_restricted, show_all)
//	@Param			type		query		string	false	"Image type"
//	@Param			keywords	query		string	false	"Comma-separated keywords; any may match"
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Success		200			{object}	ImageListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/images [get]
func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vis, err := index.ParseVisibility(q.Get("visibility"))
	if err != nil {
		writeError(w, "list images", err)
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	images, err := h.svc.ListImages(r.Context(), index.ImageFilter{
		Visibility: vis,
		Type:       strings.TrimSpace(q.Get("type")),
		Keywords:   keyword.ParseList(q.Get("keywords")),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		writeError(w, "list images", err)
		return
	}
	writeJSON(w, http.StatusOK, ImageListResponse{Images: images})
}

// GetImage handles GET /api/images/{id}.
//
//	@Summary		Get a single image
//	@Tags			images
//	@Produce		json
//	@Param			id	path		int	true	"Image id"
//	@Success		200	{object}	Image
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/images/{id} [get]
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := imageID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid image id"))
		return
	}
	img, err := h.svc.GetImage(r.Context(), id)
	if err != nil {
		writeError(w, "get image", err)
		return
	}
	writeJSON(w, http.StatusOK, img)
}

// UploadImage handles POST /api/images (multipart/form-data, field "image").
//
//	@Summary		Upload an image
//	@Tags			images
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			image		formData	file	true	"Image file"
//	@Param			type		formData	string	false	"Image type (default SD)"
//	@Param			details		formData	string	false	"Free-form details"
//	@Param			is_hidden	formData	bool	false	"Hide from default listings"
//	@Param			keywords	formData	string	false	"Comma-separated keywords"
//	@Success		201			{object}	Image
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/images [post]
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'image' field in multipart form"))
		return
	}
	defer file.Close()

	hidden, _ := strconv.ParseBool(r.FormValue("is_hidden"))
	img, err := h.svc.Upload(r.Context(), imageservice.UploadInput{
		Filename: header.Filename,
		Type:     r.FormValue("type"),
		Details:  r.FormValue("details"),
		Hidden:   hidden,
		Keywords: r.FormValue("keywords"),
	}, file)
	if err != nil {
		writeError(w, "upload image", err)
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

// UpdateImage handles PUT /api/images/{id}.
//
//	@Summary		Edit an image; blank keywords keep the current set
//	@Tags			images
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int					true	"Image id"
//	@Param			body	body		UpdateImageRequest	true	"New attributes"
//	@Success		200		{object}	Image
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/images/{id} [put]
func (h *Handler) UpdateImage(w http.ResponseWriter, r *http.Request) {
	id, ok := imageID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid image id"))
		return
	}
	var req UpdateImageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	img, err := h.svc.UpdateImage(r.Context(), id, imageservice.EditInput{
		Type:     req.Type,
		Details:  req.Details,
		Hidden:   req.Hidden,
		Keywords: req.Keywords,
	})
	if err != nil {
		writeError(w, "update image", err)
		return
	}
	writeJSON(w, http.StatusOK, img)
}

// DeleteImage handles DELETE /api/images/{id}.
//
//	@Summary		Delete an image and its files
//	@Tags			images
//	@Param			id	path	int	true	"Image id"
//	@Success		204	"Image deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/images/{id} [delete]
func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := imageID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid image id"))
		return
	}
	if err := h.svc.DeleteImage(r.Context(), id); err != nil {
		writeError(w, "delete image", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Analyze handles POST /api/analyze (multipart/form-data, field "image").
//
//	@Summary		Extract embedded generation metadata from an image
//	@Tags			analysis
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			image	formData	file	true	"Image file"
//	@Success		200		{object}	AnalyzeResponse
//	@Failure		400		{object}	AnalyzeResponse
//	@Security		BearerAuth
//	@Router			/analyze [post]
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, AnalyzeResponse{Error: "invalid request"})
		return
	}
	file, header, err := r.FormFile(uploadField)
	if err != nil || header.Filename == "" {
		writeJSON(w, http.StatusBadRequest, AnalyzeResponse{Error: "invalid request"})
		return
	}
	defer file.Close()

	res, err := h.svc.Analyze(r.Context(), header.Filename, file)
	if err != nil {
		writeError(w, "analyze image", err)
		return
	}
	writeJSON(w, http.StatusOK, newAnalyzeResponse(res))
}

// AnalyzeKeywords handles POST /api/analyze_keywords.
//
//	@Summary		Find vocabulary keywords contained in a prompt
//	@Tags			keywords
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AnalyzeKeywordsRequest	true	"Prompt"
//	@Success		200		{object}	KeywordsResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/analyze_keywords [post]
func (h *Handler) AnalyzeKeywords(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeKeywordsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	matches, err := h.svc.MatchKeywords(r.Context(), req.Prompt)
	if err != nil {
		writeError(w, "analyze keywords", err)
		return
	}
	writeJSON(w, http.StatusOK, KeywordsResponse{Success: true, Keywords: matches})
}

// Suggest handles GET /api/suggest.
//
//	@Summary		Autocomplete keywords
//	@Tags			keywords
//	@Produce		json
//	@Param			q	query	string	false	"Partial keyword"
//	@Success		200	{array}	string
//	@Security		BearerAuth
//	@Router			/suggest [get]
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.SuggestKeywords(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, "suggest keywords", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ListKeywords handles GET /api/keywords.
func (h *Handler) ListKeywords(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ListKeywords(r.Context())
	if err != nil {
		writeError(w, "list keywords", err)
		return
	}
	writeJSON(w, http.StatusOK, KeywordsResponse{Success: true, Keywords: out})
}

// AddKeyword handles POST /api/keyword.
//
//	@Summary		Add a keyword to the vocabulary; existing keywords succeed
//	@Tags			keywords
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AddKeywordRequest	true	"Keyword"
//	@Success		200		{object}	SuccessResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/keyword [post]
func (h *Handler) AddKeyword(w http.ResponseWriter, r *http.Request) {
	var req AddKeywordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Keyword) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("keyword is required"))
		return
	}
	if err := h.svc.AddKeyword(r.Context(), req.Keyword); err != nil {
		writeError(w, "add keyword", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// Cleanup handles POST /api/cleanup.
//
//	@Summary		Remove files no image references
//	@Tags			maintenance
//	@Produce		json
//	@Param			prune_keywords	query		bool	false	"Also delete unused keywords"
//	@Success		200				{object}	CleanupResponse
//	@Security		BearerAuth
//	@Router			/cleanup [post]
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	prune, _ := strconv.ParseBool(r.URL.Query().Get("prune_keywords"))
	res, err := h.svc.Cleanup(r.Context(), prune)
	if err != nil {
		writeError(w, "cleanup", err)
		return
	}
	writeJSON(w, http.StatusOK, CleanupResponse{Success: true, CleanupResult: res})
}
