// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes aishow tools for LLM integration via stdio transport.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/aishow/internal/apperr"
	"github.com/starford/aishow/internal/imageservice"
	"github.com/starford/aishow/internal/index"
	"github.com/starford/aishow/internal/keyword"
)

const (
	contractURI       = "aishow://keyword-format"
	defaultSearchSize = 20
)

// Server wraps the MCP server with aishow tools.
type Server struct {
	mcp *server.MCPServer
	svc *imageservice.Service
}

// New creates a new MCP server with all aishow tools registered.
func New(svc *imageservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"aishow",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("analyze_image",
		mcp.WithDescription("Extract the generation metadata (ComfyUI workflow or Stable Diffusion parameters) embedded in a PNG."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or base64 data URI of the image")),
	), s.analyzeImage)

	s.mcp.AddTool(mcp.NewTool("match_keywords",
		mcp.WithDescription("Return the known keywords contained in a comma-separated prompt."),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("Prompt text")),
	), s.matchKeywords)

	s.mcp.AddTool(mcp.NewTool("suggest_keywords",
		mcp.WithDescription("Autocomplete known keywords by substring."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Partial keyword")),
	), s.suggestKeywords)

	s.mcp.AddTool(mcp.NewTool("add_keyword",
		mcp.WithDescription("Add a keyword to the vocabulary. Adding an existing keyword succeeds."),
		mcp.WithString("keyword", mcp.Required(), mcp.Description("Keyword text")),
	), s.addKeyword)

	s.mcp.AddTool(mcp.NewTool("search_images",
		mcp.WithDescription("List gallery images newest first, filtered by keywords, type and visibility."),
		mcp.WithString("keywords", mcp.Description("Comma-separated keywords; an image matches if it has any of them")),
		mcp.WithString("type", mcp.Description("Exact image type, e.g. SD or ComfyUI")),
		mcp.WithString("visibility", mcp.Description("hide_restricted (default), only_restricted or show_all")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of images (default 20)")),
	), s.searchImages)

	s.mcp.AddTool(mcp.NewTool("get_image",
		mcp.WithDescription("Get one image with its keywords."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Image id")),
	), s.getImage)

	s.mcp.AddTool(mcp.NewTool("upload_image",
		mcp.WithDescription("Add an image to the gallery from a URL or data URI. "+
			"Keywords MUST follow the keyword contract. Read it first via the "+
			"get_keyword_contract tool or the "+contractURI+" resource."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or base64 data URI of the image")),
		mcp.WithString("filename", mcp.Description("Optional original filename")),
		mcp.WithString("type", mcp.Description("Image type (default SD)")),
		mcp.WithString("details", mcp.Description("Free-form details")),
		mcp.WithString("keywords", mcp.Description("Comma-separated keywords")),
		mcp.WithBoolean("hidden", mcp.Description("Hide from default listings")),
	), s.uploadImage)

	s.mcp.AddTool(mcp.NewTool("get_keyword_contract",
		mcp.WithDescription("Returns the aishow keyword and image contract. "+
			"Call this before uploading images or adding keywords."),
	), s.getKeywordContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Keyword Contract",
			mcp.WithResourceDescription("How keywords are written, matched and attached to images."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found")
	case errors.Is(err, keyword.ErrEmptyPrompt):
		return mcp.NewToolResultError("prompt is empty")
	}
	return mcp.NewToolResultError(err.Error())
}

type analyzeResult struct {
	Found   bool   `json:"found"`
	Kind    string `json:"kind"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) analyzeImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, ext, err := fetchImage(rawURL)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Analyze(ctx, filenameFromURL(rawURL, ext), bytes.NewReader(data))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(analyzeResult{
		Found:   res.Found,
		Kind:    res.Kind.String(),
		Content: res.Content,
		Error:   res.Error,
	}), nil
}

func (s *Server) matchKeywords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	matches, err := s.svc.MatchKeywords(ctx, prompt)
	if err != nil {
		return toolError(err), nil
	}
	if len(matches) == 0 {
		return mcp.NewToolResultText("no keywords matched"), nil
	}
	return mcp.NewToolResultText(strings.Join(matches, "\n")), nil
}

func (s *Server) suggestKeywords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.svc.SuggestKeywords(ctx, query)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(strings.Join(out, "\n")), nil
}

func (s *Server) addKeyword(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kw, err := req.RequireString("keyword")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.AddKeyword(ctx, kw); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("added: %s", strings.TrimSpace(kw))), nil
}

func (s *Server) searchImages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	vis, err := index.ParseVisibility(req.GetString("visibility", ""))
	if err != nil {
		return toolError(err), nil
	}
	images, err := s.svc.ListImages(ctx, index.ImageFilter{
		Visibility: vis,
		Type:       strings.TrimSpace(req.GetString("type", "")),
		Keywords:   keyword.ParseList(req.GetString("keywords", "")),
		Limit:      req.GetInt("limit", defaultSearchSize),
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(images), nil
}

func (s *Server) getImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	img, err := s.svc.GetImage(ctx, int64(id))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(img), nil
}

func (s *Server) getKeywordContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(KeywordContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     KeywordContract,
		},
	}, nil
}
