package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/aishow/internal/imageservice"
	"github.com/starford/aishow/internal/metadata"
	"github.com/starford/aishow/internal/models"
	"github.com/starford/aishow/internal/pngmeta"
	"github.com/starford/aishow/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	_, store := testutil.TestLibrary(t)
	db := testutil.TestDB(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	svc := imageservice.NewService(store, db, metadata.NewAnalyzer(pngmeta.TextDecoder{}, logger), logger, imageservice.Options{})
	return New(svc)
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process call helper, so dispatch to the handlers.
	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"analyze_image":        srv.analyzeImage,
		"match_keywords":       srv.matchKeywords,
		"suggest_keywords":     srv.suggestKeywords,
		"add_keyword":          srv.addKeyword,
		"search_images":        srv.searchImages,
		"get_image":            srv.getImage,
		"upload_image":         srv.uploadImage,
		"get_keyword_contract": srv.getKeywordContract,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func TestUploadAndGetImage(t *testing.T) {
	srv := testServer(t)
	png := testutil.ImagePNG(4, 4, testutil.TextChunk("parameters", "a cat\nSteps: 20"))

	r := callTool(t, srv, "upload_image", map[string]any{
		"url":      dataURI("image/png", png),
		"filename": "cat.png",
		"keywords": "cat, night",
	})
	if r.IsError {
		t.Fatalf("upload failed: %s", resultText(r))
	}
	var up uploadResult
	if err := json.Unmarshal([]byte(resultText(r)), &up); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(up.Filename, "_cat.png") || up.URL != "/uploads/"+up.Filename {
		t.Errorf("upload = %+v", up)
	}

	r = callTool(t, srv, "get_image", map[string]any{"id": float64(up.ID)})
	var img models.Image
	if err := json.Unmarshal([]byte(resultText(r)), &img); err != nil {
		t.Fatal(err)
	}
	if len(img.Keywords) != 2 || img.Keywords[0] != "cat" {
		t.Errorf("keywords = %v", img.Keywords)
	}

	r = callTool(t, srv, "search_images", map[string]any{"keywords": "night"})
	var found []models.Image
	_ = json.Unmarshal([]byte(resultText(r)), &found)
	if len(found) != 1 || found[0].ID != up.ID {
		t.Errorf("search = %+v", found)
	}
}

func TestUploadImage_Rejected(t *testing.T) {
	srv := testServer(t)
	png := testutil.ImagePNG(2, 2)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"extension mismatch", map[string]any{"url": dataURI("image/png", png), "filename": "x.gif"}},
		{"unsupported extension", map[string]any{"url": dataURI("image/png", png), "filename": "x.svg"}},
		{"not base64", map[string]any{"url": "data:image/png,abc"}},
		{"unsupported mime", map[string]any{"url": dataURI("text/plain", []byte("hi"))}},
		{"loopback", map[string]any{"url": "http://127.0.0.1/x.png"}},
		{"scheme", map[string]any{"url": "ftp://example.com/x.png"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if r := callTool(t, srv, "upload_image", tt.args); !r.IsError {
				t.Errorf("expected error, got %q", resultText(r))
			}
		})
	}
}

func TestAnalyzeImage(t *testing.T) {
	srv := testServer(t)
	png := testutil.PNG(testutil.TextChunk("workflow", `{"nodes":[]}`))

	r := callTool(t, srv, "analyze_image", map[string]any{"url": dataURI("image/png", png)})
	var res analyzeResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if !res.Found || res.Kind != "workflow" || res.Content != `{"nodes":[]}` {
		t.Errorf("analyze = %+v", res)
	}
}

func TestKeywordTools(t *testing.T) {
	srv := testServer(t)
	for _, kw := range []string{"cat", "catnip", "dog"} {
		if r := callTool(t, srv, "add_keyword", map[string]any{"keyword": kw}); r.IsError {
			t.Fatalf("add %q: %s", kw, resultText(r))
		}
	}
	if r := callTool(t, srv, "add_keyword", map[string]any{"keyword": "  "}); !r.IsError {
		t.Error("blank keyword should fail")
	}

	if got := resultText(callTool(t, srv, "suggest_keywords", map[string]any{"query": "cat"})); got != "cat\ncatnip" {
		t.Errorf("suggest = %q", got)
	}
	if got := resultText(callTool(t, srv, "match_keywords", map[string]any{"prompt": "a DOG, sleeping"})); got != "dog" {
		t.Errorf("match = %q", got)
	}
	if got := resultText(callTool(t, srv, "match_keywords", map[string]any{"prompt": "mountains"})); got != "no keywords matched" {
		t.Errorf("no match = %q", got)
	}
	r := callTool(t, srv, "match_keywords", map[string]any{"prompt": " "})
	if !r.IsError || resultText(r) != "prompt is empty" {
		t.Errorf("empty prompt = %q", resultText(r))
	}
}

func TestGetImageMissing(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_image", map[string]any{"id": float64(42)})
	if !r.IsError || resultText(r) != "not found" {
		t.Errorf("missing image = %q", resultText(r))
	}
}

func TestSearchImages_BadVisibility(t *testing.T) {
	srv := testServer(t)
	if r := callTool(t, srv, "search_images", map[string]any{"visibility": "everything"}); !r.IsError {
		t.Error("expected error for unknown visibility")
	}
}

func TestKeywordContract(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_keyword_contract", map[string]any{})
	if !strings.Contains(resultText(r), "comma-separated") {
		t.Error("contract text missing keyword rules")
	}

	contents, err := srv.readContractResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != contractURI {
		t.Errorf("resource contents = %+v", contents[0])
	}
}

func TestFilenameFromURL(t *testing.T) {
	if got := filenameFromURL("https://example.com/img/cat.png?x=1", ".png"); got != "cat.png" {
		t.Errorf("url name = %q", got)
	}
	if got := filenameFromURL("data:image/webp;base64,AAAA", ".webp"); !strings.HasSuffix(got, ".webp") {
		t.Errorf("data uri name = %q", got)
	}
	if got := filenameFromURL("https://example.com/", ""); !strings.HasSuffix(got, ".png") {
		t.Errorf("fallback name = %q", got)
	}
}
