package pngmeta

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"
)

func deflate(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecodeText_AllKinds(t *testing.T) {
	ztxt := append(append([]byte("Comment"), 0, 0), deflate(t, "zipped comment")...)

	itxt := []byte("parameters\x00\x01\x00en\x00\x00")
	itxt = append(itxt, deflate(t, "猫, Steps: 20")...)

	plainITXt := []byte("workflow\x00\x00\x00\x00\x00{\"nodes\":[]}")

	data := encodePNG(
		rawChunk("IHDR", make([]byte, 13)),
		rawChunk("tEXt", textPayload("Title", "caf\xe9")),
		rawChunk("zTXt", ztxt),
		rawChunk("iTXt", itxt),
		rawChunk("iTXt", plainITXt),
		rawChunk("IEND", nil),
	)
	info, err := DecodeText(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeText: %v", err)
	}
	want := map[string]string{
		"Title":      "café",
		"Comment":    "zipped comment",
		"parameters": "猫, Steps: 20",
		"workflow":   `{"nodes":[]}`,
	}
	for k, v := range want {
		if info[k] != v {
			t.Errorf("info[%q] = %q, want %q", k, info[k], v)
		}
	}
}

func TestDecodeText_LaterChunkOverrides(t *testing.T) {
	data := encodePNG(
		rawChunk("tEXt", textPayload("k", "first")),
		rawChunk("tEXt", textPayload("k", "second")),
	)
	info, err := DecodeText(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if info["k"] != "second" {
		t.Errorf("info[k] = %q, want second", info["k"])
	}
}

func TestDecodeText_SkipsBrokenChunks(t *testing.T) {
	data := encodePNG(
		rawChunk("tEXt", []byte("no-separator")),
		rawChunk("zTXt", []byte("k\x00\x00not zlib")),
		rawChunk("tEXt", textPayload("ok", "yes")),
	)
	info, err := DecodeText(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(info) != 1 || info["ok"] != "yes" {
		t.Errorf("info = %v, want only ok=yes", info)
	}
}

func TestDecodeText_StopsAtIEND(t *testing.T) {
	data := encodePNG(
		rawChunk("IEND", nil),
		rawChunk("tEXt", textPayload("late", "x")),
	)
	info, err := DecodeText(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := info["late"]; ok {
		t.Error("chunks after IEND should be ignored")
	}
}

func TestTextDecoder_DecodeAuxiliary(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.png")
	if err := os.WriteFile(p, encodePNG(rawChunk("tEXt", textPayload("a", "b"))), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := TextDecoder{}.DecodeAuxiliary(p)
	if err != nil {
		t.Fatalf("DecodeAuxiliary: %v", err)
	}
	if info["a"] != "b" {
		t.Errorf("info = %v", info)
	}

	if _, err := (TextDecoder{}).DecodeAuxiliary(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}

	notPNG := filepath.Join(dir, "b.txt")
	_ = os.WriteFile(notPNG, []byte("hello"), 0o644)
	if _, err := (TextDecoder{}).DecodeAuxiliary(notPNG); !errors.Is(err, ErrNotPNG) {
		t.Errorf("err = %v, want ErrNotPNG", err)
	}
}

func TestLatin1(t *testing.T) {
	if got := Latin1([]byte{'n', 0xe4, 'h'}); got != "näh" {
		t.Errorf("Latin1 = %q", got)
	}
}
