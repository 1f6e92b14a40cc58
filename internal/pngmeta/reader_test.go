package pngmeta

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"testing"
)

func rawChunk(typ string, data []byte) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(data)))
	buf.WriteString(typ)
	buf.Write(data)
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	_ = binary.Write(&buf, binary.BigEndian, crc.Sum32())
	return buf.Bytes()
}

func encodePNG(chunks ...[]byte) []byte {
	out := append([]byte{}, Signature...)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func textPayload(k, v string) []byte {
	return append(append([]byte(k), 0), v...)
}

func collect(t *testing.T, data []byte) ([]Chunk, error) {
	t.Helper()
	r, err := NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	var out []Chunk
	for c := range r.Chunks() {
		out = append(out, c)
	}
	return out, r.Err()
}

func TestNewReader_BadSignature(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty": nil,
		"short": Signature[:5],
		"jpeg":  {0xff, 0xd8, 0xff, 0xe0, 0, 0x10, 'J', 'F', 'I', 'F'},
	} {
		if _, err := NewReader(bytes.NewReader(data)); !errors.Is(err, ErrNotPNG) {
			t.Errorf("%s: err = %v, want ErrNotPNG", name, err)
		}
	}
}

func TestReader_ChunksInOrder(t *testing.T) {
	data := encodePNG(
		rawChunk("IHDR", make([]byte, 13)),
		rawChunk("tEXt", textPayload("prompt", "a cat")),
		rawChunk("IEND", nil),
	)
	chunks, err := collect(t, data)
	if err != nil {
		t.Fatalf("Err = %v, want nil", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("len(chunks) = %d, want 3", len(chunks))
	}
	want := []string{"IHDR", "tEXt", "IEND"}
	for i, c := range chunks {
		if c.Type != want[i] {
			t.Errorf("chunk[%d].Type = %q, want %q", i, c.Type, want[i])
		}
	}
	if string(chunks[1].Data) != "prompt\x00a cat" {
		t.Errorf("tEXt payload = %q", chunks[1].Data)
	}
}

func TestReader_TruncatedPayloadKeepsEarlierChunks(t *testing.T) {
	full := rawChunk("tEXt", textPayload("workflow", "{}"))
	// Length claims more bytes than remain.
	bogus := []byte{0x00, 0x01, 0x00, 0x00, 't', 'E', 'X', 't', 'a', 'b'}
	chunks, err := collect(t, encodePNG(full, bogus))
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("Err = %v, want ErrTruncated", err)
	}
	if len(chunks) != 1 || chunks[0].Type != "tEXt" {
		t.Errorf("chunks = %+v, want the single complete tEXt chunk", chunks)
	}
}

func TestReader_TruncatedLengthField(t *testing.T) {
	chunks, err := collect(t, encodePNG(rawChunk("IHDR", make([]byte, 13)), []byte{0x00, 0x00}))
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("Err = %v, want ErrTruncated", err)
	}
	if len(chunks) != 1 {
		t.Errorf("len(chunks) = %d, want 1", len(chunks))
	}
}

func TestReader_NonASCIITypeStops(t *testing.T) {
	bad := []byte{0, 0, 0, 0, 0xC3, 0xA9, 'X', 't', 0, 0, 0, 0}
	chunks, err := collect(t, encodePNG(rawChunk("IHDR", make([]byte, 13)), bad, rawChunk("IEND", nil)))
	if !errors.Is(err, ErrBadChunkType) {
		t.Errorf("Err = %v, want ErrBadChunkType", err)
	}
	if len(chunks) != 1 {
		t.Errorf("len(chunks) = %d, want 1", len(chunks))
	}
}

func TestReader_MissingCRCStillYieldsChunk(t *testing.T) {
	c := rawChunk("tEXt", textPayload("parameters", "x"))
	chunks, err := collect(t, encodePNG(c[:len(c)-4]))
	if err != nil {
		t.Errorf("Err = %v, want nil", err)
	}
	if len(chunks) != 1 {
		t.Errorf("len(chunks) = %d, want 1", len(chunks))
	}
}

func TestReader_EarlyBreak(t *testing.T) {
	data := encodePNG(rawChunk("aaaa", nil), rawChunk("bbbb", nil), rawChunk("cccc", nil))
	r, err := NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	for c := range r.Chunks() {
		if c.Type == "aaaa" {
			break
		}
	}
	next, ok := r.Next()
	if !ok || next.Type != "bbbb" {
		t.Errorf("Next after break = %+v, %v; want bbbb", next, ok)
	}
}

func TestSplitText(t *testing.T) {
	k, v, ok := SplitText([]byte("key\x00val\x00ue"))
	if !ok || string(k) != "key" || string(v) != "val\x00ue" {
		t.Errorf("SplitText = %q, %q, %v", k, v, ok)
	}
	if _, _, ok := SplitText([]byte("no separator")); ok {
		t.Error("expected ok=false without NUL")
	}
}
