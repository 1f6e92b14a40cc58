package pngmeta

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/text/encoding/charmap"
)

// MaxInflatedText caps the decompressed size of a single zTXt/iTXt payload.
const MaxInflatedText = 16 << 20

var errTextTooLarge = errors.New("pngmeta: inflated text exceeds limit")

// Latin1 decodes ISO-8859-1 bytes, the encoding of tEXt and zTXt chunks.
func Latin1(b []byte) string {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		// Every byte is a valid ISO-8859-1 code point; this cannot happen.
		return string(b)
	}
	return string(out)
}

// TextDecoder collects the auxiliary text metadata of a PNG file as a
// key/value map. It understands tEXt, zTXt and iTXt chunks; later chunks
// override earlier ones with the same keyword.
type TextDecoder struct{}

// DecodeAuxiliary opens path and returns its text metadata.
func (TextDecoder) DecodeAuxiliary(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pngmeta: open: %w", err)
	}
	defer f.Close()
	return DecodeText(f)
}

// DecodeText reads every text chunk from a PNG stream. Chunks that fail to
// decode are skipped. It returns ErrNotPNG for non-PNG input.
func DecodeText(r io.Reader) (map[string]string, error) {
	cr, err := NewReader(r)
	if err != nil {
		return nil, err
	}
	info := make(map[string]string)
	for c := range cr.Chunks() {
		var key, value string
		var ok bool
		switch c.Type {
		case TypeText:
			key, value, ok = decodeTEXt(c.Data)
		case TypeCompressedText:
			key, value, ok = decodeZTXt(c.Data)
		case TypeIntlText:
			key, value, ok = decodeITXt(c.Data)
		case TypeEnd:
			return info, nil
		}
		if ok {
			info[key] = value
		}
	}
	return info, nil
}

func decodeTEXt(data []byte) (string, string, bool) {
	k, v, ok := SplitText(data)
	if !ok {
		return "", "", false
	}
	return Latin1(k), Latin1(v), true
}

func decodeZTXt(data []byte) (string, string, bool) {
	k, rest, ok := SplitText(data)
	if !ok || len(rest) < 1 || rest[0] != 0 {
		return "", "", false
	}
	raw, err := inflate(rest[1:])
	if err != nil {
		return "", "", false
	}
	return Latin1(k), Latin1(raw), true
}

// iTXt: keyword NUL flag method language NUL translated-keyword NUL text.
func decodeITXt(data []byte) (string, string, bool) {
	k, rest, ok := SplitText(data)
	if !ok || len(rest) < 2 {
		return "", "", false
	}
	compressed, method := rest[0] == 1, rest[1]
	rest = rest[2:]
	if _, rest, ok = SplitText(rest); !ok {
		return "", "", false
	}
	if _, rest, ok = SplitText(rest); !ok {
		return "", "", false
	}
	if compressed {
		if method != 0 {
			return "", "", false
		}
		raw, err := inflate(rest)
		if err != nil {
			return "", "", false
		}
		rest = raw
	}
	return Latin1(k), string(rest), true
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("pngmeta: inflate: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, MaxInflatedText+1))
	if err != nil {
		return nil, fmt.Errorf("pngmeta: inflate: %w", err)
	}
	if len(out) > MaxInflatedText {
		return nil, errTextTooLarge
	}
	return out, nil
}
