// Package pngmeta walks the chunk structure of PNG streams and decodes the
// textual chunks that image generators use to embed their settings.
package pngmeta

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"iter"
)

// Signature is the fixed 8-byte header of every PNG stream.
var Signature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

var (
	// ErrNotPNG is returned by NewReader when the signature does not match.
	ErrNotPNG = errors.New("pngmeta: not a PNG stream")
	// ErrTruncated reports that the stream ended inside a chunk.
	ErrTruncated = errors.New("pngmeta: truncated chunk")
	// ErrBadChunkType reports a chunk type tag that is not ASCII.
	ErrBadChunkType = errors.New("pngmeta: invalid chunk type")
)

// Chunk types the package cares about.
const (
	TypeText           = "tEXt"
	TypeCompressedText = "zTXt"
	TypeIntlText       = "iTXt"
	TypeEnd            = "IEND"
)

// Chunk is one (type, payload) unit of a PNG stream.
type Chunk struct {
	Type string
	Data []byte
}

// Reader produces the chunks of a PNG stream in file order.
//
// The reader is lenient: a short read or an undecodable type tag ends the
// sequence instead of failing it, and Err reports why. Chunks produced before
// that point remain valid. CRC fields are skipped without verification.
type Reader struct {
	br   *bufio.Reader
	err  error
	done bool
}

// NewReader checks the PNG signature and returns a Reader positioned at the
// first chunk. It returns ErrNotPNG if the signature is missing or wrong.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	sig := make([]byte, len(Signature))
	if _, err := io.ReadFull(br, sig); err != nil {
		return nil, ErrNotPNG
	}
	if !bytes.Equal(sig, Signature) {
		return nil, ErrNotPNG
	}
	return &Reader{br: br}, nil
}

// Next returns the next chunk. ok is false once the stream is exhausted or
// stopped early.
func (r *Reader) Next() (c Chunk, ok bool) {
	if r.done {
		return Chunk{}, false
	}

	var hdr [8]byte
	n, err := io.ReadFull(r.br, hdr[:4])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return r.stop(nil)
		}
		return r.stop(ErrTruncated)
	}
	length := binary.BigEndian.Uint32(hdr[:4])

	if _, err := io.ReadFull(r.br, hdr[4:]); err != nil {
		return r.stop(ErrTruncated)
	}
	for _, b := range hdr[4:] {
		if b >= 0x80 {
			return r.stop(ErrBadChunkType)
		}
	}

	// Bounded by the bytes actually present, so a bogus length cannot force
	// a large allocation up front.
	data, err := io.ReadAll(io.LimitReader(r.br, int64(length)))
	if err != nil || uint32(len(data)) < length {
		return r.stop(ErrTruncated)
	}

	var crc [4]byte
	_, _ = io.ReadFull(r.br, crc[:])

	return Chunk{Type: string(hdr[4:]), Data: data}, true
}

// Chunks returns the remaining chunks as a single-use sequence.
func (r *Reader) Chunks() iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		for {
			c, ok := r.Next()
			if !ok || !yield(c) {
				return
			}
		}
	}
}

// Err returns the reason the sequence ended early, or nil after a clean end
// of stream.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) stop(err error) (Chunk, bool) {
	r.done = true
	r.err = err
	return Chunk{}, false
}

// SplitText splits a tEXt payload at its first NUL into keyword and text.
// ok is false when no separator is present.
func SplitText(data []byte) (keyword, text []byte, ok bool) {
	i := bytes.IndexByte(data, 0)
	if i < 0 {
		return nil, nil, false
	}
	return data[:i], data[i+1:], true
}
