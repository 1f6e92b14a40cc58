package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"

	"github.com/starford/aishow/internal/pngmeta"
)

// Chunk encodes a single PNG chunk with a valid CRC.
func Chunk(typ string, data []byte) []byte {
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

// TextChunk encodes a tEXt chunk carrying keyword and text.
func TextChunk(keyword, text string) []byte {
	return Chunk(pngmeta.TypeText, append(append([]byte(keyword), 0), text...))
}

// PNG assembles a PNG stream from encoded chunks. A minimal IHDR is prepended
// and IEND appended.
func PNG(chunks ...[]byte) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], 1)
	binary.BigEndian.PutUint32(ihdr[4:], 1)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // truecolor

	out := append([]byte{}, pngmeta.Signature...)
	out = append(out, Chunk("IHDR", ihdr)...)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return append(out, Chunk(pngmeta.TypeEnd, nil)...)
}

// ImagePNG encodes a decodable w×h PNG and splices chunks in right after
// IHDR.
func ImagePNG(w, h int, chunks ...[]byte) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		img.Set(x, h/2, color.NRGBA{B: 255, A: 255})
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	raw := buf.Bytes()

	// Signature (8) + IHDR chunk (4+4+13+4).
	const afterIHDR = 33
	out := append([]byte{}, raw[:afterIHDR]...)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return append(out, raw[afterIHDR:]...)
}
