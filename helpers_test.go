package pngn

import (
	"bytes"
	"encoding/binary"
	"hash/adler32"
	"hash/crc32"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var nopLogger = zerolog.Nop()

// bitWriter packs bits least significant first, the DEFLATE bit order.
type bitWriter struct {
	buf   []byte
	nbits uint
}

// writeBits appends the low n bits of v, bit 0 first.
func (w *bitWriter) writeBits(v uint32, n uint) {
	for i := uint(0); i < n; i++ {
		if w.nbits%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		w.buf[len(w.buf)-1] |= byte((v>>i)&1) << (w.nbits % 8)
		w.nbits++
	}
}

// writeCode appends a Huffman code of n bits, most significant bit first.
func (w *bitWriter) writeCode(code uint32, n uint) {
	for i := int(n) - 1; i >= 0; i-- {
		w.writeBits(code>>uint(i), 1)
	}
}

func (w *bitWriter) align() {
	w.nbits = uint(len(w.buf)) * 8
}

func (w *bitWriter) bytes() []byte {
	return w.buf
}

// Fixed Huffman codes for the symbols the tests use.
func (w *bitWriter) fixedLiteral(b byte) {
	if b < 144 {
		w.writeCode(0x30+uint32(b), 8)
	} else {
		w.writeCode(0x190+uint32(b)-144, 9)
	}
}

func (w *bitWriter) fixedEOB() {
	w.writeCode(0, 7)
}

// fixedCopy writes a back-reference whose length and distance need no extra bits.
func (w *bitWriter) fixedCopy(lengthSym, distSym uint32) {
	w.writeCode(lengthSym-256, 7)
	w.writeCode(distSym, 5)
}

// zlibWrap puts a raw DEFLATE stream into a zlib container whose trailer is
// the Adler-32 of want.
func zlibWrap(deflate, want []byte) []byte {
	out := []byte{0x78, 0x01}
	out = append(out, deflate...)

	return binary.BigEndian.AppendUint32(out, adler32.Checksum(want))
}

// compress deflates data with the klauspost zlib writer.
func compress(t testing.TB, data []byte, level int) []byte {
	t.Helper()

	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return buf.Bytes()
}

// chunkOf encodes one chunk with a correct CRC.
func chunkOf(tag string, data []byte) []byte {
	out := binary.BigEndian.AppendUint32(nil, uint32(len(data)))
	out = append(out, tag...)
	out = append(out, data...)

	return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(append([]byte(tag), data...)))
}

func ihdr(width, height uint32, depth uint8, ct ColorType, interlace uint8) []byte {
	data := binary.BigEndian.AppendUint32(nil, width)
	data = binary.BigEndian.AppendUint32(data, height)
	data = append(data, depth, uint8(ct), 0, 0, interlace)

	return chunkOf("IHDR", data)
}

func iend() []byte {
	return chunkOf("IEND", nil)
}

// body concatenates chunks; the result is what follows the signature.
func body(chunks ...[]byte) []byte {
	return bytes.Join(chunks, nil)
}

// pngFile prepends the signature to the chunks.
func pngFile(chunks ...[]byte) []byte {
	return append([]byte(Signature), body(chunks...)...)
}

// simplePNG is a whole file with one IDAT holding the compressed raw data.
func simplePNG(t testing.TB, hdr []byte, raw []byte, extra ...[]byte) []byte {
	t.Helper()

	chunks := append([][]byte{hdr}, extra...)
	chunks = append(chunks, chunkOf("IDAT", compress(t, raw, zlib.DefaultCompression)), iend())

	return pngFile(chunks...)
}
