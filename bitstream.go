package pngn

import (
	"io"

	"github.com/gen2brain/pngn/internal/oops"
)

// Bitstream handling

// zlib compression method 8 is DEFLATE.
const zlibDeflate = 8

// bitStream reads the zlib container around a DEFLATE stream. Bits are taken
// least significant first from each byte. It also keeps the Adler-32 of the
// decompressed bytes, which the consumer feeds back through checksum.
type bitStream struct {
	src        io.ByteReader
	current    byte
	bitIndex   uint8 // next bit of current to hand out; 8 means fetch a new byte
	adler      adler
	windowSize int
}

// newBitStream reads and validates the 2-byte zlib header from src.
func newBitStream(src io.ByteReader) (*bitStream, error) {
	cmf, err := src.ReadByte()
	if err != nil {
		return nil, readErr(err, "zlib header")
	}

	flg, err := src.ReadByte()
	if err != nil {
		return nil, readErr(err, "zlib header")
	}

	if (uint16(cmf)<<8|uint16(flg))%31 != 0 {
		return nil, invalidf("zlib header check bits: %#02x %#02x", cmf, flg)
	}

	if method := cmf & 0x0f; method != zlibDeflate {
		return nil, invalidf("zlib compression method %d", method)
	}

	hint := cmf >> 4
	if hint > 7 {
		return nil, invalidf("zlib window size hint %d", hint)
	}

	if flg&0x20 != 0 {
		return nil, invalidf("zlib preset dictionary")
	}

	return &bitStream{
		src:        src,
		bitIndex:   8,
		adler:      newAdler(),
		windowSize: 1 << (hint + 8),
	}, nil
}

// nextBit returns the next bit of the stream, fetching a byte when needed.
func (bs *bitStream) nextBit() uint32 {
	if bs.bitIndex == 8 {
		b, err := bs.src.ReadByte()
		if err != nil {
			fail(readErr(err, "compressed data"))
		}

		bs.current = b
		bs.bitIndex = 0
	}

	bit := uint32(bs.current>>bs.bitIndex) & 1
	bs.bitIndex++

	return bit
}

// nextBits reads n bits; the first bit read becomes bit 0 of the result.
func (bs *bitStream) nextBits(n uint) uint32 {
	var v uint32
	for i := uint(0); i < n; i++ {
		v |= bs.nextBit() << i
	}

	return v
}

// alignToByte discards the unread bits of the current byte.
func (bs *bitStream) alignToByte() {
	bs.bitIndex = 8
}

// checksum adds one decompressed byte to the running Adler-32.
func (bs *bitStream) checksum(b byte) {
	bs.adler.update(b)
}

// checkTrailer reads the big-endian Adler-32 trailer that follows the last
// block and compares it with the running checksum.
func (bs *bitStream) checkTrailer() {
	bs.alignToByte()

	var want uint32
	for i := 0; i < 4; i++ {
		want = want<<8 | bs.nextBits(8)
	}

	if got := bs.adler.sum(); got != want {
		fail(oops.New(ErrChecksum, "adler32 %#08x, trailer %#08x", got, want))
	}
}
