package pngn

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/gen2brain/pngn/internal/oops"
	"github.com/rs/zerolog"
)

// maxChunkLength is the PNG limit on a chunk's payload length.
const maxChunkLength = 0x7fffffff

// chunkReader pulls chunks off the stream in order and validates each one
// against the chunks seen before it.
type chunkReader struct {
	r       io.Reader
	state   readState
	hdr     Header
	palette *chunk // most recent PLTE, needed to validate tRNS
	skipCRC bool
	maxLen  uint32
	logger  *zerolog.Logger
	seen    []ChunkInfo
	tmp     [8]byte
}

func newChunkReader(r io.Reader, o *Options, logger *zerolog.Logger) *chunkReader {
	maxLen := o.MaxChunkLength
	if maxLen == 0 || maxLen > maxChunkLength {
		maxLen = maxChunkLength
	}

	return &chunkReader{
		r:       r,
		skipCRC: o.SkipCRC,
		maxLen:  maxLen,
		logger:  logger,
	}
}

// hasMoreChunks reports whether IEND has not been read yet.
func (cr *chunkReader) hasMoreChunks() bool {
	return !cr.state.seenIEND
}

// header reads the IHDR chunk if that has not happened yet.
func (cr *chunkReader) header() (*Header, error) {
	if !cr.state.seenIHDR {
		c, err := cr.readChunk()
		if err != nil {
			return nil, err
		}

		if c.kind != kindIHDR {
			return nil, invalidf("first chunk is %s, not IHDR", c.Type())
		}

		if err := cr.accept(c); err != nil {
			return nil, err
		}
	}

	return &cr.hdr, nil
}

// readNextChunk returns the next validated chunk. The first call reads and
// validates IHDR implicitly and returns the chunk after it.
func (cr *chunkReader) readNextChunk() (*chunk, error) {
	if _, err := cr.header(); err != nil {
		return nil, err
	}

	if !cr.hasMoreChunks() {
		return nil, invalidf("read past IEND")
	}

	c, err := cr.readChunk()
	if err != nil {
		return nil, err
	}

	if err := cr.accept(c); err != nil {
		return nil, err
	}

	return c, nil
}

// accept validates c and records it in the read state.
func (cr *chunkReader) accept(c *chunk) error {
	v := validation{
		state:   &cr.state,
		header:  &cr.hdr,
		palette: cr.palette,
	}
	if err := c.validate(&v); err != nil {
		return err
	}

	cr.state.observe(c.kind)
	if c.kind == kindPLTE {
		cr.palette = c
	}

	return nil
}

// readChunk reads exactly one chunk: length, type, payload and CRC.
func (cr *chunkReader) readChunk() (*chunk, error) {
	if _, err := io.ReadFull(cr.r, cr.tmp[:8]); err != nil {
		return nil, readErr(err, "chunk header")
	}

	length := binary.BigEndian.Uint32(cr.tmp[:4])
	c := &chunk{}
	copy(c.tag[:], cr.tmp[4:8])

	for _, b := range c.tag {
		if !('a' <= b && b <= 'z' || 'A' <= b && b <= 'Z') {
			return nil, invalidf("bad chunk type %q", c.tag[:])
		}
	}

	if length > cr.maxLen {
		return nil, invalidf("%s chunk length %d exceeds %d", c.Type(), length, cr.maxLen)
	}

	c.kind = kindOf(c.tag)

	// Grow the payload as it arrives so a bogus length cannot force a
	// huge allocation up front.
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, cr.r, int64(length)); err != nil {
		return nil, readErr(err, c.Type()+" chunk")
	}
	c.data = buf.Bytes()

	if _, err := io.ReadFull(cr.r, cr.tmp[:4]); err != nil {
		return nil, readErr(err, c.Type()+" chunk CRC")
	}
	c.crc = binary.BigEndian.Uint32(cr.tmp[:4])

	if !cr.skipCRC {
		crc := crc32.NewIEEE()
		crc.Write(c.tag[:])
		crc.Write(c.data)
		if got := crc.Sum32(); got != c.crc {
			return nil, oops.New(ErrChecksum, "%s chunk crc %#08x, want %#08x", c.Type(), got, c.crc)
		}
	}

	cr.seen = append(cr.seen, ChunkInfo{Type: c.Type(), Length: length, CRC: c.crc})

	cr.logger.Debug().
		Str("type", c.Type()).
		Uint32("length", length).
		Msg("chunk")

	return c, nil
}
