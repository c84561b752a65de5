package pngn

import (
	"io"
)

// pixelDataStream presents the payloads of consecutive IDAT chunks as one
// continuous stream. If the PNG data looked like:
//
//	... len0 IDAT xxx crc0 len1 IDAT yy crc1 len2 IEND crc2
//
// then this reader presents xxxyy and reports io.EOF when it reaches IEND.
type pixelDataStream struct {
	chunks  *chunkReader
	current *chunk
	offset  int
	eof     bool
}

// newPixelDataStream starts the stream at first, an already validated IDAT.
func newPixelDataStream(chunks *chunkReader, first *chunk) *pixelDataStream {
	return &pixelDataStream{
		chunks:  chunks,
		current: first,
	}
}

// advance moves on to the next IDAT chunk once the current one is used up.
func (ps *pixelDataStream) advance() error {
	for ps.offset >= len(ps.current.data) {
		if ps.eof {
			return io.EOF
		}

		c, err := ps.chunks.readNextChunk()
		if err != nil {
			return err
		}

		switch c.kind {
		case kindIDAT:
			ps.current = c
			ps.offset = 0
		case kindIEND:
			ps.eof = true

			return io.EOF
		default:
			return invalidf("%s chunk inside pixel data", c.Type())
		}
	}

	return nil
}

func (ps *pixelDataStream) ReadByte() (byte, error) {
	if err := ps.advance(); err != nil {
		return 0, err
	}

	b := ps.current.data[ps.offset]
	ps.offset++

	return b, nil
}

func (ps *pixelDataStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if err := ps.advance(); err != nil {
		return 0, err
	}

	n := copy(p, ps.current.data[ps.offset:])
	ps.offset += n

	return n, nil
}

// buffered returns the number of unread bytes in the current IDAT chunk.
func (ps *pixelDataStream) buffered() int {
	return len(ps.current.data) - ps.offset
}
