package pngn

import (
	"io"

	"github.com/rs/zerolog"
)

// errDecode is used for internal panics during the hot inflate path.
type errDecode struct{ error }

// fail aborts the current inflate step with err.
func fail(err error) {
	panic(errDecode{err})
}

// inflater exposes a zlib stream as a plain byte stream. It feeds every
// produced byte into the Adler-32 of the bit stream and verifies the trailer
// on Close.
type inflater struct {
	bs     *bitStream
	blocks *blockReader
	logger *zerolog.Logger
	err    error // persistent error
	eof    bool
	closed bool
}

func newInflater(src io.ByteReader, logger *zerolog.Logger) (*inflater, error) {
	bs, err := newBitStream(src)
	if err != nil {
		return nil, err
	}

	logger.Debug().Int("window", bs.windowSize).Msg("zlib stream")

	return &inflater{
		bs:     bs,
		blocks: newBlockReader(bs, logger),
		logger: logger,
	}, nil
}

// protect runs fn, converting an errDecode panic into a persistent error.
func (z *inflater) protect(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			de, ok := r.(errDecode)
			if !ok {
				panic(r)
			}

			z.err = de.error
			err = de.error
		}
	}()

	fn()

	return nil
}

func (z *inflater) Read(p []byte) (int, error) {
	if z.err != nil {
		return 0, z.err
	}

	if z.eof {
		return 0, io.EOF
	}

	n := 0
	err := z.protect(func() {
		for n < len(p) {
			b, ok := z.blocks.getNextByte()
			if !ok {
				z.eof = true

				return
			}

			z.bs.checksum(b)
			p[n] = b
			n++
		}
	})
	if err != nil {
		return n, err
	}

	if z.eof {
		return n, io.EOF
	}

	return n, nil
}

func (z *inflater) ReadByte() (byte, error) {
	var b [1]byte
	n, err := z.Read(b[:])
	if n == 1 {
		return b[0], nil
	}

	return 0, err
}

// Close asserts that the compressed stream holds no undecoded data and
// verifies the Adler-32 trailer. It does not release the window; call
// release for that.
func (z *inflater) Close() error {
	if z.closed || z.err != nil {
		return z.err
	}

	z.closed = true

	err := z.protect(func() {
		z.blocks.assertFinished()
		z.bs.checkTrailer()
	})
	if err != nil {
		return err
	}

	z.logger.Trace().
		Uint32("adler32", z.sum()).
		Int("blocks", z.blocks.blocks).
		Msg("zlib stream verified")

	return nil
}

// sum returns the Adler-32 of the bytes produced so far.
func (z *inflater) sum() uint32 {
	return z.bs.adler.sum()
}

func (z *inflater) release() {
	z.blocks.release()
}
