package pngn

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readChunks validates every chunk of a body up to IEND.
func readChunks(data []byte, o *Options) error {
	cr := newChunkReader(bytes.NewReader(data), o, &nopLogger)
	for cr.hasMoreChunks() {
		if _, err := cr.readNextChunk(); err != nil {
			return err
		}
	}

	return nil
}

func TestChunkOrdering(t *testing.T) {
	pal8 := ihdr(4, 4, 8, Paletted, 0)
	gray := ihdr(4, 4, 8, Grayscale, 0)
	rgb := ihdr(4, 4, 8, TrueColor, 0)
	plte := chunkOf("PLTE", []byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	idat := chunkOf("IDAT", []byte{0})
	text := chunkOf("tEXt", []byte("Comment\x00hi"))

	testCases := []struct {
		name   string
		chunks [][]byte
		valid  bool
	}{
		{"minimal", [][]byte{gray, idat, iend()}, true},
		{"paletted", [][]byte{pal8, plte, chunkOf("tRNS", []byte{0, 128}), idat, idat, iend()}, true},
		{"ancillary chunks", [][]byte{gray, text, idat, text, iend()}, true},
		{"suggested palette in truecolor", [][]byte{rgb, plte, idat, iend()}, true},
		{"empty IDAT", [][]byte{gray, chunkOf("IDAT", nil), idat, iend()}, true},
		{"IDAT before IHDR", [][]byte{idat, gray, iend()}, false},
		{"duplicate IHDR", [][]byte{gray, gray, idat, iend()}, false},
		{"missing PLTE", [][]byte{pal8, idat, iend()}, false},
		{"PLTE after IDAT", [][]byte{rgb, idat, plte, iend()}, false},
		{"duplicate PLTE", [][]byte{pal8, plte, plte, idat, iend()}, false},
		{"PLTE in grayscale", [][]byte{gray, plte, idat, iend()}, false},
		{"PLTE length", [][]byte{pal8, chunkOf("PLTE", []byte{1, 2, 3, 4}), idat, iend()}, false},
		{"PLTE too long for depth", [][]byte{ihdr(4, 4, 1, Paletted, 0), plte, idat, iend()}, false},
		{"tRNS before PLTE", [][]byte{pal8, chunkOf("tRNS", []byte{0}), plte, idat, iend()}, false},
		{"tRNS too long", [][]byte{pal8, plte, chunkOf("tRNS", []byte{0, 0, 0, 0}), idat, iend()}, false},
		{"tRNS after IDAT", [][]byte{gray, idat, chunkOf("tRNS", []byte{0, 0}), iend()}, false},
		{"tRNS gray length", [][]byte{gray, chunkOf("tRNS", []byte{0}), idat, iend()}, false},
		{"tRNS truecolor length", [][]byte{rgb, chunkOf("tRNS", []byte{0, 0}), idat, iend()}, false},
		{"tRNS with alpha", [][]byte{ihdr(4, 4, 8, TrueColorAlpha, 0), chunkOf("tRNS", []byte{0, 0}), idat, iend()}, false},
		{"split IDAT", [][]byte{gray, idat, text, idat, iend()}, false},
		{"IEND before IDAT", [][]byte{gray, iend()}, false},
		{"IEND with data", [][]byte{gray, idat, chunkOf("IEND", []byte{0})}, false},
		{"bad chunk type", [][]byte{gray, chunkOf("ID4T", nil), idat, iend()}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := readChunks(body(tc.chunks...), &Options{})
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidImage)
			}
		})
	}
}

func TestChunkHeader(t *testing.T) {
	testCases := []struct {
		name  string
		chunk []byte
		valid bool
	}{
		{"gray 1", ihdr(1, 1, 1, Grayscale, 0), true},
		{"rgba 16 interlaced", ihdr(7, 3, 16, TrueColorAlpha, 1), true},
		{"zero width", ihdr(0, 1, 8, Grayscale, 0), false},
		{"huge height", ihdr(1, 0x80000000, 8, Grayscale, 0), false},
		{"truecolor 4", ihdr(1, 1, 4, TrueColor, 0), false},
		{"paletted 16", ihdr(1, 1, 16, Paletted, 0), false},
		{"color type 5", ihdr(1, 1, 8, 5, 0), false},
		{"interlace 2", ihdr(1, 1, 8, Grayscale, 2), false},
		{"short", chunkOf("IHDR", make([]byte, 12)), false},
		{"compression", chunkOf("IHDR", []byte{0, 0, 0, 1, 0, 0, 0, 1, 8, 0, 1, 0, 0}), false},
		{"filter", chunkOf("IHDR", []byte{0, 0, 0, 1, 0, 0, 0, 1, 8, 0, 0, 1, 0}), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cr := newChunkReader(bytes.NewReader(tc.chunk), &Options{}, &nopLogger)
			h, err := cr.header()
			if !tc.valid {
				assert.ErrorIs(t, err, ErrInvalidImage)
				return
			}

			require.NoError(t, err)
			assert.Same(t, h, &cr.hdr)
			assert.True(t, cr.state.seenIHDR)
		})
	}

	cr := newChunkReader(bytes.NewReader(ihdr(7, 3, 16, TrueColorAlpha, 1)), &Options{}, &nopLogger)
	h, err := cr.header()
	require.NoError(t, err)
	assert.Equal(t, Header{Width: 7, Height: 3, BitDepth: 16, ColorType: TrueColorAlpha, Interlace: InterlaceAdam7}, *h)

	// Asking again does not read another chunk.
	h2, err := cr.header()
	require.NoError(t, err)
	assert.Same(t, h, h2)
}

func TestChunkOrderingStopsReading(t *testing.T) {
	gray := ihdr(4, 4, 8, Grayscale, 0)
	idat := chunkOf("IDAT", []byte{0})

	r := bytes.NewReader(body(idat, gray, iend()))
	cr := newChunkReader(r, &Options{}, &nopLogger)

	_, err := cr.header()
	assert.ErrorIs(t, err, ErrInvalidImage)
	assert.Equal(t, len(gray)+len(iend()), r.Len())

	// A misplaced chunk after IHDR is rejected the same way.
	plte := chunkOf("PLTE", []byte{1, 2, 3})
	r = bytes.NewReader(body(gray, plte, idat, iend()))
	cr = newChunkReader(r, &Options{}, &nopLogger)

	_, err = cr.readNextChunk()
	assert.ErrorIs(t, err, ErrInvalidImage)
	assert.Equal(t, len(idat)+len(iend()), r.Len())
}

func TestChunkReaderEnd(t *testing.T) {
	data := body(ihdr(1, 1, 8, Grayscale, 0), chunkOf("IDAT", []byte{1}), iend(), chunkOf("tEXt", nil))
	cr := newChunkReader(bytes.NewReader(data), &Options{}, &nopLogger)

	var kinds []chunkKind
	for cr.hasMoreChunks() {
		c, err := cr.readNextChunk()
		require.NoError(t, err)
		kinds = append(kinds, c.kind)
	}

	assert.Equal(t, []chunkKind{kindIDAT, kindIEND}, kinds)
	_, err := cr.readNextChunk()
	assert.ErrorIs(t, err, ErrInvalidImage)

	require.Len(t, cr.seen, 3)
	assert.Equal(t, "IHDR", cr.seen[0].Type)
	assert.Equal(t, uint32(13), cr.seen[0].Length)
	assert.Equal(t, "IEND", cr.seen[2].Type)
	assert.Equal(t, uint32(0xae426082), cr.seen[2].CRC)
}

func TestChunkCRC(t *testing.T) {
	idat := chunkOf("IDAT", []byte{1, 2, 3})
	idat[len(idat)-1] ^= 0xff
	data := body(ihdr(1, 1, 8, Grayscale, 0), idat, iend())

	err := readChunks(data, &Options{})
	assert.ErrorIs(t, err, ErrChecksum)
	assert.ErrorIs(t, err, ErrInvalidImage)

	assert.NoError(t, readChunks(data, &Options{SkipCRC: true}))
}

func TestChunkLimits(t *testing.T) {
	data := body(ihdr(1, 1, 8, Grayscale, 0), chunkOf("IDAT", make([]byte, 100)), iend())

	assert.NoError(t, readChunks(data, &Options{MaxChunkLength: 100}))
	assert.ErrorIs(t, readChunks(data, &Options{MaxChunkLength: 99}), ErrInvalidImage)

	// A declared length far beyond the data is truncation, not an allocation.
	huge := body(ihdr(1, 1, 8, Grayscale, 0), []byte{0x7f, 0xff, 0xff, 0xff, 'I', 'D', 'A', 'T', 0})
	assert.ErrorIs(t, readChunks(huge, &Options{}), ErrTruncated)

	assert.ErrorIs(t, readChunks(data[:len(data)-3], &Options{}), ErrTruncated)
	assert.ErrorIs(t, readChunks(nil, &Options{}), ErrTruncated)
}

func TestChunkPalette(t *testing.T) {
	c := &chunk{kind: kindPLTE, data: []byte{1, 2, 3, 4, 5, 6}}
	pal := paletteOf(c)
	require.Len(t, pal, 2)

	r, g, b, a := pal[1].RGBA()
	assert.Equal(t, []uint32{0x0404, 0x0505, 0x0606, 0xffff}, []uint32{r, g, b, a})
}

func TestReadState(t *testing.T) {
	var s readState

	for _, k := range []chunkKind{kindIHDR, kindPLTE, kindOther, kindIDAT, kindIDAT} {
		s.observe(k)
		assert.False(t, s.pixelDataComplete)
	}
	assert.True(t, s.seenIHDR && s.seenPLTE && s.seenIDAT)
	assert.False(t, s.seenIEND)

	s.observe(kindOther)
	assert.True(t, s.pixelDataComplete)

	s.observe(kindIEND)
	assert.True(t, s.seenIEND)
	assert.True(t, s.pixelDataComplete)
}

func TestColorType(t *testing.T) {
	assert.Equal(t, "truecolor+alpha", TrueColorAlpha.String())
	assert.Equal(t, "ColorType(5)", ColorType(5).String())

	h := Header{Width: 3, BitDepth: 2, ColorType: Grayscale}
	assert.Equal(t, 1, h.rowBytes(3))
	assert.Equal(t, 2, h.rowBytes(5))

	h = Header{BitDepth: 16, ColorType: TrueColorAlpha}
	assert.Equal(t, 64, h.bitsPerPixel())
}
