package pngn

import (
	"bytes"
	"errors"
	"image/color"
	"io"
	"math"

	"github.com/gen2brain/pngn/internal/oops"
	"github.com/rs/zerolog"
)

// PixelData is the result of decoding a PNG body: the header facts, the
// palette and transparency information, and the decompressed scanlines with
// their leading filter-type bytes.
type PixelData struct {
	Header

	// Palette holds the PLTE entries. Entries covered by a tRNS chunk are
	// color.NRGBA with the given alpha, the rest are opaque color.RGBA.
	Palette color.Palette
	// Transparent is the raw tRNS payload, if any.
	Transparent []byte
	// Data is the decompressed image data, before unfiltering.
	Data []byte
	// Adler32 is the verified checksum of Data.
	Adler32 uint32
	// Chunks lists every chunk in stream order.
	Chunks []ChunkInfo
	// Exif holds the first well-formed eXIf chunk, if any.
	Exif *Exif
}

// decoder holds the state of one PNG decode.
type decoder struct {
	chunks *chunkReader
	sink   PaletteSink
	logger *zerolog.Logger
}

func newDecoder(r io.Reader, o *Options) *decoder {
	logger := o.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &decoder{
		chunks: newChunkReader(r, o, logger),
		sink:   o.Sink,
		logger: logger,
	}
}

// decode reads the whole chunk stream up to and including IEND.
func (d *decoder) decode() (*PixelData, error) {
	h, err := d.chunks.header()
	if err != nil {
		return nil, err
	}

	d.logger.Debug().
		Int("width", h.Width).
		Int("height", h.Height).
		Int("depth", h.BitDepth).
		Stringer("color", h.ColorType).
		Msg("image header")

	pd := &PixelData{Header: *h}

	var first *chunk
	for first == nil {
		c, err := d.chunks.readNextChunk()
		if err != nil {
			return nil, err
		}

		switch c.kind {
		case kindPLTE:
			pd.Palette = paletteOf(c)
			if d.sink != nil {
				d.sink.SetPalette(append(color.Palette(nil), pd.Palette...))
			}
		case kindtRNS:
			pd.Transparent = c.data
			if h.needsPalette() {
				applyTransparency(pd.Palette, c.data)
			}
			if d.sink != nil {
				d.sink.SetTransparency(c.data)
			}
		case kindIDAT:
			first = c
		case kindOther:
			d.ancillary(c, pd)
		}
	}

	pd.Data, pd.Adler32, err = d.inflate(first, h)
	if err != nil {
		return nil, err
	}

	for d.chunks.hasMoreChunks() {
		c, err := d.chunks.readNextChunk()
		if err != nil {
			return nil, err
		}

		switch c.kind {
		case kindIDAT:
			if len(c.data) > 0 {
				return nil, invalidf("too much pixel data")
			}
		case kindOther:
			d.ancillary(c, pd)
		}
	}

	pd.Chunks = d.chunks.seen

	return pd, nil
}

// ancillary interprets the optional chunks the decoder knows about. Their
// errors are logged and otherwise ignored.
func (d *decoder) ancillary(c *chunk, pd *PixelData) {
	if c.Type() != "eXIf" {
		return
	}

	if pd.Exif != nil {
		d.logger.Debug().Msg("ignoring duplicate eXIf chunk")
		return
	}

	exif, err := parseExif(c.data)
	if err != nil {
		d.logger.Debug().Err(err).Msg("ignoring eXIf chunk")
		return
	}

	pd.Exif = exif
}

// inflate decompresses the IDAT stream starting at first and returns exactly
// the number of bytes the header calls for.
func (d *decoder) inflate(first *chunk, h *Header) ([]byte, uint32, error) {
	size, err := h.dataSize()
	if err != nil {
		return nil, 0, err
	}

	ps := newPixelDataStream(d.chunks, first)
	z, err := newInflater(ps, d.logger)
	if err != nil {
		return nil, 0, err
	}
	defer z.release()

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, z, size); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, invalidf("not enough pixel data: %d of %d bytes", buf.Len(), size)
		}

		return nil, 0, err
	}

	if err := z.Close(); err != nil {
		return nil, 0, err
	}

	if ps.buffered() > 0 {
		return nil, 0, invalidf("too much pixel data")
	}

	return buf.Bytes(), z.sum(), nil
}

// dataSize is the length of the decompressed stream: every pass of every
// scanline plus one filter byte per scanline.
func (h *Header) dataSize() (int64, error) {
	var total int64
	for _, p := range h.passes() {
		row := (int64(h.bitsPerPixel())*int64(p.width)+7)/8 + 1
		if row > math.MaxInt64/int64(p.height) || total > math.MaxInt64-row*int64(p.height) {
			return 0, oops.New(ErrUnsupported, "dimension overflow %dx%d", h.Width, h.Height)
		}
		total += row * int64(p.height)
	}

	return total, nil
}

// applyTransparency sets the alpha of the first len(trns) palette entries.
func applyTransparency(pal color.Palette, trns []byte) {
	for i, a := range trns {
		rgba := pal[i].(color.RGBA)
		pal[i] = color.NRGBA{rgba.R, rgba.G, rgba.B, a}
	}
}
