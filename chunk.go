package pngn

import (
	"encoding/binary"
	"fmt"
	"image/color"
)

// ColorType is the PNG color type from the IHDR chunk.
type ColorType uint8

// Color types defined by PNG.
const (
	Grayscale      ColorType = 0
	TrueColor      ColorType = 2
	Paletted       ColorType = 3
	GrayscaleAlpha ColorType = 4
	TrueColorAlpha ColorType = 6
)

func (ct ColorType) String() string {
	switch ct {
	case Grayscale:
		return "grayscale"
	case TrueColor:
		return "truecolor"
	case Paletted:
		return "paletted"
	case GrayscaleAlpha:
		return "grayscale+alpha"
	case TrueColorAlpha:
		return "truecolor+alpha"
	}

	return fmt.Sprintf("ColorType(%d)", uint8(ct))
}

// channels returns the number of samples per pixel.
func (ct ColorType) channels() int {
	switch ct {
	case TrueColor:
		return 3
	case GrayscaleAlpha:
		return 2
	case TrueColorAlpha:
		return 4
	}

	return 1
}

// Interlace methods.
const (
	InterlaceNone  = 0
	InterlaceAdam7 = 1
)

// Header holds the facts of the IHDR chunk.
type Header struct {
	Width, Height int
	BitDepth      int
	ColorType     ColorType
	Interlace     int
}

// needsPalette reports whether a PLTE chunk must precede the pixel data.
func (h *Header) needsPalette() bool {
	return h.ColorType == Paletted
}

func (h *Header) bitsPerPixel() int {
	return h.BitDepth * h.ColorType.channels()
}

// rowBytes is the length of one unfiltered scanline of width pixels.
func (h *Header) rowBytes(width int) int {
	return (h.bitsPerPixel()*width + 7) / 8
}

// allowedDepths lists the legal bit depths of every color type.
var allowedDepths = map[ColorType][]int{
	Grayscale:      {1, 2, 4, 8, 16},
	TrueColor:      {8, 16},
	Paletted:       {1, 2, 4, 8},
	GrayscaleAlpha: {8, 16},
	TrueColorAlpha: {8, 16},
}

// colorModel mirrors the models of the images built by PixelData.Image.
func (h *Header) colorModel(pal color.Palette) color.Model {
	switch h.ColorType {
	case Grayscale:
		if h.BitDepth == 16 {
			return color.Gray16Model
		}
		return color.GrayModel
	case TrueColor:
		if h.BitDepth == 16 {
			return color.RGBA64Model
		}
		return color.RGBAModel
	case Paletted:
		return pal
	}

	if h.BitDepth == 16 {
		return color.NRGBA64Model
	}

	return color.NRGBAModel
}

// chunkKind tags the chunk types the decoder gives meaning to.
type chunkKind uint8

const (
	kindOther chunkKind = iota
	kindIHDR
	kindPLTE
	kindIDAT
	kindtRNS
	kindIEND
)

func kindOf(tag [4]byte) chunkKind {
	switch string(tag[:]) {
	case "IHDR":
		return kindIHDR
	case "PLTE":
		return kindPLTE
	case "IDAT":
		return kindIDAT
	case "tRNS":
		return kindtRNS
	case "IEND":
		return kindIEND
	}

	return kindOther
}

// chunk is one length-prefixed, type-tagged, CRC-trailed PNG record.
type chunk struct {
	kind chunkKind
	tag  [4]byte
	data []byte
	crc  uint32
}

func (c *chunk) Type() string {
	return string(c.tag[:])
}

// ChunkInfo describes a chunk seen while decoding.
type ChunkInfo struct {
	Type   string
	Length uint32
	CRC    uint32
}

// validation is the context a chunk is checked against.
type validation struct {
	state   *readState
	header  *Header
	palette *chunk
}

// chunkValidators selects the checks for every chunk kind. Each runs after
// the ordering checks shared by all kinds.
var chunkValidators = [...]func(c *chunk, v *validation) error{
	kindOther: validateOther,
	kindIHDR:  validateIHDR,
	kindPLTE:  validatePLTE,
	kindIDAT:  validateIDAT,
	kindtRNS:  validatetRNS,
	kindIEND:  validateIEND,
}

// validate checks c against the current state. It does not change the state.
func (c *chunk) validate(v *validation) error {
	if c.kind != kindIHDR {
		if !v.state.seenIHDR {
			return invalidf("%s chunk before IHDR", c.Type())
		}

		if v.state.seenIEND {
			return invalidf("%s chunk after IEND", c.Type())
		}
	}

	return chunkValidators[c.kind](c, v)
}

func validateOther(c *chunk, v *validation) error {
	return nil
}

func validateIHDR(c *chunk, v *validation) error {
	if v.state.seenIHDR {
		return invalidf("duplicate IHDR chunk")
	}

	if len(c.data) != 13 {
		return invalidf("bad IHDR length %d", len(c.data))
	}

	w := binary.BigEndian.Uint32(c.data[0:4])
	h := binary.BigEndian.Uint32(c.data[4:8])
	if w == 0 || h == 0 || w > 0x7fffffff || h > 0x7fffffff {
		return invalidf("bad dimensions %dx%d", w, h)
	}

	ct := ColorType(c.data[9])
	depths, ok := allowedDepths[ct]
	if !ok {
		return invalidf("bad color type %d", ct)
	}

	depth := int(c.data[8])
	legal := false
	for _, d := range depths {
		legal = legal || d == depth
	}
	if !legal {
		return invalidf("bit depth %d not allowed for %s", depth, ct)
	}

	if c.data[10] != 0 {
		return invalidf("compression method %d", c.data[10])
	}

	if c.data[11] != 0 {
		return invalidf("filter method %d", c.data[11])
	}

	if c.data[12] != InterlaceNone && c.data[12] != InterlaceAdam7 {
		return invalidf("interlace method %d", c.data[12])
	}

	*v.header = Header{
		Width:     int(w),
		Height:    int(h),
		BitDepth:  depth,
		ColorType: ct,
		Interlace: int(c.data[12]),
	}

	return nil
}

func validatePLTE(c *chunk, v *validation) error {
	s := v.state
	if s.seenPLTE || s.seentRNS || s.seenIDAT {
		return invalidf("PLTE chunk out of order")
	}

	if v.header.ColorType == Grayscale || v.header.ColorType == GrayscaleAlpha {
		return invalidf("PLTE chunk in %s image", v.header.ColorType)
	}

	if len(c.data)%3 != 0 {
		return invalidf("bad PLTE length %d", len(c.data))
	}

	n := len(c.data) / 3
	if n < 1 || n > 256 || n > 1<<v.header.BitDepth {
		return invalidf("%d palette entries for bit depth %d", n, v.header.BitDepth)
	}

	return nil
}

func validatetRNS(c *chunk, v *validation) error {
	s := v.state
	if v.header.needsPalette() && !s.seenPLTE {
		return invalidf("tRNS chunk before PLTE")
	}

	if s.seenIDAT || s.seentRNS {
		return invalidf("tRNS chunk out of order")
	}

	switch v.header.ColorType {
	case Grayscale:
		if len(c.data) != 2 {
			return invalidf("bad tRNS length %d", len(c.data))
		}
	case TrueColor:
		if len(c.data) != 6 {
			return invalidf("bad tRNS length %d", len(c.data))
		}
	case Paletted:
		if len(c.data) > len(v.palette.data)/3 {
			return invalidf("tRNS has %d entries for %d palette entries", len(c.data), len(v.palette.data)/3)
		}
	default:
		return invalidf("tRNS chunk in %s image", v.header.ColorType)
	}

	return nil
}

func validateIDAT(c *chunk, v *validation) error {
	s := v.state
	if v.header.needsPalette() && !s.seenPLTE {
		return invalidf("IDAT chunk before PLTE")
	}

	if s.pixelDataComplete {
		return invalidf("IDAT chunks are not consecutive")
	}

	return nil
}

func validateIEND(c *chunk, v *validation) error {
	s := v.state
	if v.header.needsPalette() && !s.seenPLTE {
		return invalidf("IEND chunk before PLTE")
	}

	if !s.seenIDAT {
		return invalidf("IEND chunk before IDAT")
	}

	if len(c.data) != 0 {
		return invalidf("bad IEND length %d", len(c.data))
	}

	return nil
}

// paletteOf converts a validated PLTE chunk to an opaque palette.
func paletteOf(c *chunk) color.Palette {
	pal := make(color.Palette, len(c.data)/3)
	for i := range pal {
		p := c.data[3*i:]
		pal[i] = color.RGBA{p[0], p[1], p[2], 0xff}
	}

	return pal
}
