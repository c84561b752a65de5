package pngn

// Filter types defined by PNG.
const (
	ftNone    = 0
	ftSub     = 1
	ftUp      = 2
	ftAverage = 3
	ftPaeth   = 4
)

// interlaceScan defines the placement and size of a pass for Adam7 interlacing.
type interlaceScan struct {
	xFactor, yFactor, xOffset, yOffset int
}

// interlacing defines Adam7 interlacing, with 7 passes of reduced images.
// See https://www.w3.org/TR/PNG/#8Interlace
var interlacing = []interlaceScan{
	{8, 8, 0, 0},
	{8, 8, 4, 0},
	{4, 8, 0, 4},
	{4, 4, 2, 0},
	{2, 4, 0, 2},
	{2, 2, 1, 0},
	{1, 2, 0, 1},
}

// pass is one reduced image of the stream; non-interlaced images have one.
type pass struct {
	width, height int
}

// passes lists the non-empty passes of the image in stream order.
func (h *Header) passes() []pass {
	if h.Interlace != InterlaceAdam7 {
		return []pass{{h.Width, h.Height}}
	}

	var ps []pass
	for _, p := range interlacing {
		w := (h.Width - p.xOffset + p.xFactor - 1) / p.xFactor
		ht := (h.Height - p.yOffset + p.yFactor - 1) / p.yFactor
		if w > 0 && ht > 0 {
			ps = append(ps, pass{w, ht})
		}
	}

	return ps
}

// unfilter reverses the per-scanline filters of a non-interlaced image. It
// returns the pixel rows without their filter bytes; data is left untouched.
func unfilter(data []byte, h *Header) ([]byte, error) {
	stride := h.rowBytes(h.Width)
	if len(data) != h.Height*(stride+1) {
		return nil, invalidf("pixel data is %d bytes, want %d", len(data), h.Height*(stride+1))
	}

	bpp := (h.bitsPerPixel() + 7) / 8
	pix := make([]byte, h.Height*stride)
	prev := make([]byte, stride)

	for y := 0; y < h.Height; y++ {
		row := data[y*(stride+1):]
		ft := row[0]
		cur := pix[y*stride : (y+1)*stride]
		copy(cur, row[1:stride+1])

		switch ft {
		case ftNone:
			// No-op.
		case ftSub:
			for i := bpp; i < len(cur); i++ {
				cur[i] += cur[i-bpp]
			}
		case ftUp:
			for i, p := range prev {
				cur[i] += p
			}
		case ftAverage:
			for i := 0; i < bpp && i < len(cur); i++ {
				cur[i] += prev[i] / 2
			}
			for i := bpp; i < len(cur); i++ {
				cur[i] += uint8((int(cur[i-bpp]) + int(prev[i])) / 2)
			}
		case ftPaeth:
			filterPaeth(cur, prev, bpp)
		default:
			return nil, invalidf("bad filter type %d in row %d", ft, y)
		}

		prev = cur
	}

	return pix, nil
}

// filterPaeth applies the Paeth filter to cdat, using pdat as the previous row.
func filterPaeth(cdat, pdat []byte, bytesPerPixel int) {
	var a, b, c, pa, pb, pc int
	for i := range cdat {
		a, b, c = 0, int(pdat[i]), 0
		if i >= bytesPerPixel {
			a = int(cdat[i-bytesPerPixel])
			c = int(pdat[i-bytesPerPixel])
		}

		pa = b - c
		pb = a - c
		pc = pa + pb
		if pa < 0 {
			pa = -pa
		}
		if pb < 0 {
			pb = -pb
		}
		if pc < 0 {
			pc = -pc
		}

		switch {
		case pa <= pb && pa <= pc:
			// a is the predictor.
		case pb <= pc:
			a = b
		default:
			a = c
		}

		cdat[i] += uint8(a)
	}
}
