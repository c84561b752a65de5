package pngn

import (
	"image"
	"image/color"

	"github.com/gen2brain/pngn/internal/oops"
)

// Image unfilters the scanlines and converts them to an image.Image.
// Grayscale and truecolor images with a tRNS color key become NRGBA images.
// Interlaced images are reported as ErrUnsupported.
func (pd *PixelData) Image() (image.Image, error) {
	if pd.Interlace != InterlaceNone {
		return nil, oops.New(ErrUnsupported, "interlaced image")
	}

	pix, err := unfilter(pd.Data, &pd.Header)
	if err != nil {
		return nil, err
	}

	stride := pd.rowBytes(pd.Width)
	rect := image.Rect(0, 0, pd.Width, pd.Height)

	switch pd.ColorType {
	case Grayscale:
		if pd.BitDepth == 16 {
			return pd.gray16(pix, stride, rect), nil
		}
		return pd.gray(pix, stride, rect), nil
	case TrueColor:
		if pd.BitDepth == 16 {
			return pd.trueColor16(pix, stride, rect), nil
		}
		return pd.trueColor(pix, stride, rect), nil
	case Paletted:
		return pd.paletted(pix, stride, rect), nil
	case GrayscaleAlpha:
		if pd.BitDepth == 16 {
			img := image.NewNRGBA64(rect)
			for y := 0; y < pd.Height; y++ {
				row := pix[y*stride:]
				for x := 0; x < pd.Width; x++ {
					v := row[4*x : 4*x+4]
					g := uint16(v[0])<<8 | uint16(v[1])
					a := uint16(v[2])<<8 | uint16(v[3])
					img.SetNRGBA64(x, y, color.NRGBA64{g, g, g, a})
				}
			}
			return img, nil
		}
		img := image.NewNRGBA(rect)
		for y := 0; y < pd.Height; y++ {
			row := pix[y*stride:]
			out := img.Pix[y*img.Stride:]
			for x := 0; x < pd.Width; x++ {
				g, a := row[2*x], row[2*x+1]
				out[4*x], out[4*x+1], out[4*x+2], out[4*x+3] = g, g, g, a
			}
		}
		return img, nil
	case TrueColorAlpha:
		if pd.BitDepth == 16 {
			img := image.NewNRGBA64(rect)
			for y := 0; y < pd.Height; y++ {
				copy(img.Pix[y*img.Stride:], pix[y*stride:(y+1)*stride])
			}
			return img, nil
		}
		img := image.NewNRGBA(rect)
		for y := 0; y < pd.Height; y++ {
			copy(img.Pix[y*img.Stride:], pix[y*stride:(y+1)*stride])
		}
		return img, nil
	}

	return nil, oops.New(ErrUnsupported, "color type %d", pd.ColorType)
}

// sample returns the x-th sample of a row packed at depth bits per sample.
func sample(row []byte, x, depth int) uint8 {
	if depth == 8 {
		return row[x]
	}

	bit := x * depth
	shift := 8 - depth - bit%8

	return (row[bit/8] >> shift) & (1<<depth - 1)
}

// transparentKey returns the tRNS color key as 16-bit samples.
func (pd *PixelData) transparentKey() (key [3]uint16, ok bool) {
	switch {
	case pd.ColorType == Grayscale && len(pd.Transparent) == 2:
		key[0] = uint16(pd.Transparent[0])<<8 | uint16(pd.Transparent[1])
		return key, true
	case pd.ColorType == TrueColor && len(pd.Transparent) == 6:
		for i := range key {
			key[i] = uint16(pd.Transparent[2*i])<<8 | uint16(pd.Transparent[2*i+1])
		}
		return key, true
	}

	return key, false
}

func (pd *PixelData) gray(pix []byte, stride int, rect image.Rectangle) image.Image {
	// Scale sub-byte samples to the full 8-bit range.
	scale := uint8(255 / (int(1)<<pd.BitDepth - 1))
	key, hasKey := pd.transparentKey()

	if hasKey {
		img := image.NewNRGBA(rect)
		for y := 0; y < pd.Height; y++ {
			row := pix[y*stride:]
			out := img.Pix[y*img.Stride:]
			for x := 0; x < pd.Width; x++ {
				s := sample(row, x, pd.BitDepth)
				a := uint8(0xff)
				if uint16(s) == key[0] {
					a = 0
				}
				g := s * scale
				out[4*x], out[4*x+1], out[4*x+2], out[4*x+3] = g, g, g, a
			}
		}
		return img
	}

	img := image.NewGray(rect)
	for y := 0; y < pd.Height; y++ {
		row := pix[y*stride:]
		out := img.Pix[y*img.Stride:]
		for x := 0; x < pd.Width; x++ {
			out[x] = sample(row, x, pd.BitDepth) * scale
		}
	}

	return img
}

func (pd *PixelData) gray16(pix []byte, stride int, rect image.Rectangle) image.Image {
	key, hasKey := pd.transparentKey()

	if hasKey {
		img := image.NewNRGBA64(rect)
		for y := 0; y < pd.Height; y++ {
			row := pix[y*stride:]
			for x := 0; x < pd.Width; x++ {
				g := uint16(row[2*x])<<8 | uint16(row[2*x+1])
				a := uint16(0xffff)
				if g == key[0] {
					a = 0
				}
				img.SetNRGBA64(x, y, color.NRGBA64{g, g, g, a})
			}
		}
		return img
	}

	img := image.NewGray16(rect)
	for y := 0; y < pd.Height; y++ {
		copy(img.Pix[y*img.Stride:], pix[y*stride:(y+1)*stride])
	}

	return img
}

func (pd *PixelData) trueColor(pix []byte, stride int, rect image.Rectangle) image.Image {
	key, hasKey := pd.transparentKey()

	var out []byte
	var outStride int
	var img image.Image
	if hasKey {
		nrgba := image.NewNRGBA(rect)
		img, out, outStride = nrgba, nrgba.Pix, nrgba.Stride
	} else {
		rgba := image.NewRGBA(rect)
		img, out, outStride = rgba, rgba.Pix, rgba.Stride
	}

	for y := 0; y < pd.Height; y++ {
		row := pix[y*stride:]
		o := out[y*outStride:]
		for x := 0; x < pd.Width; x++ {
			r, g, b := row[3*x], row[3*x+1], row[3*x+2]
			a := uint8(0xff)
			if hasKey && uint16(r) == key[0] && uint16(g) == key[1] && uint16(b) == key[2] {
				a = 0
			}
			o[4*x], o[4*x+1], o[4*x+2], o[4*x+3] = r, g, b, a
		}
	}

	return img
}

func (pd *PixelData) trueColor16(pix []byte, stride int, rect image.Rectangle) image.Image {
	key, hasKey := pd.transparentKey()

	if hasKey {
		img := image.NewNRGBA64(rect)
		for y := 0; y < pd.Height; y++ {
			row := pix[y*stride:]
			for x := 0; x < pd.Width; x++ {
				v := row[6*x : 6*x+6]
				r := uint16(v[0])<<8 | uint16(v[1])
				g := uint16(v[2])<<8 | uint16(v[3])
				b := uint16(v[4])<<8 | uint16(v[5])
				a := uint16(0xffff)
				if r == key[0] && g == key[1] && b == key[2] {
					a = 0
				}
				img.SetNRGBA64(x, y, color.NRGBA64{r, g, b, a})
			}
		}
		return img
	}

	img := image.NewRGBA64(rect)
	for y := 0; y < pd.Height; y++ {
		row := pix[y*stride:]
		o := img.Pix[y*img.Stride:]
		for x := 0; x < pd.Width; x++ {
			copy(o[8*x:8*x+6], row[6*x:6*x+6])
			o[8*x+6], o[8*x+7] = 0xff, 0xff
		}
	}

	return img
}

func (pd *PixelData) paletted(pix []byte, stride int, rect image.Rectangle) image.Image {
	pal := append(color.Palette(nil), pd.Palette...)
	img := image.NewPaletted(rect, pal)

	for y := 0; y < pd.Height; y++ {
		row := pix[y*stride:]
		out := img.Pix[y*img.Stride:]
		for x := 0; x < pd.Width; x++ {
			idx := sample(row, x, pd.BitDepth)
			// Out-of-range indices render as opaque black.
			for int(idx) >= len(img.Palette) {
				img.Palette = append(img.Palette, color.RGBA{0, 0, 0, 0xff})
			}
			out[x] = idx
		}
	}

	return img
}
