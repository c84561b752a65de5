package pngn

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/gen2brain/pngn/internal/oops"
	"github.com/rs/zerolog"
)

// Standard error types for PNG decoding.
var (
	ErrNoPNG        = errors.New("not a PNG file")
	ErrInvalidImage = errors.New("invalid image")
	ErrUnsupported  = errors.New("unsupported format")
	ErrNoExif       = errors.New("no EXIF data")

	// ErrChecksum and ErrTruncated are specific kinds of ErrInvalidImage.
	ErrChecksum  = fmt.Errorf("%w: checksum mismatch", ErrInvalidImage)
	ErrTruncated = fmt.Errorf("%w: unexpected end of data", ErrInvalidImage)
)

// invalidf reports a structural violation of the PNG or zlib format.
func invalidf(format string, args ...interface{}) error {
	return oops.New(ErrInvalidImage, format, args...)
}

// readErr converts an error from the underlying byte source. A premature end
// of the stream is a truncated image; anything else is an I/O failure and is
// passed through wrapped.
func readErr(err error, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return oops.New(ErrTruncated, "reading %s", what)
	}

	var oopsErr *oops.Error
	if errors.As(err, &oopsErr) {
		return err
	}

	return oops.New(err, "reading %s", what)
}

// PaletteSink receives palette and transparency information as soon as the
// corresponding chunks have been validated.
type PaletteSink interface {
	// SetPalette is called once with the PLTE entries, all fully opaque.
	SetPalette(p color.Palette)
	// SetTransparency is called once with the raw tRNS payload.
	SetTransparency(trns []byte)
}

// Options specifies decoding parameters.
type Options struct {
	// SkipCRC disables verification of the per-chunk CRC-32.
	// The Adler-32 of the compressed pixel data is always verified.
	SkipCRC bool
	// MaxChunkLength rejects any chunk whose declared payload is longer.
	// Zero means the PNG limit of 2^31-1 bytes.
	MaxChunkLength uint32
	// Sink, if set, is notified about the palette and transparency chunks.
	Sink PaletteSink
	// Logger receives debug events about chunks and compressed blocks.
	// A nil Logger disables logging.
	Logger *zerolog.Logger
}

// Signature is the 8-byte magic that starts every PNG file.
const Signature = "\x89PNG\r\n\x1a\n"

// Interface to check if a reader knows its remaining length.
type readerWithLen interface {
	Len() int
}

// readAllData reads data from r, pre-allocating if the size is known.
func readAllData(r io.Reader) ([]byte, error) {
	if rl, ok := r.(readerWithLen); ok {
		size := rl.Len()
		if size > 0 {
			data := make([]byte, size)
			_, err := io.ReadFull(r, data)
			if err != nil {
				return nil, fmt.Errorf("failed to read image data: %w", err)
			}

			return data, nil
		}
	}

	return io.ReadAll(r)
}

// ReadSignature consumes the 8-byte PNG signature from r. A short or
// mismatched signature is ErrNoPNG; other read errors are returned wrapped.
func ReadSignature(r io.Reader) error {
	var sig [len(Signature)]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrNoPNG
		}

		return oops.New(err, "reading signature")
	}

	if string(sig[:]) != Signature {
		return ErrNoPNG
	}

	return nil
}

// DecodePixelData decodes the PNG body read from r, which must be positioned
// right after the 8-byte signature. The returned PixelData carries the
// decompressed scanlines with their filter bytes still in place.
func DecodePixelData(r io.Reader, opts ...*Options) (*PixelData, error) {
	var o Options
	if len(opts) > 0 && opts[0] != nil {
		o = *opts[0]
	}

	d := newDecoder(r, &o)

	return d.decode()
}

// Decode reads a PNG image from r and returns it as an [image.Image].
// Images this package cannot convert (Adam7 interlacing) are handed to the
// standard library's decoder.
func Decode(r io.Reader, opts ...*Options) (image.Image, error) {
	data, err := readAllData(r)
	if err != nil {
		return nil, err
	}

	br := bytes.NewReader(data)
	if err := ReadSignature(br); err != nil {
		return nil, err
	}

	pd, err := DecodePixelData(br, opts...)
	if err != nil {
		return nil, err
	}

	img, err := pd.Image()
	if err != nil {
		if errors.Is(err, ErrUnsupported) {
			return png.Decode(bytes.NewReader(data))
		}

		return nil, err
	}

	return img, nil
}

// DecodeConfig returns the color model and dimensions of a PNG image without
// decoding the pixel data.
func DecodeConfig(r io.Reader) (image.Config, error) {
	if err := ReadSignature(r); err != nil {
		return image.Config{}, err
	}

	d := newDecoder(r, &Options{})
	h, err := d.chunks.header()
	if err != nil {
		return image.Config{}, err
	}

	// The palette's alpha comes from a tRNS chunk, which may follow PLTE up
	// to the first IDAT.
	var pal color.Palette
	for h.ColorType == Paletted {
		c, err := d.chunks.readNextChunk()
		if err != nil {
			return image.Config{}, err
		}

		if c.kind == kindPLTE {
			pal = paletteOf(c)
		} else if c.kind == kindtRNS {
			applyTransparency(pal, c.data)
		} else if c.kind == kindIDAT {
			break
		}
	}

	return image.Config{
		ColorModel: h.colorModel(pal),
		Width:      h.Width,
		Height:     h.Height,
	}, nil
}

// DecodeExif returns the EXIF data of the first eXIf chunk of a PNG image.
// The chunk structure is validated up to IEND but the pixel data is not
// decompressed. ErrNoExif is returned if the image has no eXIf chunk.
func DecodeExif(r io.Reader) (*Exif, error) {
	if err := ReadSignature(r); err != nil {
		return nil, err
	}

	d := newDecoder(r, &Options{})
	for d.chunks.hasMoreChunks() {
		c, err := d.chunks.readNextChunk()
		if err != nil {
			return nil, err
		}

		if c.Type() == "eXIf" {
			return parseExif(c.data)
		}
	}

	return nil, ErrNoExif
}

// init registers the PNG format with the standard library's image package.
func init() {
	decodeWrapper := func(r io.Reader) (image.Image, error) {
		return Decode(r)
	}

	image.RegisterFormat("png", Signature, decodeWrapper, DecodeConfig)
}
