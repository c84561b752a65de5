package main

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"

	"github.com/gen2brain/pngn"
	"github.com/gen2brain/pngn/internal/logging"
	"github.com/spf13/cobra"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// encoders maps the --format values to their image encoders.
var encoders = map[string]func(w io.Writer, img image.Image) error{
	"bmp": bmp.Encode,
	"png": png.Encode,
	"tiff": func(w io.Writer, img image.Image) error {
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	},
}

// decodeImage decodes the named file to an image.
func decodeImage(name string) (image.Image, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return pngn.Decode(f, options())
}

func init() {
	var output, format string

	convertCommand := &cobra.Command{
		Use:   "convert <file>",
		Short: "Decode a PNG file and re-encode it as BMP, TIFF or PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			encode, ok := encoders[format]
			if !ok {
				return fmt.Errorf("unknown format %q", format)
			}

			img, err := decodeImage(args[0])
			if err != nil {
				return err
			}

			w, err := openOutput(cmd, output)
			if err != nil {
				return err
			}

			if err := errors.Join(encode(w, img), w.Close()); err != nil {
				return err
			}

			b := img.Bounds()
			logging.Info().
				Str("file", args[0]).
				Str("format", format).
				Int("width", b.Dx()).
				Int("height", b.Dy()).
				Msg("converted")

			return nil
		},
	}
	convertCommand.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	convertCommand.Flags().StringVarP(&format, "format", "f", "bmp", "output format: bmp, tiff or png")
	rootCommand.AddCommand(convertCommand)
}
