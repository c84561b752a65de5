package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/gen2brain/pngn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// writeTestPNG stores a small gradient and returns its path.
func writeTestPNG(t *testing.T) string {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 5, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 5; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 50), uint8(y * 60), 100, 0xff})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	name := filepath.Join(t.TempDir(), "test.png")
	require.NoError(t, os.WriteFile(name, buf.Bytes(), 0o644))

	return name
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCommand.SetOut(&out)
	rootCommand.SetArgs(args)
	err := rootCommand.Execute()

	return out.String(), err
}

func TestInfo(t *testing.T) {
	name := writeTestPNG(t)

	out, err := run(t, "info", "--log-level", "error", name)
	require.NoError(t, err)
	assert.Contains(t, out, "5x4, 8-bit truecolor,")
	assert.Contains(t, out, "IHDR")
	assert.Contains(t, out, "IEND")
	assert.Contains(t, out, "data: 64 bytes")
}

func TestInflate(t *testing.T) {
	name := writeTestPNG(t)
	output := filepath.Join(t.TempDir(), "raw")

	_, err := run(t, "inflate", "--log-level", "error", "-o", output, name)
	require.NoError(t, err)

	raw, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Len(t, raw, 4*(1+5*3))
}

func TestConvert(t *testing.T) {
	name := writeTestPNG(t)
	dir := t.TempDir()

	decoders := map[string]func(r *os.File) (image.Image, error){
		"bmp":  func(r *os.File) (image.Image, error) { return bmp.Decode(r) },
		"tiff": func(r *os.File) (image.Image, error) { return tiff.Decode(r) },
		"png":  func(r *os.File) (image.Image, error) { return png.Decode(r) },
	}

	for format, decode := range decoders {
		t.Run(format, func(t *testing.T) {
			output := filepath.Join(dir, "out."+format)

			_, err := run(t, "convert", "--log-level", "error", "-f", format, "-o", output, name)
			require.NoError(t, err)

			f, err := os.Open(output)
			require.NoError(t, err)
			defer f.Close()

			img, err := decode(f)
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, 5, 4), img.Bounds())
		})
	}

	_, err := run(t, "convert", "-f", "gif", name)
	assert.Error(t, err)
}

func TestNotPNG(t *testing.T) {
	name := filepath.Join(t.TempDir(), "not.png")
	require.NoError(t, os.WriteFile(name, []byte("GIF89a......"), 0o644))

	_, err := run(t, "info", "--log-level", "error", name)
	assert.ErrorIs(t, err, pngn.ErrNoPNG)

	// A directory opens but cannot be read; that is not a format problem.
	_, err = run(t, "info", "--log-level", "error", t.TempDir())
	require.Error(t, err)
	assert.NotErrorIs(t, err, pngn.ErrNoPNG)
}
