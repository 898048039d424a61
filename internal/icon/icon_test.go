package icon

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, path string, width, height int, encode func(*os.File, image.Image) error) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 90, A: 255})
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, encode(f, img))
}

func writePNG(t *testing.T, path string, width, height int) {
	writeImage(t, path, width, height, func(f *os.File, img image.Image) error {
		return png.Encode(f, img)
	})
}

func writeJPEG(t *testing.T, path string, width, height int) {
	writeImage(t, path, width, height, func(f *os.File, img image.Image) error {
		return jpeg.Encode(f, img, nil)
	})
}

func decodeSize(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	require.Equal(t, "png", format, "processed icons must always be PNG")
	return cfg.Width, cfg.Height
}

func TestProcessRejectsNonSquare(t *testing.T) {
	src := filepath.Join(t.TempDir(), "wide.png")
	writePNG(t, src, 100, 50)

	_, err := Process(src, t.TempDir())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Msg, "square")
	require.Contains(t, verr.Msg, "100x50")
}

func TestProcessRejectsTooSmall(t *testing.T) {
	src := filepath.Join(t.TempDir(), "tiny.png")
	writePNG(t, src, 20, 20)

	_, err := Process(src, t.TempDir())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Msg, "too small")
}

func TestProcessDownscalesLargeIcon(t *testing.T) {
	src := filepath.Join(t.TempDir(), "big.png")
	writePNG(t, src, 200, 200)

	out, err := Process(src, t.TempDir())
	require.NoError(t, err)

	w, h := decodeSize(t, out)
	require.Equal(t, MaxEdge, w)
	require.Equal(t, MaxEdge, h)
}

func TestProcessKeepsMinimumSizeUntouched(t *testing.T) {
	src := filepath.Join(t.TempDir(), "exact.png")
	writePNG(t, src, 32, 32)

	out, err := Process(src, t.TempDir())
	require.NoError(t, err)

	w, h := decodeSize(t, out)
	require.Equal(t, 32, w)
	require.Equal(t, 32, h)
}

func TestProcessNeverUpscales(t *testing.T) {
	src := filepath.Join(t.TempDir(), "mid.png")
	writePNG(t, src, 64, 64)

	out, err := Process(src, t.TempDir())
	require.NoError(t, err)

	w, h := decodeSize(t, out)
	require.Equal(t, 64, w)
	require.Equal(t, 64, h)
}

func TestProcessReencodesJPEGAsPNG(t *testing.T) {
	src := filepath.Join(t.TempDir(), "photo.jpg")
	writeJPEG(t, src, 96, 96)

	out, err := Process(src, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "icon.png", filepath.Base(out))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(raw, []byte("\x89PNG")), "output must carry a PNG signature")
}

func TestProcessRejectsGarbage(t *testing.T) {
	src := filepath.Join(t.TempDir(), "noise.png")
	require.NoError(t, os.WriteFile(src, []byte("definitely not an image"), 0o644))

	_, err := Process(src, t.TempDir())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}
