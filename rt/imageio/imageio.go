// Package imageio turns rendered ImageBuffers into files and compares them
// against reference images.
package imageio

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"github.com/gekko3d/spherert/rt/core"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

var (
	ErrUnknownFormat = errors.New("unknown image format")
	ErrSizeMismatch  = errors.New("image sizes differ")
)

// Format is an output encoding, named by its usual file extension.
type Format string

const (
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
	FormatTGA  Format = "tga"
)

// FormatFor picks the format from a path's extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	case "bmp":
		return FormatBMP, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	case "tga":
		return FormatTGA, nil
	}
	return "", fmt.Errorf("imageio: %q: %w", path, ErrUnknownFormat)
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// ToNRGBA quantizes a float image to 8 bits per channel. Values are clamped
// to [0,1]; gamma > 0 applies c^(1/gamma) first, gamma <= 0 leaves the
// values linear. Row 0 stays the top row.
func ToNRGBA(src *core.ImageBuffer, gamma float64) *image.NRGBA {
	w, h := int(src.Width), int(src.Height)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	inv := 1.0
	if gamma > 0 {
		inv = 1 / gamma
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.At(x, y)
			i := dst.PixOffset(x, y)
			for ch := 0; ch < 3; ch++ {
				v := math.Min(math.Max(float64(c[ch]), 0), 1)
				if inv != 1 {
					v = math.Pow(v, inv)
				}
				dst.Pix[i+ch] = clamp8(v * 255)
			}
			dst.Pix[i+3] = clamp8(math.Min(math.Max(float64(c[3]), 0), 1) * 255)
		}
	}
	return dst
}

// Downsample shrinks img by an integer factor with CatmullRom filtering.
// Renders are opaque, so no premultiplication is needed.
func Downsample(img *image.NRGBA, factor int) *image.NRGBA {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	w, h := max(b.Dx()/factor, 1), max(b.Dy()/factor, 1)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Encode writes img to w in format f.
func Encode(w io.Writer, f Format, img image.Image) error {
	var err error
	switch f {
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatWebP:
		err = nativewebp.Encode(w, img, nil)
	case FormatBMP:
		err = bmp.Encode(w, img)
	case FormatTIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case FormatTGA:
		err = tga.Encode(w, img)
	default:
		return fmt.Errorf("imageio: format %q: %w", f, ErrUnknownFormat)
	}
	if err != nil {
		return fmt.Errorf("imageio: %s encode: %w", f, err)
	}
	return nil
}

// Save writes img to path, choosing the encoder from the extension. Missing
// parent directories are created.
func Save(path string, img image.Image) error {
	f, err := FormatFor(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("imageio: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("imageio: %w", err)
	}
	bw := bufio.NewWriter(out)
	if err := Encode(bw, f, img); err != nil {
		out.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		out.Close()
		return fmt.Errorf("imageio: %w", err)
	}
	return out.Close()
}

// Decode reads an image in format f. TGA has no magic number, so the format
// always comes from the caller rather than from sniffing the stream.
func Decode(r io.Reader, f Format) (image.Image, error) {
	var (
		img image.Image
		err error
	)
	switch f {
	case FormatPNG:
		img, err = png.Decode(r)
	case FormatWebP:
		img, err = nativewebp.Decode(r)
	case FormatBMP:
		img, err = bmp.Decode(r)
	case FormatTIFF:
		img, err = tiff.Decode(r)
	case FormatTGA:
		img, err = tga.Decode(r)
	default:
		return nil, fmt.Errorf("imageio: format %q: %w", f, ErrUnknownFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("imageio: %s decode: %w", f, err)
	}
	return img, nil
}

// LoadReference decodes a PNG, WebP, BMP, TIFF or TGA file into NRGBA,
// choosing the decoder from the extension.
func LoadReference(path string) (*image.NRGBA, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imageio: %w", err)
	}
	defer f.Close()

	img, err := Decode(bufio.NewReader(f), format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return toNRGBA(img), nil
}

func toNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// RMSE is the root mean square error over the RGB channels, in [0,1].
func RMSE(a, b *image.NRGBA) (float64, error) {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return 0, fmt.Errorf("imageio: %dx%d vs %dx%d: %w", ab.Dx(), ab.Dy(), bb.Dx(), bb.Dy(), ErrSizeMismatch)
	}
	n := ab.Dx() * ab.Dy() * 3
	if n == 0 {
		return 0, nil
	}
	var sum float64
	for y := 0; y < ab.Dy(); y++ {
		for x := 0; x < ab.Dx(); x++ {
			i := a.PixOffset(ab.Min.X+x, ab.Min.Y+y)
			j := b.PixOffset(bb.Min.X+x, bb.Min.Y+y)
			for ch := 0; ch < 3; ch++ {
				d := (float64(a.Pix[i+ch]) - float64(b.Pix[j+ch])) / 255
				sum += d * d
			}
		}
	}
	return math.Sqrt(sum / float64(n)), nil
}
