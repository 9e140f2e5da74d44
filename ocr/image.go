package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/BaSui01/agentflow/internal/pool"
)

// maxLongSide bounds the longer side of the raster handed to tesseract.
const maxLongSide = 2000

// DecodeAndPrepare decodes an image of any supported MIME type, converts
// it to grayscale, resizes its longer side down to maxLongSide preserving
// aspect ratio, and re-encodes it as PNG for tesseract's stdin.
func DecodeAndPrepare(fileBytes []byte, mime string) ([]byte, error) {
	img, err := decode(fileBytes, mime)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	gray := toGrayscale(img)
	resized := resizeLongSide(gray, maxLongSide)

	out := pool.ByteBufferPool.Get()
	defer pool.ByteBufferPool.Put(out)
	if err := png.Encode(out, resized); err != nil {
		return nil, fmt.Errorf("encode raster: %w", err)
	}

	// Copy out of the buffer before it's returned to the pool and reset
	// by the next concurrent caller.
	result := make([]byte, out.Len())
	copy(result, out.Bytes())
	return result, nil
}

func decode(fileBytes []byte, mime string) (image.Image, error) {
	r := bytes.NewReader(fileBytes)
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		return jpeg.Decode(r)
	case "image/png":
		return png.Decode(r)
	case "image/gif":
		return gif.Decode(r)
	case "image/webp":
		return webp.Decode(r)
	case "image/bmp":
		return bmp.Decode(r)
	case "image/tiff":
		return tiff.Decode(r)
	default:
		img, _, err := image.Decode(r)
		return img, err
	}
}

func toGrayscale(src image.Image) *image.Gray {
	bounds := src.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(src.At(x, y)))
		}
	}
	return gray
}

// resizeLongSide performs a simple nearest-neighbor downscale — the
// latency budget does not afford a higher-quality resampler, and OCR
// accuracy at this resolution is not sensitive to interpolation choice.
func resizeLongSide(src *image.Gray, maxSide int) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	longSide := w
	if h > longSide {
		longSide = h
	}
	if longSide <= maxSide {
		return src
	}

	scale := float64(maxSide) / float64(longSide)
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewGray(image.Rect(0, 0, newW, newH))
	for y := 0; y < newH; y++ {
		sy := b.Min.Y + int(float64(y)/scale)
		for x := 0; x < newW; x++ {
			sx := b.Min.X + int(float64(x)/scale)
			dst.Set(x, y, src.GrayAt(sx, sy))
		}
	}
	return dst
}

// CleanText strips control characters and collapses runs of whitespace,
// per the OCR engine's final post-processing step.
func CleanText(s string) string {
	var b strings.Builder
	lastWasSpace := false
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\t' {
			continue
		}
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if isSpace {
			if lastWasSpace {
				continue
			}
			b.WriteRune(' ')
			lastWasSpace = true
			continue
		}
		lastWasSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
