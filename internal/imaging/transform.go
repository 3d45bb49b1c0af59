package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // gif originals are decodable; output is jpeg or png only
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
)

// Format is the output image format.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

const (
	DefaultQuality     = 80
	MaxQuality         = 100
	DefaultMemoryLimit = 10_000_000
	// MaxDimension bounds either output axis regardless of the memory limit.
	MaxDimension = math.MaxInt32
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrZeroDimensions    = errors.New("source image has zero dimensions")
	ErrMemoryLimit       = errors.New("resize exceeds memory limit")
)

// ResizeOptions describes a single resize call.
type ResizeOptions struct {
	// Width and Height of the output. Zero on one axis derives it from the
	// other, preserving the source aspect ratio. Zero on both keeps the
	// source dimensions.
	Width  int
	Height int
	// KeepAspect fits the source inside Width x Height and pads the rest
	// with Background instead of stretching. Only meaningful when both
	// dimensions are set.
	KeepAspect bool
	Background color.Color // nil = transparent
	// MemoryLimit caps the bytes of the output pixel buffer. Zero disables the
	// cap, though sizes that overflow int are still rejected.
	MemoryLimit int64
}

// ParseFormat parses a file extension or format name, returning ok=false for unsupported formats.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "jpeg", "jpg":
		return FormatJPEG, true
	case "png":
		return FormatPNG, true
	default:
		return "", false
	}
}

// FormatFromContentType returns the image format for a MIME content type.
func FormatFromContentType(ct string) (Format, bool) {
	ct = strings.ToLower(ct)
	switch {
	case strings.HasPrefix(ct, "image/jpeg"):
		return FormatJPEG, true
	case strings.HasPrefix(ct, "image/png"):
		return FormatPNG, true
	default:
		return "", false
	}
}

// ContentType returns the MIME type for a format.
func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// Decode decodes a jpeg, png or gif image. Images with a zero-area bounding
// box are rejected so that no later aspect computation divides by zero.
func Decode(data []byte) (image.Image, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	if src.Bounds().Dx() == 0 || src.Bounds().Dy() == 0 {
		return nil, ErrZeroDimensions
	}
	return src, nil
}

// Resize scales src according to opts.
func Resize(src image.Image, opts ResizeOptions) (*image.RGBA, error) {
	srcW := src.Bounds().Dx()
	srcH := src.Bounds().Dy()
	if srcW == 0 || srcH == 0 {
		return nil, ErrZeroDimensions
	}
	if opts.Width < 0 || opts.Height < 0 {
		return nil, fmt.Errorf("negative resize dimensions %dx%d", opts.Width, opts.Height)
	}

	targetW, targetH := calcDimensions(srcW, srcH, opts.Width, opts.Height)

	if err := checkMemory(targetW, targetH, opts.MemoryLimit); err != nil {
		return nil, err
	}

	if opts.KeepAspect && opts.Width > 0 && opts.Height > 0 {
		return resizePad(src, srcW, srcH, targetW, targetH, opts.Background), nil
	}
	return resizeFill(src, targetW, targetH), nil
}

// Encode writes img in the given format. quality applies to JPEG only;
// zero selects DefaultQuality.
func Encode(w io.Writer, img image.Image, f Format, quality int) error {
	switch f {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatJPEG:
		if quality <= 0 {
			quality = DefaultQuality
		}
		if quality > MaxQuality {
			quality = MaxQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
}

// EncodeBytes is a convenience wrapper around Encode that returns the encoded bytes.
func EncodeBytes(img image.Image, f Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, f, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseHexColor parses "rgb", "rrggbb" or "rrggbbaa", with or without a leading '#'.
func ParseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) == 6 {
		s += "ff"
	}
	if len(s) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	c := color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
	return color.RGBAModel.Convert(c).(color.RGBA), nil
}

// calcDimensions computes target width and height, preserving aspect ratio
// when only one dimension is specified. Results are clamped to
// [1, MaxDimension].
func calcDimensions(srcW, srcH, targetW, targetH int) (int, int) {
	if targetW == 0 && targetH == 0 {
		return srcW, srcH
	}
	w, h := float64(targetW), float64(targetH)
	if targetW == 0 {
		w = math.Floor(float64(srcW) * h / float64(srcH))
	}
	if targetH == 0 {
		h = math.Floor(float64(srcH) * w / float64(srcW))
	}
	return ClampDimension(w), ClampDimension(h)
}

// ClampDimension converts a computed axis length to an int in
// [1, MaxDimension].
func ClampDimension(v float64) int {
	switch {
	case math.IsNaN(v) || v < 1:
		return 1
	case v > MaxDimension:
		return MaxDimension
	default:
		return int(v)
	}
}

// checkMemory rejects a w x h RGBA buffer larger than limit bytes. A
// non-positive limit still rejects buffers whose size overflows int.
func checkMemory(w, h int, limit int64) error {
	if limit <= 0 {
		if w > math.MaxInt/4/h {
			return fmt.Errorf("%w: %dx%d overflows", ErrMemoryLimit, w, h)
		}
		return nil
	}
	if int64(w) > limit/4/int64(h) {
		return fmt.Errorf("%w: %dx%d exceeds limit %d", ErrMemoryLimit, w, h, limit)
	}
	return nil
}

// resizePad scales the image to fit within targetW x targetH and centers it
// on a canvas of exactly that size filled with bg.
func resizePad(src image.Image, srcW, srcH, targetW, targetH int, bg color.Color) *image.RGBA {
	ratioW := float64(targetW) / float64(srcW)
	ratioH := float64(targetH) / float64(srcH)
	ratio := min(ratioW, ratioH)

	scaledW := min(targetW, max(1, int(float64(srcW)*ratio+0.5)))
	scaledH := min(targetH, max(1, int(float64(srcH)*ratio+0.5)))

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	if bg != nil {
		draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	}

	offsetX := (targetW - scaledW) / 2
	offsetY := (targetH - scaledH) / 2
	rect := image.Rect(offsetX, offsetY, offsetX+scaledW, offsetY+scaledH)
	draw.CatmullRom.Scale(dst, rect, src, src.Bounds(), draw.Over, nil)
	return dst
}

// resizeFill stretches the image to exactly fill targetW x targetH.
func resizeFill(src image.Image, targetW, targetH int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}
