package scaler

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/imgfit/imgfit/internal/imaging"
)

// ErrUnsupportedEncoding is returned when the requested output type is
// neither JPEG nor PNG. It means the matcher accepts an extension the engine
// cannot produce, a configuration error rather than a bad image.
var ErrUnsupportedEncoding = errors.New("unsupported output encoding")

// Result is an encoded image together with the content type used to encode it.
type Result struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Engine decodes, resizes and re-encodes buffered originals.
type Engine struct {
	memoryLimit int64
	jpegQuality int
	cropper     *PostCropper
	logger      *slog.Logger
}

// NewEngine returns an Engine. memoryLimit bounds the resize output buffer;
// jpegQuality of zero uses the codec default.
func NewEngine(memoryLimit int64, jpegQuality int, cropper *PostCropper, logger *slog.Logger) *Engine {
	if cropper == nil {
		cropper = NewPostCropper(NoCropper{}, logger)
	}
	return &Engine{
		memoryLimit: memoryLimit,
		jpegQuality: jpegQuality,
		cropper:     cropper,
		logger:      logger,
	}
}

// resizePlan is the geometry handed to the codec.
type resizePlan struct {
	width      int
	height     int
	keepAspect bool
}

// Scale transforms data into contentType at the requested size. Width or
// height of zero leave that axis unconstrained. Flags understood here are
// "z" (zoom percent), "crop" and "fill" (optionally carrying a hex
// background color).
func (e *Engine) Scale(data []byte, contentType string, width, height int, flags FlagSet) (Result, error) {
	format, ok := imaging.FormatFromContentType(contentType)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, contentType)
	}

	// The crop target is what was asked for, before zoom.
	targetW, targetH := width, height

	if z, ok := flags.Int("z"); ok && z > 0 {
		width = zoom(width, z)
		height = zoom(height, z)
	}

	src, err := imaging.Decode(data)
	if err != nil {
		return Result{}, err
	}

	plan := planResize(src.Bounds().Dx(), src.Bounds().Dy(), width, height, flags)
	opts := imaging.ResizeOptions{
		Width:       plan.width,
		Height:      plan.height,
		KeepAspect:  plan.keepAspect,
		MemoryLimit: e.memoryLimit,
	}
	if v, ok := flags.Value("fill"); ok {
		bg, err := imaging.ParseHexColor(v)
		if err != nil {
			e.logger.Warn("ignoring fill color", "fill", v, "error", err)
		} else {
			opts.Background = bg
		}
	}

	dst, err := imaging.Resize(src, opts)
	if err != nil {
		return Result{}, fmt.Errorf("resizing image: %w", err)
	}
	out, err := imaging.EncodeBytes(dst, format, e.jpegQuality)
	if err != nil {
		return Result{}, fmt.Errorf("encoding image: %w", err)
	}

	res := Result{
		Data:        out,
		ContentType: format.ContentType(),
		Width:       dst.Bounds().Dx(),
		Height:      dst.Bounds().Dy(),
	}
	if flags.Has("crop") && targetW > 0 && targetH > 0 && (res.Width > targetW || res.Height > targetH) {
		res = e.cropper.Crop(res, targetW, targetH)
	}
	return res, nil
}

// planResize computes the dimensions passed to the codec. With "crop" and
// both axes set, the box grows along one axis so the source aspect ratio
// covers it without padding. With neither axis set the source size is kept.
func planResize(srcW, srcH, width, height int, flags FlagSet) resizePlan {
	plan := resizePlan{width: width, height: height, keepAspect: flags.Has("fill")}
	switch {
	case flags.Has("crop") && width > 0 && height > 0:
		ratio := float64(srcW) / float64(srcH)
		w := math.Max(float64(width), float64(height)*ratio)
		h := math.Max(float64(height), w/ratio)
		plan.width = imaging.ClampDimension(math.Round(w))
		plan.height = imaging.ClampDimension(math.Round(h))
	case width == 0 && height == 0:
		plan.width = srcW
		plan.height = srcH
	}
	return plan
}

// zoom grows v by pct percent. Zero stays zero.
func zoom(v, pct int) int {
	if v == 0 {
		return 0
	}
	return imaging.ClampDimension(math.Round(float64(v) * (1 + float64(pct)/100)))
}
