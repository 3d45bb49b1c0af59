package scaler

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/disintegration/imaging"

	codec "github.com/imgfit/imgfit/internal/imaging"
	"github.com/imgfit/imgfit/internal/metrics"
)

// CropCapability is the optional secondary image library used to trim an
// oversized result down to the requested box.
type CropCapability interface {
	// Available reports whether CropCenter may be called.
	Available() bool
	// CropCenter decodes data, crops the middle width x height region and
	// re-encodes it as contentType.
	CropCenter(data []byte, contentType string, width, height int) ([]byte, error)
}

// NoCropper is the CropCapability used when cropping is disabled or the
// capability probe failed. Results are returned uncropped.
type NoCropper struct{}

func (NoCropper) Available() bool { return false }

func (NoCropper) CropCenter(data []byte, _ string, _, _ int) ([]byte, error) {
	return data, nil
}

// ImagingCropper crops with github.com/disintegration/imaging.
type ImagingCropper struct {
	quality int
}

// NewImagingCropper returns a cropper encoding JPEG output at quality,
// resolved the same way as the engine's encoder.
func NewImagingCropper(quality int) *ImagingCropper {
	if quality <= 0 {
		quality = codec.DefaultQuality
	}
	return &ImagingCropper{quality: min(quality, codec.MaxQuality)}
}

func (c *ImagingCropper) Available() bool { return true }

func (c *ImagingCropper) CropCenter(data []byte, contentType string, width, height int) ([]byte, error) {
	format, err := cropFormat(contentType)
	if err != nil {
		return nil, err
	}
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding for crop: %w", err)
	}
	cropped := imaging.CropCenter(src, width, height)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, cropped, format, imaging.JPEGQuality(c.quality)); err != nil {
		return nil, fmt.Errorf("encoding cropped image: %w", err)
	}
	return buf.Bytes(), nil
}

func cropFormat(contentType string) (imaging.Format, error) {
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "image/jpeg"):
		return imaging.JPEG, nil
	case strings.HasPrefix(ct, "image/png"):
		return imaging.PNG, nil
	default:
		return 0, fmt.Errorf("cannot crop %q", contentType)
	}
}

// ProbeCropper selects the crop capability once at startup. When cropping is
// disabled, or a trial crop of a tiny image fails, the passthrough
// NoCropper is returned and a warning is logged.
func ProbeCropper(enabled bool, quality int, logger *slog.Logger) CropCapability {
	if !enabled {
		logger.Info("post-crop disabled, oversized results are returned uncropped")
		return NoCropper{}
	}
	c := NewImagingCropper(quality)
	var probe bytes.Buffer
	if err := imaging.Encode(&probe, image.NewNRGBA(image.Rect(0, 0, 2, 1)), imaging.PNG); err != nil {
		logger.Warn("crop capability unavailable", "error", err)
		return NoCropper{}
	}
	out, err := c.CropCenter(probe.Bytes(), "image/png", 1, 1)
	if err != nil || len(out) == 0 {
		logger.Warn("crop capability unavailable", "error", err)
		return NoCropper{}
	}
	return c
}

// PostCropper trims a scaled result to the originally requested box. It is
// strictly best effort: any failure returns the result unchanged.
type PostCropper struct {
	capability CropCapability
	logger     *slog.Logger
}

// NewPostCropper returns a PostCropper using capability. A nil capability
// behaves like NoCropper.
func NewPostCropper(capability CropCapability, logger *slog.Logger) *PostCropper {
	if capability == nil {
		capability = NoCropper{}
	}
	return &PostCropper{capability: capability, logger: logger}
}

// Crop returns res cropped to width x height, or res itself when the
// capability is unavailable or cropping fails.
func (p *PostCropper) Crop(res Result, width, height int) Result {
	if !p.capability.Available() {
		p.logger.Warn("crop capability unavailable, returning uncropped image",
			"width", res.Width, "height", res.Height, "target_width", width, "target_height", height)
		metrics.RecordPostCrop("unavailable")
		return res
	}
	data, err := p.capability.CropCenter(res.Data, res.ContentType, width, height)
	if err != nil {
		p.logger.Warn("post-crop failed, returning uncropped image", "error", err)
		metrics.RecordPostCrop("error")
		return res
	}
	metrics.RecordPostCrop("ok")
	return Result{
		Data:        data,
		ContentType: res.ContentType,
		Width:       min(width, res.Width),
		Height:      min(height, res.Height),
	}
}
