package scaler

import (
	"bytes"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	codec "github.com/imgfit/imgfit/internal/imaging"
	"github.com/imgfit/imgfit/internal/metrics"
	tu "github.com/imgfit/imgfit/internal/testutil"
)

type failingCropper struct{}

func (failingCropper) Available() bool { return true }

func (failingCropper) CropCenter([]byte, string, int, int) ([]byte, error) {
	return nil, errors.New("boom")
}

func TestNoCropper(t *testing.T) {
	c := NoCropper{}
	tu.False(t, c.Available())
	out, err := c.CropCenter([]byte("x"), "image/png", 1, 1)
	tu.NoError(t, err)
	tu.Equal(t, "x", string(out))
}

func TestImagingCropperCropsCenter(t *testing.T) {
	c := NewImagingCropper(90)
	tu.True(t, c.Available())

	out, err := c.CropCenter(tu.MakeJPEG(t, 120, 60), "image/jpeg", 50, 40)
	tu.NoError(t, err)
	img, format := tu.DecodeImage(t, out)
	tu.Equal(t, "jpeg", format)
	tu.Equal(t, 50, img.Bounds().Dx())
	tu.Equal(t, 40, img.Bounds().Dy())
}

func TestImagingCropperQualityMatchesEngine(t *testing.T) {
	tu.Equal(t, codec.DefaultQuality, NewImagingCropper(0).quality)
	tu.Equal(t, codec.DefaultQuality, NewImagingCropper(-5).quality)
	tu.Equal(t, codec.MaxQuality, NewImagingCropper(150).quality)
	tu.Equal(t, 70, NewImagingCropper(70).quality)

	src := tu.MakeJPEG(t, 120, 60)
	unset, err := NewImagingCropper(0).CropCenter(src, "image/jpeg", 50, 40)
	tu.NoError(t, err)
	explicit, err := NewImagingCropper(codec.DefaultQuality).CropCenter(src, "image/jpeg", 50, 40)
	tu.NoError(t, err)
	tu.True(t, bytes.Equal(unset, explicit), "unset quality should encode like the engine default")
}

func TestImagingCropperRejectsUnknownType(t *testing.T) {
	_, err := NewImagingCropper(0).CropCenter(tu.MakePNG(t, 4, 4), "image/gif", 2, 2)
	tu.ErrorContains(t, err, "cannot crop")

	_, err = NewImagingCropper(0).CropCenter([]byte("nope"), "image/png", 2, 2)
	tu.ErrorContains(t, err, "decoding for crop")
}

func TestProbeCropper(t *testing.T) {
	logger := tu.DiscardLogger()

	_, ok := ProbeCropper(false, 0, logger).(NoCropper)
	tu.True(t, ok, "disabled probe should yield NoCropper")

	c := ProbeCropper(true, 85, logger)
	tu.True(t, c.Available())
	_, ok = c.(*ImagingCropper)
	tu.True(t, ok)
}

func TestPostCropperUnavailable(t *testing.T) {
	before := testutil.ToFloat64(metrics.PostCropTotal.WithLabelValues("unavailable"))

	p := NewPostCropper(nil, tu.DiscardLogger())
	in := Result{Data: []byte("img"), ContentType: "image/png", Width: 200, Height: 100}
	out := p.Crop(in, 100, 100)

	tu.Equal(t, "img", string(out.Data))
	tu.Equal(t, 200, out.Width)
	tu.Equal(t, before+1, testutil.ToFloat64(metrics.PostCropTotal.WithLabelValues("unavailable")))
}

func TestPostCropperFailureReturnsInput(t *testing.T) {
	before := testutil.ToFloat64(metrics.PostCropTotal.WithLabelValues("error"))

	p := NewPostCropper(failingCropper{}, tu.DiscardLogger())
	in := Result{Data: []byte("img"), ContentType: "image/png", Width: 200, Height: 100}
	out := p.Crop(in, 100, 100)

	tu.Equal(t, "img", string(out.Data))
	tu.Equal(t, 200, out.Width)
	tu.Equal(t, 100, out.Height)
	tu.Equal(t, before+1, testutil.ToFloat64(metrics.PostCropTotal.WithLabelValues("error")))
}

func TestPostCropperClampsToActualSize(t *testing.T) {
	p := NewPostCropper(NewImagingCropper(0), tu.DiscardLogger())
	in := Result{Data: tu.MakePNG(t, 200, 80), ContentType: "image/png", Width: 200, Height: 80}

	out := p.Crop(in, 100, 100)
	tu.Equal(t, 100, out.Width)
	tu.Equal(t, 80, out.Height)
	img, _ := tu.DecodeImage(t, out.Data)
	tu.Equal(t, 100, img.Bounds().Dx())
	tu.Equal(t, 80, img.Bounds().Dy())
}
