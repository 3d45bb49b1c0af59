package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"testing"

	"github.com/imgfit/imgfit/internal/testutil"
)

func decodeSource(t *testing.T, data []byte) image.Image {
	t.Helper()
	src, err := Decode(data)
	testutil.NoError(t, err)
	return src
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input  string
		want   Format
		wantOK bool
	}{
		{"jpeg", FormatJPEG, true},
		{"jpg", FormatJPEG, true},
		{".jpg", FormatJPEG, true},
		{"JPEG", FormatJPEG, true},
		{"png", FormatPNG, true},
		{"PNG", FormatPNG, true},
		{"webp", "", false},
		{"gif", "", false},
		{"", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, ok := ParseFormat(tc.input)
			testutil.Equal(t, tc.want, got)
			testutil.Equal(t, tc.wantOK, ok)
		})
	}
}

func TestFormatFromContentType(t *testing.T) {
	tests := []struct {
		ct     string
		want   Format
		wantOK bool
	}{
		{"image/jpeg", FormatJPEG, true},
		{"image/jpeg; charset=utf-8", FormatJPEG, true},
		{"image/png", FormatPNG, true},
		{"IMAGE/PNG", FormatPNG, true},
		{"image/gif", "", false},
		{"application/octet-stream", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.ct, func(t *testing.T) {
			got, ok := FormatFromContentType(tc.ct)
			testutil.Equal(t, tc.want, got)
			testutil.Equal(t, tc.wantOK, ok)
		})
	}
}

func TestFormatContentType(t *testing.T) {
	testutil.Equal(t, "image/jpeg", FormatJPEG.ContentType())
	testutil.Equal(t, "image/png", FormatPNG.ContentType())
	testutil.Equal(t, "application/octet-stream", Format("").ContentType())
}

func TestCalcDimensions(t *testing.T) {
	tests := []struct {
		name             string
		srcW, srcH       int
		targetW, targetH int
		wantW, wantH     int
	}{
		{"both specified", 800, 600, 400, 300, 400, 300},
		{"width only", 800, 600, 400, 0, 400, 300},
		{"height only", 800, 600, 0, 300, 400, 300},
		{"neither keeps source", 800, 600, 0, 0, 800, 600},
		{"width only non-proportional", 1000, 500, 200, 0, 200, 100},
		{"clamp to 1 min", 1000, 1, 1, 0, 1, 1},
		{"huge height clamps derived width", 800, 600, 0, 1 << 62, MaxDimension, MaxDimension},
		{"huge width clamps", 10, 10, 1 << 40, 0, MaxDimension, MaxDimension},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gotW, gotH := calcDimensions(tc.srcW, tc.srcH, tc.targetW, tc.targetH)
			testutil.Equal(t, tc.wantW, gotW)
			testutil.Equal(t, tc.wantH, gotH)
		})
	}
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode([]byte("not an image"))
	testutil.ErrorContains(t, err, "decoding image")
}

func TestDecodeGIF(t *testing.T) {
	pal := image.NewPaletted(image.Rect(0, 0, 8, 4), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	testutil.NoError(t, gif.Encode(&buf, pal, nil))

	src := decodeSource(t, buf.Bytes())
	testutil.Equal(t, 8, src.Bounds().Dx())
	testutil.Equal(t, 4, src.Bounds().Dy())
}

func TestResizeStretch(t *testing.T) {
	src := decodeSource(t, testutil.MakeJPEG(t, 800, 600))
	dst, err := Resize(src, ResizeOptions{Width: 300, Height: 100})
	testutil.NoError(t, err)
	testutil.Equal(t, 300, dst.Bounds().Dx())
	testutil.Equal(t, 100, dst.Bounds().Dy())
}

func TestResizeWidthOnly(t *testing.T) {
	src := decodeSource(t, testutil.MakePNG(t, 600, 400))
	dst, err := Resize(src, ResizeOptions{Width: 300, KeepAspect: true})
	testutil.NoError(t, err)
	testutil.Equal(t, 300, dst.Bounds().Dx())
	testutil.Equal(t, 200, dst.Bounds().Dy())
}

func TestResizeUpscales(t *testing.T) {
	src := decodeSource(t, testutil.MakePNG(t, 50, 25))
	dst, err := Resize(src, ResizeOptions{Width: 100})
	testutil.NoError(t, err)
	testutil.Equal(t, 100, dst.Bounds().Dx())
	testutil.Equal(t, 50, dst.Bounds().Dy())
}

func TestResizeKeepAspectPads(t *testing.T) {
	// 2:1 source into a square box: 100x50 image centered, rows above and below padded.
	src := decodeSource(t, testutil.MakePNG(t, 200, 100))
	bg := color.RGBA{R: 255, G: 0, B: 255, A: 255}
	dst, err := Resize(src, ResizeOptions{Width: 100, Height: 100, KeepAspect: true, Background: bg})
	testutil.NoError(t, err)

	testutil.Equal(t, 100, dst.Bounds().Dx())
	testutil.Equal(t, 100, dst.Bounds().Dy())
	testutil.Equal(t, bg, dst.RGBAAt(50, 2))
	testutil.Equal(t, bg, dst.RGBAAt(50, 97))
	center := dst.RGBAAt(50, 50)
	testutil.True(t, center.B > 200 && center.R < 50, "center pixel should come from the blue source, got %v", center)
}

func TestResizeKeepAspectDefaultTransparent(t *testing.T) {
	src := decodeSource(t, testutil.MakePNG(t, 200, 100))
	dst, err := Resize(src, ResizeOptions{Width: 100, Height: 100, KeepAspect: true})
	testutil.NoError(t, err)
	testutil.Equal(t, uint8(0), dst.RGBAAt(50, 1).A)
}

func TestResizeMemoryLimit(t *testing.T) {
	src := decodeSource(t, testutil.MakePNG(t, 10, 10))
	_, err := Resize(src, ResizeOptions{Width: 100, Height: 100, MemoryLimit: 100*100*4 - 1})
	testutil.True(t, errors.Is(err, ErrMemoryLimit), "expected ErrMemoryLimit, got %v", err)

	_, err = Resize(src, ResizeOptions{Width: 100, Height: 100, MemoryLimit: 100 * 100 * 4})
	testutil.NoError(t, err)
}

func TestResizeHugeDimensionsHitMemoryLimit(t *testing.T) {
	src := decodeSource(t, testutil.MakePNG(t, 10, 10))
	for _, opts := range []ResizeOptions{
		// 2^31 * 2^31 * 4 wraps to zero in int64.
		{Width: 1 << 31, Height: 1 << 31, MemoryLimit: DefaultMemoryLimit},
		{Width: 1 << 62, MemoryLimit: DefaultMemoryLimit},
		{Height: 1 << 62, KeepAspect: true, MemoryLimit: DefaultMemoryLimit},
		{Width: 1 << 31, Height: 1 << 31},
	} {
		_, err := Resize(src, opts)
		testutil.True(t, errors.Is(err, ErrMemoryLimit), "%dx%d: expected ErrMemoryLimit, got %v", opts.Width, opts.Height, err)
	}
}

func TestCheckMemory(t *testing.T) {
	testutil.NoError(t, checkMemory(100, 100, 100*100*4))
	testutil.True(t, errors.Is(checkMemory(100, 100, 100*100*4-1), ErrMemoryLimit))
	testutil.True(t, errors.Is(checkMemory(MaxDimension, MaxDimension, 0), ErrMemoryLimit))
	testutil.NoError(t, checkMemory(4000, 3000, 0))
}

func TestResizeNegative(t *testing.T) {
	src := decodeSource(t, testutil.MakePNG(t, 10, 10))
	_, err := Resize(src, ResizeOptions{Width: -1})
	testutil.ErrorContains(t, err, "negative resize dimensions")
}

func TestEncodeFormats(t *testing.T) {
	img := testutil.SolidImage(20, 10, color.RGBA{G: 255, A: 255})

	pngData, err := EncodeBytes(img, FormatPNG, 0)
	testutil.NoError(t, err)
	testutil.Equal(t, byte(0x89), pngData[0])
	testutil.Equal(t, byte('P'), pngData[1])

	jpgData, err := EncodeBytes(img, FormatJPEG, 0)
	testutil.NoError(t, err)
	testutil.Equal(t, byte(0xFF), jpgData[0])
	testutil.Equal(t, byte(0xD8), jpgData[1])

	_, err = EncodeBytes(img, Format("gif"), 0)
	testutil.True(t, errors.Is(err, ErrUnsupportedFormat), "expected ErrUnsupportedFormat, got %v", err)
}

func TestEncodeQuality(t *testing.T) {
	img, _ := Decode(testutil.MakeJPEG(t, 400, 300))

	lowQ, err := EncodeBytes(img, FormatJPEG, 10)
	testutil.NoError(t, err)
	highQ, err := EncodeBytes(img, FormatJPEG, 95)
	testutil.NoError(t, err)
	testutil.True(t, len(lowQ) < len(highQ), "low quality should be smaller than high quality")

	clamped, err := EncodeBytes(img, FormatJPEG, 999)
	testutil.NoError(t, err)
	explicit100, err := EncodeBytes(img, FormatJPEG, 100)
	testutil.NoError(t, err)
	testutil.True(t, bytes.Equal(clamped, explicit100), "quality above 100 should clamp to 100")

	defaulted, err := EncodeBytes(img, FormatJPEG, 0)
	testutil.NoError(t, err)
	explicitDefault, err := EncodeBytes(img, FormatJPEG, DefaultQuality)
	testutil.NoError(t, err)
	testutil.True(t, bytes.Equal(defaulted, explicitDefault), "zero quality should use DefaultQuality")
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"ff00ff", color.RGBA{R: 255, B: 255, A: 255}, false},
		{"#ff00ff", color.RGBA{R: 255, B: 255, A: 255}, false},
		{"000000", color.RGBA{A: 255}, false},
		{"fff", color.RGBA{R: 255, G: 255, B: 255, A: 255}, false},
		{"00000000", color.RGBA{}, false},
		{"zzzzzz", color.RGBA{}, true},
		{"12345", color.RGBA{}, true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseHexColor(tc.in)
			if tc.wantErr {
				testutil.ErrorContains(t, err, "invalid hex color")
				return
			}
			testutil.NoError(t, err)
			testutil.Equal(t, tc.want, got)
		})
	}
}
