package preprocess

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"insurance_backend/core"
	"insurance_backend/logging"
)

func newTestPreprocessor() *Preprocessor {
	return NewPreprocessor(DefaultConfig(), logging.NewNop())
}

// encodePNG renders a width x height gradient test image.
func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8((x * 17) % 200)
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: 255 - v, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestPreprocessImageValidation(t *testing.T) {
	p := newTestPreprocessor()
	ctx := context.Background()

	tests := []struct {
		name string
		data []byte
		opts Options
	}{
		{"empty bytes", nil, Options{MimeType: "image/png"}},
		{"missing mime type", encodePNG(t, 10, 10), Options{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.PreprocessImage(ctx, tt.data, tt.opts)
			if core.ErrorCode(err) != core.ErrCodeInvalidInput {
				t.Errorf("error code = %q, want %q", core.ErrorCode(err), core.ErrCodeInvalidInput)
			}
		})
	}
}

func TestPreprocessImageRasterIdempotence(t *testing.T) {
	p := newTestPreprocessor()
	ctx := context.Background()
	data := encodePNG(t, 120, 80)
	opts := Options{MimeType: "image/png", EnhanceImage: true}

	first, err := p.PreprocessImage(ctx, data, opts)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := p.PreprocessImage(ctx, data, opts)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if !bytes.Equal(first.ProcessedImage, second.ProcessedImage) {
		t.Error("identical input and options must yield byte-identical output")
	}
	if first.Metadata != second.Metadata {
		t.Errorf("metadata differs: %+v vs %+v", first.Metadata, second.Metadata)
	}
}

func TestPreprocessImageMetadata(t *testing.T) {
	p := newTestPreprocessor()
	result, err := p.PreprocessImage(context.Background(), encodePNG(t, 120, 80), Options{
		MimeType:     "image/png",
		EnhanceImage: true,
	})
	if err != nil {
		t.Fatalf("PreprocessImage() error = %v", err)
	}

	if result.Metadata.Format != "png" {
		t.Errorf("Format = %q, want png", result.Metadata.Format)
	}
	if result.Metadata.Width != 120 || result.Metadata.Height != 80 {
		t.Errorf("dimensions = %dx%d, want 120x80", result.Metadata.Width, result.Metadata.Height)
	}
	if !result.Metadata.EnhancementApplied {
		t.Error("EnhancementApplied should be true when enhancement is requested")
	}
	if result.Metadata.Quality < 0 || result.Metadata.Quality > 1 {
		t.Errorf("Quality = %f, out of [0,1]", result.Metadata.Quality)
	}

	// Output must decode as PNG
	if _, _, err := image.Decode(bytes.NewReader(result.ProcessedImage)); err != nil {
		t.Errorf("output is not a decodable image: %v", err)
	}
}

func TestPreprocessImageNoEnhancement(t *testing.T) {
	p := newTestPreprocessor()
	result, err := p.PreprocessImage(context.Background(), encodePNG(t, 50, 50), Options{
		MimeType: "image/png",
	})
	if err != nil {
		t.Fatalf("PreprocessImage() error = %v", err)
	}
	if result.Metadata.EnhancementApplied {
		t.Error("EnhancementApplied should be false by default")
	}
}

func TestPreprocessImageUndecodableRaster(t *testing.T) {
	p := newTestPreprocessor()
	_, err := p.PreprocessImage(context.Background(), []byte("not an image"), Options{
		MimeType: "image/jpeg",
	})
	if core.ErrorCode(err) != core.ErrCodePreprocessingFailed {
		t.Errorf("error code = %q, want %q", core.ErrorCode(err), core.ErrCodePreprocessingFailed)
	}
}

func TestEstimateQuality(t *testing.T) {
	tests := []struct {
		name   string
		format string
		width  int
		height int
		depth  int
		want   float64
	}{
		{"high-res png", "png", 2000, 2000, 8, 1.0},
		{"low-res png", "png", 200, 200, 8, 0.6},
		{"mid-res jpeg", "jpeg", 800, 800, 8, 0.8},
		{"high-res webp", "webp", 2000, 2000, 8, 0.9},
		{"high-res bmp", "bmp", 2000, 2000, 8, 0.7},
		{"shallow depth", "png", 2000, 2000, 4, 0.8},
		{"stacked penalties", "bmp", 200, 200, 4, 0.6 * 0.7 * 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateQuality(tt.format, tt.width, tt.height, tt.depth)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("EstimateQuality() = %f, want %f", got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("quality %f out of [0,1]", got)
			}
		})
	}
}

func TestConvertToBase64(t *testing.T) {
	if got := ConvertToBase64([]byte("abc")); got != "YWJj" {
		t.Errorf("ConvertToBase64 = %q, want YWJj", got)
	}
	if got := ConvertToBase64(nil); got != "" {
		t.Errorf("ConvertToBase64(nil) = %q, want empty", got)
	}
}

func TestFitWithinNeverUpscales(t *testing.T) {
	small := image.NewRGBA(image.Rect(0, 0, 100, 50))
	fitted := FitWithin(small, 2000, 2000)
	if fitted.Bounds().Dx() != 100 || fitted.Bounds().Dy() != 50 {
		t.Errorf("small image was resized to %v", fitted.Bounds())
	}
}

func TestFitWithinDownscalesPreservingAspect(t *testing.T) {
	large := image.NewRGBA(image.Rect(0, 0, 4000, 2000))
	fitted := FitWithin(large, 2000, 2000)
	if fitted.Bounds().Dx() != 2000 || fitted.Bounds().Dy() != 1000 {
		t.Errorf("got %dx%d, want 2000x1000", fitted.Bounds().Dx(), fitted.Bounds().Dy())
	}
}

func TestContrastStretch(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 100, G: 100, B: 100, A: 255})
	img.SetRGBA(1, 0, color.RGBA{R: 150, G: 150, B: 150, A: 255})

	out := ContrastStretch(img)
	if c := out.RGBAAt(0, 0); c.R != 0 {
		t.Errorf("darkest pixel = %d, want 0", c.R)
	}
	if c := out.RGBAAt(1, 0); c.R != 255 {
		t.Errorf("brightest pixel = %d, want 255", c.R)
	}
}

func TestContrastStretchFlatImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}

	out := ContrastStretch(img)
	if c := out.RGBAAt(0, 0); c.R != 128 {
		t.Errorf("flat image should be unchanged, got %d", c.R)
	}
}

func TestValidatePDFRejectsGarbage(t *testing.T) {
	if _, err := validatePDF([]byte("definitely not a pdf")); err == nil {
		t.Error("expected an error for non-PDF input")
	}
}

func TestPreprocessPDFInvalidInput(t *testing.T) {
	p := newTestPreprocessor()
	_, err := p.PreprocessImage(context.Background(), []byte("junk"), Options{
		MimeType: "application/pdf",
	})
	if core.ErrorCode(err) != core.ErrCodePreprocessingFailed {
		t.Errorf("error code = %q, want %q", core.ErrorCode(err), core.ErrCodePreprocessingFailed)
	}
}
