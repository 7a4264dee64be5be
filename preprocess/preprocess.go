// Package preprocess normalizes arbitrary document uploads (PDF or
// raster image) into a clean, OCR-ready PNG buffer plus quality
// metadata.
//
// preprocess.go implements the raster path: decode, optional
// enhancement (contrast stretch, sharpening, gamma correction), quality
// estimation, and canonical PNG re-encoding. pdf.go implements the PDF
// path.
package preprocess

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"

	"insurance_backend/core"
	"insurance_backend/logging"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

// Default processing bounds, matching the upstream pipeline.
const (
	DefaultMaxWidth   = 2000
	DefaultMaxHeight  = 2000
	DefaultPDFDensity = 300
	DefaultGamma      = 1.2
)

// Options control one preprocessing run.
type Options struct {
	// MimeType of the input bytes; required
	MimeType string

	// EnhanceImage applies contrast stretch, sharpening, and gamma
	// correction to raster input
	EnhanceImage bool

	// MinQuality is advisory; recorded by callers, not enforced here
	MinQuality float64
}

// Result is the preprocessing output: the canonical PNG buffer and its
// metadata.
type Result struct {
	ProcessedImage []byte
	Metadata       core.ImageMetadata
}

// Config holds the preprocessing bounds.
type Config struct {
	// MaxWidth/MaxHeight bound the output; images are never upscaled
	MaxWidth  int
	MaxHeight int

	// PDFDensity is the rasterization resolution in DPI
	PDFDensity int
}

// DefaultConfig returns the standard 2000x2000 / 300 DPI bounds.
func DefaultConfig() Config {
	return Config{
		MaxWidth:   DefaultMaxWidth,
		MaxHeight:  DefaultMaxHeight,
		PDFDensity: DefaultPDFDensity,
	}
}

// Preprocessor normalizes document uploads for OCR.
//
// Thread-safety: Preprocessor is stateless apart from its logger and
// safe for concurrent use.
type Preprocessor struct {
	config Config
	logger *logging.Logger
}

// NewPreprocessor creates a Preprocessor with the given configuration.
func NewPreprocessor(config Config, logger *logging.Logger) *Preprocessor {
	if config.MaxWidth <= 0 {
		config.MaxWidth = DefaultMaxWidth
	}
	if config.MaxHeight <= 0 {
		config.MaxHeight = DefaultMaxHeight
	}
	if config.PDFDensity <= 0 {
		config.PDFDensity = DefaultPDFDensity
	}
	return &Preprocessor{
		config: config,
		logger: logger.Named("preprocessor"),
	}
}

// PreprocessImage normalizes the input into an OCR-ready PNG.
//
// PDF input is rasterized (first page) and bounded to the configured
// maximum dimensions. Raster input is optionally enhanced and always
// re-encoded to PNG for downstream consistency.
func (p *Preprocessor) PreprocessImage(ctx context.Context, data []byte, opts Options) (*Result, error) {
	if len(data) == 0 {
		return nil, core.ErrInvalidInput("image-preprocessing", "Kein Bild zum Verarbeiten bereitgestellt")
	}
	if opts.MimeType == "" {
		return nil, core.ErrInvalidInput("image-preprocessing", "Kein MIME-Typ angegeben")
	}

	if opts.MimeType == "application/pdf" {
		return p.preprocessPDF(ctx, data)
	}

	return p.preprocessRaster(data, opts)
}

func (p *Preprocessor) preprocessRaster(data []byte, opts Options) (*Result, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, core.ErrPreprocessing("image-preprocessing", fmt.Errorf("decode: %w", err))
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	depth := colorDepth(img)

	rgba := toRGBA(img)
	enhancementApplied := false
	if opts.EnhanceImage {
		rgba = ContrastStretch(rgba)
		rgba = Sharpen(rgba)
		rgba = ApplyGamma(rgba, DefaultGamma)
		enhancementApplied = true
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return nil, core.ErrPreprocessing("image-preprocessing", fmt.Errorf("encode: %w", err))
	}

	quality := EstimateQuality(format, width, height, depth)
	p.logger.Debug("raster preprocessing complete",
		zap.String("format", format),
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Float64("quality", quality),
		zap.Bool("enhanced", enhancementApplied))

	return &Result{
		ProcessedImage: buf.Bytes(),
		Metadata: core.ImageMetadata{
			Format:             format,
			Width:              width,
			Height:             height,
			Quality:            quality,
			EnhancementApplied: enhancementApplied,
		},
	}, nil
}

// ConvertToBase64 encodes image bytes as standard base64. Total for
// any byte input.
func ConvertToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// EstimateQuality scores image quality in [0,1] as a product of
// penalty factors: resolution below 0.1MP costs x0.6 and below 1MP
// x0.8; webp costs x0.9 and other uncommon formats x0.7 (jpeg/png are
// free); color depth below 8 bits costs x0.8.
func EstimateQuality(format string, width, height, depth int) float64 {
	quality := 1.0

	resolution := width * height
	if resolution > 0 {
		if resolution < 100_000 {
			quality *= 0.6
		} else if resolution < 1_000_000 {
			quality *= 0.8
		}
	}

	switch format {
	case "jpeg", "png":
		// no penalty
	case "webp":
		quality *= 0.9
	default:
		quality *= 0.7
	}

	if depth < 8 {
		quality *= 0.8
	}

	return clamp01(quality)
}

// ContrastStretch linearly rescales pixel values so the darkest pixel
// maps to 0 and the brightest to 255, per channel. Returns a new image.
func ContrastStretch(img *image.RGBA) *image.RGBA {
	bounds := img.Bounds()
	minV, maxV := uint8(255), uint8(0)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := img.RGBAAt(x, y)
			for _, v := range [3]uint8{c.R, c.G, c.B} {
				if v < minV {
					minV = v
				}
				if v > maxV {
					maxV = v
				}
			}
		}
	}

	if maxV <= minV {
		// flat image, nothing to stretch
		out := image.NewRGBA(bounds)
		copy(out.Pix, img.Pix)
		return out
	}

	scale := 255.0 / float64(maxV-minV)
	out := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := img.RGBAAt(x, y)
			out.SetRGBA(x, y, color.RGBA{
				R: stretchChannel(c.R, minV, scale),
				G: stretchChannel(c.G, minV, scale),
				B: stretchChannel(c.B, minV, scale),
				A: c.A,
			})
		}
	}
	return out
}

func stretchChannel(v, minV uint8, scale float64) uint8 {
	return uint8(clamp255(float64(v-minV) * scale))
}

// Sharpen applies a 3x3 sharpening kernel (center 5, cross -1).
// Border pixels are copied unchanged. Returns a new image.
func Sharpen(img *image.RGBA) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	copy(out.Pix, img.Pix)

	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			c := img.RGBAAt(x, y)
			up := img.RGBAAt(x, y-1)
			down := img.RGBAAt(x, y+1)
			left := img.RGBAAt(x-1, y)
			right := img.RGBAAt(x+1, y)

			out.SetRGBA(x, y, color.RGBA{
				R: sharpenChannel(c.R, up.R, down.R, left.R, right.R),
				G: sharpenChannel(c.G, up.G, down.G, left.G, right.G),
				B: sharpenChannel(c.B, up.B, down.B, left.B, right.B),
				A: c.A,
			})
		}
	}
	return out
}

func sharpenChannel(center, up, down, left, right uint8) uint8 {
	v := 5*int(center) - int(up) - int(down) - int(left) - int(right)
	return uint8(clamp255(float64(v)))
}

// ApplyGamma applies gamma correction (out = in^(1/gamma)), gamma > 1
// brightens midtones slightly. Returns a new image.
func ApplyGamma(img *image.RGBA, gamma float64) *image.RGBA {
	if gamma <= 0 {
		gamma = 1
	}
	inv := 1.0 / gamma

	// 256-entry lookup table, one pow per value instead of per pixel
	var lut [256]uint8
	for i := range lut {
		lut[i] = uint8(clamp255(255.0 * math.Pow(float64(i)/255.0, inv)))
	}

	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := img.RGBAAt(x, y)
			out.SetRGBA(x, y, color.RGBA{R: lut[c.R], G: lut[c.G], B: lut[c.B], A: c.A})
		}
	}
	return out
}

// FitWithin scales img to fit inside maxWidth x maxHeight, preserving
// aspect ratio and never upscaling.
func FitWithin(img image.Image, maxWidth, maxHeight int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxWidth && height <= maxHeight {
		return img
	}

	scale := math.Min(float64(maxWidth)/float64(width), float64(maxHeight)/float64(height))
	newWidth := int(float64(width) * scale)
	newHeight := int(float64(height) * scale)
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// toRGBA converts any decoded image to RGBA without copying when the
// input already is one.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return rgba
}

// colorDepth infers bits per channel from the color model. Paletted
// images report the bits needed to index the palette.
func colorDepth(img image.Image) int {
	switch m := img.(type) {
	case *image.Paletted:
		bits := 1
		for 1<<bits < len(m.Palette) {
			bits++
		}
		return bits
	}

	switch img.ColorModel() {
	case color.Gray16Model, color.RGBA64Model, color.NRGBA64Model:
		return 16
	}
	return 8
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

func clamp255(v float64) float64 {
	return math.Min(math.Max(v, 0), 255)
}
