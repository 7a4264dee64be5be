package preprocess

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"

	"insurance_backend/core"

	ledongthuc "github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// preprocessPDF rasterizes the first page of a PDF document and bounds
// it to the configured maximum dimensions. All temporary files are
// removed on both success and failure paths.
func (p *Preprocessor) preprocessPDF(ctx context.Context, data []byte) (*Result, error) {
	pages, err := validatePDF(data)
	if err != nil {
		return nil, core.ErrPreprocessing("pdf-conversion", err)
	}
	p.logger.Debug("PDF validated", zap.Int("pages", pages))

	img, err := p.renderFirstPage(ctx, data)
	if err != nil {
		return nil, core.ErrPreprocessing("pdf-conversion", err)
	}

	fitted := FitWithin(img, p.config.MaxWidth, p.config.MaxHeight)
	bounds := fitted.Bounds()

	var buf bytes.Buffer
	if err := png.Encode(&buf, fitted); err != nil {
		return nil, core.ErrPreprocessing("pdf-conversion", fmt.Errorf("encode: %w", err))
	}

	p.logger.Debug("PDF rasterization complete",
		zap.Int("width", bounds.Dx()),
		zap.Int("height", bounds.Dy()))

	// Rendered pages are treated as full quality: the rasterizer output
	// is deterministic at the configured density.
	return &Result{
		ProcessedImage: buf.Bytes(),
		Metadata: core.ImageMetadata{
			Format:             "pdf",
			Width:              bounds.Dx(),
			Height:             bounds.Dy(),
			Quality:            1.0,
			EnhancementApplied: true,
		},
	}, nil
}

// validatePDF parses the PDF structure and returns the page count.
// A PDF with zero pages is rejected before any rendering work.
func validatePDF(data []byte) (int, error) {
	reader, err := ledongthuc.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PDF: %w", err)
	}
	pages := reader.NumPage()
	if pages < 1 {
		return 0, fmt.Errorf("PDF contains no pages")
	}
	return pages, nil
}

// renderFirstPage shells out to pdftoppm to rasterize page one at the
// configured density. The temporary PDF and PNG files live in a
// per-call temp directory that is always removed.
func (p *Preprocessor) renderFirstPage(ctx context.Context, data []byte) (image.Image, error) {
	tempDir, err := os.MkdirTemp("", "docpdf-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tempDir); rmErr != nil {
			p.logger.Warn("failed to clean up temp files", zap.Error(rmErr))
		}
	}()

	pdfPath := filepath.Join(tempDir, "input.pdf")
	if err := os.WriteFile(pdfPath, data, 0600); err != nil {
		return nil, fmt.Errorf("write temp PDF: %w", err)
	}

	outPrefix := filepath.Join(tempDir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-r", fmt.Sprintf("%d", p.config.PDFDensity),
		"-f", "1", "-l", "1",
		"-singlefile",
		pdfPath, outPrefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, bytes.TrimSpace(out))
	}

	rendered, err := os.ReadFile(outPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("read rendered page: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(rendered))
	if err != nil {
		return nil, fmt.Errorf("decode rendered page: %w", err)
	}
	return img, nil
}
