package service

import (
	"bytes"
	"fmt"

	"pdf-chat-server/internal/domain"

	"github.com/gen2brain/go-fitz"
)

var pdfMagic = []byte("%PDF-")

// PDFInspector opens uploads with MuPDF to make sure they are readable PDFs.
type PDFInspector struct {
	logger domain.Logger
}

// NewPDFInspector creates a new PDF inspector
func NewPDFInspector(logger domain.Logger) *PDFInspector {
	return &PDFInspector{
		logger: logger,
	}
}

// Inspect returns the page count of pdfBytes, or an error wrapping
// domain.ErrInvalidFile when the bytes are not a usable PDF.
func (p *PDFInspector) Inspect(pdfBytes []byte) (int, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(pdfBytes, "\x00\t\r\n "), pdfMagic) {
		return 0, fmt.Errorf("%w: missing PDF header", domain.ErrInvalidFile)
	}

	doc, err := fitz.NewFromMemory(pdfBytes)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to open PDF: %v", domain.ErrInvalidFile, err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages < 1 {
		return 0, fmt.Errorf("%w: PDF has no pages", domain.ErrInvalidFile)
	}

	meta := doc.Metadata()
	p.logger.Debug("Inspected PDF", "pages", pages, "title", meta["title"], "author", meta["author"])
	return pages, nil
}
