package tools

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// LoadedPDF holds the pages of a loaded document as raw image bytes,
// one entry per page. Pages without an embedded scan image are nil.
type LoadedPDF struct {
	Path       string
	PageCount  int
	PageImages [][]byte
}

// PDFTool loads PDF files and extracts page images for OCR processing.
type PDFTool struct {
	conf *model.Configuration
}

// NewPDFTool creates a new PDF loader tool.
func NewPDFTool() *PDFTool {
	return &PDFTool{conf: model.NewDefaultConfiguration()}
}

// Name returns the tool identifier.
func (t *PDFTool) Name() string { return "pdf_loader" }

// Description returns the tool description for the LLM.
func (t *PDFTool) Description() string {
	return "Load a PDF file and extract pages as images for OCR processing."
}

// Parameters returns the JSON Schema for tool parameters.
func (t *PDFTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pdf_path": map[string]any{
				"type":        "string",
				"description": "Path to the PDF file to load.",
			},
		},
		"required": []any{"pdf_path"},
	}
}

// Execute loads the PDF named by pdf_path and reports its page layout.
// The raw page images stay out of the conversation; workers that need them
// call Load directly.
func (t *PDFTool) Execute(ctx context.Context, params map[string]any) (*Result, error) {
	path := GetString(params, "pdf_path", "")
	if path == "" {
		return Failure(t.Name(), "missing required parameter: pdf_path"), nil
	}
	doc, err := t.Load(ctx, path)
	if err != nil {
		return Failure(t.Name(), err.Error()), nil
	}
	pageSizes := make([]int, len(doc.PageImages))
	for i, img := range doc.PageImages {
		pageSizes[i] = len(img)
	}
	return Success(t.Name(), map[string]any{
		"path":        doc.Path,
		"page_count":  doc.PageCount,
		"image_sizes": pageSizes,
	}), nil
}

// Load opens a PDF and extracts one scan image per page.
func (t *PDFTool) Load(ctx context.Context, path string) (*LoadedPDF, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pageCount, err := api.PageCount(f, t.conf)
	if err != nil {
		return nil, fmt.Errorf("count pages: %w", err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind pdf: %w", err)
	}

	extracted, err := api.ExtractImagesRaw(f, nil, t.conf)
	if err != nil {
		return nil, fmt.Errorf("extract page images: %w", err)
	}

	doc := &LoadedPDF{
		Path:       path,
		PageCount:  pageCount,
		PageImages: make([][]byte, pageCount),
	}
	for _, pageImages := range extracted {
		// Deterministic pick when a page carries several image objects.
		objNrs := make([]int, 0, len(pageImages))
		for objNr := range pageImages {
			objNrs = append(objNrs, objNr)
		}
		sort.Ints(objNrs)
		for _, objNr := range objNrs {
			img := pageImages[objNr]
			if img.PageNr < 1 || img.PageNr > pageCount {
				continue
			}
			if doc.PageImages[img.PageNr-1] != nil {
				continue
			}
			data, err := io.ReadAll(img)
			if err != nil {
				return nil, fmt.Errorf("read page %d image: %w", img.PageNr, err)
			}
			doc.PageImages[img.PageNr-1] = data
		}
	}
	return doc, nil
}
