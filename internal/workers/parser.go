package workers

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/policyscan/policyscan/internal/agent"
	"github.com/policyscan/policyscan/internal/policy"
	"github.com/policyscan/policyscan/internal/provider"
	"github.com/policyscan/policyscan/internal/tools"
)

const parserSystemPrompt = `You are a document parsing specialist.
Your task is to extract text content from PDF policy documents using OCR.

You have access to the following tools:
- pdf_loader: Load a PDF file and extract pages as images
- ocr: Extract text from images

Process:
1. Load the PDF file using pdf_loader
2. For each page image, extract text using OCR
3. Return the complete extracted text

Focus on accurate text extraction. Preserve the document structure as much as possible.`

// Parser turns a PDF into a ParsedDocument. The primary path invokes its
// two tools directly; the task is mechanical once the tools exist, so no
// model reasoning is needed.
type Parser struct {
	loop     *agent.Loop
	registry *tools.Registry
	pdfTool  *tools.PDFTool
	ocrTool  *tools.OCRTool
	logger   *slog.Logger
}

// NewParser creates the parsing worker.
func NewParser(loop *agent.Loop, pdfTool *tools.PDFTool, ocrTool *tools.OCRTool) *Parser {
	return &Parser{
		loop:     loop,
		registry: tools.NewRegistry(pdfTool, ocrTool),
		pdfTool:  pdfTool,
		ocrTool:  ocrTool,
		logger:   slog.Default(),
	}
}

// Role returns the worker's role identifier.
func (p *Parser) Role() string { return "parser" }

// SystemPrompt returns the worker's system prompt.
func (p *Parser) SystemPrompt() string { return parserSystemPrompt }

// FormatInput renders the document path as the opening user message.
func (p *Parser) FormatInput(input any) string {
	return fmt.Sprintf("Please extract all text content from the PDF document at: %v", input)
}

// Tools returns the worker's registry.
func (p *Parser) Tools() *tools.Registry { return p.registry }

// MaxIterations returns the iteration cap.
func (p *Parser) MaxIterations() int { return 5 }

// ProcessOutput passes the final reply through. The agent path is
// secondary for this worker.
func (p *Parser) ProcessOutput(resp *provider.ChatResponse, toolResults []*tools.Result, totalTokens int) *agent.Outcome {
	return &agent.Outcome{
		Success:     true,
		Output:      resp.Content,
		ToolResults: toolResults,
		TotalTokens: totalTokens,
	}
}

// Parse loads the PDF and recognizes each page image in order. Pages
// without a scan image produce empty text rather than failing the run.
func (p *Parser) Parse(ctx context.Context, pdfPath string) (*policy.ParsedDocument, error) {
	p.logger.Info("parsing PDF", "path", filepath.Base(pdfPath))

	loaded, err := p.pdfTool.Load(ctx, pdfPath)
	if err != nil {
		return nil, fmt.Errorf("load PDF: %w", err)
	}

	abs, err := filepath.Abs(pdfPath)
	if err != nil {
		abs = pdfPath
	}

	doc := &policy.ParsedDocument{
		Path:      abs,
		PageCount: loaded.PageCount,
		Pages:     make([]policy.ParsedPage, 0, loaded.PageCount),
	}

	for i, image := range loaded.PageImages {
		page := policy.ParsedPage{PageNumber: i + 1}
		if len(image) > 0 {
			rec, err := p.ocrTool.Recognize(ctx, image)
			if err != nil {
				p.logger.Warn("OCR failed for page", "page", i+1, "error", err)
			} else {
				page.Text = rec.Text
				page.Boxes = rec.Boxes
			}
		}
		doc.Pages = append(doc.Pages, page)
		p.logger.Debug("parsed page", "page", i+1, "chars", len(page.Text))
	}

	p.logger.Info("parsed document", "pages", loaded.PageCount, "path", filepath.Base(pdfPath))
	return doc, nil
}
