package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/policyscan/policyscan/internal/policy"
)

// Recognition is the output of one OCR pass over a page image.
type Recognition struct {
	Text  string          `json:"text"`
	Boxes []policy.OCRBox `json:"boxes"`
}

// OCRClient recognizes text in a page image.
type OCRClient interface {
	Recognize(ctx context.Context, image []byte) (*Recognition, error)
}

// HTTPOCRClient talks to an external OCR service over HTTP.
// The service accepts a multipart upload and returns text plus boxes.
type HTTPOCRClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPOCRClient creates an OCR client for the given service endpoint.
func NewHTTPOCRClient(endpoint string, timeout time.Duration) *HTTPOCRClient {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &HTTPOCRClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Recognize sends the image to the OCR service.
func (c *HTTPOCRClient) Recognize(ctx context.Context, image []byte) (*Recognition, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", "page.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("write image to form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close form writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OCR service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var rec Recognition
	if err := json.Unmarshal(respBody, &rec); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &rec, nil
}

// OCRTool exposes an OCRClient as a worker tool.
type OCRTool struct {
	client OCRClient
}

// NewOCRTool creates a new OCR tool backed by the given client.
func NewOCRTool(client OCRClient) *OCRTool {
	return &OCRTool{client: client}
}

// Name returns the tool identifier.
func (t *OCRTool) Name() string { return "ocr" }

// Description returns the tool description for the LLM.
func (t *OCRTool) Description() string {
	return "Extract text from a page image using the OCR service."
}

// Parameters returns the JSON Schema for tool parameters.
func (t *OCRTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"image_path": map[string]any{
				"type":        "string",
				"description": "Path to the image file to extract text from.",
			},
		},
		"required": []any{"image_path"},
	}
}

// Execute recognizes text in the image file named by image_path.
func (t *OCRTool) Execute(ctx context.Context, params map[string]any) (*Result, error) {
	path := GetString(params, "image_path", "")
	if path == "" {
		return Failure(t.Name(), "missing required parameter: image_path"), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Failure(t.Name(), fmt.Sprintf("read image: %v", err)), nil
	}
	rec, err := t.Recognize(ctx, data)
	if err != nil {
		return Failure(t.Name(), err.Error()), nil
	}
	return Success(t.Name(), rec), nil
}

// Recognize runs OCR on raw image bytes.
func (t *OCRTool) Recognize(ctx context.Context, image []byte) (*Recognition, error) {
	rec, err := t.client.Recognize(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("ocr failed: %w", err)
	}
	return rec, nil
}
