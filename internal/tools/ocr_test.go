package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPOCRClientRecognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatal(err)
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Fatal(err)
		}
		defer file.Close()
		if header.Filename != "page.png" {
			t.Errorf("unexpected filename %q", header.Filename)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text": "CPT 69990 cannot be billed alone.", "boxes": [{"text": "CPT 69990", "confidence": 0.98, "box": [10, 10, 120, 30]}]}`))
	}))
	defer srv.Close()

	client := NewHTTPOCRClient(srv.URL, 5*time.Second)
	rec, err := client.Recognize(context.Background(), []byte("fake-png"))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Text != "CPT 69990 cannot be billed alone." {
		t.Fatalf("unexpected text %q", rec.Text)
	}
	if len(rec.Boxes) != 1 || rec.Boxes[0].Confidence != 0.98 {
		t.Fatalf("boxes not parsed: %+v", rec.Boxes)
	}
}

func TestHTTPOCRClientServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("model not loaded"))
	}))
	defer srv.Close()

	client := NewHTTPOCRClient(srv.URL, 5*time.Second)
	_, err := client.Recognize(context.Background(), []byte("fake"))
	if err == nil {
		t.Fatal("expected error on 500")
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestOCRToolWrapsClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	tool := NewOCRTool(NewHTTPOCRClient(srv.URL, 5*time.Second))
	_, err := tool.Recognize(context.Background(), []byte("fake"))
	if err == nil {
		t.Fatal("expected error for bad payload")
	}
	if !strings.Contains(err.Error(), "ocr failed") {
		t.Fatalf("unexpected error %v", err)
	}
}
