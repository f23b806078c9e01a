package pdf

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"
)

func newTestService() *Service {
	return &Service{
		gemini: newGeminiClient("", "gemini-2.0-flash-exp"),
		logger: log.New(io.Discard, "", 0),
		now:    time.Now,
	}
}

func TestProcessRejectsInvalidContent(t *testing.T) {
	svc := newTestService()
	_, err := svc.Process(context.Background(), []byte("not a pdf"), "a.pdf", ParserPyPDF)
	if err == nil {
		t.Fatal("expected error for invalid content")
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.Code != "UNSUPPORTED_PDF" {
		t.Errorf("unexpected code: %s", apiErr.Code)
	}
}

func TestProcessUnsupportedParser(t *testing.T) {
	svc := newTestService()
	_, err := svc.Process(context.Background(), []byte("%PDF-1.4"), "a.pdf", ParserType("llama"))
	if err == nil {
		t.Fatal("expected error for unsupported parser")
	}
}
