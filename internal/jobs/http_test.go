package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/pdf-stream-processor/internal/pdf"
)

type stubSubmitter struct {
	record   *Record
	err      error
	filename string
	content  []byte
	parser   string
}

func (s *stubSubmitter) Submit(_ context.Context, filename string, content []byte, parser string) (*Record, error) {
	s.filename = filename
	s.content = content
	s.parser = parser
	return s.record, s.err
}

type stubResultGetter struct {
	record *ResultRecord
	err    error
}

func (s *stubResultGetter) Get(_ context.Context, _ string) (*ResultRecord, error) {
	return s.record, s.err
}

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(_ context.Context) error {
	return s.err
}

func multipartBody(t *testing.T, filename string, content []byte, parser string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := io.Copy(fileWriter, bytes.NewReader(content)); err != nil {
		t.Fatalf("failed to write file content: %v", err)
	}
	if parser != "" {
		if err := writer.WriteField("parser", parser); err != nil {
			t.Fatalf("failed to write parser field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestUploadHandlerSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	submitter := &stubSubmitter{
		record: &Record{
			ProcessingID: "id-1",
			Status:       StatusPending,
			Message:      "PDF uploaded and queued for processing with pypdf parser",
			Parser:       pdf.ParserPyPDF,
		},
	}

	body, contentType := multipartBody(t, "a.pdf", []byte("%PDF-1.4 dummy"), "pypdf")
	req := httptest.NewRequest(http.MethodPost, "/upload-pdf", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.POST("/upload-pdf", UploadHandler(submitter, 0))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["processing_id"] != "id-1" {
		t.Fatalf("unexpected processing_id: %v", payload["processing_id"])
	}
	if payload["status"] != "pending" {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
	if payload["parser"] != "pypdf" {
		t.Fatalf("unexpected parser: %v", payload["parser"])
	}

	if submitter.filename != "a.pdf" || submitter.parser != "pypdf" {
		t.Fatalf("unexpected submitter call: %s %s", submitter.filename, submitter.parser)
	}
	if !bytes.Equal(submitter.content, []byte("%PDF-1.4 dummy")) {
		t.Fatalf("unexpected content: %q", submitter.content)
	}
}

func TestUploadHandlerMissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	req := httptest.NewRequest(http.MethodPost, "/upload-pdf", strings.NewReader("parser=pypdf"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	router := gin.New()
	router.POST("/upload-pdf", UploadHandler(&stubSubmitter{}, 0))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestUploadHandlerRejectsInvalidInput(t *testing.T) {
	gin.SetMode(gin.TestMode)
	submitter := &stubSubmitter{
		err: &pdf.Error{Code: "INVALID_INPUT", Message: "Only PDF files are allowed"},
	}

	body, contentType := multipartBody(t, "a.txt", []byte("dummy"), "")
	req := httptest.NewRequest(http.MethodPost, "/upload-pdf", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.POST("/upload-pdf", UploadHandler(submitter, 0))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["code"] != "INVALID_INPUT" {
		t.Fatalf("unexpected code: %s", payload["code"])
	}
}

func TestUploadHandlerLimitExceeded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	body, contentType := multipartBody(t, "a.pdf", bytes.Repeat([]byte("x"), 64), "")
	req := httptest.NewRequest(http.MethodPost, "/upload-pdf", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.POST("/upload-pdf", UploadHandler(&stubSubmitter{}, 16))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestStatusHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := NewRegistry()
	registry.Create(&Record{
		ProcessingID: "id-1",
		Status:       StatusCompleted,
		Message:      "PDF processing completed successfully",
		Parser:       pdf.ParserPyPDF,
		Result:       map[string]any{"processing_time": 0.4},
	})

	router := gin.New()
	router.GET("/status/:id", StatusHandler(registry))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/id-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["status"] != "completed" {
		t.Fatalf("unexpected status field: %v", payload["status"])
	}
	if payload["result"] == nil {
		t.Fatal("expected result in response")
	}
}

func TestStatusHandlerUnknownID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/status/:id", StatusHandler(NewRegistry()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestResultsHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	getter := &stubResultGetter{
		record: &ResultRecord{
			Markdown:       "## Title",
			Summary:        "summary",
			ParserUsed:     pdf.ParserPyPDF,
			Filename:       "a.pdf",
			ProcessingTime: 1.5,
		},
	}

	router := gin.New()
	router.GET("/results/:id", ResultsHandler(getter))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/results/id-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["markdown"] != "## Title" {
		t.Fatalf("unexpected markdown: %v", payload["markdown"])
	}
	if payload["parser_used"] != "pypdf" {
		t.Fatalf("unexpected parser_used: %v", payload["parser_used"])
	}
}

func TestResultsHandlerNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	// 期限切れ・未登録はどちらも (nil, nil) になり404
	router.GET("/results/:id", ResultsHandler(&stubResultGetter{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/results/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestResultsHandlerStoreError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/results/:id", ResultsHandler(&stubResultGetter{err: errors.New("redis down")}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/results/id-1", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestUpdateStatusHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := NewRegistry()
	registry.Create(&Record{ProcessingID: "id-1", Status: StatusPending})

	router := gin.New()
	router.POST("/update-status/:id", UpdateStatusHandler(registry))

	body := strings.NewReader(`{"status":"processing","message":"Processing PDF..."}`)
	req := httptest.NewRequest(http.MethodPost, "/update-status/id-1", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}

	record, _ := registry.Get("id-1")
	if record.Status != StatusProcessing {
		t.Fatalf("unexpected registry status: %s", record.Status)
	}
	if record.Message != "Processing PDF..." {
		t.Fatalf("unexpected registry message: %s", record.Message)
	}
}

func TestUpdateStatusHandlerUnknownID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/update-status/:id", UpdateStatusHandler(NewRegistry()))

	body := strings.NewReader(`{"status":"processing"}`)
	req := httptest.NewRequest(http.MethodPost, "/update-status/unknown", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", HealthHandler(&stubPinger{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["status"] != "healthy" || payload["redis"] != "connected" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestHealthHandlerUnhealthy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", HealthHandler(&stubPinger{err: errors.New("connection refused")}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["status"] != "unhealthy" || payload["redis"] != "disconnected" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}
