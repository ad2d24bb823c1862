package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/99minutos/user-directory/internal/core/domain"
	"github.com/99minutos/user-directory/internal/core/ports"
)

type stubImporter struct {
	filename string
	body     string
	result   *ports.BulkResult
	err      error
}

func (s *stubImporter) Import(_ context.Context, filename string, r io.Reader) (*ports.BulkResult, error) {
	s.filename = filename
	b, _ := io.ReadAll(r)
	s.body = string(b)
	return s.result, s.err
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write([]byte(content))
	_ = w.Close()
	return &buf, w.FormDataContentType()
}

func TestBulkHandler_Upload(t *testing.T) {
	imp := &stubImporter{result: &ports.BulkResult{
		Message:      "Bulk upload completed.",
		CreatedUsers: []string{"a@example.com"},
		FailedUsers:  []string{},
	}}
	h := NewBulkHandler(imp)

	body, ct := multipartBody(t, "file", "users.csv", "first_name,last_name,email,password\n")
	c, rec := newTestContext(http.MethodPost, "/bulk_upload_users", body, ct)

	if err := h.Upload(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if imp.filename != "users.csv" || !strings.HasPrefix(imp.body, "first_name") {
		t.Fatalf("importer got %q %q", imp.filename, imp.body)
	}
	if !strings.Contains(rec.Body.String(), `"created_users":["a@example.com"]`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestBulkHandler_InvalidFileIs400(t *testing.T) {
	imp := &stubImporter{err: fmt.Errorf("%w: invalid file format, please upload a CSV file", domain.ErrInvalidInput)}
	h := NewBulkHandler(imp)

	body, ct := multipartBody(t, "file", "users.txt", "x")
	c, _ := newTestContext(http.MethodPost, "/bulk_upload_users", body, ct)

	err := h.Upload(c)
	if httpCode(err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid file format, please upload a CSV file") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestBulkHandler_MissingFile(t *testing.T) {
	h := NewBulkHandler(&stubImporter{})
	body, ct := multipartBody(t, "other", "users.csv", "x")
	c, _ := newTestContext(http.MethodPost, "/bulk_upload_users", body, ct)

	if err := h.Upload(c); httpCode(err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
