package executor

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/types"
)

func TestExecutePostJSON(t *testing.T) {
	var gotBody, gotType, gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotType = r.Header.Get("Content-Type")
		gotID = r.Header.Get("X-Request-ID")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"RandomForestPrediction":"Disease A"}`))
	}))
	defer srv.Close()

	exec, err := New(Options{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	req := &types.HttpRequest{
		Method:  "POST",
		URL:     srv.URL + "/predict",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    `{"expression_values":[1.2]}`,
	}
	result, err := exec.Execute(context.Background(), req, WithHeader("X-Request-ID", "abc"))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if result.Error != "" {
		t.Fatalf("unexpected result error: %s", result.Error)
	}
	if result.Status != http.StatusOK {
		t.Errorf("Status = %d, want 200", result.Status)
	}
	if result.Body != `{"RandomForestPrediction":"Disease A"}` {
		t.Errorf("Body = %q", result.Body)
	}
	if result.RequestSize != len(req.Body) {
		t.Errorf("RequestSize = %d, want %d", result.RequestSize, len(req.Body))
	}
	if gotBody != req.Body {
		t.Errorf("server saw body %q", gotBody)
	}
	if gotType != "application/json" {
		t.Errorf("server saw content type %q", gotType)
	}
	if gotID != "abc" {
		t.Errorf("server saw request id %q", gotID)
	}
	if result.Headers["Content-Type"] != "application/json" {
		t.Errorf("response headers not captured: %v", result.Headers)
	}
}

func TestExecuteNetworkErrorInResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	exec, err := New(Options{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	result, err := exec.Execute(context.Background(), &types.HttpRequest{Method: "GET", URL: url})
	if err != nil {
		t.Fatalf("Execute() returned error, want result.Error: %v", err)
	}
	if result.Error == "" {
		t.Fatal("expected result.Error for closed server")
	}
	if result.Status != 0 {
		t.Errorf("Status = %d, want 0", result.Status)
	}
}

func TestExecuteCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	exec, _ := New(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := exec.Execute(ctx, &types.HttpRequest{Method: "GET", URL: srv.URL})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.Contains(result.Error, "context canceled") {
		t.Errorf("result.Error = %q, want context canceled", result.Error)
	}
}

func TestExecuteInvalidRequest(t *testing.T) {
	exec, _ := New(Options{})
	if _, err := exec.Execute(context.Background(), &types.HttpRequest{Method: "BAD METHOD", URL: "http://x"}); err == nil {
		t.Error("expected error for invalid method")
	}
}

func TestExecuteWrap(t *testing.T) {
	called := false
	exec, err := New(Options{Wrap: func(rt http.RoundTripper) http.RoundTripper {
		return roundTripFunc(func(r *http.Request) (*http.Response, error) {
			called = true
			return &http.Response{
				StatusCode: http.StatusTeapot,
				Status:     "418 I'm a teapot",
				Header:     http.Header{},
				Body:       io.NopCloser(strings.NewReader("tea")),
				Request:    r,
			}, nil
		})
	}})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	result, _ := exec.Execute(context.Background(), &types.HttpRequest{Method: "GET", URL: "http://example.invalid/"})
	if !called {
		t.Error("wrapped transport was not used")
	}
	if result.Status != http.StatusTeapot || result.Body != "tea" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestNewInvalidCA(t *testing.T) {
	dir := t.TempDir()
	ca := filepath.Join(dir, "ca.pem")
	if err := os.WriteFile(ca, []byte("not a pem"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := New(Options{TLS: &types.TLSConfig{CAFile: ca}}); err == nil {
		t.Error("expected error for invalid CA file")
	}
	if _, err := New(Options{TLS: &types.TLSConfig{CAFile: filepath.Join(dir, "missing.pem")}}); err == nil {
		t.Error("expected error for missing CA file")
	}
}

func TestMultipartFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "samples.csv")
	content := "gene,value\nBRCA1,1.2\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	body, contentType, err := MultipartFile("file", path, "samples.csv")
	if err != nil {
		t.Fatalf("MultipartFile() error: %v", err)
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "multipart/form-data" {
		t.Fatalf("content type = %q (%v)", contentType, err)
	}

	r := multipart.NewReader(strings.NewReader(body), params["boundary"])
	part, err := r.NextPart()
	if err != nil {
		t.Fatalf("NextPart() error: %v", err)
	}
	if part.FormName() != "file" || part.FileName() != "samples.csv" {
		t.Errorf("part = %q/%q", part.FormName(), part.FileName())
	}
	got, _ := io.ReadAll(part)
	if string(got) != content {
		t.Errorf("part content = %q", got)
	}
}

func TestMultipartFileMissing(t *testing.T) {
	if _, _, err := MultipartFile("file", filepath.Join(t.TempDir(), "nope.csv"), "nope.csv"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0ms"},
		{999, "999ms"},
		{1000, "1.00s"},
		{1534, "1.53s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.ms); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int
		want  string
	}{
		{512, "512B"},
		{2048, "2.00KB"},
		{3 * 1024 * 1024, "3.00MB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.bytes); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestIsSuccessStatus(t *testing.T) {
	for status, want := range map[int]bool{199: false, 200: true, 204: true, 299: true, 300: false, 500: false} {
		if got := IsSuccessStatus(status); got != want {
			t.Errorf("IsSuccessStatus(%d) = %v, want %v", status, got, want)
		}
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
