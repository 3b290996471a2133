package snapshot

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestCaptureFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.jpg")
	if err := os.WriteFile(path, []byte("jpegbytes"), 0o644); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	cam, err := NewCamera(Config{Source: path})
	if err != nil {
		t.Fatalf("NewCamera: %v", err)
	}
	data, err := cam.Capture()
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if string(data) != "jpegbytes" {
		t.Fatalf("unexpected frame %q", data)
	}
}

func TestCaptureMissingFileIsAbsent(t *testing.T) {
	cam, err := NewCamera(Config{Source: filepath.Join(t.TempDir(), "nope.jpg")})
	if err != nil {
		t.Fatalf("NewCamera: %v", err)
	}
	data, err := cam.Capture()
	if err != nil {
		t.Fatalf("expected absent frame without error, got %v", err)
	}
	if data != nil {
		t.Fatalf("expected nil frame, got %d bytes", len(data))
	}
}

func TestCaptureFromHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote"))
	}))
	defer srv.Close()

	cam, err := NewCamera(Config{Source: srv.URL})
	if err != nil {
		t.Fatalf("NewCamera: %v", err)
	}
	data, err := cam.Capture()
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if string(data) != "remote" {
		t.Fatalf("unexpected frame %q", data)
	}
}

func TestCaptureHTTPNotFoundIsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	cam, err := NewCamera(Config{Source: srv.URL})
	if err != nil {
		t.Fatalf("NewCamera: %v", err)
	}
	data, err := cam.Capture()
	if err != nil {
		t.Fatalf("expected absent frame without error, got %v", err)
	}
	if data != nil {
		t.Fatalf("expected nil frame, got %d bytes", len(data))
	}
}
