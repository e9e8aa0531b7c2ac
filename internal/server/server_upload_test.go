package server

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"brickshelf/pkg/domain"
)

func multipartPhotos(t *testing.T, names []string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		part, err := mw.CreateFormFile("photos", name)
		if err != nil {
			t.Fatalf("create form file %s: %v", name, err)
		}
		if _, err := part.Write([]byte("bytes-of-" + name)); err != nil {
			t.Fatalf("write form file %s: %v", name, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, names []string) *http.Response {
	t.Helper()
	body, contentType := multipartPhotos(t, names)
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/api/upload", body)
	if err != nil {
		t.Fatalf("new upload request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return resp
}

func TestUploadPreservesOrder(t *testing.T) {
	env := newTestEnv(t)
	resp := env.upload(t, []string{"a.png", "b.png", "c.png"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status %d", resp.StatusCode)
	}
	var photos []domain.Photo
	decodeBody(t, resp, &photos)
	if len(photos) != 3 {
		t.Fatalf("expected 3 photos, got %d", len(photos))
	}
	for i, base := range []string{"a.png", "b.png", "c.png"} {
		if !strings.HasSuffix(photos[i].URL, base) {
			t.Fatalf("photo %d url %q does not end with %q", i, photos[i].URL, base)
		}
		if !strings.HasPrefix(photos[i].URL, "/uploads/") {
			t.Fatalf("photo %d url %q not under /uploads/", i, photos[i].URL)
		}
		if photos[i].ID == "" {
			t.Fatalf("photo %d missing id", i)
		}
	}
}

func TestUploadRejects101Files(t *testing.T) {
	env := newTestEnv(t)
	names := make([]string, 101)
	for i := range names {
		names[i] = fmt.Sprintf("photo-%03d.png", i)
	}
	resp := env.upload(t, names)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("101-file upload status %d, want 400", resp.StatusCode)
	}
}

func TestUploadAccepts100Files(t *testing.T) {
	env := newTestEnv(t)
	names := make([]string, 100)
	for i := range names {
		names[i] = fmt.Sprintf("photo-%03d.png", i)
	}
	resp := env.upload(t, names)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("100-file upload status %d", resp.StatusCode)
	}
	var photos []domain.Photo
	decodeBody(t, resp, &photos)
	if len(photos) != 100 {
		t.Fatalf("expected 100 photos, got %d", len(photos))
	}
}

func TestUploadDoesNotRequireSession(t *testing.T) {
	// The shipped client calls /api/upload before any login; the missing
	// auth check is a recorded ambiguity, so this pins the open behavior.
	env := newTestEnv(t)
	resp := env.upload(t, []string{"open.png"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("anonymous upload status %d", resp.StatusCode)
	}
}

func TestUploadedFileServedUnderUploads(t *testing.T) {
	env := newTestEnv(t)
	resp := env.upload(t, []string{"served.png"})
	var photos []domain.Photo
	decodeBody(t, resp, &photos)
	if len(photos) != 1 {
		t.Fatalf("expected 1 photo, got %d", len(photos))
	}

	resp = env.get(t, photos[0].URL, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("static fetch status %d for %s", resp.StatusCode, photos[0].URL)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read static body: %v", err)
	}
	if string(data) != "bytes-of-served.png" {
		t.Fatalf("unexpected blob bytes: %q", data)
	}
}

func TestUploadRejectsNonMultipart(t *testing.T) {
	env := newTestEnv(t)
	resp := env.postJSON(t, "/api/upload", map[string]string{"not": "a file"}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("non-multipart upload status %d, want 400", resp.StatusCode)
	}
}
