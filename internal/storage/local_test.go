package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStorePutWritesFileAndReturnsUploadURL(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	url, err := s.Put(context.Background(), "castle.png", "image/png", strings.NewReader("png-bytes"), 9)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !strings.HasPrefix(url, PublicUploadPrefix+"/") {
		t.Fatalf("expected %s/ prefix, got %q", PublicUploadPrefix, url)
	}
	if !strings.HasSuffix(url, "-castle.png") {
		t.Fatalf("expected original filename retained, got %q", url)
	}
	stored := strings.TrimPrefix(url, PublicUploadPrefix+"/")
	data, err := os.ReadFile(filepath.Join(dir, stored))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("stored bytes mismatch: %q", data)
	}
}

func TestLocalStorePutUniqueNames(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	first, err := s.Put(context.Background(), "a.png", "image/png", strings.NewReader("one"), 3)
	if err != nil {
		t.Fatalf("put first: %v", err)
	}
	second, err := s.Put(context.Background(), "a.png", "image/png", strings.NewReader("two"), 3)
	if err != nil {
		t.Fatalf("put second: %v", err)
	}
	if first == second {
		t.Fatalf("expected unique stored names for repeated filename")
	}
}

func TestLocalStorePutSanitizesPathTraversal(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	url, err := s.Put(context.Background(), "../../etc/passwd", "text/plain", strings.NewReader("x"), 1)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if strings.Contains(url, "..") {
		t.Fatalf("expected sanitized name, got %q", url)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one stored file inside base dir, got %d", len(entries))
	}
}

func TestNewLocalStoreRequiresPath(t *testing.T) {
	if _, err := NewLocalStore("  "); err == nil {
		t.Fatalf("expected error for empty base path")
	}
}
