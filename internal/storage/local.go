package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PublicUploadPrefix is the URL path uploaded files are served under.
const PublicUploadPrefix = "/uploads"

// LocalStore writes uploaded blobs to a fixed directory on disk. Stored
// names keep the original filename behind a uniqueness token so repeated
// uploads of the same file never collide.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates the upload directory if missing.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("upload dir is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

// BasePath returns the directory blobs are written to.
func (s *LocalStore) BasePath() string {
	return s.basePath
}

// Put writes the blob and returns its public /uploads URL.
func (s *LocalStore) Put(_ context.Context, filename, _ string, r io.Reader, _ int64) (string, error) {
	stored := fmt.Sprintf("%d-%s-%s", time.Now().UnixMilli(), uuid.NewString()[:8], safeFilename(filename))
	target := filepath.Join(s.basePath, stored)

	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return PublicUploadPrefix + "/" + stored, nil
}

func safeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	name = strings.TrimSpace(name)
	if name == "" {
		return "photo"
	}
	return name
}
