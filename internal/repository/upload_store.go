package repository

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	domrepo "ChartSignal/internal/domain/repository"
	applogger "ChartSignal/pkg/logger"

	"github.com/google/uuid"
)

var uploadExt = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/bmp":  ".bmp",
	"image/webp": ".webp",
}

// FileUploadStore writes raw uploads as <uuid>.<ext> under one directory.
type FileUploadStore struct {
	dir string
	l   *applogger.Logger
	now func() time.Time
}

func NewFileUploadStore(dir string, l *applogger.Logger) (*FileUploadStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &FileUploadStore{dir: dir, l: l, now: time.Now}, nil
}

// Save stores data and returns the file path. The extension follows the sniffed content type.
func (s *FileUploadStore) Save(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext, ok := uploadExt[http.DetectContentType(data)]
	if !ok {
		ext = ".bin"
	}
	path := filepath.Join(s.dir, uuid.NewString()+ext)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("commit upload: %w", err)
	}
	return path, nil
}

// Prune removes uploads modified before now-olderThan and returns how many went.
func (s *FileUploadStore) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read upload dir: %w", err)
	}
	cutoff := s.now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if e.IsDir() || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !os.IsNotExist(err) {
			s.l.Warn("prune upload failed", applogger.String("file", e.Name()), applogger.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

var _ domrepo.UploadStore = (*FileUploadStore)(nil)
