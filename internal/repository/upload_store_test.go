package repository

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestUploadSaveAndPrune(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileUploadStore(dir, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	p1, err := s.Save(ctx, pngBytes(t))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Dir(p1) != dir || !strings.HasSuffix(p1, ".png") {
		t.Errorf("unexpected path %s", p1)
	}
	p2, err := s.Save(ctx, []byte("plain text"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasSuffix(p2, ".bin") {
		t.Errorf("unknown content should get .bin: %s", p2)
	}

	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(p1, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	n, err := s.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}
	if _, err := os.Stat(p1); !os.IsNotExist(err) {
		t.Errorf("old upload should be gone")
	}
	if _, err := os.Stat(p2); err != nil {
		t.Errorf("fresh upload should remain: %v", err)
	}
}

func TestUploadDirRequired(t *testing.T) {
	if _, err := NewFileUploadStore("", nil); err == nil {
		t.Errorf("expected error")
	}
}
