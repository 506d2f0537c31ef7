package localfs

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/pixelmend/pixelmend/internal/core/domain"
)

func TestStorageSaveThenOpen(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	if err := store.Save(ctx, "j-1_photo.jpg", strings.NewReader("image-bytes")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rc, err := store.Open(ctx, "j-1_photo.jpg")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Fatalf("read %q, want %q", data, "image-bytes")
	}
}

func TestStorageOpenMissingKey(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = store.Open(context.Background(), "ghost.png")
	if !domain.IsKind(err, domain.ErrJobNotFound) {
		t.Fatalf("Open() error = %v, want not found", err)
	}
}

func TestStorageRejectsTraversalKeys(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, key := range []string{"", "../escape", "a/b", `a\b`} {
		if err := store.Save(context.Background(), key, strings.NewReader("x")); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("Save(%q) error = %v, want invalid input", key, err)
		}
	}
}
