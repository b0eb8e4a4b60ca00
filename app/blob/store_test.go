package blob

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFSStoreUploadAndRemove(t *testing.T) {
	rootDir := t.TempDir()
	store := NewFSStore(rootDir, "https://oppradar.example.com/")

	url, err := store.Upload("images/op-1.jpg", []byte("jpeg-bytes"), "image/jpeg")
	if err != nil {
		t.Fatalf("Failed to upload: %v", err)
	}
	if url != "https://oppradar.example.com/media/images/op-1.jpg" {
		t.Errorf("Unexpected URL %q", url)
	}

	data, err := os.ReadFile(filepath.Join(rootDir, "images", "op-1.jpg"))
	if err != nil {
		t.Fatalf("Failed to read uploaded file: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("Unexpected file contents %q", data)
	}

	if err := store.Remove("images/op-1.jpg"); err != nil {
		t.Fatalf("Failed to remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(rootDir, "images", "op-1.jpg")); !os.IsNotExist(err) {
		t.Error("Expected file to be removed")
	}

	// Removing a missing file is not an error
	if err := store.Remove("images/op-1.jpg"); err != nil {
		t.Errorf("Expected idempotent remove, got %v", err)
	}
}

func TestFSStoreRejectsEscapingPaths(t *testing.T) {
	store := NewFSStore(t.TempDir(), "https://oppradar.example.com")

	for _, path := range []string{"../outside.jpg", "/etc/passwd", "a/../../b"} {
		if _, err := store.Upload(path, []byte("x"), "image/jpeg"); err == nil {
			t.Errorf("Expected rejection of path %q", path)
		}
	}
}
