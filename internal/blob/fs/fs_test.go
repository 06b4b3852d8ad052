package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tripline/chat-server/internal/blob"
)

func TestPutWritesFileAndHashes(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "http://localhost:8080/uploads/")
	if err != nil {
		t.Fatalf("new store failed: %v", err)
	}

	content := "hello blob store"
	var reported []int64
	ref, err := s.Put(context.Background(), blob.Blob{
		Name:        "note.txt",
		ContentType: "text/plain",
		Size:        int64(len(content)),
		Reader:      strings.NewReader(content),
	}, func(written int64) {
		reported = append(reported, written)
	})
	if err != nil {
		t.Fatalf("put failed: %v", err)
	}

	if ref.Size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), ref.Size)
	}
	if !strings.HasSuffix(ref.Key, "-note.txt") {
		t.Errorf("expected key to keep the file name, got %q", ref.Key)
	}
	if !strings.HasPrefix(ref.URL, "http://localhost:8080/uploads/") {
		t.Errorf("unexpected URL %q", ref.URL)
	}

	sum := sha256.Sum256([]byte(content))
	if ref.SHA256 != hex.EncodeToString(sum[:]) {
		t.Errorf("digest mismatch: %s", ref.SHA256)
	}

	data, err := os.ReadFile(filepath.Join(dir, ref.Key))
	if err != nil {
		t.Fatalf("read written blob: %v", err)
	}
	if string(data) != content {
		t.Errorf("stored content mismatch: %q", data)
	}

	if len(reported) == 0 {
		t.Fatal("expected progress callbacks")
	}
	last := int64(-1)
	for _, w := range reported {
		if w <= last {
			t.Errorf("progress not increasing: %d after %d", w, last)
		}
		last = w
	}
	if last != int64(len(content)) {
		t.Errorf("final progress %d, expected %d", last, len(content))
	}
}

func TestPutRejectsShortWrite(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "http://x")
	if err != nil {
		t.Fatalf("new store failed: %v", err)
	}

	_, err = s.Put(context.Background(), blob.Blob{
		Name:   "f",
		Size:   100, // declared larger than the stream
		Reader: strings.NewReader("short"),
	}, nil)
	if err == nil {
		t.Fatal("expected short write error")
	}

	assertDirEmpty(t, dir)
}

func TestPutCleansUpOnCancel(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "http://x")
	if err != nil {
		t.Fatalf("new store failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Put(ctx, blob.Blob{
		Name:   "f",
		Size:   5,
		Reader: strings.NewReader("hello"),
	}, nil)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}

	assertDirEmpty(t, dir)
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no leftover files, found %d", len(entries))
	}
}
