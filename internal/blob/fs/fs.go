package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/tripline/chat-server/internal/blob"
)

// Store writes blobs to a local directory. It is the development and test
// backend; production deployments point at Cloudinary instead.
type Store struct {
	baseDir string
	baseURL string
}

// New creates a filesystem blob store rooted at baseDir. Durable references
// are baseURL + "/" + key.
func New(baseDir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &Store{baseDir: baseDir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put streams the blob to disk, hashing as it copies. The partial file is
// removed on any error so a failed upload leaves nothing behind.
func (s *Store) Put(ctx context.Context, b blob.Blob, progress blob.ProgressFunc) (*blob.Ref, error) {
	name := filepath.Base(b.Name)
	if name == "" || name == "." || name == ".." {
		name = "blob"
	}
	key := fmt.Sprintf("%s-%s", uuid.NewString(), name)
	path := filepath.Join(s.baseDir, key)

	dest, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create blob file: %w", err)
	}
	defer dest.Close()

	hasher := sha256.New()
	src := blob.NewCountingReader(contextReader{ctx: ctx, r: b.Reader}, progress)
	written, err := io.Copy(io.MultiWriter(dest, hasher), src)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write blob: %w", err)
	}
	if b.Size > 0 && written != b.Size {
		os.Remove(path)
		return nil, fmt.Errorf("short write: got %d bytes, declared %d", written, b.Size)
	}

	return &blob.Ref{
		Key:    key,
		URL:    s.baseURL + "/" + key,
		Size:   written,
		SHA256: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// contextReader aborts reads once ctx is cancelled, so a cancelled upload
// stops mid-copy instead of draining the source.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

var _ blob.Store = (*Store)(nil)
