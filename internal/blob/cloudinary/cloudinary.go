package cloudinary

import (
	"context"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/tripline/chat-server/internal/blob"
)

// Store uploads blobs to Cloudinary and returns the secure URL as the
// durable reference.
type Store struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// New initializes a Cloudinary-backed blob store.
func New(cloudName, apiKey, apiSecret, folder string) (*Store, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &Store{cld: cld, folder: folder}, nil
}

// Put streams the blob through a counting reader so progress is reported as
// Cloudinary consumes the body.
func (s *Store) Put(ctx context.Context, b blob.Blob, progress blob.ProgressFunc) (*blob.Ref, error) {
	src := blob.NewCountingReader(b.Reader, progress)

	result, err := s.cld.Upload.Upload(ctx, src, uploader.UploadParams{
		Folder:       s.folder,
		ResourceType: "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("upload to cloudinary: %w", err)
	}

	return &blob.Ref{
		Key:  result.PublicID,
		URL:  result.SecureURL,
		Size: int64(result.Bytes),
	}, nil
}

var _ blob.Store = (*Store)(nil)
