package storage

import (
	"context"
	"fmt"
	"io"
)

// ImageStorage stores user supplied images (avatars, post photos, event
// banners) and hands back a public URL.
type ImageStorage interface {
	// UploadImage uploads image from reader and returns the public URL.
	// folder is a logical folder in storage (e.g. "avatars").
	UploadImage(ctx context.Context, r io.Reader, folder, fileName string) (string, error)
	// DeleteImage deletes image from storage using its URL.
	DeleteImage(ctx context.Context, fileURL string) error
}

type Options struct {
	Driver string

	CloudinaryFolder string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioPublicURL string
}

// New selects the storage driver named in opts.
func New(ctx context.Context, opts Options) (ImageStorage, error) {
	switch opts.Driver {
	case "", "cloudinary":
		return NewCloudinaryStorage(opts.CloudinaryFolder)
	case "minio":
		return NewMinioStorage(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
