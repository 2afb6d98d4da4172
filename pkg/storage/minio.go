package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type minioStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinioStorage creates an S3 compatible ImageStorage and makes sure the
// bucket exists.
func NewMinioStorage(ctx context.Context, opts Options) (ImageStorage, error) {
	client, err := minio.New(opts.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.MinioAccessKey, opts.MinioSecretKey, ""),
		Secure: opts.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to minio server: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", opts.MinioBucket, err)
		}
	}

	publicURL := opts.MinioPublicURL
	if publicURL == "" {
		scheme := "http"
		if opts.MinioUseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, opts.MinioEndpoint, opts.MinioBucket)
	}

	return &minioStorage{
		client:    client,
		bucket:    opts.MinioBucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

func (s *minioStorage) UploadImage(ctx context.Context, r io.Reader, folder, fileName string) (string, error) {
	objectName := minioObjectName(folder, fileName)

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucket, objectName, r, -1, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object to minio: %w", err)
	}

	return s.publicURL + "/" + objectName, nil
}

func (s *minioStorage) DeleteImage(ctx context.Context, fileURL string) error {
	objectName, ok := minioObjectFromURL(s.publicURL, fileURL)
	if !ok {
		return fmt.Errorf("url %s does not belong to bucket %s", fileURL, s.bucket)
	}

	if err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object from minio: %w", err)
	}
	return nil
}

func minioObjectName(folder, fileName string) string {
	base := filepath.Base(fileName)
	return path.Join(folder, uuid.NewString()+"-"+base)
}

func minioObjectFromURL(publicURL, fileURL string) (string, bool) {
	prefix := publicURL + "/"
	if !strings.HasPrefix(fileURL, prefix) {
		return "", false
	}
	name, err := url.PathUnescape(strings.TrimPrefix(fileURL, prefix))
	if err != nil || name == "" {
		return "", false
	}
	return name, true
}
