// Package media implements the attachment-storage collaborator: raw uploads
// go in, stable publicly fetchable URLs come out.
package media

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Storage stores an uploaded blob and returns a stable URL for it.
type Storage interface {
	Upload(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
}

// MinIOStorage stores attachments in a MinIO bucket.
type MinIOStorage struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// Options configures the MinIO connection.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewMinIO connects to MinIO and ensures the bucket exists.
func NewMinIO(ctx context.Context, opts Options) (*MinIOStorage, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	scheme := "http://"
	if opts.UseSSL {
		scheme = "https://"
	}

	return &MinIOStorage{
		client:  client,
		bucket:  opts.Bucket,
		baseURL: scheme + opts.Endpoint + "/" + opts.Bucket,
	}, nil
}

// Upload writes the blob under name and returns its public URL.
func (s *MinIOStorage) Upload(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, name, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return s.baseURL + "/" + name, nil
}
