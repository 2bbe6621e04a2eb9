// Package storage keeps uploaded item photos in a blob bucket. The
// bucket URL decides the backing: a local directory for development, S3
// in deployment. Runs reference photos by storage key; public URLs are
// resolved on demand when a listing needs them.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"gocloud.dev/blob"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/s3blob"
)

type (
	// Images stores item photos and resolves their URLs
	Images struct {
		bucket *blob.Bucket
	}
)

const (
	keyPrefix   = "items/"
	resolveTTL  = time.Hour
	opTimeout   = 5 * time.Second
	maxUpload   = 20 << 20
	defaultType = "application/octet-stream"
)

// Open connects an image store to the bucket named by URL
func Open(ctx context.Context, bucketURL string) (*Images, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket: %w", err)
	}
	return &Images{bucket: bucket}, nil
}

// Upload stores one photo and returns its storage key
func (s *Images) Upload(
	ctx context.Context, filename string, r io.Reader,
) (string, error) {
	key := keyPrefix + uuid.NewString() + strings.ToLower(path.Ext(filename))

	w, err := s.bucket.NewWriter(ctx, key, &blob.WriterOptions{
		ContentType: contentType(filename),
	})
	if err != nil {
		return "", fmt.Errorf("open writer: %w", err)
	}

	if _, err := io.Copy(w, io.LimitReader(r, maxUpload)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("commit image: %w", err)
	}
	return key, nil
}

// Get reads a stored photo back
func (s *Images) Get(
	ctx context.Context, key string,
) ([]byte, string, error) {
	attrs, err := s.bucket.Attributes(ctx, key)
	if err != nil {
		return nil, "", err
	}
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, "", err
	}
	return data, attrs.ContentType, nil
}

// Resolve returns a shareable URL for a stored photo. Buckets that
// cannot sign URLs fall back to the bare key, which local platform
// bridges treat as a relative reference
func (s *Images) Resolve(key string) string {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	url, err := s.bucket.SignedURL(ctx, key, &blob.SignedURLOptions{
		Expiry: resolveTTL,
	})
	if err != nil {
		return key
	}
	return url
}

// Close releases the bucket
func (s *Images) Close() error {
	return s.bucket.Close()
}

func contentType(filename string) string {
	if t := mime.TypeByExtension(path.Ext(filename)); t != "" {
		return t
	}
	return defaultType
}
