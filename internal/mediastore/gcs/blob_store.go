// Package gcs provides an Adapter backed by Google Cloud Storage, grounded
// on the teacher's internal/storage/gcs.BlobStore, for the object-backed
// storage option named in §1.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
)

// Store writes media to a configured GCS bucket under an optional prefix.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed Store.
func New(client *storage.Client, bucket, prefix string) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Store{client: client, bucket: bucket, prefix: prefix}, nil
}

// StoragePath returns "gs://<bucket>/<prefix>".
func (s *Store) StoragePath() string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, s.prefix)
}

// TargetDir returns storagePath unchanged; object names under a bucket are
// flat keys, so there is no directory to create.
func (s *Store) TargetDir(storagePath string) (string, error) {
	return storagePath, nil
}

// UniqueFileName returns an object key under the bucket prefix, suffixing
// -2, -3, ... when an object already exists at that key.
func (s *Store) UniqueFileName(ctx context.Context, name, _ string) (string, error) {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := path.Join(s.prefix, name)
	for i := 2; ; i++ {
		exists, err := s.objectExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check object existence: %w", err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = path.Join(s.prefix, stem+"-"+strconv.Itoa(i)+ext)
	}
}

func (s *Store) objectExists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if err == storage.ErrObjectNotExist {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SaveRaw uploads data to relativePath (an object key within the bucket,
// prefix included, as UniqueFileName returns it) and returns it unchanged.
func (s *Store) SaveRaw(ctx context.Context, data []byte, relativePath string) (string, error) {
	writer := s.client.Bucket(s.bucket).Object(relativePath).NewWriter(ctx)
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return relativePath, nil
}
