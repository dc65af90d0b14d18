package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storagev1 "google.golang.org/api/storage/v1"
)

// GCSStore uploads booking photos to a Google Cloud Storage bucket using a
// service-account credentials file.
type GCSStore struct {
	svc    *storagev1.Service
	bucket string
}

func NewGCSStore(ctx context.Context, credentialsFile, bucket string) (*GCSStore, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, storagev1.DevstorageReadWriteScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	client := config.Client(ctx)

	svc, err := storagev1.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create storage service: %w", err)
	}

	return &GCSStore{svc: svc, bucket: bucket}, nil
}

func (s *GCSStore) Upload(ctx context.Context, path string, content []byte, contentType string) (string, error) {
	object := &storagev1.Object{Name: path}
	_, err := s.svc.Objects.
		Insert(s.bucket, object).
		Media(bytes.NewReader(content), googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload object %s: %w", path, err)
	}

	return s.objectURL(path), nil
}

func (s *GCSStore) objectURL(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, strings.Join(parts, "/"))
}
