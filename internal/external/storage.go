package external

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Storage persists uploaded files and returns a public URL for them.
type Storage interface {
	Upload(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// SupabaseStorage uploads objects to a Supabase storage bucket.
type SupabaseStorage struct {
	baseURL string
	key     string
	bucket  string
	client  *http.Client
}

// NewSupabaseStorage creates a Supabase client. An empty URL or key yields a
// client that always returns ErrNotConfigured.
func NewSupabaseStorage(baseURL, key, bucket string, timeout time.Duration) *SupabaseStorage {
	if bucket == "" {
		bucket = "uploads"
	}
	return &SupabaseStorage{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		bucket:  bucket,
		client:  newHTTPClient(timeout),
	}
}

// Upload stores data under name, overwriting an existing object.
func (s *SupabaseStorage) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if s.baseURL == "" || s.key == "" {
		return "", ErrNotConfigured
	}
	object := s.bucket + "/" + escapePath(name)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/storage/v1/object/"+object, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("apikey", s.key)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	if _, err := send(s.client, req); err != nil {
		return "", err
	}
	return s.baseURL + "/storage/v1/object/public/" + object, nil
}

func escapePath(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
