package supabase

import (
	"fmt"
	"io"
	"strings"

	storage "github.com/supabase-community/storage-go"
)

type StorageClient struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewStorageClient(supabaseURL, serviceKey, bucket string) (*StorageClient, error) {
	if bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	baseURL := strings.TrimRight(supabaseURL, "/")
	client := storage.NewClient(baseURL+"/storage/v1", serviceKey, nil)

	return &StorageClient{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
	}, nil
}

// objectPath strips the leading slash archive paths carry; object keys are
// bucket-relative.
func objectPath(path string) string {
	return strings.TrimLeft(path, "/")
}

// Upload writes the object at path, overwriting an existing one.
func (s *StorageClient) Upload(path string, body io.Reader, contentType string) error {
	upsert := true
	_, err := s.client.UploadFile(s.bucket, objectPath(path), body, storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	return nil
}

func (s *StorageClient) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, objectPath(path))
}
