package supabase

import (
	"fmt"
	"net/http"
	"time"

	storage "github.com/supabase-community/storage-go"
)

type StorageClient struct {
	client     *storage.Client
	bucket     string
	baseURL    string
	httpClient *http.Client
}

func NewStorageClient(supabaseURL, serviceRoleKey, bucket string) (*StorageClient, error) {
	// Ensure URL doesn't have trailing slash
	baseURL := supabaseURL
	if len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	client := storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil)

	return &StorageClient{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

// DownloadAndUpload fetches a provider-hosted asset and persists it under
// the given key, returning the durable public URL. Download and upload
// failures both surface to the caller; a task must never be marked success
// without a stored artifact.
func (s *StorageClient) DownloadAndUpload(sourceURL, key, contentType string) (string, error) {
	resp, err := s.httpClient.Get(sourceURL)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", sourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download %s: status %d", sourceURL, resp.StatusCode)
	}

	upsert := false
	_, err = s.client.UploadFile(s.bucket, key, resp.Body, storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return s.GetPublicURL(key), nil
}

func (s *StorageClient) GetPublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, key)
}

func (s *StorageClient) DeleteFile(key string) error {
	_, err := s.client.RemoveFile(s.bucket, []string{key})
	return err
}

// DeleteProjectFiles removes every stored asset under a project prefix.
// Used by the bulk project cleanup path.
func (s *StorageClient) DeleteProjectFiles(prefix string) error {
	files, err := s.client.ListFiles(s.bucket, prefix, storage.FileSearchOptions{
		Limit: 1000,
	})
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}

	if len(files) > 0 {
		filePaths := make([]string, len(files))
		for i, file := range files {
			filePaths[i] = file.Name
		}
		_, err = s.client.RemoveFile(s.bucket, filePaths)
		if err != nil {
			return fmt.Errorf("failed to delete files: %w", err)
		}
	}

	return nil
}

// DownloadFile reads a stored object back.
func (s *StorageClient) DownloadFile(key string) ([]byte, error) {
	data, err := s.client.DownloadFile(s.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}

	return data, nil
}
