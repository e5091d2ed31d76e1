package render

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/akibsystems/showgeki2-sub004/internal/config"
)

// StorageClient deletes rendered objects through the renderer's storage API.
type StorageClient struct {
	baseURL string
	secret  string
	client  *http.Client
}

func NewStorageClient(cfg *config.Config) *StorageClient {
	return &StorageClient{
		baseURL: cfg.RendererURL(),
		secret:  cfg.WebhookSecret,
		client:  &http.Client{Timeout: cfg.WebhookTimeout},
	}
}

// DeleteObject removes one stored object by path. A missing object (404)
// is treated as already deleted.
func (s *StorageClient) DeleteObject(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}

	endpoint := fmt.Sprintf("%s/storage?path=%s", s.baseURL, url.QueryEscape(path))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	if s.secret != "" {
		req.Header.Set("X-Webhook-Secret", s.secret)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("storage delete request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("storage delete returned %d", resp.StatusCode)
	}
	return nil
}
