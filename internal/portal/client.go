// Package portal provides the HTTP client for the remote portal contracts:
// upload-credential issuance, direct object transfer, photo metadata
// registration, and the project list. The contracts are opaque REST; any
// non-2xx response is reported as a retryable failure of its step.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fieldport/fieldsync/internal/errors"
	"github.com/fieldport/fieldsync/internal/models"
)

// Client talks to the portal API and the object store.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a portal client for the given API base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}
}

// UploadCredential is the short-lived write credential for the object store.
type UploadCredential struct {
	PresignedURL string `json:"presignedUrl"`
	Key          string `json:"key"`
	PublicURL    string `json:"publicUrl"`
}

// IssueUploadCredential requests a presigned upload slot (protocol step 2).
func (c *Client) IssueUploadCredential(ctx context.Context, filename, contentType string, size int64) (*UploadCredential, error) {
	body, err := json.Marshal(map[string]any{
		"filename":    filename,
		"contentType": contentType,
		"size":        size,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalid, "encode credential request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/r2/upload", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCredentialFailed, "build credential request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCredentialFailed, "credential request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.New(errors.ErrCredentialFailed,
			fmt.Sprintf("credential request returned status %d", resp.StatusCode))
	}

	var cred UploadCredential
	if err := json.NewDecoder(resp.Body).Decode(&cred); err != nil {
		return nil, errors.Wrap(errors.ErrCredentialFailed, "decode credential response", err)
	}
	return &cred, nil
}

// TransferObject sends the raw binary payload to the presigned URL
// (protocol step 3).
func (c *Client) TransferObject(ctx context.Context, presignedURL, mimeType string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, presignedURL, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(errors.ErrTransferFailed, "build transfer request", err)
	}
	req.Header.Set("Content-Type", mimeType)
	req.ContentLength = int64(len(payload))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrTransferFailed, "transfer request failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.New(errors.ErrTransferFailed,
			fmt.Sprintf("transfer returned status %d", resp.StatusCode))
	}
	return nil
}

// PhotoRecord is one entry in the metadata registration body.
type PhotoRecord struct {
	FileURL     string   `json:"fileUrl"`
	FileKey     string   `json:"fileKey"`
	FileName    string   `json:"fileName"`
	FileSize    int64    `json:"fileSize"`
	MimeType    string   `json:"mimeType"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Accuracy    *float64 `json:"accuracy"`
	Category    string   `json:"category"`
	Note        string   `json:"note"`
	CapturedAt  int64    `json:"capturedAt"`
	MilestoneID *int64   `json:"milestoneId"`
	Tags        []string `json:"tags"`
}

// RegisterPhotos records uploaded photo metadata with the portal
// (protocol step 4).
func (c *Client) RegisterPhotos(ctx context.Context, projectID int64, photos []PhotoRecord) error {
	body, err := json.Marshal(map[string]any{"photos": photos})
	if err != nil {
		return errors.Wrap(errors.ErrInvalid, "encode metadata request", err)
	}

	url := fmt.Sprintf("%s/api/projects/%d/photos", c.baseURL, projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(errors.ErrMetadataFailed, "build metadata request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrMetadataFailed, "metadata request failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.New(errors.ErrMetadataFailed,
			fmt.Sprintf("metadata registration returned status %d", resp.StatusCode))
	}
	return nil
}

// FetchProjects refreshes the offline project snapshot. Not part of the
// upload protocol; called opportunistically while online.
func (c *Client) FetchProjects(ctx context.Context) ([]models.CachedProjectRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/projects", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("project list request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("project list returned status %d", resp.StatusCode)
	}

	// The endpoint wraps the list or returns it bare depending on version.
	var wrapped struct {
		Projects []models.CachedProjectRef `json:"projects"`
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Projects != nil {
		return wrapped.Projects, nil
	}
	var bare []models.CachedProjectRef
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, fmt.Errorf("decode project list: %w", err)
	}
	return bare, nil
}
