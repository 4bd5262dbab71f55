package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

var (
	// ErrObjectNotFound indicates the file service answered 404 for an object.
	// This is a semantic miss, not a transport failure, and is never retried.
	ErrObjectNotFound = errors.New("file object not found")
)

// FileDto describes an object stored in the file service
type FileDto struct {
	ObjectName   string `json:"objectName"`
	ContentType  string `json:"contentType"`
	Size         int64  `json:"size"`
	PresignedURL string `json:"presignedUrl"`
}

// FileUpload carries the bytes and metadata of an inbound multipart file
type FileUpload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// IsEmpty reports whether the upload carries no bytes
func (u FileUpload) IsEmpty() bool {
	return len(u.Content) == 0
}

// FileServiceClient defines the outbound operations against the file-storage service
type FileServiceClient interface {
	UploadProductImage(ctx context.Context, sku string, upload FileUpload) (*FileDto, error)
	GetPreviewURL(ctx context.Context, objectName string) (string, error)
}

// StatusError is returned for non-2xx file-service responses other than 404
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("file service returned status %d", e.StatusCode)
}

// isTransient reports whether an error is worth retrying: network failures
// and server-side (5xx) responses. Client-side statuses are final.
func isTransient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError
	}
	return !errors.Is(err, ErrObjectNotFound)
}

type restClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRESTClient creates a FileServiceClient talking plain HTTP, without any
// resilience policy. Wrap it with NewResilientClient for production use.
func NewRESTClient(baseURL string, timeout time.Duration) FileServiceClient {
	return &restClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UploadProductImage sends the file to POST /api/v1/files/upload/product/{sku}
// as multipart/form-data and returns the stored object's metadata.
func (c *restClient) UploadProductImage(ctx context.Context, sku string, upload FileUpload) (*FileDto, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", upload.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart form: %w", err)
	}
	if _, err := part.Write(upload.Content); err != nil {
		return nil, fmt.Errorf("failed to write multipart content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart form: %w", err)
	}

	uploadURL := fmt.Sprintf("%s/api/v1/files/upload/product/%s", c.baseURL, url.PathEscape(sku))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call file service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	var dto FileDto
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return nil, fmt.Errorf("failed to decode file service response: %w", err)
	}

	// The file service does not echo content type and size back; fill them
	// in from the upload so callers get a complete FileDto.
	dto.ContentType = upload.ContentType
	dto.Size = int64(len(upload.Content))

	return &dto, nil
}

// GetPreviewURL fetches a presigned preview URL for the given object name
// from GET /api/v1/files/preview?objectName=
func (c *restClient) GetPreviewURL(ctx context.Context, objectName string) (string, error) {
	previewURL := fmt.Sprintf("%s/api/v1/files/preview?objectName=%s", c.baseURL, url.QueryEscape(objectName))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, previewURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build preview request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call file service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrObjectNotFound
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &StatusError{StatusCode: resp.StatusCode}
	}

	urlBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read preview response: %w", err)
	}

	return string(urlBytes), nil
}
