package netx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

const defaultContentType = "application/octet-stream"

// UploadToS3PresignedURL PUTs file to a presigned object-storage URL.
// An empty contentType falls back to application/octet-stream. The
// Content-Type must match the one the URL was signed for.
func UploadToS3PresignedURL(ctx context.Context, client *http.Client, url, contentType string, file []byte) error {
	if client == nil {
		client = http.DefaultClient
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(file))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(file))

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upload failed: %s; body: %s", resp.Status, string(b))
	}
	return nil
}
