// Package remote is the client side of the backend contract: record
// submission, change delivery and asset upload through presigned URLs.
package remote

import (
	"context"
	"encoding/json"
)

// AssetMeta describes an asset being uploaded.
type AssetMeta struct {
	AssetID  string
	RecordID string
	FileName string
	MimeType string
	Size     int64
	Checksum string
}

// Submission is a record create/update keyed by its local id.
type Submission struct {
	LocalID     string
	Title       string
	Payload     json.RawMessage
	Attachments []string
}

// Change is a queued comment or saved-reference mutation.
type Change struct {
	ID        string
	Kind      string
	Operation string
	EntityID  string
	ParentID  string
	Payload   json.RawMessage
}

// Adapter is what the sync orchestrator needs from the backend. Every error
// is treated as transient by the caller.
type Adapter interface {
	// UploadAsset stores data and returns its permanent URL.
	UploadAsset(ctx context.Context, data []byte, meta AssetMeta) (string, error)

	// SubmitRecord creates or updates a record and returns the server id.
	// Resubmitting an accepted LocalID yields the same id.
	SubmitRecord(ctx context.Context, s Submission) (string, error)

	ApplyChange(ctx context.Context, c Change) error
}
