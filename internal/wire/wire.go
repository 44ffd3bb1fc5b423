// Package wire holds the gRPC contract between the field client and the
// backend. Messages travel as google.protobuf.Struct so that no generated
// code is needed; the typed Go structs below are converted at the edges.
package wire

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "fieldsync.v1.SyncService"

const (
	MethodPing          = "/" + ServiceName + "/Ping"
	MethodSubmitRecord  = "/" + ServiceName + "/SubmitRecord"
	MethodRequestUpload = "/" + ServiceName + "/RequestUpload"
	MethodApplyChange   = "/" + ServiceName + "/ApplyChange"
)

const StatusOK = "OK"

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

// SubmitRecordRequest creates or updates a record on the backend. LocalID is
// the idempotency key: a resubmission of an accepted LocalID resolves to the
// same server id.
type SubmitRecordRequest struct {
	LocalID     string          `json:"local_id"`
	Title       string          `json:"title"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Attachments []string        `json:"attachments,omitempty"`
}

type SubmitRecordResponse struct {
	ID      string `json:"id"`
	Created bool   `json:"created"`
}

type RequestUploadRequest struct {
	AssetID     string `json:"asset_id"`
	RecordID    string `json:"record_id"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum,omitempty"`
}

// RequestUploadResponse carries a short-lived PUT target and the permanent
// URL the object will be reachable at once the PUT succeeds.
type RequestUploadResponse struct {
	Key       string `json:"key"`
	UploadURL string `json:"upload_url"`
	PublicURL string `json:"public_url"`
}

// ApplyChangeRequest delivers a queued comment or saved-reference mutation.
// ChangeID makes replays harmless.
type ApplyChangeRequest struct {
	ChangeID  string          `json:"change_id"`
	Kind      string          `json:"kind"`
	Operation string          `json:"operation"`
	EntityID  string          `json:"entity_id,omitempty"`
	ParentID  string          `json:"parent_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type ApplyChangeResponse struct {
	Applied bool `json:"applied"`
}

// ToStruct converts a JSON-tagged Go value into a protobuf Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}

	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%T is not an object: %w", v, err)
	}

	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("struct %T: %w", v, err)
	}
	return s, nil
}

// FromStruct decodes a protobuf Struct into the JSON-tagged value v points to.
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal struct: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("unmarshal into %T: %w", v, err)
	}
	return nil
}
