package models

import "encoding/json"

// Comment is a note attached to a record. ChangeID is the client's queue id.
type Comment struct {
	ChangeID string
	RecordID string
	DeviceID string
	Body     json.RawMessage
}

// SavedReference is a bookmark on a record. EntityID is stable across the
// create and delete changes for the same reference.
type SavedReference struct {
	EntityID string
	ChangeID string
	RecordID string
	DeviceID string
	Body     json.RawMessage
}
