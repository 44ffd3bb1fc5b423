// Package models defines the client-side entities kept in the local store
// and the values the sync orchestrator reports to its callers.
package models

import (
	"encoding/json"
	"time"
)

// RecordStatus is the lifecycle state of a Draft Record.
type RecordStatus string

const (
	RecordPending RecordStatus = "pending"
	RecordSynced  RecordStatus = "synced"
	RecordError   RecordStatus = "error"
)

// Record is a user-authored draft captured on the device.
type Record struct {
	// ID is the local identifier, see GenerateID.
	ID string

	Title string

	// Payload holds the arbitrary domain fields as a JSON object.
	Payload json.RawMessage

	Status RecordStatus

	// LastError is the message of the most recent failed submission.
	LastError string

	// ServerID is set once the backend accepted the record.
	ServerID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Fields decodes Payload into a map. An empty payload yields an empty map.
func (r *Record) Fields() (map[string]any, error) {
	m := map[string]any{}
	if len(r.Payload) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(r.Payload, &m); err != nil {
		return nil, err
	}
	return m, nil
}
