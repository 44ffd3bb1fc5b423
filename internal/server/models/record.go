// Package models defines server-side data models persisted in the database.
package models

import (
	"encoding/json"
	"time"
)

// Record is an inspection record accepted from a field device. LocalID is the
// id the device assigned while offline and is unique across the table.
type Record struct {
	ID          string
	LocalID     string
	DeviceID    string
	Title       string
	Payload     json.RawMessage
	Attachments []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
