package models

import (
	"encoding/json"
	"time"
)

type ChangeKind string

const (
	KindRecord         ChangeKind = "record"
	KindComment        ChangeKind = "comment"
	KindSavedReference ChangeKind = "saved-reference"
)

type ChangeOperation string

const (
	OpCreate ChangeOperation = "create"
	OpUpdate ChangeOperation = "update"
	OpDelete ChangeOperation = "delete"
)

type ChangeStatus string

const (
	ChangePending ChangeStatus = "pending"
	ChangeError   ChangeStatus = "error"
)

// PendingChange is a queued mutation awaiting delivery to the backend.
//
// For KindRecord EntityID is the record's local id and RetryCount is the
// record's retry counter. For comments ParentID names the record, local or
// server id.
type PendingChange struct {
	ID        string
	Kind      ChangeKind
	Operation ChangeOperation
	EntityID  string
	ParentID  string
	Payload   json.RawMessage

	RetryCount int
	LastError  string
	Status     ChangeStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}
