// Package common defines shared constants and sentinel errors used across
// client and server layers of fieldsync. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Admission errors. Returned synchronously to the caller, never queued.
	ErrQuotaExceeded   = errors.New("quota exceeded")
	ErrUnsupportedType = errors.New("unsupported type")
	ErrInvalidRecord   = errors.New("invalid record")

	// ErrInvalidChange is returned by the backend for a change it cannot apply.
	ErrInvalidChange = errors.New("invalid change")

	// Transient sync errors, retried up to MaxRetries.
	ErrUploadFailure     = errors.New("upload failure")
	ErrRecordSyncFailure = errors.New("record sync failure")

	// Fatal store initialization error.
	ErrSchemaMigration = errors.New("schema migration failure")

	// Orchestrator flow control.
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrOffline        = errors.New("offline")
)
