package metadata

import (
	"context"
	"fmt"
	"time"
)

// Keys written by the sync orchestrator.
const (
	KeyLastSyncAt = "last_sync_at"
	KeyStage      = "stage"
)

// SetTime stores t as RFC 3339 UTC text under key.
func SetTime(ctx context.Context, r Repository, key string, t time.Time) error {
	return r.Set(ctx, key, []byte(t.UTC().Format(time.RFC3339Nano)))
}

// GetTime reads a time written by SetTime. An absent key yields the zero time.
func GetTime(ctx context.Context, r Repository, key string) (time.Time, error) {
	v, err := r.Get(ctx, key)
	if err != nil || len(v) == 0 {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, string(v))
	if err != nil {
		return time.Time{}, fmt.Errorf("metadata[%s]: %w", key, err)
	}
	return t, nil
}
