package models

import (
	"math"
	"time"
)

// Stage names the orchestrator phase a Progress event belongs to.
type Stage string

const (
	StageImages  Stage = "images"
	StageCases   Stage = "cases"
	StageChanges Stage = "changes"
	StageIdle    Stage = "idle"
)

type Progress struct {
	Stage           Stage
	CurrentItem     int
	TotalItems      int
	CurrentItemName string
	Error           string
}

func (p Progress) Percentage() int {
	return Percentage(p.CurrentItem, p.TotalItems)
}

// Percentage returns current/total*100 rounded to the nearest integer, and 0
// when total is 0.
func Percentage(current, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(current) * 100 / float64(total)))
}

// RunResult summarizes one sync run.
type RunResult struct {
	Success       bool
	SyncedCases   int
	SyncedImages  int
	SyncedChanges int
	Errors        []string
	StartedAt     time.Time
	FinishedAt    time.Time
}

type PendingCount struct {
	Records int
	Assets  int
	Changes int
	Total   int
}

type SyncStatus struct {
	HasPending     bool
	PendingRecords int
	PendingAssets  int
	PendingChanges int
	FailedRecords  int
	FailedAssets   int
	FailedChanges  int
	LastSyncAt     time.Time
	Stage          Stage
}
