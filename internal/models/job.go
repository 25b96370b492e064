package models

import (
	"time"
)

// Status is the coarse export job lifecycle state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Stage is the finer sub-state shown to users while a job runs.
type Stage string

const (
	StageQueued    Stage = "queued"
	StagePreparing Stage = "preparing"
	StageRendering Stage = "rendering"
	StagePackaging Stage = "packaging"
	StageSaving    Stage = "saving"
	StageCompleted Stage = "completed"
	StageFailed    Stage = "failed"
)

var stageRank = map[Stage]int{
	StageQueued:    0,
	StagePreparing: 1,
	StageRendering: 2,
	StagePackaging: 3,
	StageSaving:    4,
	StageCompleted: 5,
	StageFailed:    5,
}

// Rank orders stages so a job never moves backwards.
func (s Stage) Rank() int {
	return stageRank[s]
}

// ExportJob is a full snapshot of one export job. Snapshots are values; a
// published snapshot never changes after it is sent.
type ExportJob struct {
	ID             string    `json:"jobId"`
	ProjectID      string    `json:"projectId"`
	Owner          string    `json:"owner"`
	Status         Status    `json:"status"`
	Stage          Stage     `json:"stage"`
	Progress       int       `json:"progress"`
	Message        string    `json:"message"`
	ZipURL         string    `json:"zipUrl,omitempty"`
	FileCount      int       `json:"fileCount,omitempty"`
	TotalSizeBytes int64     `json:"totalSizeBytes,omitempty"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ExportRecord is a completed export persisted in Postgres so archive
// locations survive restarts.
type ExportRecord struct {
	ID             string    `json:"id"`
	JobID          string    `json:"jobId"`
	ProjectID      string    `json:"projectId"`
	Owner          string    `json:"owner"`
	ZipURL         string    `json:"zipUrl"`
	StorageKey     string    `json:"storageKey"`
	FileCount      int       `json:"fileCount"`
	TotalSizeBytes int64     `json:"totalSizeBytes"`
	Languages      []string  `json:"languages"`
	DeviceIDs      []string  `json:"deviceIds"`
	TemplateID     string    `json:"templateId"`
	CreatedAt      time.Time `json:"createdAt"`
}
