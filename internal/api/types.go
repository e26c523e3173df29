package api

import "clipforge/internal/segments"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// SubmitRequest carries one highlight request through admission.
type SubmitRequest struct {
	UserID         string           `json:"userId"`
	SourceVideoID  string           `json:"sourceVideoId"`
	SourceDuration float64          `json:"sourceDuration"`
	Ranges         []segments.Range `json:"segments"`
	Transition     string           `json:"transition"`
	Plan           string           `json:"plan"`
	ShortsMode     bool             `json:"shortsMode"`
	Title          string           `json:"title,omitempty"`
	Description    string           `json:"description,omitempty"`
	Tags           []string         `json:"tags,omitempty"`
	PrivacyStatus  string           `json:"privacyStatus,omitempty"`
}

// JobView describes a queue job in a transport-friendly format.
type JobView struct {
	ID            int64       `json:"id"`
	UserID        string      `json:"userId"`
	SourceVideoID string      `json:"sourceVideoId"`
	Plan          string      `json:"plan"`
	Lane          string      `json:"lane"`
	Transition    string      `json:"transition"`
	ShortsMode    bool        `json:"shortsMode"`
	Status        string      `json:"status"`
	Progress      JobProgress `json:"progress"`
	ErrorMessage  string      `json:"errorMessage,omitempty"`
	ArtifactURL   string      `json:"artifactUrl,omitempty"`
	PublishURL    string      `json:"publishUrl,omitempty"`
	CreatedAt     string      `json:"createdAt,omitempty"`
	UpdatedAt     string      `json:"updatedAt,omitempty"`
	CompletedAt   string      `json:"completedAt,omitempty"`
}

// JobProgress captures stage progress information for a queue job.
type JobProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastJob     *JobView       `json:"lastJob,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// JobListResponse wraps a collection of jobs for API responses.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job JobView `json:"job"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// DaemonStatus reports daemon process state over the HTTP API.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	QueueDBPath  string         `json:"queueDbPath"`
	LockFilePath string         `json:"lockFilePath"`
	Workflow     WorkflowStatus `json:"workflow"`
}
