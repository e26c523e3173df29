package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"clipforge/internal/segments"
)

// Status represents the lifecycle of a highlight job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusFetching   Status = "fetching"
	StatusFetched    Status = "fetched"
	StatusCutting    Status = "cutting"
	StatusCut        Status = "cut"
	StatusComposing  Status = "composing"
	StatusComposed   Status = "composed"
	StatusFinishing  Status = "finishing"
	StatusFinished   Status = "finished"
	StatusPublishing Status = "publishing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Lane partitions jobs into the two scheduling classes.
type Lane string

const (
	LaneStandard  Lane = "standard"
	LaneExpedited Lane = "expedited"
)

var allStatuses = []Status{
	StatusPending,
	StatusFetching,
	StatusFetched,
	StatusCutting,
	StatusCut,
	StatusComposing,
	StatusComposed,
	StatusFinishing,
	StatusFinished,
	StatusPublishing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusFetching:   {},
	StatusCutting:    {},
	StatusComposing:  {},
	StatusFinishing:  {},
	StatusPublishing: {},
}

// ReadyStatuses are the states from which a worker may claim a job and run
// the next stage.
var ReadyStatuses = []Status{
	StatusPending,
	StatusFetched,
	StatusCut,
	StatusComposed,
	StatusFinished,
}

type statusTransition struct {
	from Status
	to   Status
}

// stageRollbackTransitions map an abandoned processing state back to the
// ready state it was claimed from, so a crashed worker's job can be retried.
var stageRollbackTransitions = []statusTransition{
	{from: StatusFetching, to: StatusPending},
	{from: StatusCutting, to: StatusFetched},
	{from: StatusComposing, to: StatusCut},
	{from: StatusFinishing, to: StatusComposed},
	{from: StatusPublishing, to: StatusFinished},
}

// Job represents one highlight-assembly-and-publish request persisted in SQLite.
type Job struct {
	ID            int64
	UserID        string
	SourceVideoID string
	SegmentsJSON  string
	Transition    string
	Plan          string
	Lane          Lane
	ShortsMode    bool

	Title         string
	Description   string
	TagsJSON      string
	PrivacyStatus string

	Status        Status
	SourceFile    string
	TrimDir       string
	MergedFile    string
	HighlightFile string
	ArtifactURL   string
	PublishURL    string
	ErrorMessage  string

	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string

	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
	LastHeartbeat *time.Time

	CancelRequested bool
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParseLane converts a string into a known Lane.
func ParseLane(value string) (Lane, bool) {
	switch Lane(strings.ToLower(strings.TrimSpace(value))) {
	case LaneStandard:
		return LaneStandard, true
	case LaneExpedited:
		return LaneExpedited, true
	default:
		return "", false
	}
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (j Job) IsProcessing() bool {
	_, ok := processingStatuses[j.Status]
	return ok
}

// IsTerminal reports whether the job has reached a final state.
func (j Job) IsTerminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// SetSegments encodes the planned segments onto the job.
func (j *Job) SetSegments(planned []segments.Segment) error {
	data, err := json.Marshal(planned)
	if err != nil {
		return fmt.Errorf("encode segments: %w", err)
	}
	j.SegmentsJSON = string(data)
	return nil
}

// Segments decodes the planned segment list stored on the job.
func (j *Job) Segments() ([]segments.Segment, error) {
	if strings.TrimSpace(j.SegmentsJSON) == "" {
		return nil, nil
	}
	var planned []segments.Segment
	if err := json.Unmarshal([]byte(j.SegmentsJSON), &planned); err != nil {
		return nil, fmt.Errorf("decode segments: %w", err)
	}
	return planned, nil
}

// SetTags encodes publish tags onto the job.
func (j *Job) SetTags(tags []string) error {
	data, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	j.TagsJSON = string(data)
	return nil
}

// Tags decodes the publish tags stored on the job.
func (j *Job) Tags() ([]string, error) {
	if strings.TrimSpace(j.TagsJSON) == "" {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(j.TagsJSON), &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return tags, nil
}

// SetProgress updates all three progress fields together.
func (j *Job) SetProgress(stage, message string, percent float64) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	j.ProgressPercent = percent
}

// SetFailed marks the job as failed with the given error message. Workspaces
// are left untouched so the failure stays diagnosable.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.ProgressPercent = 0
	j.ProgressMessage = message
	j.ProgressStage = "Failed"
	j.LastHeartbeat = nil
}

// StageKey returns the normalized stage identifier used in CLI/API presentation.
func (s Status) StageKey() string {
	switch s {
	case "":
		return ""
	case StatusPending:
		return "planned"
	case StatusCompleted:
		return "final"
	default:
		return string(s)
	}
}
