package queue

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const jobColumns = `id, user_id, source_video_id, segments_json, transition, plan, lane, shorts_mode,
	title, description, tags_json, privacy_status,
	status, source_file, trim_dir, merged_file, highlight_file, artifact_url, publish_url, error_message,
	progress_stage, progress_percent, progress_message,
	created_at, updated_at, completed_at, last_heartbeat, cancel_requested`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job             Job
		progressStage   sql.NullString
		progressMessage sql.NullString
		createdAt       string
		updatedAt       string
		completedAt     sql.NullString
		lastHeartbeat   sql.NullString
		shortsMode      int
		cancelRequested int
		lane            string
		status          string
	)

	err := row.Scan(
		&job.ID, &job.UserID, &job.SourceVideoID, &job.SegmentsJSON, &job.Transition, &job.Plan, &lane, &shortsMode,
		&job.Title, &job.Description, &job.TagsJSON, &job.PrivacyStatus,
		&status, &job.SourceFile, &job.TrimDir, &job.MergedFile, &job.HighlightFile, &job.ArtifactURL, &job.PublishURL, &job.ErrorMessage,
		&progressStage, &job.ProgressPercent, &progressMessage,
		&createdAt, &updatedAt, &completedAt, &lastHeartbeat, &cancelRequested,
	)
	if err != nil {
		return nil, err
	}

	job.Lane = Lane(lane)
	job.Status = Status(status)
	job.ShortsMode = shortsMode != 0
	job.CancelRequested = cancelRequested != 0
	job.ProgressStage = progressStage.String
	job.ProgressMessage = progressMessage.String

	if job.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if job.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if completedAt.Valid && strings.TrimSpace(completedAt.String) != "" {
		parsed, err := parseTimestamp(completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		job.CompletedAt = &parsed
	}
	if lastHeartbeat.Valid && strings.TrimSpace(lastHeartbeat.String) != "" {
		parsed, err := parseTimestamp(lastHeartbeat.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_heartbeat: %w", err)
		}
		job.LastHeartbeat = &parsed
	}

	return &job, nil
}

func parseTimestamp(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

func formatTimestamp(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTimestamp(*value)
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", count), ", ")
}
