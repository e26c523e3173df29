package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// NewJobParams carries the admission-validated request that creates a job.
type NewJobParams struct {
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
}

// NewJob inserts a pending job for a validated highlight request.
func (s *Store) NewJob(ctx context.Context, params NewJobParams) (*Job, error) {
	timestamp := formatTimestamp(time.Now())

	privacy := params.PrivacyStatus
	if privacy == "" {
		privacy = "unlisted"
	}
	lane := params.Lane
	if lane == "" {
		lane = LaneStandard
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            user_id, source_video_id, segments_json, transition, plan, lane, shorts_mode,
            title, description, tags_json, privacy_status,
            status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		params.UserID,
		params.SourceVideoID,
		params.SegmentsJSON,
		params.Transition,
		params.Plan,
		string(lane),
		boolToInt(params.ShortsMode),
		params.Title,
		params.Description,
		params.TagsJSON,
		privacy,
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return job, nil
}

// Update persists all mutable job fields.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	if job.Status == StatusCompleted && job.CompletedAt == nil {
		now := job.UpdatedAt
		job.CompletedAt = &now
	}

	_, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET
            segments_json = ?, transition = ?, plan = ?, lane = ?, shorts_mode = ?,
            title = ?, description = ?, tags_json = ?, privacy_status = ?,
            status = ?, source_file = ?, trim_dir = ?, merged_file = ?, highlight_file = ?,
            artifact_url = ?, publish_url = ?, error_message = ?,
            progress_stage = ?, progress_percent = ?, progress_message = ?,
            updated_at = ?, completed_at = ?, last_heartbeat = ?, cancel_requested = ?
         WHERE id = ?`,
		job.SegmentsJSON,
		job.Transition,
		job.Plan,
		string(job.Lane),
		boolToInt(job.ShortsMode),
		job.Title,
		job.Description,
		job.TagsJSON,
		job.PrivacyStatus,
		string(job.Status),
		job.SourceFile,
		job.TrimDir,
		job.MergedFile,
		job.HighlightFile,
		job.ArtifactURL,
		job.PublishURL,
		job.ErrorMessage,
		nullableString(job.ProgressStage),
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		formatTimestamp(job.UpdatedAt),
		nullableTime(job.CompletedAt),
		nullableTime(job.LastHeartbeat),
		boolToInt(job.CancelRequested),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job %d: %w", job.ID, err)
	}
	return nil
}

// Enqueue is idempotent: a job already in a non-terminal state is returned
// untouched. Failed and cancelled jobs are reset to pending so they can be
// retried explicitly.
func (s *Store) Enqueue(ctx context.Context, id int64) (*Job, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %d not found", id)
	}
	if !job.IsTerminal() || job.Status == StatusCompleted {
		return job, nil
	}

	job.Status = StatusPending
	job.ErrorMessage = ""
	job.CancelRequested = false
	job.SetProgress("", "", 0)
	if err := s.Update(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// ClaimNext atomically claims the oldest ready job in a lane and moves it to
// the processing status mapped by transitions. Returns nil when no job is
// ready. The claim runs inside an immediate transaction so concurrent
// workers never claim the same job twice.
func (s *Store) ClaimNext(ctx context.Context, lane Lane, transitions map[Status]Status) (*Job, error) {
	if len(transitions) == 0 {
		return nil, errors.New("claim transitions must not be empty")
	}
	ctx = ensureContext(ctx)

	var claimed *Job
	err := retryOnBusy(ctx, func() error {
		claimed = nil
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin claim tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		ready := make([]Status, 0, len(transitions))
		for from := range transitions {
			ready = append(ready, from)
		}
		placeholders := makePlaceholders(len(ready))
		args := make([]any, 0, len(ready)+1)
		args = append(args, string(lane))
		for _, status := range ready {
			args = append(args, string(status))
		}

		row := tx.QueryRowContext(ctx,
			`SELECT `+jobColumns+` FROM jobs WHERE lane = ? AND status IN (`+placeholders+`) ORDER BY created_at, id LIMIT 1`,
			args...,
		)
		job, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("select ready job: %w", err)
		}

		processing, ok := transitions[job.Status]
		if !ok {
			return fmt.Errorf("no transition for status %s", job.Status)
		}

		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(processing), formatTimestamp(now), formatTimestamp(now), job.ID, string(job.Status),
		)
		if err != nil {
			return fmt.Errorf("claim job %d: %w", job.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("claim rows affected: %w", err)
		}
		if affected == 0 {
			// Lost the race; caller polls again.
			return nil
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit claim: %w", err)
		}

		job.Status = processing
		job.LastHeartbeat = &now
		job.UpdatedAt = now
		claimed = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// List returns all jobs ordered by creation time.
func (s *Store) List(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// CountCompletedSince reports how many of a user's jobs finished publishing
// at or after the given instant. Used for monthly quota checks.
func (s *Store) CountCompletedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM jobs WHERE user_id = ? AND status = ? AND completed_at >= ?`,
		userID, string(StatusCompleted), formatTimestamp(since),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count completed jobs: %w", err)
	}
	return count, nil
}

// CountByStatus returns the number of jobs in each status.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}

// Remove deletes a single job by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove job %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// RequestCancel flags a job for cooperative cancellation at the next stage
// boundary. Terminal jobs are left untouched.
func (s *Store) RequestCancel(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET cancel_requested = 1, updated_at = ? WHERE id = ? AND status NOT IN (?, ?, ?)`,
		formatTimestamp(time.Now()), id,
		string(StatusCompleted), string(StatusFailed), string(StatusCancelled),
	)
	if err != nil {
		return false, fmt.Errorf("request cancel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ReclaimStale rolls jobs whose heartbeat is older than the timeout back to
// the ready status they were claimed from.
func (s *Store) ReclaimStale(ctx context.Context, timeout time.Duration) (int64, error) {
	cutoff := formatTimestamp(time.Now().Add(-timeout))
	var total int64
	for _, transition := range stageRollbackTransitions {
		res, err := s.execWithRetry(ctx,
			`UPDATE jobs SET status = ?, last_heartbeat = NULL, updated_at = ?
             WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
			string(transition.to), formatTimestamp(time.Now()), string(transition.from), cutoff,
		)
		if err != nil {
			return total, fmt.Errorf("reclaim %s jobs: %w", transition.from, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("rows affected: %w", err)
		}
		total += affected
	}
	return total, nil
}

// Heartbeat refreshes the liveness marker for an in-flight job.
func (s *Store) Heartbeat(ctx context.Context, id int64) error {
	now := formatTimestamp(time.Now())
	_, err := s.execWithRetry(ctx,
		`UPDATE jobs SET last_heartbeat = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("heartbeat job %d: %w", id, err)
	}
	return nil
}

// ClearCompleted removes completed jobs and returns how many were deleted.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE status = ?`, string(StatusCompleted))
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes every job from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}
