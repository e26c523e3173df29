package api

import (
	"clipforge/internal/queue"
	"clipforge/internal/workflow"
)

// FromJob converts a persistence job into its API view.
func FromJob(job *queue.Job) JobView {
	if job == nil {
		return JobView{}
	}
	view := JobView{
		ID:            job.ID,
		UserID:        job.UserID,
		SourceVideoID: job.SourceVideoID,
		Plan:          job.Plan,
		Lane:          string(job.Lane),
		Transition:    job.Transition,
		ShortsMode:    job.ShortsMode,
		Status:        string(job.Status),
		Progress: JobProgress{
			Stage:   job.ProgressStage,
			Percent: job.ProgressPercent,
			Message: job.ProgressMessage,
		},
		ErrorMessage: job.ErrorMessage,
		ArtifactURL:  job.ArtifactURL,
		PublishURL:   job.PublishURL,
	}
	if !job.CreatedAt.IsZero() {
		view.CreatedAt = job.CreatedAt.Format(dateTimeFormat)
	}
	if !job.UpdatedAt.IsZero() {
		view.UpdatedAt = job.UpdatedAt.Format(dateTimeFormat)
	}
	if job.CompletedAt != nil {
		view.CompletedAt = job.CompletedAt.Format(dateTimeFormat)
	}
	return view
}

// FromJobs converts a slice of persistence jobs.
func FromJobs(jobs []*queue.Job) []JobView {
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, FromJob(job))
	}
	return views
}

// MergeQueueStats normalizes status counts so every known status has a key.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	merged := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		merged[string(status)] = 0
	}
	for status, count := range stats {
		merged[string(status)] = count
	}
	return merged
}

// FromWorkflowStatus converts the manager's summary into its API view.
func FromWorkflowStatus(summary workflow.StatusSummary) WorkflowStatus {
	status := WorkflowStatus{
		Running:    summary.Running,
		QueueStats: MergeQueueStats(summary.QueueStats),
		LastError:  summary.LastError,
	}
	if summary.LastJob != nil {
		view := FromJob(summary.LastJob)
		status.LastJob = &view
	}
	for name, health := range summary.StageHealth {
		status.StageHealth = append(status.StageHealth, StageHealth{
			Name:   name,
			Ready:  health.Ready,
			Detail: health.Detail,
		})
	}
	return status
}
