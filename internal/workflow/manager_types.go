package workflow

import (
	"clipforge/internal/queue"
	"clipforge/internal/stage"
)

// StageSet bundles the concrete pipeline handlers the manager orchestrates.
type StageSet struct {
	Fetcher   stage.Handler
	Cutter    stage.Handler
	Composer  stage.Handler
	Finisher  stage.Handler
	Publisher stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

func buildPipeline(set StageSet) []pipelineStage {
	return []pipelineStage{
		{
			name:             "fetch",
			handler:          set.Fetcher,
			startStatus:      queue.StatusPending,
			processingStatus: queue.StatusFetching,
			doneStatus:       queue.StatusFetched,
		},
		{
			name:             "cut",
			handler:          set.Cutter,
			startStatus:      queue.StatusFetched,
			processingStatus: queue.StatusCutting,
			doneStatus:       queue.StatusCut,
		},
		{
			name:             "compose",
			handler:          set.Composer,
			startStatus:      queue.StatusCut,
			processingStatus: queue.StatusComposing,
			doneStatus:       queue.StatusComposed,
		},
		{
			name:             "finish",
			handler:          set.Finisher,
			startStatus:      queue.StatusComposed,
			processingStatus: queue.StatusFinishing,
			doneStatus:       queue.StatusFinished,
		},
		{
			name:             "publish",
			handler:          set.Publisher,
			startStatus:      queue.StatusFinished,
			processingStatus: queue.StatusPublishing,
			doneStatus:       queue.StatusCompleted,
		},
	}
}
