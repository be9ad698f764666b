package scheduler

import (
	"github.com/hibiken/asynq"
)

// TaskDraftCleanup enforces the single-active-draft invariant. It carries no
// payload; the worker always operates on the current table state.
const TaskDraftCleanup = "campaigns.draft.cleanup"

func NewDraftCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskDraftCleanup, nil)
}
