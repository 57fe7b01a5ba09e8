package status

import (
	"context"
	"fmt"

	"github.com/teranos/batchwatch/batch"
	"github.com/teranos/batchwatch/errors"
	"github.com/teranos/batchwatch/logger"
)

// ActiveTask picks the step an open run is on: the first step without an
// end, otherwise the highest task id seen. ok is false when the run has no
// steps yet.
func ActiveTask(tasks []batch.TaskHistory) (taskID int64, ok bool) {
	for _, t := range tasks {
		if t.End == nil {
			return t.TaskID, true
		}
		if t.TaskID > taskID {
			taskID = t.TaskID
		}
	}
	return taskID, taskID != 0
}

// taskLabel names the active step of an open run as "<task name>/<task id>".
// Missing steps and unknown task ids fall back to fixed labels.
func (c *Classifier) taskLabel(ctx context.Context, h batch.JobHistory) (string, error) {
	log := logger.FromContext(ctx, c.logger)

	tasks, err := c.source.TaskHistory(ctx, h.ID)
	if err != nil {
		return "", errors.Wrapf(err, "failed to load task history %d", h.ID)
	}

	taskID, ok := ActiveTask(tasks)
	if !ok {
		log.Warnw("No active task for open run",
			logger.FieldJobID, h.JobID,
			logger.FieldHistoryID, h.ID)
		return LabelInProgress, nil
	}

	task, err := c.source.GetTask(ctx, h.JobID, taskID)
	if err != nil {
		return "", errors.Wrapf(err, "failed to load task %d/%d", h.JobID, taskID)
	}
	if task == nil {
		log.Warnw("Task definition not found",
			logger.FieldJobID, h.JobID,
			logger.FieldTaskID, taskID)
		return LabelTaskNotFound, nil
	}
	return fmt.Sprintf("%s/%d", task.Name, taskID), nil
}
