package worker

import (
	"healthdatagateway.org/ted/tasks"
	"fmt"
)

type redisTransactions interface {
	getIndexTask(redisKey string) (*tasks.IndexTask, error)
	onTaskStarted(task *Task) error
	onTaskCancelled(task *Task, errorMessages ...string) error
	onTaskExceededRetries(task *Task, maxAttempts int) error
	onTaskFailedWithError(task *Task, err error) error
	onTaskComplete(task *Task) error
	close()
}

type redisClientWrapper struct {
	tasksClient *tasks.Client
}

func (wrapper *redisClientWrapper) close() {
	wrapper.tasksClient.Close()
}

func (wrapper *redisClientWrapper) getIndexTask(redisKey string) (*tasks.IndexTask, error) {
	return wrapper.tasksClient.Get(redisKey)
}

func (wrapper *redisClientWrapper) onTaskStarted(task *Task) error {
	return wrapper.tasksClient.Update(task.redisKey, func(indexTask *tasks.IndexTask) {
		indexTask.Statuses.TermExtraction.Status = tasks.StatusStarted
		indexTask.Statuses.TermExtraction.Attempts += 1
		indexTask.Statuses.TermExtraction.StartedAt = tasks.FormattedNow()
		indexTask.Statuses.TermExtraction.CompletedAt = ""
	})
}

func (wrapper *redisClientWrapper) onTaskCancelled(task *Task, errorMessages ...string) error {
	return wrapper.tasksClient.Update(task.redisKey, func(indexTask *tasks.IndexTask) {
		indexTask.Statuses.TermExtraction.Status = tasks.StatusCanceled
		indexTask.Statuses.TermExtraction.StartedAt = tasks.FormattedNow()
		indexTask.Statuses.TermExtraction.CompletedAt = tasks.FormattedNow()
		indexTask.Statuses.TermExtraction.Attempts += 1
		indexTask.Statuses.TermExtraction.ErrorMessages = append(
			indexTask.Statuses.TermExtraction.ErrorMessages,
			errorMessages...,
		)
	})
}

func (wrapper *redisClientWrapper) onTaskExceededRetries(task *Task, maxAttempts int) error {
	return wrapper.tasksClient.Update(task.redisKey, func(indexTask *tasks.IndexTask) {
		indexTask.Statuses.TermExtraction.Status = tasks.StatusCompletedFailure
		indexTask.Statuses.TermExtraction.StartedAt = tasks.FormattedNow()
		indexTask.Statuses.TermExtraction.CompletedAt = tasks.FormattedNow()
		indexTask.Statuses.TermExtraction.Attempts += 1
		indexTask.Statuses.TermExtraction.ErrorMessages = append(
			indexTask.Statuses.TermExtraction.ErrorMessages,
			fmt.Sprintf(
				"Task has exceeded retries. (Attempts: %d, max attempts: %d )",
				indexTask.Statuses.TermExtraction.Attempts,
				maxAttempts,
			),
		)
	})
}

func (wrapper *redisClientWrapper) onTaskFailedWithError(task *Task, err error) error {
	return wrapper.tasksClient.Update(task.redisKey, func(indexTask *tasks.IndexTask) {
		indexTask.Statuses.TermExtraction.Status = tasks.StatusFailed
		indexTask.Statuses.TermExtraction.CompletedAt = tasks.FormattedNow()
		indexTask.Statuses.TermExtraction.ErrorMessages = append(
			indexTask.Statuses.TermExtraction.ErrorMessages,
			err.Error(),
		)
	})
}

func (wrapper *redisClientWrapper) onTaskComplete(task *Task) error {
	return wrapper.tasksClient.Update(task.redisKey, func(indexTask *tasks.IndexTask) {
		if !indexTask.Statuses.TermExtraction.Status.Complete() {
			indexTask.Statuses.TermExtraction.Status = tasks.StatusCompletedSuccess
		}
		indexTask.Statuses.TermExtraction.CompletedAt = tasks.FormattedNow()
		indexTask.Statuses.TermExtraction.ResultsFileKey = getResultsFileKey(task)
	})
}
