package worker

import (
	"healthdatagateway.org/ted/tasks"
	"healthdatagateway.org/ted/types"
	"healthdatagateway.org/ted/utils"
	"encoding/json"
	"fmt"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"path"
)

type Message struct {
	RedisKey string `json:"redis_key"`
	Sender   string `json:"sender"`
	Version  string `json:"version"`
}

type Task struct {
	delivery  *amqp.Delivery
	indexTask *tasks.IndexTask
	message   *Message
	redisKey  string
	tedLogger *zerolog.Logger
}

func getResultsFileKey(task *Task) string {
	return path.Join(
		"processed",
		"datasets",
		task.indexTask.DatasetID,
		fmt.Sprintf("%s.terms.json", task.redisKey),
	)
}

func (worker *Worker) processMessage(delivery *amqp.Delivery) {
	task, err := worker.createTask(delivery)
	rejectLogger := worker.tedLogger.With().Str("message_id", delivery.MessageId).Logger()
	if err != nil {
		worker.tedLogger.Err(err).
			Str("message_id", delivery.MessageId).
			Str("tid", string(delivery.Body)).
			Msg("Failed to create task for delivery")
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.processTask(task); err != nil {
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.rmq.notifyIndexer(task, *task.message); err != nil {
		task.tedLogger.Err(err).Msg("Got error while sending message to indexer queue")
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.rmq.acknowledgeDelivery(delivery); err != nil {
		task.tedLogger.Err(err).Msg("Failed to acknowledge delivery")
	}
	task.tedLogger.Info().Msg("Finished processing RMQ message")
}

func (worker *Worker) createTask(delivery *amqp.Delivery) (*Task, error) {
	var message Message
	err := json.Unmarshal(delivery.Body, &message)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal message, got error %w", err)
	}
	indexTask, err := worker.redis.getIndexTask(message.RedisKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query index task for message, got error %w", err)
	}
	taskLogger := worker.tedLogger.With().Str("tid", message.RedisKey).Logger()
	task := Task{
		delivery:  delivery,
		indexTask: indexTask,
		redisKey:  message.RedisKey,
		message:   &message,
		tedLogger: &taskLogger,
	}
	return &task, nil
}

func (worker *Worker) processTask(task *Task) error {
	shouldPerform, err := worker.shouldPerformTask(task)
	if err != nil {
		task.tedLogger.Err(err).
			Msg("Got error while trying to decide whether to run task")
		return err
	}
	if !shouldPerform {
		return nil
	}
	if err = worker.redis.onTaskStarted(task); err != nil {
		task.tedLogger.Err(err).Msg("Failed to update task info")
		return fmt.Errorf("failed to update task info: %w", err)
	}
	if err = worker.runExtraction(task); err != nil {
		task.tedLogger.Err(err).Msg("Got error while running extraction")
		if err = worker.redis.onTaskFailedWithError(task, err); err != nil {
			return err
		}
		return nil
	}
	task.tedLogger.Info().Msg("Saved results, marking task as complete")
	if err = worker.redis.onTaskComplete(task); err != nil {
		task.tedLogger.Err(err).Msg("Got error while trying to mark task as complete")
		return err
	}
	return nil
}

func (worker *Worker) runExtraction(task *Task) (err error) {
	defer utils.RecoverWithError(&err)
	task.tedLogger.Info().Msgf("Processing message from RMQ, attempt # %d", task.indexTask.Statuses.TermExtraction.Attempts)
	data, err := worker.s3.getMetadata(task)
	if err != nil {
		task.tedLogger.Err(err).Caller().Msg("Could not fetch dataset metadata from s3")
		return fmt.Errorf("failed fetch metadata from s3: %w", err)
	}
	var dataset types.Dataset
	if err = json.Unmarshal(data, &dataset); err != nil {
		return fmt.Errorf("failed to unmarshal dataset metadata: %w", err)
	}
	result, err := worker.extractor.Process(dataset)
	if err != nil {
		return err
	}
	task.tedLogger.Info().Msg("Finished extraction, saving results to s3")
	if err = worker.s3.saveResultsFile(task, result); err != nil {
		task.tedLogger.Err(err).Msg("Got error while trying to save results")
		return err
	}
	return nil
}

func (worker *Worker) shouldPerformTask(task *Task) (bool, error) {
	taskInfo := task.indexTask.Statuses.TermExtraction
	taskLogger := task.tedLogger

	if taskInfo.Status.Complete() {
		taskLogger.Info().Msg("Task is already done. (might indicate issue acking message with RMQ). Notifying indexer.")
		return false, nil
	}
	if task.indexTask.UserCanceled {
		taskLogger.Info().Msg("Task was canceled, no need to perform it. Notifying indexer.")
		err := worker.redis.onTaskCancelled(task)
		return false, err
	}
	if taskInfo.Attempts >= worker.config.TaskMaxAttempts {
		taskLogger.Info().Msg("Extraction task has exceeded retries. Notifying indexer.")
		err := worker.redis.onTaskExceededRetries(task, worker.config.TaskMaxAttempts)
		return false, err
	}
	return true, nil
}
