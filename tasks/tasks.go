package tasks

import (
	"healthdatagateway.org/ted/redis"
	"time"
)

const IndexDB redis.DB = 1

type Status string

const (
	StatusSubmitted        Status = "submitted"
	StatusStarted          Status = "started"
	StatusFailed           Status = "failed"
	StatusCompletedSuccess Status = "completed - success"
	StatusCompletedFailure Status = "completed - failure"
	StatusCanceled         Status = "canceled"
)

func (status Status) Complete() bool {
	switch status {
	case StatusCompletedSuccess, StatusCompletedFailure, StatusCanceled:
		return true
	}
	return false
}

// IndexTask is the shared task document for one dataset re-index.
// Several gateway services keep their own section under task_statuses,
// so updates go through a merge patch and must never clobber sections
// this service does not model.
type IndexTask struct {
	DatasetID       string   `json:"dataset_id"`
	MetadataFileKey string   `json:"metadata_file_key"`
	UserCanceled    bool     `json:"user_canceled"`
	Statuses        Statuses `json:"task_statuses"`
}

type Statuses struct {
	TermExtraction Info `json:"term_extraction"`
}

type Info struct {
	Status         Status   `json:"status"`
	Attempts       int      `json:"attempts"`
	ResultsFileKey string   `json:"results_file_key,omitempty"`
	ErrorMessages  []string `json:"error_messages,omitempty"`
	StartedAt      string   `json:"started_at,omitempty"`
	CompletedAt    string   `json:"completed_at,omitempty"`
}

type Client struct {
	client redis.Client
}

func NewClient() (Client, error) {
	redisClient, err := redis.NewClient(IndexDB)
	if err != nil {
		return Client{}, err
	}
	return Client{client: redisClient}, nil
}

func (tasks Client) Get(redisKey string) (*IndexTask, error) {
	var task IndexTask
	if err := tasks.client.GetJSON(redisKey, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (tasks Client) Update(redisKey string, updateFunc func(task *IndexTask)) error {
	var task IndexTask
	return tasks.client.UpdateJSON(redisKey, &task, func() {
		updateFunc(&task)
	})
}

func (tasks Client) Close() {
	_ = tasks.client.Close()
}

func FormattedNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}
