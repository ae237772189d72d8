package worker

import (
	"healthdatagateway.org/ted/s3client"
	"healthdatagateway.org/ted/types"
	"encoding/json"
)

type s3Transactions interface {
	saveResultsFile(task *Task, result types.ExtractionResult) error
	getMetadata(task *Task) ([]byte, error)
}

type s3ClientWrapper struct {
	s3Client *s3client.Client
}

func (wrapper *s3ClientWrapper) saveResultsFile(task *Task, result types.ExtractionResult) error {
	b, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return wrapper.s3Client.Upload(getResultsFileKey(task), b)
}

func (wrapper *s3ClientWrapper) getMetadata(task *Task) ([]byte, error) {
	return wrapper.s3Client.Download(task.indexTask.MetadataFileKey)
}
