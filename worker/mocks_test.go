package worker

import (
	"healthdatagateway.org/ted/tasks"
	"healthdatagateway.org/ted/types"
	"errors"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

type failingMethod struct {
	fail bool
}

type withValue struct {
	fail          bool
	returnedValue interface{}
}

type extractorMock struct {
	config extractorMockConfig
	calls  extractorCall
}

type extractorMockConfig struct {
	fail   bool
	result types.ExtractionResult
}

type extractorCall struct {
	process bool
}

type redisMock struct {
	config redisMockConfig
	calls  redisMockCalls
}

type redisMockConfig struct {
	getIndexTask          withValue
	onTaskCancelled       failingMethod
	onTaskStarted         failingMethod
	onTaskExceededRetries failingMethod
	onTaskFailedWithError failingMethod
	onTaskComplete        failingMethod
}

type redisMockCalls struct {
	getIndexTask          bool
	onTaskCancelled       bool
	onTaskStarted         bool
	onTaskExceededRetries bool
	onTaskFailedWithError bool
	onTaskComplete        bool
}

type rmqMock struct {
	config rmqMockConfig
	calls  rmqMockCalls
}

type rmqMockConfig struct {
	notifyIndexer       failingMethod
	acknowledgeDelivery failingMethod
}

type rmqMockCalls struct {
	notifyIndexer       bool
	acknowledgeDelivery bool
	rejectDelivery      bool
}

type s3Mock struct {
	config s3MockConfig
	calls  s3MockCalls
}

type s3MockConfig struct {
	getMetadata     withValue
	saveResultsFile failingMethod
}

type s3MockCalls struct {
	getMetadata     bool
	saveResultsFile bool
}

func (mock *rmqMock) close() {}

func (mock *redisMock) close() {}

func (mock *extractorMock) Process(record types.Record) (types.ExtractionResult, error) {
	mock.calls.process = true
	if mock.config.fail {
		return types.ExtractionResult{}, errors.New("extraction failed")
	}
	return mock.config.result, nil
}

func (mock *redisMock) getIndexTask(redisKey string) (*tasks.IndexTask, error) {
	mock.calls.getIndexTask = true
	if mock.config.getIndexTask.fail {
		return nil, errors.New("failed to get index task")
	}
	switch value := mock.config.getIndexTask.returnedValue.(type) {
	case tasks.IndexTask:
		return &value, nil
	default:
		return &tasks.IndexTask{}, nil
	}
}

func (mock *redisMock) onTaskStarted(task *Task) error {
	mock.calls.onTaskStarted = true
	if mock.config.onTaskStarted.fail {
		return errors.New("failed to update index task on start")
	}
	return nil
}

func (mock *redisMock) onTaskCancelled(task *Task, errorMessages ...string) error {
	mock.calls.onTaskCancelled = true
	if mock.config.onTaskCancelled.fail {
		return errors.New("failed to update index task on cancel")
	}
	return nil
}

func (mock *redisMock) onTaskExceededRetries(task *Task, maxAttempts int) error {
	mock.calls.onTaskExceededRetries = true
	if mock.config.onTaskExceededRetries.fail {
		return errors.New("failed to update index task on exceeded retries")
	}
	return nil
}

func (mock *redisMock) onTaskFailedWithError(task *Task, err error) error {
	mock.calls.onTaskFailedWithError = true
	if mock.config.onTaskFailedWithError.fail {
		return errors.New("failed to update index task on fail with error")
	}
	return nil
}

func (mock *redisMock) onTaskComplete(task *Task) error {
	mock.calls.onTaskComplete = true
	if mock.config.onTaskComplete.fail {
		return errors.New("failed to update index task on complete")
	}
	return nil
}

func (mock *rmqMock) rejectDelivery(delivery *amqp.Delivery, tedLogger *zerolog.Logger) {
	mock.calls.rejectDelivery = true
}

func (mock *rmqMock) getDeliveriesCh() <-chan amqp.Delivery {
	return nil
}

func (mock *rmqMock) getReqChanErrorsCh() <-chan *amqp.Error {
	return nil
}

func (mock *rmqMock) getRespChanErrorsCh() <-chan *amqp.Error {
	return nil
}

func (mock *rmqMock) notifyIndexer(task *Task, message Message) error {
	mock.calls.notifyIndexer = true
	if mock.config.notifyIndexer.fail {
		return errors.New("failed to notify indexer")
	}
	return nil
}

func (mock *rmqMock) acknowledgeDelivery(delivery *amqp.Delivery) error {
	mock.calls.acknowledgeDelivery = true
	if mock.config.acknowledgeDelivery.fail {
		return errors.New("failed to acknowledge delivery")
	}
	return nil
}

func (mock *s3Mock) getMetadata(task *Task) ([]byte, error) {
	mock.calls.getMetadata = true
	if mock.config.getMetadata.fail {
		return nil, errors.New("mock: failed to load from s3")
	}
	switch value := mock.config.getMetadata.returnedValue.(type) {
	case []byte:
		return value, nil
	default:
		return []byte(`{"required": {"gatewayId": "abc123"}, "summary": {"title": "Diabetes admissions"}}`), nil
	}
}

func (mock *s3Mock) saveResultsFile(task *Task, result types.ExtractionResult) error {
	mock.calls.saveResultsFile = true
	if mock.config.saveResultsFile.fail {
		return errors.New("failed to upload results")
	}
	return nil
}
