package rmq

import (
	"healthdatagateway.org/ted/logger"
	"errors"
	"fmt"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

type Config struct {
	Host                 string `envconfig:"TED_RMQ_HOST" required:"true"`
	Port                 string `envconfig:"TED_RMQ_PORT" required:"true"`
	Username             string `envconfig:"TED_RMQ_USERNAME" required:"true"`
	Password             string `envconfig:"TED_RMQ_PASSWORD" required:"true"`
	Exchange             string `envconfig:"TED_RMQ_EXCHANGE" default:"gateway-default-exchange"`
	MaxParallelTaskCount int    `envconfig:"TED_RMQ_MAX_PARALLEL_TASKS" default:"5"`
	AuditQueue           string `envconfig:"TED_RMQ_AUDIT_QUEUE" default:"gateway-audit"`
	TaskQueue            string `envconfig:"TED_RMQ_TASK_QUEUE" default:""`
	IndexerQueue         string `envconfig:"TED_RMQ_INDEXER_QUEUE" default:""`
}

// Client wraps the broker connections. Publishing (audit events,
// indexer notifications) and task consumption use separate connections
// so a slow consumer can't stall publishes.
type Client struct {
	Deliveries     <-chan amqp.Delivery
	ReqChanErrors  <-chan *amqp.Error
	RespChanErrors <-chan *amqp.Error
	config         Config
	reqConn        *amqp.Connection
	respConn       *amqp.Connection
	respChannel    *amqp.Channel
	tedLogger      *zerolog.Logger
}

// NewPublisher opens a publish-only client, used when only the audit
// channel is needed.
func NewPublisher() (*Client, error) {
	tedLogger := logger.NewLogger("RMQ client")
	config, err := readEnvironment(&tedLogger)
	if err != nil {
		return nil, err
	}
	respConn, respChannel, err := setup(getURL(config))
	if err != nil {
		return nil, fmt.Errorf("failed connection: %s", err)
	}
	respChanErrors := respChannel.NotifyClose(make(chan *amqp.Error))
	return &Client{
		RespChanErrors: respChanErrors,
		config:         config,
		respConn:       respConn,
		respChannel:    respChannel,
		tedLogger:      &tedLogger,
	}, nil
}

// NewClient opens a consuming client for the worker: task deliveries
// in, notifications and audit events out.
func NewClient() (*Client, error) {
	tedLogger := logger.NewLogger("RMQ client")
	config, err := readEnvironment(&tedLogger)
	if err != nil {
		return nil, err
	}
	if config.TaskQueue == "" {
		return nil, errors.New("TED_RMQ_TASK_QUEUE must be set for task consumption")
	}
	if config.IndexerQueue == "" {
		return nil, errors.New("TED_RMQ_INDEXER_QUEUE must be set for task consumption")
	}

	url := getURL(config)
	respConn, respChannel, err := setup(url)
	if err != nil {
		return nil, fmt.Errorf("failed connection: %s", err)
	}
	reqConn, reqChannel, err := setup(url)
	if err != nil {
		return nil, fmt.Errorf("failed connection: %s", err)
	}

	q, err := reqChannel.QueueDeclarePassive(
		config.TaskQueue, // name
		true,             // durable
		false,            // delete when unused
		false,            // exclusive
		false,            // no-wait
		nil,              // arguments
	)
	if err != nil {
		return nil, err
	}
	if err := reqChannel.QueueBind(
		config.TaskQueue,
		config.TaskQueue,
		config.Exchange,
		false,
		nil); err != nil {
		return nil, err
	}
	if err := reqChannel.Qos(config.MaxParallelTaskCount, 0, false); err != nil {
		return nil, fmt.Errorf("qos: %s", err)
	}

	deliveries, err := reqChannel.Consume(
		q.Name,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume deliveries: %s", err)
	}
	reqChanErrors := reqChannel.NotifyClose(make(chan *amqp.Error))
	respChanErrors := respChannel.NotifyClose(make(chan *amqp.Error))

	return &Client{
		Deliveries:     deliveries,
		ReqChanErrors:  reqChanErrors,
		RespChanErrors: respChanErrors,
		config:         config,
		reqConn:        reqConn,
		respConn:       respConn,
		respChannel:    respChannel,
		tedLogger:      &tedLogger,
	}, nil
}

func (c *Client) PublishAudit(msg amqp.Publishing) error {
	return c.respChannel.Publish(
		c.config.Exchange,
		c.config.AuditQueue,
		false,
		false,
		msg)
}

func (c *Client) NotifyIndexer(msg amqp.Publishing) error {
	return c.respChannel.Publish(
		c.config.Exchange,
		c.config.IndexerQueue,
		false,
		false,
		msg)
}

func (c *Client) Close() {
	if c.reqConn != nil {
		_ = c.reqConn.Close()
	}
	if c.respConn != nil {
		_ = c.respConn.Close()
	}
}

func getURL(config Config) string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s", config.Username, config.Password, config.Host, config.Port)
}

func setup(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	return conn, ch, nil
}

func readEnvironment(tedLogger *zerolog.Logger) (Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		tedLogger.Error().Err(err).Msg("Could not read env config")
		return config, err
	}
	return config, nil
}
