package s3client

import (
	"healthdatagateway.org/ted/logger"
	"bytes"
	"fmt"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"sync"
)

type Config struct {
	BucketName  string `envconfig:"TED_STORAGE_BUCKET" required:"true"`
	Region      string `envconfig:"TED_AWS_REGION" required:"true"`
	Environment string `envconfig:"TED_ENV" default:""`
	AwsEndpoint string `envconfig:"TED_AWS_ENDPOINT_URL" default:""`
	AccessKeyID string `envconfig:"TED_AWS_ACCESS_ID" default:""`
	AccessKey   string `envconfig:"TED_AWS_ACCESS_KEY" default:""`
}

// Client moves metadata payloads and extraction results through the
// gateway storage bucket. Sessions come from the EC2 role when one is
// attached, env credentials otherwise, and are refreshed once after a
// failed transfer before the error propagates.
type Client struct {
	mu        sync.Mutex
	sess      *session.Session
	config    Config
	tedLogger *zerolog.Logger
}

var sdkLogger = logger.NewLogger("S3-SDK")

func New() (*Client, error) {
	tedLogger := logger.NewLogger("S3 client")
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		tedLogger.Error().Err(err).Msg("Could not read env config")
		return nil, err
	}
	client := &Client{config: config, tedLogger: &tedLogger}
	if err := client.refreshSession(); err != nil {
		return nil, err
	}
	return client, nil
}

func (client *Client) Upload(key string, data []byte) error {
	params := &s3manager.UploadInput{
		Bucket: &client.config.BucketName,
		Key:    &key,
		Body:   bytes.NewReader(data),
	}
	err := client.upload(params)
	if err == nil {
		return nil
	}
	client.tedLogger.Warn().Err(err).Str("key", key).Msg("Upload failed, refreshing session")
	if err := client.refreshSession(); err != nil {
		return err
	}
	return client.upload(params)
}

func (client *Client) Download(key string) ([]byte, error) {
	params := &s3.GetObjectInput{
		Bucket: &client.config.BucketName,
		Key:    &key,
	}
	data, err := client.download(params)
	if err == nil {
		return data, nil
	}
	client.tedLogger.Warn().Err(err).Str("key", key).Msg("Download failed, refreshing session")
	if err := client.refreshSession(); err != nil {
		return nil, err
	}
	return client.download(params)
}

func (client *Client) upload(params *s3manager.UploadInput) error {
	uploader := s3manager.NewUploader(client.session().Copy(&aws.Config{Logger: sdkLog()}))
	client.tedLogger.Debug().Str("key", *params.Key).Msg("Uploading the file")
	_, err := uploader.Upload(params)
	return err
}

func (client *Client) download(params *s3.GetObjectInput) ([]byte, error) {
	downloader := s3manager.NewDownloader(client.session().Copy(&aws.Config{Logger: sdkLog()}))
	buf := aws.NewWriteAtBuffer([]byte{})
	client.tedLogger.Debug().Str("key", *params.Key).Msg("Downloading file")
	size, err := downloader.Download(buf, params)
	if err != nil {
		return nil, err
	}
	client.tedLogger.Debug().Msgf("Downloaded %v bytes", size)
	return buf.Bytes(), nil
}

func (client *Client) session() *session.Session {
	client.mu.Lock()
	defer client.mu.Unlock()
	return client.sess
}

func (client *Client) refreshSession() error {
	client.mu.Lock()
	defer client.mu.Unlock()

	sess, err := session.NewSession(client.createEC2Config())
	if err == nil {
		if _, err = sts.New(sess).GetCallerIdentity(&sts.GetCallerIdentityInput{}); err == nil {
			client.sess = sess
			client.tedLogger.Info().Msg("S3 session initialized using EC2 role")
			return nil
		}
	}
	client.tedLogger.Info().Msg("Could not initialize S3 session using EC2 role, trying env credentials")

	sess, err = session.NewSession(client.createEnvConfig())
	if err != nil {
		client.tedLogger.Error().Err(err).Msg("Could not initialize S3 session")
		return err
	}
	if _, err = sts.New(sess).GetCallerIdentity(&sts.GetCallerIdentityInput{}); err != nil {
		client.tedLogger.Error().Err(err).Msg("Could not initialize S3 session")
		return err
	}
	client.sess = sess
	client.tedLogger.Info().Msg("S3 session initialized using env credentials")
	return nil
}

func (client *Client) createEC2Config() *aws.Config {
	return &aws.Config{
		Region:     aws.String(client.config.Region),
		MaxRetries: aws.Int(4),
	}
}

func (client *Client) createEnvConfig() *aws.Config {
	creds := credentials.NewStaticCredentials(client.config.AccessKeyID, client.config.AccessKey, "")
	cfg := aws.NewConfig().
		WithRegion(client.config.Region).
		WithMaxRetries(4).
		WithCredentials(creds)
	if client.config.Environment == "dev" && client.config.AwsEndpoint != "" {
		cfg = cfg.WithEndpoint(client.config.AwsEndpoint).WithS3ForcePathStyle(true)
	}
	return cfg
}

type awsLogger struct {
	tedLogger *zerolog.Logger
}

func sdkLog() *awsLogger {
	return &awsLogger{tedLogger: &sdkLogger}
}

func (l *awsLogger) Log(v ...interface{}) {
	l.tedLogger.Debug().Msg(fmt.Sprint(v...))
}
