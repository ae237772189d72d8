package medcat

import (
	"healthdatagateway.org/ted/logger"
	"healthdatagateway.org/ted/types"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// ErrUpstreamTimeout reports that the NER service did not respond
// within the configured timeout. Distinct from UpstreamError so
// callers can tell slow-NER from broken-NER.
var ErrUpstreamTimeout = errors.New("medcat: request timed out")

// UpstreamError reports a non-2xx response or a transport failure from
// the NER service.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (err *UpstreamError) Error() string {
	if err.StatusCode != 0 {
		return fmt.Sprintf("medcat: upstream returned status %d: %s", err.StatusCode, err.Message)
	}
	return fmt.Sprintf("medcat: request failed: %s", err.Message)
}

type Config struct {
	Host           string `envconfig:"TED_MEDCAT_HOST" required:"true"`
	Port           string `envconfig:"TED_MEDCAT_PORT" required:"true"`
	TimeoutMinutes int    `envconfig:"TED_MEDCAT_TIMEOUT_MINUTES" default:"5"`
}

type Client struct {
	baseURL   string
	http      *http.Client
	tedLogger *zerolog.Logger
}

// NewClient reads the NER endpoint from the environment. The timeout
// is minutes-scale because NER on long documents is slow.
func NewClient() (*Client, error) {
	tedLogger := logger.NewLogger("MedCAT client")
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		tedLogger.Error().Err(err).Msg("Could not read env config")
		return nil, err
	}
	return newClient(fmt.Sprintf("http://%s:%s", config.Host, config.Port), config.TimeoutMinutes, &tedLogger), nil
}

func newClient(baseURL string, timeoutMinutes int, tedLogger *zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: time.Duration(timeoutMinutes) * time.Minute,
		},
		tedLogger: tedLogger,
	}
}

type textContent struct {
	Text string `json:"text"`
}

type processRequest struct {
	Content textContent `json:"content"`
}

type processBulkRequest struct {
	Content []textContent `json:"content"`
}

type processResponse struct {
	Result struct {
		Annotations types.AnnotationBatch `json:"annotations"`
	} `json:"result"`
}

type processBulkResponse struct {
	Result []struct {
		Annotations types.AnnotationBatch `json:"annotations"`
	} `json:"result"`
}

// Process submits one document for named entity recognition.
func (client *Client) Process(document string) (types.AnnotationBatch, error) {
	body, err := client.post("/api/process", processRequest{Content: textContent{Text: document}})
	if err != nil {
		return nil, err
	}
	var response processResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &UpstreamError{Message: fmt.Sprintf("malformed response body: %v", err)}
	}
	return response.Result.Annotations, nil
}

// ProcessBulk submits all documents in one request. The response
// carries one annotation batch per document, in submission order.
func (client *Client) ProcessBulk(documents []string) ([]types.AnnotationBatch, error) {
	content := make([]textContent, len(documents))
	for i, document := range documents {
		content[i] = textContent{Text: document}
	}
	body, err := client.post("/api/process_bulk", processBulkRequest{Content: content})
	if err != nil {
		return nil, err
	}
	var response processBulkResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &UpstreamError{Message: fmt.Sprintf("malformed response body: %v", err)}
	}
	if len(response.Result) != len(documents) {
		return nil, &UpstreamError{Message: fmt.Sprintf(
			"bulk response carries %d results for %d documents", len(response.Result), len(documents))}
	}
	batches := make([]types.AnnotationBatch, len(response.Result))
	for i, result := range response.Result {
		batches[i] = result.Annotations
	}
	return batches, nil
}

func (client *Client) post(path string, payload interface{}) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	endpoint := client.baseURL + path
	client.tedLogger.Debug().Str("url", endpoint).Msg("Calling NER service")
	resp, err := client.http.Post(endpoint, "application/json", bytes.NewReader(buf))
	if err != nil {
		if isTimeout(err) {
			client.tedLogger.Error().Err(err).Str("url", endpoint).Msg("NER request timed out")
			return nil, ErrUpstreamTimeout
		}
		client.tedLogger.Error().Err(err).Str("url", endpoint).Msg("NER request failed")
		return nil, &UpstreamError{Message: err.Error()}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		client.tedLogger.Error().
			Int("status", resp.StatusCode).
			Str("url", endpoint).
			Msg("NER service returned non-2xx status")
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	return body, nil
}

func isTimeout(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
