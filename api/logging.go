package api

import (
	"healthdatagateway.org/ted/logger"
	"github.com/rs/zerolog"
	"net/http"
)

var defaultLogger = logger.NewLogger("API")

type requestInfoFields struct {
	Method string `json:"method"`
	Url    string `json:"url"`
}

const RequestInfoFieldsKey = "request_info"

func makeRequestLogger(request *http.Request) zerolog.Logger {
	fields := requestInfoFields{
		Method: request.Method,
		Url:    request.URL.String(),
	}
	return defaultLogger.
		With().Interface(RequestInfoFieldsKey, fields).Logger()
}

// withDatasetID scopes a request logger to the dataset being processed
// so every line of a request carries the id, not just the first.
func withDatasetID(requestLogger *zerolog.Logger, datasetID string) zerolog.Logger {
	return requestLogger.With().Str("dataset_id", datasetID).Logger()
}

// withRecordCount scopes a request logger to a bulk request.
func withRecordCount(requestLogger *zerolog.Logger, count int) zerolog.Logger {
	return requestLogger.With().Int("record_count", count).Logger()
}
