package api

import (
	"healthdatagateway.org/ted/classify"
	"healthdatagateway.org/ted/medcat"
	"healthdatagateway.org/ted/pipeline"
	"healthdatagateway.org/ted/types"
	"encoding/json"
	"errors"
	"github.com/rs/zerolog"
	"io/ioutil"
	"net/http"
)

// Handlers carries the HTTP surface. When ExpansionActive is false the
// dataset endpoints report the classified term maps instead of the
// expanded flat list.
type Handlers struct {
	Pipeline        *pipeline.Pipeline
	ExpansionActive bool
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	requestLogger := makeRequestLogger(r)

	if r.Method != http.MethodGet {
		requestLogger.Err(nil).Int("status", http.StatusMethodNotAllowed).Msg("Only 'GET' method is allowed here")
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, &requestLogger, map[string]string{"message": "Resource Available"})
}

func (h *Handlers) ProcessDataset(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	requestLogger := makeRequestLogger(r)

	var dataset types.Dataset
	if !readBody(w, r, &requestLogger, &dataset) {
		return
	}
	datasetLogger := withDatasetID(&requestLogger, dataset.ID())
	datasetLogger.Info().Msg("Starting extraction for request from API")

	if !h.ExpansionActive {
		terms, err := h.Pipeline.Classify(dataset)
		if err != nil {
			writeError(w, &datasetLogger, err)
			return
		}
		writeJSON(w, &datasetLogger, terms)
		return
	}
	result, err := h.Pipeline.Process(dataset)
	if err != nil {
		writeError(w, &datasetLogger, err)
		return
	}
	writeJSON(w, &datasetLogger, result)
}

func (h *Handlers) ProcessDatasetsBulk(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	requestLogger := makeRequestLogger(r)

	var datasets []types.Dataset
	if !readBody(w, r, &requestLogger, &datasets) {
		return
	}
	records := make([]types.Record, len(datasets))
	for i, dataset := range datasets {
		records[i] = dataset
	}
	bulkLogger := withRecordCount(&requestLogger, len(records))
	bulkLogger.Info().Msg("Starting bulk extraction for request from API")

	if !h.ExpansionActive {
		terms, err := h.Pipeline.ClassifyBulk(records)
		if err != nil {
			writeError(w, &bulkLogger, err)
			return
		}
		writeJSON(w, &bulkLogger, newBulkClassifiedResponse(terms))
		return
	}
	results, err := h.Pipeline.ProcessBulk(records)
	if err != nil {
		writeError(w, &bulkLogger, err)
		return
	}
	writeJSON(w, &bulkLogger, results)
}

// bulkClassifiedResponse carries the per-record classifications as two
// parallel arrays, position i of each belongs to record i.
type bulkClassifiedResponse struct {
	MedicalTerms []map[string]types.Annotation `json:"medical_terms"`
	OtherTerms   []map[string]types.Annotation `json:"other_terms"`
}

func newBulkClassifiedResponse(terms []types.ClassifiedTerms) bulkClassifiedResponse {
	response := bulkClassifiedResponse{
		MedicalTerms: make([]map[string]types.Annotation, len(terms)),
		OtherTerms:   make([]map[string]types.Annotation, len(terms)),
	}
	for i, t := range terms {
		response.MedicalTerms[i] = t.Medical
		response.OtherTerms[i] = t.Other
	}
	return response
}

func (h *Handlers) ProcessSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	requestLogger := makeRequestLogger(r)

	var record types.SummaryRecord
	if !readBody(w, r, &requestLogger, &record) {
		return
	}
	datasetLogger := withDatasetID(&requestLogger, record.ID())
	datasetLogger.Info().Msg("Starting summary extraction for request from API")

	result, err := h.Pipeline.ProcessSummary(record)
	if err != nil {
		writeError(w, &datasetLogger, err)
		return
	}
	writeJSON(w, &datasetLogger, result)
}

func readBody(w http.ResponseWriter, r *http.Request, requestLogger *zerolog.Logger, doc interface{}) bool {
	if r.Method != http.MethodPost {
		requestLogger.Err(nil).Int("status", http.StatusMethodNotAllowed).Msg("Only 'POST' method is allowed here")
		http.Error(w, "", http.StatusMethodNotAllowed)
		return false
	}
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		requestLogger.Err(err).Int("status", http.StatusBadRequest).Msg("Could not read request body")
		writeStatus(w, requestLogger, http.StatusBadRequest, "could not read request body")
		return false
	}
	if err = json.Unmarshal(body, doc); err != nil {
		requestLogger.Err(err).Int("status", http.StatusBadRequest).Msg("Could not unmarshal request body")
		writeStatus(w, requestLogger, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, requestLogger *zerolog.Logger, err error) {
	status := statusFromError(err)
	requestLogger.Err(err).Int("status", status).Msg("Failed to process request")
	writeStatus(w, requestLogger, status, err.Error())
}

func statusFromError(err error) int {
	var upstream *medcat.UpstreamError
	var malformed *classify.MalformedAnnotationError
	switch {
	case errors.Is(err, medcat.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	case errors.As(err, &malformed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeStatus(w http.ResponseWriter, requestLogger *zerolog.Logger, status int, message string) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: message}); err != nil {
		requestLogger.Err(err).Msg("Failed to write error response")
	}
}

func writeJSON(w http.ResponseWriter, requestLogger *zerolog.Logger, doc interface{}) {
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		requestLogger.Err(err).Msg("Failed to write response")
		return
	}
	requestLogger.Info().Int("status", http.StatusOK).Msg("Finished processing request")
}
