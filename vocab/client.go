package vocab

import (
	"healthdatagateway.org/ted/logger"
	"healthdatagateway.org/ted/types"
	"bytes"
	"encoding/json"
	"fmt"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"io"
	"net/http"
	"time"
)

// Matching policy for vocabulary searches. These are service-wide
// constants, not per-call arguments: fuzzy matching at this threshold,
// synonyms on, one level of ancestors, no relationship expansion.
const (
	searchThreshold        = 80
	maxAncestorSeparation  = 1
	conceptSynonymFlag     = "y"
	conceptAncestorFlag    = "y"
	conceptRelationshipOff = "n"
)

type Config struct {
	SearchURL      string `envconfig:"TED_VOCAB_SEARCH_URL" required:"true"`
	Username       string `envconfig:"TED_VOCAB_USERNAME" required:"true"`
	Password       string `envconfig:"TED_VOCAB_PASSWORD" required:"true"`
	TimeoutSeconds int    `envconfig:"TED_VOCAB_TIMEOUT_SECONDS" default:"30"`
	MaxAttempts    int    `envconfig:"TED_VOCAB_MAX_ATTEMPTS" default:"2"`
}

// Client performs OMOP concept searches against the vocabulary-mapping
// service.
type Client struct {
	config    Config
	http      *http.Client
	tedLogger *zerolog.Logger
}

func NewClient() (*Client, error) {
	tedLogger := logger.NewLogger("Vocab client")
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		tedLogger.Error().Err(err).Msg("Could not read env config")
		return nil, err
	}
	return newClient(config, &tedLogger), nil
}

func newClient(config Config, tedLogger *zerolog.Logger) *Client {
	return &Client{
		config: config,
		http: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		tedLogger: tedLogger,
	}
}

func (client *Client) MaxAttempts() int {
	return client.config.MaxAttempts
}

type searchRequest struct {
	SearchTerms          []string `json:"search_term"`
	VocabularyID         []string `json:"vocabulary_id"`
	SearchThreshold      int      `json:"search_threshold"`
	ConceptAncestor      string   `json:"concept_ancestor"`
	MaxSeparationAscend  int      `json:"max_separation_ascendant"`
	MaxSeparationDescend int      `json:"max_separation_descendant"`
	ConceptSynonym       string   `json:"concept_synonym"`
	ConceptRelationship  string   `json:"concept_relationship"`
}

// Search submits one request carrying all search terms and returns one
// concept group per term.
func (client *Client) Search(terms []string) ([]types.ConceptGroup, error) {
	payload := searchRequest{
		SearchTerms:          terms,
		VocabularyID:         nil,
		SearchThreshold:      searchThreshold,
		ConceptAncestor:      conceptAncestorFlag,
		MaxSeparationAscend:  maxAncestorSeparation,
		MaxSeparationDescend: 0,
		ConceptSynonym:       conceptSynonymFlag,
		ConceptRelationship:  conceptRelationshipOff,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	request, err := http.NewRequest(http.MethodPost, client.config.SearchURL, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")
	request.SetBasicAuth(client.config.Username, client.config.Password)

	client.tedLogger.Debug().Int("term_count", len(terms)).Msg("Searching vocabulary service")
	response, err := client.http.Do(request)
	if err != nil {
		return nil, fmt.Errorf("vocab search request failed: %w", err)
	}
	defer func() {
		_ = response.Body.Close()
	}()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("vocab search response read failed: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, fmt.Errorf("vocab search returned status %d: %s", response.StatusCode, string(body))
	}
	var groups []types.ConceptGroup
	if err := json.Unmarshal(body, &groups); err != nil {
		return nil, fmt.Errorf("vocab search returned malformed body: %w", err)
	}
	return groups, nil
}
