package vocab

import (
	"healthdatagateway.org/ted/logger"
	"encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearch(t *testing.T) {
	var gotBody map[string]interface{}
	var gotUser, gotPass string
	var gotAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, gotAuth = r.BasicAuth()
		buf, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(buf, &gotBody))
		_, _ = w.Write([]byte(`[
			{"search_term": "Diabetes", "CONCEPT": [{
				"concept_name": "Diabetes mellitus",
				"concept_code": "73211009",
				"CONCEPT_SYNONYM": [{"concept_synonym_name": "Diabetes mellitus (disorder)"}],
				"CONCEPT_ANCESTOR": [{"concept_name": "Disorder of endocrine system", "concept_code": "362969004"}]
			}]},
			{"search_term": "Unmapped term", "CONCEPT": null}
		]`))
	}))
	defer server.Close()

	tedLogger := logger.NewLogger("Vocab test")
	client := newClient(Config{
		SearchURL:      server.URL + "/search/omop/",
		Username:       "ted",
		Password:       "secret",
		TimeoutSeconds: 5,
		MaxAttempts:    2,
	}, &tedLogger)

	groups, err := client.Search([]string{"Diabetes", "Unmapped term"})
	require.NoError(t, err)

	require.True(t, gotAuth)
	assert.Equal(t, "ted", gotUser)
	assert.Equal(t, "secret", gotPass)

	// Matching policy rides along as fixed fields.
	assert.Equal(t, []interface{}{"Diabetes", "Unmapped term"}, gotBody["search_term"])
	assert.Equal(t, float64(80), gotBody["search_threshold"])
	assert.Equal(t, "y", gotBody["concept_ancestor"])
	assert.Equal(t, float64(1), gotBody["max_separation_ascendant"])
	assert.Equal(t, float64(0), gotBody["max_separation_descendant"])
	assert.Equal(t, "y", gotBody["concept_synonym"])
	assert.Equal(t, "n", gotBody["concept_relationship"])

	require.Len(t, groups, 2)
	require.Len(t, groups[0].Concepts, 1)
	concept := groups[0].Concepts[0]
	assert.Equal(t, "Diabetes mellitus", concept.ConceptName)
	assert.Equal(t, "73211009", concept.ConceptCode)
	require.Len(t, concept.Synonyms, 1)
	assert.Equal(t, "Diabetes mellitus (disorder)", concept.Synonyms[0].ConceptSynonymName)
	require.Len(t, concept.Ancestors, 1)
	assert.Equal(t, "362969004", concept.Ancestors[0].ConceptCode)
	assert.Nil(t, groups[1].Concepts)
}

func TestSearchNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer server.Close()

	tedLogger := logger.NewLogger("Vocab test")
	client := newClient(Config{SearchURL: server.URL, TimeoutSeconds: 5}, &tedLogger)

	_, err := client.Search([]string{"Diabetes"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSearchMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not": "a list"}`))
	}))
	defer server.Close()

	tedLogger := logger.NewLogger("Vocab test")
	client := newClient(Config{SearchURL: server.URL, TimeoutSeconds: 5}, &tedLogger)

	_, err := client.Search([]string{"Diabetes"})
	require.Error(t, err)
}
