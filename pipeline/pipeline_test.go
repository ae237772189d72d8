package pipeline

import (
	"healthdatagateway.org/ted/audit"
	"healthdatagateway.org/ted/classify"
	"healthdatagateway.org/ted/document"
	"healthdatagateway.org/ted/types"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

type recognizerMock struct {
	documents     []string
	bulkDocuments [][]string
	batch         types.AnnotationBatch
	batches       []types.AnnotationBatch
	err           error
}

func (mock *recognizerMock) Process(document string) (types.AnnotationBatch, error) {
	mock.documents = append(mock.documents, document)
	return mock.batch, mock.err
}

func (mock *recognizerMock) ProcessBulk(documents []string) ([]types.AnnotationBatch, error) {
	mock.bulkDocuments = append(mock.bulkDocuments, documents)
	return mock.batches, mock.err
}

type expanderMock struct {
	calls []map[string]types.Annotation
}

// Expand mimics the degraded path: returns the distinct pretty names
// of its input so merge behaviour stays observable without a
// vocabulary fixture.
func (mock *expanderMock) Expand(medical map[string]types.Annotation) []string {
	mock.calls = append(mock.calls, medical)
	seen := make(map[string]struct{})
	names := make([]string, 0, len(medical))
	for _, annotation := range medical {
		if _, ok := seen[annotation.PrettyName]; ok {
			continue
		}
		seen[annotation.PrettyName] = struct{}{}
		names = append(names, annotation.PrettyName)
	}
	return names
}

type auditorMock struct {
	events []audit.Event
	err    error
}

func (mock *auditorMock) Publish(event audit.Event) error {
	mock.events = append(mock.events, event)
	return mock.err
}

func annotation(pretty, status string, kinds ...string) types.Annotation {
	if kinds == nil {
		kinds = []string{}
	}
	return types.Annotation{
		PrettyName: pretty,
		Types:      kinds,
		MetaAnns:   types.MetaAnnotations{Status: &types.MetaAnnotation{Value: &status}},
	}
}

func testBatch() types.AnnotationBatch {
	return types.AnnotationBatch{
		{
			"101": annotation("Diabetes", types.StatusAffirmed, "Disease or Syndrome"),
			"205": annotation("Asthma", types.StatusAffirmed, "Disease or Syndrome"),
		},
		{
			"310": annotation("Data Set", types.StatusAffirmed, "Intellectual Product"),
			"411": annotation("Hospital", "Other", "Organization"),
		},
	}
}

func testRecord(id, title string) types.SummaryRecord {
	return types.SummaryRecord{DatasetID: id, Title: &title}
}

func newTestPipeline(recognizer *recognizerMock, auditor *auditorMock) (*Pipeline, *expanderMock) {
	expander := &expanderMock{}
	classifier := classify.NewClassifier(types.DefaultMedicalCategories())
	p := New(recognizer, classifier, expander, auditor, document.SummaryOptions{IncludeDescription: true})
	return p, expander
}

func TestProcess(t *testing.T) {
	recognizer := &recognizerMock{batch: testBatch()}
	auditor := &auditorMock{}
	p, expander := newTestPipeline(recognizer, auditor)

	result, err := p.Process(testRecord("abc123", "Diabetes admissions"))
	require.NoError(t, err)

	assert.Equal(t, "abc123", result.ID)
	assert.Equal(t, []string{"Asthma", "Data Set", "Diabetes"}, result.ExtractedTerms)

	// One document assembled, one NER call, one expansion over the
	// medical partition only.
	require.Len(t, recognizer.documents, 1)
	assert.Equal(t, "Diabetes admissions", recognizer.documents[0])
	require.Len(t, expander.calls, 1)
	assert.Len(t, expander.calls[0], 2)

	require.Len(t, auditor.events, 1)
	assert.Equal(t, "POST", auditor.events[0].ActionType)
	assert.Contains(t, auditor.events[0].Description, "abc123")
}

func TestProcessExcludesNonAffirmed(t *testing.T) {
	recognizer := &recognizerMock{batch: testBatch()}
	p, _ := newTestPipeline(recognizer, &auditorMock{})

	result, err := p.Process(testRecord("abc123", "Diabetes admissions"))
	require.NoError(t, err)
	assert.NotContains(t, result.ExtractedTerms, "Hospital")
}

func TestProcessAuditFailure(t *testing.T) {
	recognizer := &recognizerMock{batch: testBatch()}
	auditor := &auditorMock{err: errors.New("broker unavailable")}
	p, _ := newTestPipeline(recognizer, auditor)

	_, err := p.Process(testRecord("abc123", "Diabetes admissions"))
	require.Error(t, err)
	// The audit event precedes any upstream call.
	assert.Empty(t, recognizer.documents)
}

func TestProcessRecognizerFailure(t *testing.T) {
	recognizer := &recognizerMock{err: errors.New("ner unavailable")}
	p, expander := newTestPipeline(recognizer, &auditorMock{})

	_, err := p.Process(testRecord("abc123", "Diabetes admissions"))
	require.Error(t, err)
	assert.Empty(t, expander.calls)
}

func TestProcessMalformedAnnotation(t *testing.T) {
	recognizer := &recognizerMock{batch: types.AnnotationBatch{
		{"101": {PrettyName: "Diabetes", Types: []string{"Disease or Syndrome"}}},
	}}
	p, _ := newTestPipeline(recognizer, &auditorMock{})

	_, err := p.Process(testRecord("abc123", "Diabetes admissions"))
	require.Error(t, err)
	var malformed *classify.MalformedAnnotationError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "101", malformed.AnnotationID)
}

func TestProcessBulk(t *testing.T) {
	recognizer := &recognizerMock{batches: []types.AnnotationBatch{
		{{"101": annotation("Diabetes", types.StatusAffirmed, "Disease or Syndrome")}},
		{{"205": annotation("Asthma", types.StatusAffirmed, "Disease or Syndrome")}},
	}}
	auditor := &auditorMock{}
	p, _ := newTestPipeline(recognizer, auditor)

	records := []types.Record{
		testRecord("first", "Diabetes admissions"),
		testRecord("second", "Asthma in children"),
	}
	results, err := p.ProcessBulk(records)
	require.NoError(t, err)

	// A single upstream call carrying both documents in record order.
	require.Len(t, recognizer.bulkDocuments, 1)
	assert.Equal(t, []string{"Diabetes admissions", "Asthma in children"}, recognizer.bulkDocuments[0])

	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].ID)
	assert.Equal(t, []string{"Diabetes"}, results[0].ExtractedTerms)
	assert.Equal(t, "second", results[1].ID)
	assert.Equal(t, []string{"Asthma"}, results[1].ExtractedTerms)

	require.Len(t, auditor.events, 1)
	assert.Contains(t, auditor.events[0].Description, "2 datasets")
}

func TestProcessSummaryCapsWords(t *testing.T) {
	recognizer := &recognizerMock{batch: testBatch()}
	classifier := classify.NewClassifier(types.DefaultMedicalCategories())
	auditor := &auditorMock{}
	p := New(recognizer, classifier, &expanderMock{}, auditor, document.SummaryOptions{MaxFieldWords: 2, IncludeDescription: false})

	description := "never reaches the recognizer"
	record := types.SummaryRecord{
		DatasetID:   "abc123",
		Title:       stringPtr("Diabetes admissions in Wales"),
		Description: &description,
	}
	_, err := p.ProcessSummary(record)
	require.NoError(t, err)

	require.Len(t, recognizer.documents, 1)
	assert.Equal(t, "Diabetes admissions", recognizer.documents[0])
}

func TestClassifySkipsExpansion(t *testing.T) {
	recognizer := &recognizerMock{batch: testBatch()}
	p, expander := newTestPipeline(recognizer, &auditorMock{})

	terms, err := p.Classify(testRecord("abc123", "Diabetes admissions"))
	require.NoError(t, err)

	assert.Empty(t, expander.calls)
	assert.Len(t, terms.Medical, 2)
	assert.Len(t, terms.Other, 1)
}

func TestClassifyBulk(t *testing.T) {
	recognizer := &recognizerMock{batches: []types.AnnotationBatch{
		{{"101": annotation("Diabetes", types.StatusAffirmed, "Disease or Syndrome")}},
		{{"310": annotation("Data Set", types.StatusAffirmed, "Intellectual Product")}},
	}}
	p, expander := newTestPipeline(recognizer, &auditorMock{})

	results, err := p.ClassifyBulk([]types.Record{
		testRecord("first", "Diabetes admissions"),
		testRecord("second", "Survey catalogue"),
	})
	require.NoError(t, err)
	assert.Empty(t, expander.calls)

	require.Len(t, results, 2)
	assert.Len(t, results[0].Medical, 1)
	assert.Len(t, results[1].Other, 1)
}

func TestMerge(t *testing.T) {
	expanded := []string{"Diabetes", "Diabetes mellitus", "73211009", "Asthma"}
	other := map[string]types.Annotation{
		"310": annotation("Data Set", types.StatusAffirmed, "Intellectual Product"),
		"311": annotation("Diabetes", types.StatusAffirmed, "Intellectual Product"),
	}

	merged := Merge(expanded, other)
	assert.Equal(t, []string{"73211009", "Asthma", "Data Set", "Diabetes", "Diabetes mellitus"}, merged)
}

func TestMergeIdempotent(t *testing.T) {
	expanded := []string{"Diabetes", "Diabetes mellitus", "73211009", "Asthma"}
	other := map[string]types.Annotation{
		"310": annotation("Data Set", types.StatusAffirmed, "Intellectual Product"),
	}

	merged := Merge(expanded, other)
	// An already deduplicated, sorted list passes through unchanged.
	require.Equal(t, merged, Merge(merged, nil))
}

func TestMergeCaseSensitive(t *testing.T) {
	merged := Merge([]string{"diabetes", "Diabetes"}, nil)
	assert.Equal(t, []string{"Diabetes", "diabetes"}, merged)
}

func TestMergeEmpty(t *testing.T) {
	merged := Merge(nil, nil)
	assert.Equal(t, []string{}, merged)
}

func stringPtr(s string) *string {
	return &s
}
