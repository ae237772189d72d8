package pipeline

import (
	"healthdatagateway.org/ted/audit"
	"healthdatagateway.org/ted/classify"
	"healthdatagateway.org/ted/document"
	"healthdatagateway.org/ted/logger"
	"healthdatagateway.org/ted/types"
	"fmt"
	"github.com/rs/zerolog"
	"time"
)

// Recognizer is the outbound NER capability.
type Recognizer interface {
	Process(document string) (types.AnnotationBatch, error)
	ProcessBulk(documents []string) ([]types.AnnotationBatch, error)
}

// Expander grows medical terms through the vocabulary service. It
// never fails, degradation is its own concern.
type Expander interface {
	Expand(medical map[string]types.Annotation) []string
}

// Pipeline sequences document assembly, entity recognition,
// classification, vocabulary expansion and merging for dataset
// records. All collaborators and policy values are fixed at
// construction.
type Pipeline struct {
	recognizer  Recognizer
	classifier  classify.Classifier
	expander    Expander
	auditor     audit.Publisher
	summaryOpts document.SummaryOptions
	tedLogger   *zerolog.Logger
}

func New(
	recognizer Recognizer,
	classifier classify.Classifier,
	expander Expander,
	auditor audit.Publisher,
	summaryOpts document.SummaryOptions,
) *Pipeline {
	tedLogger := logger.NewLogger("Pipeline")
	return &Pipeline{
		recognizer:  recognizer,
		classifier:  classifier,
		expander:    expander,
		auditor:     auditor,
		summaryOpts: summaryOpts,
		tedLogger:   &tedLogger,
	}
}

// Process runs the full pipeline for one record.
func (p *Pipeline) Process(record types.Record) (types.ExtractionResult, error) {
	start := time.Now()
	if err := p.emitAudit("index dataset", fmt.Sprintf("Extracting terms for dataset %s", record.ID())); err != nil {
		return types.ExtractionResult{}, err
	}
	doc := document.Assemble(record)
	batch, err := p.recognizer.Process(doc)
	if err != nil {
		return types.ExtractionResult{}, err
	}
	terms, err := p.classifier.Classify(batch)
	if err != nil {
		return types.ExtractionResult{}, err
	}
	result := types.ExtractionResult{
		ID:             record.ID(),
		ExtractedTerms: p.extract(terms),
	}
	p.logElapsed("process", start)
	return result, nil
}

// ProcessSummary runs the pipeline over a summary-only record using
// the configured word cap and description flag.
func (p *Pipeline) ProcessSummary(record types.SummaryRecord) (types.ExtractionResult, error) {
	start := time.Now()
	if err := p.emitAudit("index dataset summary", fmt.Sprintf("Extracting terms for dataset %s", record.ID())); err != nil {
		return types.ExtractionResult{}, err
	}
	doc := document.AssembleSummary(record.Summary(), p.summaryOpts)
	batch, err := p.recognizer.Process(doc)
	if err != nil {
		return types.ExtractionResult{}, err
	}
	terms, err := p.classifier.Classify(batch)
	if err != nil {
		return types.ExtractionResult{}, err
	}
	result := types.ExtractionResult{
		ID:             record.ID(),
		ExtractedTerms: p.extract(terms),
	}
	p.logElapsed("process_summary", start)
	return result, nil
}

// ProcessBulk assembles every document first, issues exactly one bulk
// NER call, then classifies, expands and merges per record. Results
// correspond to records by position.
func (p *Pipeline) ProcessBulk(records []types.Record) ([]types.ExtractionResult, error) {
	start := time.Now()
	if err := p.emitAudit("index datasets bulk", fmt.Sprintf("Extracting terms for %d datasets", len(records))); err != nil {
		return nil, err
	}
	batches, err := p.recognizeBulk(records)
	if err != nil {
		return nil, err
	}
	results := make([]types.ExtractionResult, len(records))
	for i, batch := range batches {
		terms, err := p.classifier.Classify(batch)
		if err != nil {
			return nil, err
		}
		results[i] = types.ExtractionResult{
			ID:             records[i].ID(),
			ExtractedTerms: p.extract(terms),
		}
	}
	p.logElapsed("process_bulk", start)
	return results, nil
}

// Classify runs the pipeline up to classification, the configuration
// variant that reports medical/other term maps without expansion.
func (p *Pipeline) Classify(record types.Record) (types.ClassifiedTerms, error) {
	start := time.Now()
	if err := p.emitAudit("index dataset", fmt.Sprintf("Classifying terms for dataset %s", record.ID())); err != nil {
		return types.ClassifiedTerms{}, err
	}
	doc := document.Assemble(record)
	batch, err := p.recognizer.Process(doc)
	if err != nil {
		return types.ClassifiedTerms{}, err
	}
	terms, err := p.classifier.Classify(batch)
	if err != nil {
		return types.ClassifiedTerms{}, err
	}
	p.logElapsed("classify", start)
	return terms, nil
}

// ClassifyBulk is the bulk counterpart of Classify.
func (p *Pipeline) ClassifyBulk(records []types.Record) ([]types.ClassifiedTerms, error) {
	start := time.Now()
	if err := p.emitAudit("index datasets bulk", fmt.Sprintf("Classifying terms for %d datasets", len(records))); err != nil {
		return nil, err
	}
	batches, err := p.recognizeBulk(records)
	if err != nil {
		return nil, err
	}
	results := make([]types.ClassifiedTerms, len(records))
	for i, batch := range batches {
		terms, err := p.classifier.Classify(batch)
		if err != nil {
			return nil, err
		}
		results[i] = terms
	}
	p.logElapsed("classify_bulk", start)
	return results, nil
}

func (p *Pipeline) recognizeBulk(records []types.Record) ([]types.AnnotationBatch, error) {
	documents := make([]string, len(records))
	for i, record := range records {
		documents[i] = document.Assemble(record)
	}
	return p.recognizer.ProcessBulk(documents)
}

func (p *Pipeline) extract(terms types.ClassifiedTerms) []string {
	expanded := p.expander.Expand(terms.Medical)
	return Merge(expanded, terms.Other)
}

func (p *Pipeline) emitAudit(action, description string) error {
	err := p.auditor.Publish(audit.Event{
		ActionType:  "POST",
		ActionName:  action,
		Description: description,
	})
	if err != nil {
		p.tedLogger.Error().Err(err).Msg("Audit publish failed, aborting request")
		return fmt.Errorf("audit publish failed: %w", err)
	}
	return nil
}

func (p *Pipeline) logElapsed(operation string, start time.Time) {
	p.tedLogger.Info().
		Str("operation", operation).
		Float64("elapsed_seconds", time.Since(start).Seconds()).
		Msg("Finished extracting entities")
}
