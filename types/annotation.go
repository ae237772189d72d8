package types

// Annotation is one recognized span as reported by the NER service.
// Types and the Status meta-annotation are pointers so a missing key
// can be told apart from an empty value, the classifier treats absence
// as an upstream contract violation.
type Annotation struct {
	PrettyName string          `json:"pretty_name"`
	Types      []string        `json:"types"`
	MetaAnns   MetaAnnotations `json:"meta_anns"`
}

type MetaAnnotations struct {
	Status *MetaAnnotation `json:"Status"`
}

type MetaAnnotation struct {
	Value *string `json:"value"`
}

const StatusAffirmed = "Affirmed"

// Affirmed reports whether the NER service asserts the entity is
// present in context, only such annotations are classified.
func (ann Annotation) Affirmed() bool {
	status := ann.MetaAnns.Status
	return status != nil && status.Value != nil && *status.Value == StatusAffirmed
}

// AnnotationBatch is the annotations list for one document. Each
// element buckets overlapping candidate spans by an opaque id.
type AnnotationBatch []map[string]Annotation

// ClassifiedTerms partitions the affirmed annotations of a batch.
// Medical and Other are disjoint and together cover exactly the
// affirmed subset.
type ClassifiedTerms struct {
	Medical map[string]Annotation `json:"medical_terms"`
	Other   map[string]Annotation `json:"other_terms"`
}

// ExtractionResult is the final per-record output, extracted terms are
// deduplicated and lexicographically sorted.
type ExtractionResult struct {
	ID             string   `json:"id"`
	ExtractedTerms []string `json:"extracted_terms"`
}
