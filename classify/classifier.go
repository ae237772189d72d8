package classify

import (
	"healthdatagateway.org/ted/types"
	"fmt"
)

// MalformedAnnotationError reports an NER annotation missing a
// required key. This is an upstream contract violation, never
// swallowed into an empty classification.
type MalformedAnnotationError struct {
	AnnotationID string
	MissingKey   string
}

func (err *MalformedAnnotationError) Error() string {
	return fmt.Sprintf("classify: annotation %q is missing required key %q", err.AnnotationID, err.MissingKey)
}

// Classifier partitions affirmed annotations into medical and other
// term maps against an immutable category set.
type Classifier struct {
	medicalCategories types.CategorySet
}

func NewClassifier(medicalCategories types.CategorySet) Classifier {
	return Classifier{medicalCategories: medicalCategories}
}

// Classify files every affirmed annotation under exactly one of
// Medical or Other. Annotations with any other status are excluded
// from both.
func (classifier Classifier) Classify(batch types.AnnotationBatch) (types.ClassifiedTerms, error) {
	terms := types.ClassifiedTerms{
		Medical: make(map[string]types.Annotation),
		Other:   make(map[string]types.Annotation),
	}
	for _, annotations := range batch {
		for id, annotation := range annotations {
			if err := checkShape(id, annotation); err != nil {
				return types.ClassifiedTerms{}, err
			}
			if !annotation.Affirmed() {
				continue
			}
			if classifier.medicalCategories.ContainsAny(annotation.Types) {
				terms.Medical[id] = annotation
			} else {
				terms.Other[id] = annotation
			}
		}
	}
	return terms, nil
}

func checkShape(id string, annotation types.Annotation) error {
	if annotation.MetaAnns.Status == nil || annotation.MetaAnns.Status.Value == nil {
		return &MalformedAnnotationError{AnnotationID: id, MissingKey: "meta_anns.Status.value"}
	}
	if annotation.Types == nil {
		return &MalformedAnnotationError{AnnotationID: id, MissingKey: "types"}
	}
	return nil
}
