package types

// ConceptGroup is one element of the vocabulary search response. A
// null CONCEPT means the service found no mapping for the search term.
type ConceptGroup struct {
	SearchTerm string    `json:"search_term"`
	Concepts   []Concept `json:"CONCEPT"`
}

type Concept struct {
	ConceptName string           `json:"concept_name"`
	ConceptCode string           `json:"concept_code"`
	Synonyms    []ConceptSynonym `json:"CONCEPT_SYNONYM"`
	Ancestors   []ConceptRelated `json:"CONCEPT_ANCESTOR"`
}

type ConceptSynonym struct {
	ConceptSynonymName string `json:"concept_synonym_name"`
}

type ConceptRelated struct {
	ConceptName string `json:"concept_name"`
	ConceptCode string `json:"concept_code"`
}
