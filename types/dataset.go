package types

// Record is the shape the document assembler needs from any inbound
// dataset metadata variant. The gateway has accepted several historical
// schemas; each one is a concrete type behind this interface rather
// than a bag of optional attributes.
type Record interface {
	ID() string
	Summary() Summary
	Structural() []StructuralTable
}

type Summary struct {
	Title       *string `json:"title"`
	Abstract    *string `json:"abstract"`
	Description *string `json:"description"`
	Keywords    *string `json:"keywords"`
}

type StructuralColumn struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	DataType    *string `json:"dataType"`
	Sensitive   *bool   `json:"sensitive"`
}

type StructuralTable struct {
	Name        *string            `json:"name"`
	Description *string            `json:"description"`
	Columns     []StructuralColumn `json:"columns"`
}

// Dataset is the full gateway metadata record. Only the sections the
// pipeline reads are modelled as structs; everything else rides along
// as raw JSON so records round-trip untouched.
type Dataset struct {
	Required           DatasetRequired        `json:"required"`
	DatasetSummary     DatasetSummary         `json:"summary"`
	Coverage           map[string]interface{} `json:"coverage,omitempty"`
	Provenance         map[string]interface{} `json:"provenance,omitempty"`
	Accessibility      map[string]interface{} `json:"accessibility,omitempty"`
	Linkage            map[string]interface{} `json:"linkage,omitempty"`
	Observations       []interface{}          `json:"observations,omitempty"`
	StructuralMetadata []StructuralTable      `json:"structuralMetadata"`
}

type DatasetRequired struct {
	GatewayID  string        `json:"gatewayId"`
	GatewayPID string        `json:"gatewayPid"`
	Issued     string        `json:"issued"`
	Modified   string        `json:"modified"`
	Revisions  []interface{} `json:"revisions"`
}

type DatasetSummary struct {
	Summary
	ShortTitle         *string                `json:"shortTitle"`
	DoiName            *string                `json:"doiName"`
	ControlledKeywords *string                `json:"controlledKeywords"`
	ContactPoint       *string                `json:"contactPoint"`
	DatasetType        *string                `json:"datasetType"`
	Publisher          map[string]interface{} `json:"publisher,omitempty"`
}

func (d Dataset) ID() string {
	return d.Required.GatewayID
}

func (d Dataset) Summary() Summary {
	return d.DatasetSummary.Summary
}

func (d Dataset) Structural() []StructuralTable {
	return d.StructuralMetadata
}

// SummaryRecord is the lightweight variant used when only top-level
// free-text metadata is available, it carries no structural metadata.
type SummaryRecord struct {
	DatasetID   string  `json:"id"`
	Title       *string `json:"title"`
	Abstract    *string `json:"abstract"`
	Description *string `json:"description"`
	Keywords    *string `json:"keywords"`
}

func (r SummaryRecord) ID() string {
	return r.DatasetID
}

func (r SummaryRecord) Summary() Summary {
	return Summary{
		Title:       r.Title,
		Abstract:    r.Abstract,
		Description: r.Description,
		Keywords:    r.Keywords,
	}
}

func (r SummaryRecord) Structural() []StructuralTable {
	return nil
}
