package document

import (
	"healthdatagateway.org/ted/types"
	"strings"
)

// Assemble flattens the text-bearing fields of a dataset record into a
// single free-text document: title, abstract, description, keywords,
// then the distinct table descriptions followed by the distinct column
// descriptions. Missing fields contribute nothing. Description strings
// repeated across tables or columns appear once, in first-seen order.
func Assemble(record types.Record) string {
	summary := record.Summary()
	parts := appendNonEmpty(nil,
		deref(summary.Title),
		deref(summary.Abstract),
		deref(summary.Description),
		deref(summary.Keywords),
	)

	var tableDescriptions []string
	var columnDescriptions []string
	tableSeen := make(map[string]struct{})
	columnSeen := make(map[string]struct{})
	for _, table := range record.Structural() {
		if desc := deref(table.Description); desc != "" {
			if _, ok := tableSeen[desc]; !ok {
				tableSeen[desc] = struct{}{}
				tableDescriptions = append(tableDescriptions, desc)
			}
		}
		for _, column := range table.Columns {
			if desc := deref(column.Description); desc != "" {
				if _, ok := columnSeen[desc]; !ok {
					columnSeen[desc] = struct{}{}
					columnDescriptions = append(columnDescriptions, desc)
				}
			}
		}
	}
	parts = append(parts, tableDescriptions...)
	parts = append(parts, columnDescriptions...)

	return strings.Join(parts, " ")
}

// SummaryOptions configures the summary-only assembler. MaxFieldWords
// truncates each field independently before joining, zero means
// uncapped.
type SummaryOptions struct {
	MaxFieldWords      int
	IncludeDescription bool
}

// AssembleSummary builds a document from top-level free-text fields
// only, for records that carry no structural metadata.
func AssembleSummary(summary types.Summary, opts SummaryOptions) string {
	fields := []string{
		deref(summary.Title),
		deref(summary.Abstract),
	}
	if opts.IncludeDescription {
		fields = append(fields, deref(summary.Description))
	}
	fields = append(fields, deref(summary.Keywords))

	var parts []string
	for _, field := range fields {
		parts = appendNonEmpty(parts, capWords(field, opts.MaxFieldWords))
	}
	return strings.Join(parts, " ")
}

func capWords(s string, max int) string {
	if max <= 0 {
		return s
	}
	words := strings.Fields(s)
	if len(words) <= max {
		return s
	}
	return strings.Join(words[:max], " ")
}

func appendNonEmpty(parts []string, fields ...string) []string {
	for _, field := range fields {
		if field != "" {
			parts = append(parts, field)
		}
	}
	return parts
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
