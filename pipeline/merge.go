package pipeline

import (
	"healthdatagateway.org/ted/types"
	"sort"
)

// Merge combines the expanded medical terms with the pretty names of
// the other classified terms into the final deduplicated,
// lexicographically sorted term list. Deduplication is case-sensitive
// exact matching.
func Merge(expandedMedical []string, otherTerms map[string]types.Annotation) []string {
	merged := make([]string, 0, len(expandedMedical)+len(otherTerms))
	seen := make(map[string]struct{}, len(expandedMedical)+len(otherTerms))
	add := func(term string) {
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		merged = append(merged, term)
	}
	for _, term := range expandedMedical {
		add(term)
	}
	for _, annotation := range otherTerms {
		add(annotation.PrettyName)
	}
	sort.Strings(merged)
	return merged
}
