package vocab

import (
	"healthdatagateway.org/ted/logger"
	"healthdatagateway.org/ted/types"
	"github.com/rs/zerolog"
	"sort"
)

const defaultMaxAttempts = 2

// Searcher is the outbound vocabulary-search capability.
type Searcher interface {
	Search(terms []string) ([]types.ConceptGroup, error)
}

// Expander grows a set of medical terms with concept names, codes,
// synonyms and one level of ancestors from the vocabulary service.
// Expansion is additive and never fails: if the service cannot be
// reached within the attempt budget the original pretty names come
// back unchanged.
type Expander struct {
	searcher    Searcher
	cache       *Cache
	maxAttempts int
	tedLogger   *zerolog.Logger
}

// NewExpander wires an expander. cache may be nil when caching is
// disabled. maxAttempts <= 0 falls back to the default budget.
func NewExpander(searcher Searcher, cache *Cache, maxAttempts int) *Expander {
	tedLogger := logger.NewLogger("Vocab expander")
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Expander{
		searcher:    searcher,
		cache:       cache,
		maxAttempts: maxAttempts,
		tedLogger:   &tedLogger,
	}
}

// Expand returns the distinct pretty names of the medical terms
// followed by their expansion results grouped by concept in response
// order. Deduplication and sorting are deferred to the merger.
func (expander *Expander) Expand(medical map[string]types.Annotation) []string {
	if len(medical) == 0 {
		return []string{}
	}
	names := distinctPrettyNames(medical)

	if expander.cache != nil {
		if cached, ok := expander.cache.get(names); ok {
			return cached
		}
		unlock := expander.cache.lock(names)
		defer unlock()
		// Another request may have filled the entry while we waited.
		if cached, ok := expander.cache.get(names); ok {
			return cached
		}
	}

	groups, err := expander.search(names)
	if err != nil {
		expander.tedLogger.Warn().
			Err(err).
			Int("attempts", expander.maxAttempts).
			Msg("Vocabulary expansion failed, returning original terms")
		return names
	}

	result := append([]string{}, names...)
	for _, group := range groups {
		if group.Concepts == nil {
			continue
		}
		for _, concept := range group.Concepts {
			result = append(result, concept.ConceptName, concept.ConceptCode)
			for _, synonym := range concept.Synonyms {
				result = append(result, synonym.ConceptSynonymName)
			}
			for _, ancestor := range concept.Ancestors {
				result = append(result, ancestor.ConceptName, ancestor.ConceptCode)
			}
		}
	}

	if expander.cache != nil {
		expander.cache.put(names, result)
	}
	return result
}

// NopExpander returns the distinct pretty names without consulting the
// vocabulary service, used when expansion is disabled by configuration.
type NopExpander struct{}

func (NopExpander) Expand(medical map[string]types.Annotation) []string {
	if len(medical) == 0 {
		return []string{}
	}
	return distinctPrettyNames(medical)
}

func (expander *Expander) search(terms []string) ([]types.ConceptGroup, error) {
	var lastErr error
	for attempt := 1; attempt <= expander.maxAttempts; attempt++ {
		groups, err := expander.searcher.Search(terms)
		if err == nil {
			return groups, nil
		}
		lastErr = err
		expander.tedLogger.Warn().
			Err(err).
			Int("attempt", attempt).
			Msg("Vocabulary search attempt failed")
	}
	return nil, lastErr
}

// distinctPrettyNames collects unique pretty names ordered by
// annotation id so output is deterministic for a map-shaped input.
func distinctPrettyNames(medical map[string]types.Annotation) []string {
	ids := make([]string, 0, len(medical))
	for id := range medical {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	seen := make(map[string]struct{}, len(ids))
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		name := medical[id].PrettyName
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
