package vocab

import (
	"healthdatagateway.org/ted/redis"
	"healthdatagateway.org/ted/utils"
	"encoding/json"
	"fmt"
	"github.com/rs/zerolog"
	"sort"
	"time"
)

// CacheDB is the Redis database holding cached expansion results.
const CacheDB redis.DB = 0

type cacheStore interface {
	GetBytes(key string) ([]byte, error)
	SetBytes(key string, value []byte, expiration time.Duration) error
	Lock(key string) (redis.ReleaseLock, error)
}

// Cache memoizes expansion results per distinct term set. Every
// failure degrades to the uncached path, a cache is never a reason to
// fail an expansion.
type Cache struct {
	store     cacheStore
	ttl       time.Duration
	tedLogger *zerolog.Logger
}

func NewCache(store cacheStore, ttl time.Duration, tedLogger *zerolog.Logger) *Cache {
	return &Cache{store: store, ttl: ttl, tedLogger: tedLogger}
}

// cacheKey is stable under term order, the hash covers the sorted
// distinct term set.
func cacheKey(terms []string) string {
	sorted := make([]string, len(terms))
	copy(sorted, terms)
	sort.Strings(sorted)
	return fmt.Sprintf("vocab:%016x", utils.HashStrings(sorted))
}

func (cache *Cache) get(terms []string) ([]string, bool) {
	b, err := cache.store.GetBytes(cacheKey(terms))
	if err == redis.ErrKeyMissing {
		return nil, false
	}
	if err != nil {
		cache.tedLogger.Warn().Err(err).Msg("Vocab cache read failed, falling through to search")
		return nil, false
	}
	var result []string
	if err := json.Unmarshal(b, &result); err != nil {
		cache.tedLogger.Warn().Err(err).Msg("Vocab cache entry is malformed, falling through to search")
		return nil, false
	}
	return result, true
}

func (cache *Cache) put(terms []string, result []string) {
	b, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := cache.store.SetBytes(cacheKey(terms), b, cache.ttl); err != nil {
		cache.tedLogger.Warn().Err(err).Msg("Vocab cache write failed")
	}
}

// lock guards a cache fill so concurrent requests for the same term
// set don't all hit the vocabulary service. A failed lock is not
// fatal, the caller just proceeds unguarded.
func (cache *Cache) lock(terms []string) func() {
	release, err := cache.store.Lock(cacheKey(terms))
	if err != nil {
		cache.tedLogger.Warn().Err(err).Msg("Could not obtain vocab cache lock, proceeding without it")
		return func() {}
	}
	return func() {
		if err := release(); err != nil {
			cache.tedLogger.Warn().Err(err).Msg("Failed to release vocab cache lock")
		}
	}
}
