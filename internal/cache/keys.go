package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	GlobalKeyPrefix = "questionair"
)

// GenerateCacheKey generates a cache key for a given service, object type, and identifier.
// If paramsKey are provided, they are joined by "_" and appended to the cache key.
func GenerateCacheKey(serviceName, objectType, identifier string, paramsKey ...string) string {
	baseKey := strings.Join([]string{GlobalKeyPrefix, serviceName, objectType, identifier}, ":")
	if len(paramsKey) > 0 {
		return strings.Join([]string{baseKey, strings.Join(paramsKey, "_")}, ":")
	}
	return baseKey
}

// EmbeddingKey identifies the cached embedding of text for one provider and model.
func EmbeddingKey(provider, model, text string) string {
	return GenerateCacheKey("embedding", provider, HashString(text), model)
}

// Read-side keys, invalidated after every run that persisted questions.
var (
	SubjectsKey = GenerateCacheKey("quiz", "list", "subjects")
	KeywordsKey = GenerateCacheKey("quiz", "list", "keywords")
	StatsKey    = GenerateCacheKey("quiz", "stats", "all")
)

// ReadKeys lists every read-side key.
func ReadKeys() []string {
	return []string{SubjectsKey, KeywordsKey, StatsKey}
}

// HashString returns the hex SHA-256 of s.
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
