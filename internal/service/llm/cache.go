package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"meridian/internal/domain/models"
	domainllm "meridian/internal/domain/services/llm"
)

// Cache is an in-process response cache keyed by the full shape of a call:
// provider, model, messages, temperature, max_output_tokens, and (for
// structured calls) schema name. Two calls differing only in, say, the
// acting user share one cache entry, since the user id is not part of the
// key. Not persisted across process restarts: it exists to collapse
// retried/duplicate calls within one process's lifetime, not as a durable
// store (the LLMRequest log already is that).
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	response interface{}
}

// NewCache creates an empty response cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// textKey builds the cache key for a plain-text call.
func textKey(provider, model string, messages []models.LLMMessage, temperature *float64, maxOutputTokens *int) string {
	return canonicalKey(provider, model, messages, temperature, maxOutputTokens, "")
}

// structuredKey builds the cache key for a structured call, folding the
// schema name in so two schemas requested over identical messages never
// collide.
func structuredKey(provider, model string, messages []models.LLMMessage, temperature *float64, maxOutputTokens *int, schemaName string) string {
	return canonicalKey(provider, model, messages, temperature, maxOutputTokens, schemaName)
}

func canonicalKey(provider, model string, messages []models.LLMMessage, temperature *float64, maxOutputTokens *int, schemaName string) string {
	payload := struct {
		Provider        string               `json:"provider"`
		Model           string               `json:"model"`
		Messages        []models.LLMMessage `json:"messages"`
		Temperature     *float64             `json:"temperature,omitempty"`
		MaxOutputTokens *int                 `json:"max_output_tokens,omitempty"`
		SchemaName      string               `json:"schema_name,omitempty"`
	}{provider, model, messages, temperature, maxOutputTokens, schemaName}

	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// GetText returns a cached GenerateResponse, if present.
func (c *Cache) GetText(key string) (*domainllm.GenerateResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	resp, ok := entry.response.(*domainllm.GenerateResponse)
	return resp, ok
}

// PutText stores a GenerateResponse.
func (c *Cache) PutText(key string, resp *domainllm.GenerateResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{response: resp}
}

// GetStructured returns a cached StructuredResponse, if present.
func (c *Cache) GetStructured(key string) (*domainllm.StructuredResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	resp, ok := entry.response.(*domainllm.StructuredResponse)
	return resp, ok
}

// PutStructured stores a StructuredResponse.
func (c *Cache) PutStructured(key string, resp *domainllm.StructuredResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{response: resp}
}
