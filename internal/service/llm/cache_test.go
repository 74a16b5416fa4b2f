package llm

import (
	"testing"

	"meridian/internal/domain/models"
	domainllm "meridian/internal/domain/services/llm"
)

func textMessage(role, text string) models.LLMMessage {
	return models.LLMMessage{Role: role, Content: []models.MessagePart{{Type: "text", Text: text}}}
}

func TestTextKey_SameShapeSameKey(t *testing.T) {
	messages := []models.LLMMessage{textMessage("user", "hello")}
	temp := 0.5
	max := 512

	k1 := textKey("anthropic", "claude-haiku-4-5-20251001", messages, &temp, &max)
	k2 := textKey("anthropic", "claude-haiku-4-5-20251001", messages, &temp, &max)
	if k1 != k2 {
		t.Errorf("identical calls produced different cache keys: %q vs %q", k1, k2)
	}
}

func TestTextKey_DifferentMessagesDifferentKey(t *testing.T) {
	temp := 0.5
	max := 512

	k1 := textKey("anthropic", "claude-haiku-4-5-20251001", []models.LLMMessage{textMessage("user", "hello")}, &temp, &max)
	k2 := textKey("anthropic", "claude-haiku-4-5-20251001", []models.LLMMessage{textMessage("user", "goodbye")}, &temp, &max)
	if k1 == k2 {
		t.Error("different messages produced the same cache key")
	}
}

func TestStructuredKey_DifferentSchemaDifferentKey(t *testing.T) {
	messages := []models.LLMMessage{textMessage("user", "extract metadata")}

	k1 := structuredKey("anthropic", "claude-sonnet-4-5-20250929", messages, nil, nil, "UnitMetadata")
	k2 := structuredKey("anthropic", "claude-sonnet-4-5-20250929", messages, nil, nil, "LessonMetadata")
	if k1 == k2 {
		t.Error("different schema names produced the same cache key")
	}
}

func TestTextKey_ExcludesUserID(t *testing.T) {
	// The cache key is built only from provider, model, messages, temperature
	// and max_output_tokens — canonicalKey never takes a user/caller id, so
	// two callers issuing the identical call always share a cache entry.
	messages := []models.LLMMessage{textMessage("user", "hello")}
	k1 := textKey("anthropic", "claude-haiku-4-5-20251001", messages, nil, nil)
	k2 := textKey("anthropic", "claude-haiku-4-5-20251001", messages, nil, nil)
	if k1 != k2 {
		t.Error("expected calls differing only by caller identity to share a cache key")
	}
}

func TestCache_GetPutText(t *testing.T) {
	c := NewCache()
	key := "some-key"

	if _, ok := c.GetText(key); ok {
		t.Fatal("expected empty cache to miss")
	}

	want := &domainllm.GenerateResponse{Content: "hello"}
	c.PutText(key, want)

	got, ok := c.GetText(key)
	if !ok {
		t.Fatal("expected cache hit after Put")
	}
	if got != want {
		t.Errorf("GetText returned a different pointer than was stored")
	}
}

func TestCache_GetStructured_WrongTypeMisses(t *testing.T) {
	c := NewCache()
	key := "some-key"
	c.PutText(key, &domainllm.GenerateResponse{Content: "hello"})

	// A text response stored under this key should not be returned by
	// GetStructured, since the two response types are never interchangeable.
	if _, ok := c.GetStructured(key); ok {
		t.Error("expected GetStructured to miss when the stored entry is a GenerateResponse")
	}
}
