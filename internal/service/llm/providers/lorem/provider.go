// Package lorem is a mock LLM provider serving all four capabilities with
// deterministic placeholder content, used for development and tests without
// requiring real API keys (spec.md §9 "Provider substitutability").
package lorem

import (
	"context"
	"fmt"
	"strings"

	loremgen "github.com/bozaro/golorem"

	"meridian/internal/domain"
	"meridian/internal/domain/models"
	domainllm "meridian/internal/domain/services/llm"
)

// Provider generates lorem ipsum text, a 1x1 PNG, and a silent WAV in place
// of real model output.
type Provider struct {
	generator *loremgen.Lorem
}

// NewProvider creates a new lorem provider.
func NewProvider() *Provider {
	return &Provider{generator: loremgen.New()}
}

func (p *Provider) Name() string { return "lorem" }

// SupportsModel serves every capability for any "lorem-"-prefixed model.
func (p *Provider) SupportsModel(model string, capability domainllm.Capability) bool {
	return strings.HasPrefix(model, "lorem-")
}

func (p *Provider) GenerateResponse(ctx context.Context, req *domainllm.GenerateRequest) (*domainllm.GenerateResponse, error) {
	if !p.SupportsModel(req.Model, domainllm.CapabilityText) {
		return nil, fmt.Errorf("%w: model %q is not supported by lorem provider", domain.ErrProviderError, req.Model)
	}
	maxTokens := 256
	if req.MaxOutputTokens != nil {
		maxTokens = *req.MaxOutputTokens
	}
	text := p.generateWords(maxTokens)

	return &domainllm.GenerateResponse{
		Content:      text,
		Model:        req.Model,
		Provider:     p.Name(),
		InputTokens:  p.estimateTokens(req.Messages),
		OutputTokens: len(strings.Fields(text)),
		ResponseRaw:  map[string]interface{}{"mock": true},
	}, nil
}

// GenerateStructured fabricates a value satisfying req.SchemaJSON's required
// string properties with lorem text, so callers can exercise validation and
// downstream wiring without a real model.
func (p *Provider) GenerateStructured(ctx context.Context, req *domainllm.StructuredRequest) (*domainllm.StructuredResponse, error) {
	if !p.SupportsModel(req.Model, domainllm.CapabilityStructured) {
		return nil, fmt.Errorf("%w: model %q is not supported by lorem provider", domain.ErrProviderError, req.Model)
	}

	value := map[string]interface{}{}
	if props, ok := req.SchemaJSON["properties"].(map[string]interface{}); ok {
		for key, raw := range props {
			schema, _ := raw.(map[string]interface{})
			value[key] = p.fabricateValue(schema)
		}
	}
	if req.Validate != nil {
		if err := req.Validate(value); err != nil {
			return nil, fmt.Errorf("%w: lorem fabrication failed validation: %v", domain.ErrInvalidResponse, err)
		}
	}

	return &domainllm.StructuredResponse{
		Value:        value,
		Model:        req.Model,
		Provider:     p.Name(),
		InputTokens:  p.estimateTokens(req.Messages),
		OutputTokens: 32,
		ResponseRaw:  map[string]interface{}{"mock": true},
	}, nil
}

func (p *Provider) fabricateValue(schema map[string]interface{}) interface{} {
	t, _ := schema["type"].(string)
	switch t {
	case "integer", "number":
		return 1
	case "boolean":
		return true
	case "array":
		items, _ := schema["items"].(map[string]interface{})
		return []interface{}{p.fabricateValue(items)}
	case "object":
		out := map[string]interface{}{}
		if props, ok := schema["properties"].(map[string]interface{}); ok {
			for key, raw := range props {
				sub, _ := raw.(map[string]interface{})
				out[key] = p.fabricateValue(sub)
			}
		}
		return out
	default:
		return p.generator.Sentence(4, 8)
	}
}

func (p *Provider) GenerateAudio(ctx context.Context, req *domainllm.AudioRequest) (*domainllm.AudioResponse, error) {
	return &domainllm.AudioResponse{
		Audio:           silentWAV,
		DurationSeconds: 1.0,
		Model:           req.Model,
		Provider:        p.Name(),
		ResponseRaw:     map[string]interface{}{"mock": true},
	}, nil
}

func (p *Provider) GenerateImage(ctx context.Context, req *domainllm.ImageRequest) (*domainllm.ImageResponse, error) {
	return &domainllm.ImageResponse{
		ImageBytes:    onePixelPNG,
		RevisedPrompt: req.Prompt,
		Model:         "lorem-image",
		Provider:      p.Name(),
		ResponseRaw:   map[string]interface{}{"mock": true},
	}, nil
}

func (p *Provider) generateWords(targetWords int) string {
	var sb strings.Builder
	wordCount := 0
	for wordCount < targetWords {
		sentence := p.generator.Sentence(5, 15)
		sb.WriteString(sentence)
		sb.WriteString(" ")
		wordCount += len(strings.Fields(sentence))
	}
	return strings.TrimSpace(sb.String())
}

func (p *Provider) estimateTokens(messages []models.LLMMessage) int {
	total := 0
	for _, msg := range messages {
		total += len(strings.Fields(msg.Text()))
	}
	return total
}

// silentWAV is a minimal, valid one-frame WAV file used as placeholder audio.
var silentWAV = []byte{
	'R', 'I', 'F', 'F', 36, 0, 0, 0, 'W', 'A', 'V', 'E',
	'f', 'm', 't', ' ', 16, 0, 0, 0, 1, 0, 1, 0,
	0x44, 0xac, 0, 0, 0x88, 0x58, 1, 0, 2, 0, 16, 0,
	'd', 'a', 't', 'a', 0, 0, 0, 0,
}

// onePixelPNG is a minimal valid 1x1 transparent PNG used as placeholder
// image content.
var onePixelPNG = []byte{
	0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a,
	0, 0, 0, 0x0d, 'I', 'H', 'D', 'R',
	0, 0, 0, 1, 0, 0, 0, 1, 8, 6, 0, 0, 0, 0x1f, 0x15, 0xc4, 0x89,
	0, 0, 0, 0x0a, 'I', 'D', 'A', 'T', 0x78, 0x9c, 0x63, 0, 1, 0, 0, 5, 0, 1,
	0x0d, 0x0a, 0x2d, 0xb4,
	0, 0, 0, 0, 'I', 'E', 'N', 'D', 0xae, 0x42, 0x60, 0x82,
}
