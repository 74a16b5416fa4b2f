// Package anthropic adapts the Anthropic SDK to the Gateway's Provider
// contract, serving the text and structured capabilities (spec.md §4.1).
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"meridian/internal/domain"
	"meridian/internal/domain/models"
	domainllm "meridian/internal/domain/services/llm"
)

const structuredToolName = "emit_result"

// Provider implements domainllm.Provider against Claude models.
type Provider struct {
	client *anthropic.Client
}

// NewProvider creates a new Anthropic provider with the given API key.
func NewProvider(apiKey string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Provider{client: &client}, nil
}

func (p *Provider) Name() string { return "anthropic" }

// SupportsModel serves text and structured for any "claude-"-prefixed model.
func (p *Provider) SupportsModel(model string, capability domainllm.Capability) bool {
	if !strings.HasPrefix(model, "claude-") {
		return false
	}
	switch capability {
	case domainllm.CapabilityText, domainllm.CapabilityStructured:
		return true
	default:
		return false
	}
}

func convertMessages(messages []models.LLMMessage) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == "system" {
			continue
		}
		text := msg.Text()
		var param anthropic.MessageParam
		if msg.Role == "assistant" {
			param = anthropic.NewAssistantMessage(anthropic.NewTextBlock(text))
		} else {
			param = anthropic.NewUserMessage(anthropic.NewTextBlock(text))
		}
		out = append(out, param)
	}
	return out
}

func systemPrompt(messages []models.LLMMessage) string {
	for _, msg := range messages {
		if msg.Role == "system" {
			return msg.Text()
		}
	}
	return ""
}

func (p *Provider) GenerateResponse(ctx context.Context, req *domainllm.GenerateRequest) (*domainllm.GenerateResponse, error) {
	maxTokens := int64(4096)
	if req.MaxOutputTokens != nil {
		maxTokens = int64(*req.MaxOutputTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  convertMessages(req.Messages),
		MaxTokens: maxTokens,
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if sys := systemPrompt(req.Messages); sys != "" {
		params.System = []anthropic.TextBlockParam{{Text: sys}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: anthropic call failed: %v", domain.ErrTransport, err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	raw, _ := json.Marshal(msg)
	var rawMap map[string]interface{}
	_ = json.Unmarshal(raw, &rawMap)

	return &domainllm.GenerateResponse{
		Content:            text.String(),
		Model:              string(msg.Model),
		Provider:           p.Name(),
		InputTokens:        int(msg.Usage.InputTokens),
		OutputTokens:       int(msg.Usage.OutputTokens),
		ProviderResponseID: &msg.ID,
		ResponseRaw:        rawMap,
	}, nil
}

// GenerateStructured forces a single tool call shaped by req.SchemaJSON so
// the model's reply is a schema-conforming JSON object (spec.md §4.1 op 2).
func (p *Provider) GenerateStructured(ctx context.Context, req *domainllm.StructuredRequest) (*domainllm.StructuredResponse, error) {
	maxTokens := int64(4096)
	if req.MaxOutputTokens != nil {
		maxTokens = int64(*req.MaxOutputTokens)
	}

	tool := anthropic.ToolParam{
		Name:        structuredToolName,
		Description: anthropic.String("Emit the final result as structured data matching " + req.SchemaName),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: req.SchemaJSON["properties"],
			Required:   toStringSlice(req.SchemaJSON["required"]),
		},
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  convertMessages(req.Messages),
		MaxTokens: maxTokens,
		Tools:     []anthropic.ToolUnionParam{{OfTool: &tool}},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: structuredToolName},
		},
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if sys := systemPrompt(req.Messages); sys != "" {
		params.System = []anthropic.TextBlockParam{{Text: sys}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: anthropic structured call failed: %v", domain.ErrTransport, err)
	}

	var value map[string]interface{}
	for _, block := range msg.Content {
		if block.Type == "tool_use" && block.Name == structuredToolName {
			if err := json.Unmarshal(block.Input, &value); err != nil {
				return nil, fmt.Errorf("%w: unmarshal tool input: %v", domain.ErrInvalidResponse, err)
			}
			break
		}
	}
	if value == nil {
		return nil, fmt.Errorf("%w: model did not call %s", domain.ErrInvalidResponse, structuredToolName)
	}
	if req.Validate != nil {
		if err := req.Validate(value); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidResponse, err)
		}
	}

	raw, _ := json.Marshal(msg)
	var rawMap map[string]interface{}
	_ = json.Unmarshal(raw, &rawMap)

	return &domainllm.StructuredResponse{
		Value:              value,
		Model:              string(msg.Model),
		Provider:           p.Name(),
		InputTokens:        int(msg.Usage.InputTokens),
		OutputTokens:       int(msg.Usage.OutputTokens),
		ProviderResponseID: &msg.ID,
		ResponseRaw:        rawMap,
	}, nil
}

// GenerateAudio is not served by Anthropic; the Gateway routes audio calls
// to the openai provider instead.
func (p *Provider) GenerateAudio(ctx context.Context, req *domainllm.AudioRequest) (*domainllm.AudioResponse, error) {
	return nil, fmt.Errorf("%w: anthropic provider does not support audio", domain.ErrProviderError)
}

// GenerateImage is not served by Anthropic; the Gateway routes image calls
// to the openai provider instead.
func (p *Provider) GenerateImage(ctx context.Context, req *domainllm.ImageRequest) (*domainllm.ImageResponse, error) {
	return nil, fmt.Errorf("%w: anthropic provider does not support images", domain.ErrProviderError)
}

func toStringSlice(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
