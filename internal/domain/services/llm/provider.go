// Package llm declares the provider-facing contracts consumed by the LLM
// Gateway (spec.md §4.1). A Provider is capability-based: it advertises
// which of the four operations it supports via SupportsModel, and the
// Gateway routes each call to a provider that can serve it.
package llm

import (
	"context"

	"meridian/internal/domain/models"
)

// Capability is one of the four LLM Gateway operation kinds.
type Capability string

const (
	CapabilityText       Capability = "text"
	CapabilityStructured Capability = "structured"
	CapabilityAudio      Capability = "audio"
	CapabilityImage      Capability = "image"
)

// Provider is the interface every model backend implements. Concrete
// adapters live under internal/service/llm/providers/*.
type Provider interface {
	// Name returns the provider name stored on LLMRequest.provider.
	Name() string

	// SupportsModel returns true if this provider can serve the given
	// model for the given capability.
	SupportsModel(model string, capability Capability) bool

	// GenerateResponse issues a plain-text completion (spec.md §4.1 op 1).
	GenerateResponse(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// GenerateStructured issues a schema-constrained completion (op 2). The
	// provider is responsible for instructing the model to emit a
	// schema-conforming value; the Gateway still validates the parsed
	// result against req.Validate before returning it to the caller.
	GenerateStructured(ctx context.Context, req *StructuredRequest) (*StructuredResponse, error)

	// GenerateAudio synthesizes speech from text (op 3).
	GenerateAudio(ctx context.Context, req *AudioRequest) (*AudioResponse, error)

	// GenerateImage generates an image from a prompt (op 3).
	GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResponse, error)
}

// GenerateRequest is the input to GenerateResponse.
type GenerateRequest struct {
	Messages        []models.LLMMessage
	Model           string
	Temperature     *float64
	MaxOutputTokens *int
	UserID          *string
}

// GenerateResponse is the uniform response shape of spec.md §4.1.
type GenerateResponse struct {
	Content            string
	Model              string
	Provider           string
	InputTokens        int
	OutputTokens       int
	ProviderResponseID *string
	SystemFingerprint  *string
	ResponseRaw        map[string]interface{}
}

// TokensUsed returns InputTokens + OutputTokens, per spec.md §4.1.
func (r *GenerateResponse) TokensUsed() int {
	return r.InputTokens + r.OutputTokens
}

// Validator validates a parsed structured value against the caller's
// expected shape. spec.md §9 deliberately leaves the concrete validation
// mechanism unspecified ("defined by a validator — not by a particular
// library"); callers supply one, typically backed by ozzo-validation or a
// hand-written type assertion.
type Validator func(value map[string]interface{}) error

// StructuredRequest is the input to GenerateStructured.
type StructuredRequest struct {
	Messages        []models.LLMMessage
	Model           string
	Temperature     *float64
	MaxOutputTokens *int
	UserID          *string
	SchemaName      string
	SchemaJSON      map[string]interface{}
	Validate        Validator
}

// StructuredResponse is the parsed, schema-validated result of a
// structured call.
type StructuredResponse struct {
	Value              map[string]interface{}
	Model              string
	Provider           string
	InputTokens        int
	OutputTokens       int
	ProviderResponseID *string
	SystemFingerprint  *string
	ResponseRaw        map[string]interface{}
}

func (r *StructuredResponse) TokensUsed() int {
	return r.InputTokens + r.OutputTokens
}

// AudioRequest is the input to GenerateAudio.
type AudioRequest struct {
	Text        string
	Voice       string
	Model       string
	AudioFormat string
	Speed       *float64
}

// AudioResponse carries the synthesized audio and its duration.
type AudioResponse struct {
	Audio           []byte
	DurationSeconds float64
	Model           string
	Provider        string
	ResponseRaw     map[string]interface{}
}

// ImageRequest is the input to GenerateImage.
type ImageRequest struct {
	Prompt  string
	Size    string
	Quality string
	Style   string
}

// ImageResponse carries the generated image, either inline or by URL.
type ImageResponse struct {
	ImageURL      string
	ImageBytes    []byte
	RevisedPrompt string
	Model         string
	Provider      string
	ResponseRaw   map[string]interface{}
}
