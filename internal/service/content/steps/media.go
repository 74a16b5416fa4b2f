package steps

import (
	"context"
	"fmt"

	"meridian/internal/domain/services/flowengine"
	domainllm "meridian/internal/domain/services/llm"
)

// GenerateUnitArtDescription produces a structured image brief: a
// generation prompt, alt text, and a palette (spec.md §4.4.4).
type GenerateUnitArtDescription struct{ Base }

func NewGenerateUnitArtDescription(b Base) *GenerateUnitArtDescription {
	return &GenerateUnitArtDescription{b}
}

func (s *GenerateUnitArtDescription) Name() string        { return "GenerateUnitArtDescription" }
func (s *GenerateUnitArtDescription) InputKeys() []string  { return []string{KeyUnitTitle, KeyUnitSummary} }
func (s *GenerateUnitArtDescription) OutputKeys() []string { return []string{KeyUnitArtDescription} }

func (s *GenerateUnitArtDescription) ValidateInputs(ctx flowengine.FlowContext) error {
	if _, ok := ctx.Get(KeyUnitTitle); !ok {
		return fmt.Errorf("unit_title is required")
	}
	return nil
}

var unitArtDescriptionSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"prompt":   map[string]interface{}{"type": "string"},
		"alt_text": map[string]interface{}{"type": "string"},
		"palette":  map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
	},
	"required": []interface{}{"prompt", "alt_text"},
}

func (s *GenerateUnitArtDescription) Execute(ctx context.Context, flowCtx flowengine.FlowContext, runCtx *flowengine.RunContext) (flowengine.StepResult, error) {
	title, _ := flowCtx.Get(KeyUnitTitle)
	summary, _ := flowCtx.Get(KeyUnitSummary)

	system := "You write a cover-art brief for a learning unit: an image generation prompt, accessible alt text, and a color palette."
	user := fmt.Sprintf("Unit title: %v\nUnit summary: %v", title, summary)

	resp, requestID, err := s.callStructured(ctx, runCtx, system, user, "generate_unit_art_description", unitArtDescriptionSchema, func(v map[string]interface{}) error {
		if _, err := requireString(v, "prompt"); err != nil {
			return err
		}
		_, err := requireString(v, "alt_text")
		return err
	})
	if err != nil {
		return flowengine.StepResult{}, err
	}
	return structuredResult(flowengine.FlowContext{KeyUnitArtDescription: resp.Value}, resp, requestID), nil
}

func (s *GenerateUnitArtDescription) ValidateOutputs(result flowengine.StepResult) error {
	desc, ok := result.Outputs[KeyUnitArtDescription].(map[string]interface{})
	if !ok {
		return fmt.Errorf("unit_art_description must be an object")
	}
	if _, ok := desc["prompt"].(string); !ok {
		return fmt.Errorf("unit_art_description.prompt must be a string")
	}
	return nil
}

// GenerateImage calls the Gateway's image capability against a prior
// step's prompt (spec.md §4.4.4 "GenerateUnitArtDescription -> GenerateImage").
type GenerateImage struct{ Base }

func NewGenerateImage(b Base) *GenerateImage { return &GenerateImage{b} }

func (s *GenerateImage) Name() string        { return "GenerateImage" }
func (s *GenerateImage) InputKeys() []string  { return []string{KeyUnitArtDescription} }
func (s *GenerateImage) OutputKeys() []string { return []string{KeyImageBytes} }

func (s *GenerateImage) ValidateInputs(ctx flowengine.FlowContext) error {
	if _, ok := ctx.Get(KeyUnitArtDescription); !ok {
		return fmt.Errorf("unit_art_description is required")
	}
	return nil
}

func (s *GenerateImage) Execute(ctx context.Context, flowCtx flowengine.FlowContext, runCtx *flowengine.RunContext) (flowengine.StepResult, error) {
	desc, _ := flowCtx.Get(KeyUnitArtDescription)
	descMap, _ := desc.(map[string]interface{})
	prompt, _ := descMap["prompt"].(string)

	req := &domainllm.ImageRequest{Prompt: prompt, Size: "1024x1024", Quality: "standard"}
	resp, requestID, err := s.Gateway.GenerateImage(ctx, req)
	if err != nil {
		return flowengine.StepResult{}, err
	}

	return flowengine.StepResult{
		Outputs:       flowengine.FlowContext{KeyImageBytes: resp.ImageBytes},
		LLMRequestIDs: []string{requestID},
	}, nil
}

func (s *GenerateImage) ValidateOutputs(result flowengine.StepResult) error {
	if _, ok := result.Outputs[KeyImageBytes]; !ok {
		return fmt.Errorf("image_bytes is required")
	}
	return nil
}

// GeneratePodcastTranscript writes the narration script consumed by
// GenerateAudio, shared by the unit and lesson podcast flows.
type GeneratePodcastTranscript struct{ Base }

func NewGeneratePodcastTranscript(b Base) *GeneratePodcastTranscript {
	return &GeneratePodcastTranscript{b}
}

func (s *GeneratePodcastTranscript) Name() string        { return "GeneratePodcastTranscript" }
func (s *GeneratePodcastTranscript) InputKeys() []string  { return []string{KeyUnitSummary} }
func (s *GeneratePodcastTranscript) OutputKeys() []string { return []string{KeyPodcastTranscript} }

func (s *GeneratePodcastTranscript) ValidateInputs(ctx flowengine.FlowContext) error {
	if _, ok := ctx.Get(KeyUnitSummary); !ok {
		return fmt.Errorf("unit_summary is required")
	}
	return nil
}

func (s *GeneratePodcastTranscript) Execute(ctx context.Context, flowCtx flowengine.FlowContext, runCtx *flowengine.RunContext) (flowengine.StepResult, error) {
	summary, _ := flowCtx.Get(KeyUnitSummary)

	system := "You write a short single-narrator podcast script from a learning summary: conversational, a few minutes of spoken content."
	user := fmt.Sprintf("Summary:\n%v", summary)

	resp, requestID, err := s.callText(ctx, runCtx, system, user)
	if err != nil {
		return flowengine.StepResult{}, err
	}
	return textResult(flowengine.FlowContext{KeyPodcastTranscript: resp.Content}, resp, requestID), nil
}

func (s *GeneratePodcastTranscript) ValidateOutputs(result flowengine.StepResult) error {
	if t, ok := result.Outputs[KeyPodcastTranscript].(string); !ok || t == "" {
		return fmt.Errorf("podcast_transcript must be a non-empty string")
	}
	return nil
}

// GenerateAudio calls the Gateway's audio capability against the
// transcript written by GeneratePodcastTranscript.
type GenerateAudio struct{ Base }

func NewGenerateAudio(b Base) *GenerateAudio { return &GenerateAudio{b} }

func (s *GenerateAudio) Name() string        { return "GenerateAudio" }
func (s *GenerateAudio) InputKeys() []string  { return []string{KeyPodcastTranscript} }
func (s *GenerateAudio) OutputKeys() []string { return []string{KeyAudioBytes, KeyAudioDurationSec} }

func (s *GenerateAudio) ValidateInputs(ctx flowengine.FlowContext) error {
	if _, ok := ctx.Get(KeyPodcastTranscript); !ok {
		return fmt.Errorf("podcast_transcript is required")
	}
	return nil
}

func (s *GenerateAudio) Execute(ctx context.Context, flowCtx flowengine.FlowContext, runCtx *flowengine.RunContext) (flowengine.StepResult, error) {
	transcript, _ := flowCtx.Get(KeyPodcastTranscript)
	text, _ := transcript.(string)

	req := &domainllm.AudioRequest{Text: text, Voice: "alloy", Model: "tts-1", AudioFormat: "mp3"}
	resp, requestID, err := s.Gateway.GenerateAudio(ctx, req)
	if err != nil {
		return flowengine.StepResult{}, err
	}

	return flowengine.StepResult{
		Outputs: flowengine.FlowContext{
			KeyAudioBytes:       resp.Audio,
			KeyAudioDurationSec: resp.DurationSeconds,
		},
		LLMRequestIDs: []string{requestID},
	}, nil
}

func (s *GenerateAudio) ValidateOutputs(result flowengine.StepResult) error {
	if _, ok := result.Outputs[KeyAudioBytes]; !ok {
		return fmt.Errorf("audio_bytes is required")
	}
	return nil
}
