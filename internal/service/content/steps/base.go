// Package steps implements every named step of spec.md §4.4 as a
// flowengine.Step: a schema-validated unit of work that reads declared
// inputs from a FlowContext, issues zero or more LLM Gateway calls, and
// writes declared outputs.
package steps

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"meridian/internal/domain/models"
	"meridian/internal/domain/services/flowengine"
	domainllm "meridian/internal/domain/services/llm"
)

// FlowContext keys shared across unit/lesson steps. Declared once here so
// every step and the flows that wire them agree on the same names.
const (
	KeyTopic                   = "topic"
	KeyLearnerDesires          = "learner_desires"
	KeyCoachLearningObjectives = "coach_learning_objectives"
	KeySourceMaterial          = "source_material"
	KeyTargetLessonCount       = "target_lesson_count"
	KeyLearnerLevel            = "learner_level"

	KeyUnitTitle          = "unit_title"
	KeyUnitLearningObjs   = "unit_learning_objectives"
	KeyLessonPlan         = "lesson_plan"
	KeyUnitSummary        = "unit_summary"

	KeyLessonTitle       = "lesson_title"
	KeyLessonObjective   = "lesson_objective"
	KeyLessonLOIDs       = "lesson_lo_ids"

	KeyLessonMetadata     = "lesson_metadata"
	KeyMisconceptions     = "misconceptions"
	KeyConfusables        = "confusables"
	KeyRefinedMaterial    = "refined_material"
	KeyLengthBudgets      = "length_budgets"
	KeyDidacticSnippet    = "didactic_snippet"
	KeyGlossary           = "glossary"
	KeyDistractorPool     = "distractor_pool"
	KeyMCQs               = "mcqs"
	KeyShortAnswers       = "short_answers"

	KeyUnitArtDescription = "unit_art_description"
	KeyImageBytes         = "image_bytes"
	KeyPodcastTranscript  = "podcast_transcript"
	KeyAudioBytes         = "audio_bytes"
	KeyAudioDurationSec   = "audio_duration_seconds"
)

// Base embeds the Gateway and default model names shared by every
// LLM-backed step, and provides the call helpers concrete steps compose.
type Base struct {
	Gateway       domainllm.Gateway
	DefaultModel  string
	FastTextModel string
}

// callText issues a plain-text GenerateResponse call.
func (b Base) callText(ctx context.Context, runCtx *flowengine.RunContext, system, user string) (*domainllm.GenerateResponse, string, error) {
	req := &domainllm.GenerateRequest{
		Messages: []models.LLMMessage{
			{Role: "system", Content: []models.MessagePart{{Type: "text", Text: system}}},
			{Role: "user", Content: []models.MessagePart{{Type: "text", Text: user}}},
		},
		Model:  b.DefaultModel,
		UserID: runCtx.UserID,
	}
	return b.Gateway.GenerateResponse(ctx, req)
}

// callStructured issues a schema-constrained GenerateStructured call.
func (b Base) callStructured(ctx context.Context, runCtx *flowengine.RunContext, system, user, schemaName string, schema map[string]interface{}, validate domainllm.Validator) (*domainllm.StructuredResponse, string, error) {
	req := &domainllm.StructuredRequest{
		Messages: []models.LLMMessage{
			{Role: "system", Content: []models.MessagePart{{Type: "text", Text: system}}},
			{Role: "user", Content: []models.MessagePart{{Type: "text", Text: user}}},
		},
		Model:      b.DefaultModel,
		UserID:     runCtx.UserID,
		SchemaName: schemaName,
		SchemaJSON: schema,
		Validate:   validate,
	}
	return b.Gateway.GenerateStructured(ctx, req)
}

// requireString reads a required string field out of a structured value,
// returning a field-identifying error otherwise (spec.md §4.2 "error
// identifies the offending field").
func requireString(value map[string]interface{}, field string) (string, error) {
	raw, ok := value[field]
	if !ok {
		return "", fmt.Errorf("missing field %q", field)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("field %q must be a string", field)
	}
	if err := validation.Validate(s, validation.Required); err != nil {
		return "", fmt.Errorf("field %q: %w", field, err)
	}
	return s, nil
}

// requireList reads a required array field out of a structured value.
func requireList(value map[string]interface{}, field string) ([]interface{}, error) {
	raw, ok := value[field]
	if !ok {
		return nil, fmt.Errorf("missing field %q", field)
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("field %q must be an array", field)
	}
	if err := validation.Validate(list, validation.Required); err != nil {
		return nil, fmt.Errorf("field %q: %w", field, err)
	}
	return list, nil
}

// textResult builds a StepResult from a single GenerateResponse call.
func textResult(outputs flowengine.FlowContext, resp *domainllm.GenerateResponse, requestID string) flowengine.StepResult {
	return flowengine.StepResult{
		Outputs:       outputs,
		LLMRequestIDs: []string{requestID},
		TokensUsed:    resp.TokensUsed(),
	}
}

// structuredResult builds a StepResult from a single GenerateStructured call.
func structuredResult(outputs flowengine.FlowContext, resp *domainllm.StructuredResponse, requestID string) flowengine.StepResult {
	return flowengine.StepResult{
		Outputs:       outputs,
		LLMRequestIDs: []string{requestID},
		TokensUsed:    resp.TokensUsed(),
	}
}
