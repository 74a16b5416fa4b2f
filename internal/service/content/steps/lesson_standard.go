package steps

import (
	"context"
	"fmt"

	"meridian/internal/domain/services/flowengine"
)

// ExtractLessonMetadata refines the unit plan's per-lesson entry into the
// lesson's own learning-objective scope and objective statement (spec.md
// §4.4.2 standard flow, step 1).
type ExtractLessonMetadata struct{ Base }

func NewExtractLessonMetadata(b Base) *ExtractLessonMetadata { return &ExtractLessonMetadata{b} }

func (s *ExtractLessonMetadata) Name() string { return "ExtractLessonMetadata" }
func (s *ExtractLessonMetadata) InputKeys() []string {
	return []string{KeyLessonTitle, KeyLessonObjective, KeySourceMaterial}
}
func (s *ExtractLessonMetadata) OutputKeys() []string { return []string{KeyLessonMetadata} }

func (s *ExtractLessonMetadata) ValidateInputs(ctx flowengine.FlowContext) error {
	if _, ok := ctx.RequireKeys(s.InputKeys()...); !ok {
		return fmt.Errorf("missing required input")
	}
	return nil
}

var lessonMetadataSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"summary":       map[string]interface{}{"type": "string"},
		"key_points":    map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"prerequisites": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
	},
	"required": []interface{}{"summary", "key_points"},
}

func (s *ExtractLessonMetadata) Execute(ctx context.Context, flowCtx flowengine.FlowContext, runCtx *flowengine.RunContext) (flowengine.StepResult, error) {
	title, _ := flowCtx.Get(KeyLessonTitle)
	objective, _ := flowCtx.Get(KeyLessonObjective)
	material, _ := flowCtx.Get(KeySourceMaterial)

	system := "You scope a single lesson out of a larger unit's source material: a summary, key points, and prerequisites."
	user := fmt.Sprintf("Lesson title: %v\nLesson objective: %v\n\nUnit source material:\n%v", title, objective, material)

	resp, requestID, err := s.callStructured(ctx, runCtx, system, user, "extract_lesson_metadata", lessonMetadataSchema, func(v map[string]interface{}) error {
		_, err := requireString(v, "summary")
		return err
	})
	if err != nil {
		return flowengine.StepResult{}, err
	}
	return structuredResult(flowengine.FlowContext{KeyLessonMetadata: resp.Value}, resp, requestID), nil
}

func (s *ExtractLessonMetadata) ValidateOutputs(result flowengine.StepResult) error {
	meta, ok := result.Outputs[KeyLessonMetadata].(map[string]interface{})
	if !ok {
		return fmt.Errorf("lesson_metadata must be an object")
	}
	if _, ok := meta["summary"].(string); !ok {
		return fmt.Errorf("lesson_metadata.summary must be a string")
	}
	return nil
}

// GenerateMisconceptionBank produces the lesson's misconception list, a
// shared input to the didactic snippet and short-answer steps.
type GenerateMisconceptionBank struct{ Base }

func NewGenerateMisconceptionBank(b Base) *GenerateMisconceptionBank {
	return &GenerateMisconceptionBank{b}
}

func (s *GenerateMisconceptionBank) Name() string        { return "GenerateMisconceptionBank" }
func (s *GenerateMisconceptionBank) InputKeys() []string  { return []string{KeyLessonMetadata} }
func (s *GenerateMisconceptionBank) OutputKeys() []string { return []string{KeyMisconceptions, KeyConfusables} }

func (s *GenerateMisconceptionBank) ValidateInputs(ctx flowengine.FlowContext) error {
	if _, ok := ctx.RequireKeys(s.InputKeys()...); !ok {
		return fmt.Errorf("missing required input")
	}
	return nil
}

var misconceptionBankSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"misconceptions": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"confusables":    map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
	},
	"required": []interface{}{"misconceptions"},
}

func (s *GenerateMisconceptionBank) Execute(ctx context.Context, flowCtx flowengine.FlowContext, runCtx *flowengine.RunContext) (flowengine.StepResult, error) {
	meta, _ := flowCtx.Get(KeyLessonMetadata)

	system := "You enumerate common learner misconceptions and confusable-term pairs for a lesson, given its scope."
	user := fmt.Sprintf("Lesson metadata: %v", meta)

	resp, requestID, err := s.callStructured(ctx, runCtx, system, user, "generate_misconception_bank", misconceptionBankSchema, func(v map[string]interface{}) error {
		_, err := requireList(v, "misconceptions")
		return err
	})
	if err != nil {
		return flowengine.StepResult{}, err
	}
	return structuredResult(flowengine.FlowContext{
		KeyMisconceptions: resp.Value["misconceptions"],
		KeyConfusables:    resp.Value["confusables"],
	}, resp, requestID), nil
}

func (s *GenerateMisconceptionBank) ValidateOutputs(result flowengine.StepResult) error {
	if _, ok := result.Outputs[KeyMisconceptions].([]interface{}); !ok {
		return fmt.Errorf("misconceptions must be an array")
	}
	return nil
}

// GenerateDidacticSnippet writes the lesson's mini-lesson body.
type GenerateDidacticSnippet struct{ Base }

func NewGenerateDidacticSnippet(b Base) *GenerateDidacticSnippet { return &GenerateDidacticSnippet{b} }

func (s *GenerateDidacticSnippet) Name() string { return "GenerateDidacticSnippet" }
func (s *GenerateDidacticSnippet) InputKeys() []string {
	return []string{KeyLessonMetadata, KeyMisconceptions}
}
func (s *GenerateDidacticSnippet) OutputKeys() []string { return []string{KeyDidacticSnippet} }

func (s *GenerateDidacticSnippet) ValidateInputs(ctx flowengine.FlowContext) error {
	if _, ok := ctx.RequireKeys(s.InputKeys()...); !ok {
		return fmt.Errorf("missing required input")
	}
	return nil
}

func (s *GenerateDidacticSnippet) Execute(ctx context.Context, flowCtx flowengine.FlowContext, runCtx *flowengine.RunContext) (flowengine.StepResult, error) {
	meta, _ := flowCtx.Get(KeyLessonMetadata)
	misconceptions, _ := flowCtx.Get(KeyMisconceptions)

	system := "You write a focused mini-lesson (the 'didactic snippet'): clear exposition that pre-empts the listed misconceptions."
	user := fmt.Sprintf("Lesson metadata: %v\nMisconceptions to address: %v", meta, misconceptions)

	resp, requestID, err := s.callText(ctx, runCtx, system, user)
	if err != nil {
		return flowengine.StepResult{}, err
	}
	return textResult(flowengine.FlowContext{KeyDidacticSnippet: resp.Content}, resp, requestID), nil
}

func (s *GenerateDidacticSnippet) ValidateOutputs(result flowengine.StepResult) error {
	if s, ok := result.Outputs[KeyDidacticSnippet].(string); !ok || s == "" {
		return fmt.Errorf("didactic_snippet must be a non-empty string")
	}
	return nil
}

// GenerateGlossary produces the lesson's glossary terms.
type GenerateGlossary struct{ Base }

func NewGenerateGlossary(b Base) *GenerateGlossary { return &GenerateGlossary{b} }

func (s *GenerateGlossary) Name() string        { return "GenerateGlossary" }
func (s *GenerateGlossary) InputKeys() []string  { return []string{KeyLessonMetadata, KeyConfusables} }
func (s *GenerateGlossary) OutputKeys() []string { return []string{KeyGlossary} }

func (s *GenerateGlossary) ValidateInputs(ctx flowengine.FlowContext) error {
	if _, ok := ctx.Get(KeyLessonMetadata); !ok {
		return fmt.Errorf("lesson_metadata is required")
	}
	return nil
}

var glossarySchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"terms": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id":          map[string]interface{}{"type": "string"},
					"term":        map[string]interface{}{"type": "string"},
					"definition":  map[string]interface{}{"type": "string"},
					"micro_check": map[string]interface{}{"type": "string"},
				},
				"required": []interface{}{"id", "term", "definition"},
			},
		},
	},
	"required": []interface{}{"terms"},
}

func (s *GenerateGlossary) Execute(ctx context.Context, flowCtx flowengine.FlowContext, runCtx *flowengine.RunContext) (flowengine.StepResult, error) {
	meta, _ := flowCtx.Get(KeyLessonMetadata)
	confusables, _ := flowCtx.Get(KeyConfusables)

	system := "You write a glossary of terms for a lesson, with stable ids (term_1, term_2, ...), disambiguating any confusable pairs."
	user := fmt.Sprintf("Lesson metadata: %v\nConfusable pairs: %v", meta, confusables)

	resp, requestID, err := s.callStructured(ctx, runCtx, system, user, "generate_glossary", glossarySchema, validateGlossary)
	if err != nil {
		return flowengine.StepResult{}, err
	}
	return structuredResult(flowengine.FlowContext{KeyGlossary: resp.Value["terms"]}, resp, requestID), nil
}

func validateGlossary(value map[string]interface{}) error {
	terms, err := requireList(value, "terms")
	if err != nil {
		return err
	}
	for i, raw := range terms {
		term, ok := raw.(map[string]interface{})
		if !ok {
			return fmt.Errorf("terms[%d] must be an object", i)
		}
		if _, err := requireString(term, "id"); err != nil {
			return fmt.Errorf("terms[%d]: %w", i, err)
		}
		if _, err := requireString(term, "term"); err != nil {
			return fmt.Errorf("terms[%d]: %w", i, err)
		}
		if _, err := requireString(term, "definition"); err != nil {
			return fmt.Errorf("terms[%d]: %w", i, err)
		}
	}
	return nil
}

func (s *GenerateGlossary) ValidateOutputs(result flowengine.StepResult) error {
	if _, ok := result.Outputs[KeyGlossary].([]interface{}); !ok {
		return fmt.Errorf("glossary must be an array")
	}
	return nil
}

// GenerateMCQs produces the lesson's multiple-choice exercises, tied back
// to the lesson's learning-objective ids.
type GenerateMCQs struct{ Base }

func NewGenerateMCQs(b Base) *GenerateMCQs { return &GenerateMCQs{b} }

func (s *GenerateMCQs) Name() string        { return "GenerateMCQs" }
func (s *GenerateMCQs) InputKeys() []string  { return []string{KeyLessonMetadata, KeyLessonLOIDs} }
func (s *GenerateMCQs) OutputKeys() []string { return []string{KeyMCQs} }

func (s *GenerateMCQs) ValidateInputs(ctx flowengine.FlowContext) error {
	if _, ok := ctx.RequireKeys(s.InputKeys()...); !ok {
		return fmt.Errorf("missing required input")
	}
	return nil
}

var mcqSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"mcqs": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id":    map[string]interface{}{"type": "string"},
					"lo_id": map[string]interface{}{"type": "string"},
					"stem":  map[string]interface{}{"type": "string"},
					"options": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"id":    map[string]interface{}{"type": "string"},
								"label": map[string]interface{}{"type": "string"},
								"text":  map[string]interface{}{"type": "string"},
							},
							"required": []interface{}{"id", "label", "text"},
						},
					},
					"answer_key": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"label":     map[string]interface{}{"type": "string"},
							"option_id": map[string]interface{}{"type": "string"},
						},
						"required": []interface{}{"label", "option_id"},
					},
				},
				"required": []interface{}{"id", "lo_id", "stem", "options", "answer_key"},
			},
		},
	},
	"required": []interface{}{"mcqs"},
}

func (s *GenerateMCQs) Execute(ctx context.Context, flowCtx flowengine.FlowContext, runCtx *flowengine.RunContext) (flowengine.StepResult, error) {
	meta, _ := flowCtx.Get(KeyLessonMetadata)
	loIDs, _ := flowCtx.Get(KeyLessonLOIDs)

	system := "You write multiple-choice exercises for a lesson. Each mcq has a stable id, an lo_id from the provided set, 3-5 options with stable ids, and an answer_key.option_id matching one option."
	user := fmt.Sprintf("Lesson metadata: %v\nValid lo_ids: %v", meta, loIDs)

	resp, requestID, err := s.callStructured(ctx, runCtx, system, user, "generate_mcqs", mcqSchema, func(v map[string]interface{}) error {
		return validateMCQs(v, loIDs)
	})
	if err != nil {
		return flowengine.StepResult{}, err
	}
	return structuredResult(flowengine.FlowContext{KeyMCQs: resp.Value["mcqs"]}, resp, requestID), nil
}

func validateMCQs(value map[string]interface{}, loIDs interface{}) error {
	allowed := stringSet(loIDs)
	mcqs, err := requireList(value, "mcqs")
	if err != nil {
		return err
	}
	for i, raw := range mcqs {
		mcq, ok := raw.(map[string]interface{})
		if !ok {
			return fmt.Errorf("mcqs[%d] must be an object", i)
		}
		loID, err := requireString(mcq, "lo_id")
		if err != nil {
			return fmt.Errorf("mcqs[%d]: %w", i, err)
		}
		if len(allowed) > 0 && !allowed[loID] {
			return fmt.Errorf("mcqs[%d].lo_id %q not in lesson's learning objectives", i, loID)
		}
		options, err := requireList(mcq, "options")
		if err != nil {
			return fmt.Errorf("mcqs[%d]: %w", i, err)
		}
		optionIDs := make(map[string]bool, len(options))
		for _, rawOpt := range options {
			opt, ok := rawOpt.(map[string]interface{})
			if !ok {
				return fmt.Errorf("mcqs[%d].options must be objects", i)
			}
			id, err := requireString(opt, "id")
			if err != nil {
				return fmt.Errorf("mcqs[%d].options: %w", i, err)
			}
			optionIDs[id] = true
		}
		key, ok := mcq["answer_key"].(map[string]interface{})
		if !ok {
			return fmt.Errorf("mcqs[%d].answer_key must be an object", i)
		}
		optionID, err := requireString(key, "option_id")
		if err != nil {
			return fmt.Errorf("mcqs[%d].answer_key: %w", i, err)
		}
		if !optionIDs[optionID] {
			return fmt.Errorf("mcqs[%d].answer_key.option_id %q does not match any option", i, optionID)
		}
	}
	return nil
}

func stringSet(v interface{}) map[string]bool {
	out := map[string]bool{}
	list, ok := v.([]interface{})
	if !ok {
		if strs, ok := v.([]string); ok {
			for _, s := range strs {
				out[s] = true
			}
		}
		return out
	}
	for _, item := range list {
		if s, ok := item.(string); ok {
			out[s] = true
		}
	}
	return out
}

func (s *GenerateMCQs) ValidateOutputs(result flowengine.StepResult) error {
	mcqs, ok := result.Outputs[KeyMCQs].([]interface{})
	if !ok || len(mcqs) == 0 {
		return fmt.Errorf("mcqs must be a non-empty array")
	}
	return nil
}

// GenerateShortAnswers produces the lesson's short-answer exercises,
// linking wrong answers back to the misconception bank.
type GenerateShortAnswers struct{ Base }

func NewGenerateShortAnswers(b Base) *GenerateShortAnswers { return &GenerateShortAnswers{b} }

func (s *GenerateShortAnswers) Name() string { return "GenerateShortAnswers" }
func (s *GenerateShortAnswers) InputKeys() []string {
	return []string{KeyLessonMetadata, KeyLessonLOIDs, KeyMisconceptions}
}
func (s *GenerateShortAnswers) OutputKeys() []string { return []string{KeyShortAnswers} }

func (s *GenerateShortAnswers) ValidateInputs(ctx flowengine.FlowContext) error {
	if _, ok := ctx.RequireKeys(KeyLessonMetadata, KeyLessonLOIDs); !ok {
		return fmt.Errorf("missing required input")
	}
	return nil
}

var shortAnswerSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"short_answers": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id":                  map[string]interface{}{"type": "string"},
					"lo_id":               map[string]interface{}{"type": "string"},
					"stem":                map[string]interface{}{"type": "string"},
					"canonical_answer":    map[string]interface{}{"type": "string"},
					"explanation_correct": map[string]interface{}{"type": "string"},
				},
				"required": []interface{}{"id", "lo_id", "stem", "canonical_answer", "explanation_correct"},
			},
		},
	},
	"required": []interface{}{"short_answers"},
}

func (s *GenerateShortAnswers) Execute(ctx context.Context, flowCtx flowengine.FlowContext, runCtx *flowengine.RunContext) (flowengine.StepResult, error) {
	meta, _ := flowCtx.Get(KeyLessonMetadata)
	loIDs, _ := flowCtx.Get(KeyLessonLOIDs)
	misconceptions, _ := flowCtx.Get(KeyMisconceptions)

	system := "You write short-answer exercises for a lesson, each with a canonical answer and plausible wrong answers drawn from the misconception bank."
	user := fmt.Sprintf("Lesson metadata: %v\nValid lo_ids: %v\nMisconceptions: %v", meta, loIDs, misconceptions)

	resp, requestID, err := s.callStructured(ctx, runCtx, system, user, "generate_short_answers", shortAnswerSchema, func(v map[string]interface{}) error {
		_, err := requireList(v, "short_answers")
		return err
	})
	if err != nil {
		return flowengine.StepResult{}, err
	}
	return structuredResult(flowengine.FlowContext{KeyShortAnswers: resp.Value["short_answers"]}, resp, requestID), nil
}

func (s *GenerateShortAnswers) ValidateOutputs(result flowengine.StepResult) error {
	if _, ok := result.Outputs[KeyShortAnswers].([]interface{}); !ok {
		return fmt.Errorf("short_answers must be an array")
	}
	return nil
}
