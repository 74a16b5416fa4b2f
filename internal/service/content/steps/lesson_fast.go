package steps

import (
	"context"
	"fmt"

	"meridian/internal/domain/services/flowengine"
)

// FastLessonMetadata replaces the standard flow's first four steps with one
// combined call that yields metadata, misconceptions, confusables, refined
// material, length budgets, the mini-lesson, and the glossary in a single
// structured response (spec.md §4.4.2 fast flow).
type FastLessonMetadata struct{ Base }

func NewFastLessonMetadata(b Base) *FastLessonMetadata { return &FastLessonMetadata{b} }

func (s *FastLessonMetadata) Name() string { return "FastLessonMetadata" }
func (s *FastLessonMetadata) InputKeys() []string {
	return []string{KeyLessonTitle, KeyLessonObjective, KeySourceMaterial, KeyLessonLOIDs}
}
func (s *FastLessonMetadata) OutputKeys() []string {
	return []string{
		KeyLessonMetadata, KeyMisconceptions, KeyConfusables, KeyRefinedMaterial,
		KeyLengthBudgets, KeyDidacticSnippet, KeyGlossary, KeyDistractorPool,
	}
}

func (s *FastLessonMetadata) ValidateInputs(ctx flowengine.FlowContext) error {
	if _, ok := ctx.RequireKeys(s.InputKeys()...); !ok {
		return fmt.Errorf("missing required input")
	}
	return nil
}

var fastLessonMetadataSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"summary":          map[string]interface{}{"type": "string"},
		"misconceptions":   map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"confusables":      map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"refined_material": map[string]interface{}{"type": "string"},
		"length_budgets":   map[string]interface{}{"type": "object"},
		"didactic_snippet": map[string]interface{}{"type": "string"},
		"glossary":         glossarySchema["properties"].(map[string]interface{})["terms"],
		"distractor_pool":  map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
	},
	"required": []interface{}{"summary", "misconceptions", "refined_material", "didactic_snippet", "glossary"},
}

func (s *FastLessonMetadata) Execute(ctx context.Context, flowCtx flowengine.FlowContext, runCtx *flowengine.RunContext) (flowengine.StepResult, error) {
	title, _ := flowCtx.Get(KeyLessonTitle)
	objective, _ := flowCtx.Get(KeyLessonObjective)
	material, _ := flowCtx.Get(KeySourceMaterial)
	loIDs, _ := flowCtx.Get(KeyLessonLOIDs)

	system := "You produce a complete lesson package in one pass: scope metadata, misconceptions, confusables, refined source material, length budgets, the mini-lesson body, a glossary, and a pool of plausible wrong-answer distractors per learning objective. This is the fast, combined-call path — be efficient but complete."
	user := fmt.Sprintf("Lesson title: %v\nLesson objective: %v\nValid lo_ids: %v\n\nUnit source material:\n%v", title, objective, loIDs, material)

	resp, requestID, err := s.callStructured(ctx, runCtx, system, user, "fast_lesson_metadata", fastLessonMetadataSchema, func(v map[string]interface{}) error {
		if _, err := requireString(v, "summary"); err != nil {
			return err
		}
		if _, err := requireString(v, "refined_material"); err != nil {
			return err
		}
		if glossary, ok := v["glossary"]; ok {
			if err := validateGlossary(map[string]interface{}{"terms": glossary}); err != nil {
				return fmt.Errorf("glossary: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return flowengine.StepResult{}, err
	}

	value := resp.Value
	return structuredResult(flowengine.FlowContext{
		KeyLessonMetadata:  map[string]interface{}{"summary": value["summary"]},
		KeyMisconceptions:  value["misconceptions"],
		KeyConfusables:     value["confusables"],
		KeyRefinedMaterial: value["refined_material"],
		KeyLengthBudgets:   value["length_budgets"],
		KeyDidacticSnippet: value["didactic_snippet"],
		KeyGlossary:        value["glossary"],
		KeyDistractorPool:  value["distractor_pool"],
	}, resp, requestID), nil
}

func (s *FastLessonMetadata) ValidateOutputs(result flowengine.StepResult) error {
	if _, ok := result.Outputs[KeyDidacticSnippet].(string); !ok {
		return fmt.Errorf("didactic_snippet must be a string")
	}
	if _, ok := result.Outputs[KeyRefinedMaterial].(string); !ok {
		return fmt.Errorf("refined_material must be a string")
	}
	return nil
}
