package steps

import (
	"context"
	"fmt"

	"meridian/internal/domain"
	"meridian/internal/domain/services/flowengine"
)

// GenerateSourceMaterial synthesizes a tutorial body for a topic when the
// caller supplied no source_material (spec.md §4.4.1 step 1).
type GenerateSourceMaterial struct{ Base }

func NewGenerateSourceMaterial(b Base) *GenerateSourceMaterial { return &GenerateSourceMaterial{b} }

func (s *GenerateSourceMaterial) Name() string          { return "GenerateSourceMaterial" }
func (s *GenerateSourceMaterial) InputKeys() []string    { return []string{KeyTopic, KeyLearnerLevel} }
func (s *GenerateSourceMaterial) OutputKeys() []string   { return []string{KeySourceMaterial} }
func (s *GenerateSourceMaterial) ValidateInputs(ctx flowengine.FlowContext) error {
	topic, _ := ctx.Get(KeyTopic)
	if topic == nil || topic.(string) == "" {
		return fmt.Errorf("topic is required when source_material is absent")
	}
	return nil
}

func (s *GenerateSourceMaterial) Execute(ctx context.Context, flowCtx flowengine.FlowContext, runCtx *flowengine.RunContext) (flowengine.StepResult, error) {
	topic, _ := flowCtx.Get(KeyTopic)
	level, _ := flowCtx.Get(KeyLearnerLevel)

	system := "You write self-contained tutorial bodies for a learning-content platform. Write clearly and factually, for a " + fmt.Sprint(level) + " audience."
	user := fmt.Sprintf("Write a tutorial-style source document covering: %v", topic)

	resp, requestID, err := s.callText(ctx, runCtx, system, user)
	if err != nil {
		return flowengine.StepResult{}, err
	}
	if resp.Content == "" {
		return flowengine.StepResult{}, fmt.Errorf("%w: empty source material", domain.ErrInvalidResponse)
	}

	return textResult(flowengine.FlowContext{KeySourceMaterial: resp.Content}, resp, requestID), nil
}

func (s *GenerateSourceMaterial) ValidateOutputs(result flowengine.StepResult) error {
	material, _ := result.Outputs[KeySourceMaterial].(string)
	if material == "" {
		return fmt.Errorf("source_material must be non-empty")
	}
	return nil
}

// ExtractUnitMetadata yields the unit outline: title, learning objectives,
// and per-lesson plan entries (spec.md §4.4.1 step 2).
type ExtractUnitMetadata struct{ Base }

func NewExtractUnitMetadata(b Base) *ExtractUnitMetadata { return &ExtractUnitMetadata{b} }

func (s *ExtractUnitMetadata) Name() string        { return "ExtractUnitMetadata" }
func (s *ExtractUnitMetadata) InputKeys() []string { return []string{KeySourceMaterial, KeyTargetLessonCount} }
func (s *ExtractUnitMetadata) OutputKeys() []string {
	return []string{KeyUnitTitle, KeyUnitLearningObjs, KeyLessonPlan}
}

func (s *ExtractUnitMetadata) ValidateInputs(ctx flowengine.FlowContext) error {
	material, _ := ctx.Get(KeySourceMaterial)
	if material == nil || material.(string) == "" {
		return fmt.Errorf("source_material is required")
	}
	count, _ := ctx.Get(KeyTargetLessonCount)
	if n, ok := count.(int); !ok || n < 1 {
		return fmt.Errorf("target_lesson_count must be >= 1")
	}
	return nil
}

var extractUnitMetadataSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"unit_title": map[string]interface{}{"type": "string"},
		"learning_objectives": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id":          map[string]interface{}{"type": "string"},
					"title":       map[string]interface{}{"type": "string"},
					"description": map[string]interface{}{"type": "string"},
				},
				"required": []interface{}{"id", "title", "description"},
			},
		},
		"lessons": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"title":                  map[string]interface{}{"type": "string"},
					"lesson_objective":       map[string]interface{}{"type": "string"},
					"learning_objective_ids": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				},
				"required": []interface{}{"title", "lesson_objective", "learning_objective_ids"},
			},
		},
	},
	"required": []interface{}{"unit_title", "learning_objectives", "lessons"},
}

func (s *ExtractUnitMetadata) Execute(ctx context.Context, flowCtx flowengine.FlowContext, runCtx *flowengine.RunContext) (flowengine.StepResult, error) {
	material, _ := flowCtx.Get(KeySourceMaterial)
	count, _ := flowCtx.Get(KeyTargetLessonCount)
	coachLOs, _ := flowCtx.Get(KeyCoachLearningObjectives)

	system := "You design structured learning units: a title, learning objectives with stable ids (lo_1, lo_2, ...), and a lesson outline."
	user := fmt.Sprintf("Source material:\n%v\n\nTarget lesson count: %v\nCoach-supplied learning objectives (optional, incorporate if present): %v\n\nReturn unit_title, learning_objectives (each with id, title, description), and lessons (each with title, lesson_objective, learning_objective_ids referencing the learning_objectives ids).", material, count, coachLOs)

	resp, requestID, err := s.callStructured(ctx, runCtx, system, user, "extract_unit_metadata", extractUnitMetadataSchema, validateUnitMetadata)
	if err != nil {
		return flowengine.StepResult{}, err
	}

	return structuredResult(flowengine.FlowContext{
		KeyUnitTitle:        resp.Value["unit_title"],
		KeyUnitLearningObjs: resp.Value["learning_objectives"],
		KeyLessonPlan:       resp.Value["lessons"],
	}, resp, requestID), nil
}

func validateUnitMetadata(value map[string]interface{}) error {
	title, err := requireString(value, "unit_title")
	if err != nil {
		return err
	}
	_ = title

	los, err := requireList(value, "learning_objectives")
	if err != nil {
		return err
	}
	loIDs := make(map[string]bool, len(los))
	for _, raw := range los {
		lo, ok := raw.(map[string]interface{})
		if !ok {
			return fmt.Errorf("learning_objectives entries must be objects")
		}
		id, err := requireString(lo, "id")
		if err != nil {
			return fmt.Errorf("learning_objectives: %w", err)
		}
		loIDs[id] = true
	}

	lessons, err := requireList(value, "lessons")
	if err != nil {
		return err
	}
	for i, raw := range lessons {
		lesson, ok := raw.(map[string]interface{})
		if !ok {
			return fmt.Errorf("lessons[%d] must be an object", i)
		}
		if _, err := requireString(lesson, "title"); err != nil {
			return fmt.Errorf("lessons[%d]: %w", i, err)
		}
		ids, err := requireList(lesson, "learning_objective_ids")
		if err != nil {
			return fmt.Errorf("lessons[%d]: %w", i, err)
		}
		for _, rawID := range ids {
			id, ok := rawID.(string)
			if !ok || !loIDs[id] {
				return fmt.Errorf("lessons[%d].learning_objective_ids: %v not in learning_objectives", i, rawID)
			}
		}
	}
	return nil
}

func (s *ExtractUnitMetadata) ValidateOutputs(result flowengine.StepResult) error {
	if _, ok := result.Outputs[KeyUnitTitle].(string); !ok {
		return fmt.Errorf("unit_title must be a string")
	}
	lessons, ok := result.Outputs[KeyLessonPlan].([]interface{})
	if !ok || len(lessons) == 0 {
		return fmt.Errorf("lessons must be a non-empty array")
	}
	return nil
}

// GenerateUnitSummary produces the optional text consumed by the unit
// podcast flow (spec.md §4.4.1 step 3).
type GenerateUnitSummary struct{ Base }

func NewGenerateUnitSummary(b Base) *GenerateUnitSummary { return &GenerateUnitSummary{b} }

func (s *GenerateUnitSummary) Name() string        { return "GenerateUnitSummary" }
func (s *GenerateUnitSummary) InputKeys() []string { return []string{KeyUnitTitle, KeySourceMaterial} }
func (s *GenerateUnitSummary) OutputKeys() []string { return []string{KeyUnitSummary} }

func (s *GenerateUnitSummary) ValidateInputs(ctx flowengine.FlowContext) error {
	if _, ok := ctx.RequireKeys(s.InputKeys()...); !ok {
		return fmt.Errorf("missing required input")
	}
	return nil
}

func (s *GenerateUnitSummary) Execute(ctx context.Context, flowCtx flowengine.FlowContext, runCtx *flowengine.RunContext) (flowengine.StepResult, error) {
	title, _ := flowCtx.Get(KeyUnitTitle)
	material, _ := flowCtx.Get(KeySourceMaterial)

	system := "You write a short two-paragraph summary of a learning unit, suitable as podcast narration source material."
	user := fmt.Sprintf("Unit title: %v\n\nSource material:\n%v", title, material)

	resp, requestID, err := s.callText(ctx, runCtx, system, user)
	if err != nil {
		return flowengine.StepResult{}, err
	}
	return textResult(flowengine.FlowContext{KeyUnitSummary: resp.Content}, resp, requestID), nil
}

func (s *GenerateUnitSummary) ValidateOutputs(result flowengine.StepResult) error {
	_, ok := result.Outputs[KeyUnitSummary].(string)
	if !ok {
		return fmt.Errorf("unit_summary must be a string")
	}
	return nil
}
