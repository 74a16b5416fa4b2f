package content

import (
	"testing"

	"meridian/internal/domain/models"
	"meridian/internal/domain/services/flowengine"
	"meridian/internal/service/content/steps"
)

func TestAssembleLesson_BuildsPackageFromFlowContext(t *testing.T) {
	flowCtx := flowengine.FlowContext{
		steps.KeyDidacticSnippet: "Photosynthesis converts light into chemical energy.",
		steps.KeyGlossary: []interface{}{
			map[string]interface{}{"id": "term-1", "term": "chlorophyll", "definition": "a green pigment"},
		},
		steps.KeyMCQs: []interface{}{
			map[string]interface{}{
				"id": "ex-1", "lo_id": "lo-1", "stem": "What drives photosynthesis?",
				"options": []interface{}{
					map[string]interface{}{"id": "opt-a", "label": "A", "text": "Sunlight"},
					map[string]interface{}{"id": "opt-b", "label": "B", "text": "Gravity"},
				},
				"answer_key": map[string]interface{}{"label": "A", "option_id": "opt-a"},
			},
		},
		steps.KeyMisconceptions: []interface{}{"students think plants eat soil"},
	}

	lesson, err := assembleLesson(flowCtx, "unit-1", "Photosynthesis Basics", models.LearnerBeginner, []string{"lo-1"})
	if err != nil {
		t.Fatalf("assembleLesson returned error: %v", err)
	}
	if lesson.UnitID != "unit-1" || lesson.Title != "Photosynthesis Basics" {
		t.Errorf("unexpected lesson identity: %+v", lesson)
	}
	if lesson.Package.MiniLesson == "" {
		t.Error("expected mini_lesson to be populated from the didactic snippet")
	}
	if len(lesson.Package.Glossary.Terms) != 1 {
		t.Fatalf("expected 1 glossary term, got %d", len(lesson.Package.Glossary.Terms))
	}
	if len(lesson.Package.Exercises) != 1 {
		t.Fatalf("expected 1 exercise, got %d", len(lesson.Package.Exercises))
	}
	if len(lesson.Package.Misconceptions) != 1 {
		t.Errorf("expected 1 misconception, got %d", len(lesson.Package.Misconceptions))
	}

	// The assembled lesson must also satisfy the Lesson invariants checked
	// downstream by the orchestrator before persisting it.
	if err := lesson.Validate(map[string]bool{"lo-1": true}); err != nil {
		t.Errorf("expected assembled lesson to validate, got %v", err)
	}
}

func TestAssembleLesson_RejectsMalformedGlossaryEntry(t *testing.T) {
	flowCtx := flowengine.FlowContext{
		steps.KeyGlossary: []interface{}{"not an object"},
	}
	if _, err := assembleLesson(flowCtx, "unit-1", "Title", models.LearnerBeginner, nil); err == nil {
		t.Fatal("expected an error for a non-object glossary entry")
	}
}

func TestUnit_ReadyForCompletion(t *testing.T) {
	u := &models.Unit{}
	if u.ReadyForCompletion() {
		t.Error("expected a unit with no lessons to not be ready for completion")
	}
	u.LessonOrder = append(u.LessonOrder, "lesson-1")
	if !u.ReadyForCompletion() {
		t.Error("expected a unit with at least one lesson to be ready for completion")
	}
}
