package content

import (
	"fmt"

	"meridian/internal/domain/models"
	"meridian/internal/domain/services/flowengine"
	"meridian/internal/service/content/steps"
)

// assembleLesson converts a finished LessonCreationFlow's flow context into
// the Lesson aggregate's Package shape (spec.md §3), attributing the
// lesson to unitLOIDs via the lo_id references written by each step.
func assembleLesson(flowCtx flowengine.FlowContext, unitID, title string, learnerLevel models.LearnerLevel, unitLOIDs []string) (*models.Lesson, error) {
	glossary, err := toGlossaryTerms(flowCtx[steps.KeyGlossary])
	if err != nil {
		return nil, fmt.Errorf("assemble lesson %q glossary: %w", title, err)
	}

	exercises, err := toMCQExercises(flowCtx[steps.KeyMCQs])
	if err != nil {
		return nil, fmt.Errorf("assemble lesson %q mcqs: %w", title, err)
	}
	shortAnswers, err := toShortAnswerExercises(flowCtx[steps.KeyShortAnswers])
	if err != nil {
		return nil, fmt.Errorf("assemble lesson %q short answers: %w", title, err)
	}
	exercises = append(exercises, shortAnswers...)

	miniLesson := ""
	if snippet, ok := flowCtx[steps.KeyDidacticSnippet].(string); ok {
		miniLesson = snippet
	}

	lesson := &models.Lesson{
		UnitID:       unitID,
		Title:        title,
		LearnerLevel: learnerLevel,
		Package: models.Package{
			Meta:                     models.LessonMeta{Title: title, LearnerLevel: learnerLevel},
			UnitLearningObjectiveIDs: unitLOIDs,
			MiniLesson:               miniLesson,
			Glossary:                 models.GlossarySection{Terms: glossary},
			Exercises:                exercises,
			Misconceptions:           toStringSlice(flowCtx[steps.KeyMisconceptions]),
			Confusables:              toStringSlice(flowCtx[steps.KeyConfusables]),
		},
	}
	return lesson, nil
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

func toGlossaryTerms(v interface{}) ([]models.GlossaryTerm, error) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, nil
	}
	terms := make([]models.GlossaryTerm, 0, len(list))
	for _, raw := range list {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("glossary term must be an object")
		}
		term := models.GlossaryTerm{
			ID:         stringField(m, "id"),
			Term:       stringField(m, "term"),
			Definition: stringField(m, "definition"),
		}
		if mc := stringField(m, "micro_check"); mc != "" {
			term.MicroCheck = &mc
		}
		terms = append(terms, term)
	}
	return terms, nil
}

func toMCQExercises(v interface{}) ([]models.Exercise, error) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, nil
	}
	out := make([]models.Exercise, 0, len(list))
	for _, raw := range list {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("mcq must be an object")
		}
		optionsRaw, _ := m["options"].([]interface{})
		options := make([]models.MCQOption, 0, len(optionsRaw))
		for _, rawOpt := range optionsRaw {
			opt, ok := rawOpt.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("mcq option must be an object")
			}
			option := models.MCQOption{
				ID:    stringField(opt, "id"),
				Label: stringField(opt, "label"),
				Text:  stringField(opt, "text"),
			}
			if rw := stringField(opt, "rationale_wrong"); rw != "" {
				option.RationaleWrong = &rw
			}
			options = append(options, option)
		}

		key, _ := m["answer_key"].(map[string]interface{})
		answerKey := models.MCQAnswerKey{
			Label:    stringField(key, "label"),
			OptionID: stringField(key, "option_id"),
		}
		if rr := stringField(key, "rationale_right"); rr != "" {
			answerKey.RationaleRight = &rr
		}

		out = append(out, models.Exercise{
			Kind: models.ExerciseMCQ,
			MCQ: &models.MCQExercise{
				ID:        stringField(m, "id"),
				LOID:      stringField(m, "lo_id"),
				Stem:      stringField(m, "stem"),
				Options:   options,
				AnswerKey: answerKey,
			},
		})
	}
	return out, nil
}

func toShortAnswerExercises(v interface{}) ([]models.Exercise, error) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, nil
	}
	out := make([]models.Exercise, 0, len(list))
	for _, raw := range list {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("short_answer must be an object")
		}
		out = append(out, models.Exercise{
			Kind: models.ExerciseShortAnswer,
			ShortAnswer: &models.ShortAnswerExercise{
				ID:                 stringField(m, "id"),
				LOID:               stringField(m, "lo_id"),
				Stem:               stringField(m, "stem"),
				CanonicalAnswer:    stringField(m, "canonical_answer"),
				AcceptableAnswers:  toStringSlice(m["acceptable_answers"]),
				ExplanationCorrect: stringField(m, "explanation_correct"),
				WrongAnswers:       toWrongAnswers(m["wrong_answers"]),
			},
		})
	}
	return out, nil
}

func toWrongAnswers(v interface{}) []models.WrongAnswer {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]models.WrongAnswer, 0, len(list))
	for _, raw := range list {
		m, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, models.WrongAnswer{
			Answer:           stringField(m, "answer"),
			Explanation:      stringField(m, "explanation"),
			MisconceptionIDs: toStringSlice(m["misconception_ids"]),
		})
	}
	return out
}

func stringField(m map[string]interface{}, field string) string {
	if m == nil {
		return ""
	}
	s, _ := m[field].(string)
	return s
}
