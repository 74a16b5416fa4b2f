package models

import "testing"

func validLessonPackage() Package {
	return Package{
		Exercises: []Exercise{
			{
				Kind: ExerciseMCQ,
				MCQ: &MCQExercise{
					ID:   "ex-1",
					LOID: "lo-1",
					Stem: "What is photosynthesis?",
					Options: []MCQOption{
						{ID: "opt-a", Label: "A", Text: "A chemical reaction"},
						{ID: "opt-b", Label: "B", Text: "A rock formation"},
					},
					AnswerKey: MCQAnswerKey{Label: "A", OptionID: "opt-a"},
				},
			},
		},
		Glossary: GlossarySection{
			Terms: []GlossaryTerm{{ID: "term-1", Term: "chlorophyll", Definition: "..."}},
		},
	}
}

func TestLesson_Validate_AcceptsWellFormedPackage(t *testing.T) {
	l := &Lesson{Package: validLessonPackage()}
	if err := l.Validate(map[string]bool{"lo-1": true}); err != nil {
		t.Fatalf("expected well-formed package to validate, got %v", err)
	}
}

func TestLesson_Validate_RejectsUnknownLOID(t *testing.T) {
	l := &Lesson{Package: validLessonPackage()}
	if err := l.Validate(map[string]bool{"lo-other": true}); err == nil {
		t.Fatal("expected validation error when an exercise's lo_id is not a unit learning objective")
	}
}

func TestLesson_Validate_RejectsMismatchedAnswerKeyOptionID(t *testing.T) {
	pkg := validLessonPackage()
	pkg.Exercises[0].MCQ.AnswerKey.OptionID = "opt-does-not-exist"
	l := &Lesson{Package: pkg}
	if err := l.Validate(map[string]bool{"lo-1": true}); err == nil {
		t.Fatal("expected validation error when answer_key.option_id matches no option")
	}
}

func TestLesson_Validate_RejectsDuplicateExerciseIDs(t *testing.T) {
	pkg := validLessonPackage()
	dup := pkg.Exercises[0]
	pkg.Exercises = append(pkg.Exercises, dup)
	l := &Lesson{Package: pkg}
	if err := l.Validate(map[string]bool{"lo-1": true}); err == nil {
		t.Fatal("expected validation error for duplicate exercise ids")
	}
}

func TestLesson_Validate_RejectsDuplicateGlossaryIDs(t *testing.T) {
	pkg := validLessonPackage()
	pkg.Glossary.Terms = append(pkg.Glossary.Terms, pkg.Glossary.Terms[0])
	l := &Lesson{Package: pkg}
	if err := l.Validate(map[string]bool{"lo-1": true}); err == nil {
		t.Fatal("expected validation error for duplicate glossary term ids")
	}
}

func TestLesson_Validate_RejectsExerciseMissingID(t *testing.T) {
	pkg := Package{
		Exercises: []Exercise{{Kind: ExerciseShortAnswer, ShortAnswer: &ShortAnswerExercise{LOID: "lo-1"}}},
	}
	l := &Lesson{Package: pkg}
	if err := l.Validate(map[string]bool{"lo-1": true}); err == nil {
		t.Fatal("expected validation error for an exercise with no id")
	}
}

func TestPackage_IsEmpty(t *testing.T) {
	var nilPkg *Package
	if !nilPkg.IsEmpty() {
		t.Error("expected a nil package to be empty")
	}

	empty := &Package{}
	if !empty.IsEmpty() {
		t.Error("expected a package with no mini_lesson and no exercises to be empty")
	}

	withMiniLesson := &Package{MiniLesson: "some content"}
	if withMiniLesson.IsEmpty() {
		t.Error("expected a package with mini_lesson content to be non-empty")
	}

	pkg := validLessonPackage()
	if pkg.IsEmpty() {
		t.Error("expected a package with exercises to be non-empty")
	}
}
