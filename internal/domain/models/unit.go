package models

import "time"

// LearnerLevel is the target audience sophistication for a unit or lesson.
type LearnerLevel string

const (
	LearnerBeginner     LearnerLevel = "beginner"
	LearnerIntermediate LearnerLevel = "intermediate"
	LearnerAdvanced     LearnerLevel = "advanced"
)

// FlowType selects between the discrete-step "standard" lesson flow and the
// combined-call "fast" flow (spec.md §4.4.2).
type FlowType string

const (
	FlowTypeStandard FlowType = "standard"
	FlowTypeFast     FlowType = "fast"
)

// UnitStatus is the lifecycle state of a Unit aggregate.
type UnitStatus string

const (
	UnitPending    UnitStatus = "pending"
	UnitInProgress UnitStatus = "in_progress"
	UnitCompleted  UnitStatus = "completed"
	UnitFailed     UnitStatus = "failed"
)

// LearningObjective is a unit-scoped statement referenced by lessons and
// exercises via its stable flow-local id (e.g. "lo_1").
type LearningObjective struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// LessonError records a single fan-out child failure, surfaced in
// creation_progress.lesson_errors (spec.md §4.5).
type LessonError struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Error string `json:"error"`
}

// CreationProgress is the opaque-to-storage, core-constrained document
// describing where a unit-creation job is. The core only requires `Phase`
// and `LessonErrors`; callers may stash additional keys in Extra.
type CreationProgress struct {
	Phase        string                 `json:"phase"`
	LessonErrors []LessonError          `json:"lesson_errors,omitempty"`
	Extra        map[string]interface{} `json:"-"`
}

// Unit is the domain aggregate produced by a unit-creation flow.
type Unit struct {
	ID                 string              `json:"id" db:"id"`
	Title               string              `json:"title" db:"title"`
	Description         *string             `json:"description,omitempty" db:"description"`
	LearnerLevel         LearnerLevel        `json:"learner_level" db:"learner_level"`
	LearningObjectives   []LearningObjective `json:"learning_objectives" db:"learning_objectives"`
	LessonOrder          []string            `json:"lesson_order" db:"lesson_order"`
	TargetLessonCount    int                 `json:"target_lesson_count" db:"target_lesson_count"`
	GeneratedFromTopic   bool                `json:"generated_from_topic" db:"generated_from_topic"`
	SourceMaterial       *string             `json:"source_material,omitempty" db:"source_material"`
	FlowType             FlowType            `json:"flow_type" db:"flow_type"`

	Status           UnitStatus        `json:"status" db:"status"`
	CreationProgress *CreationProgress `json:"creation_progress,omitempty" db:"creation_progress"`
	ErrorMessage     *string           `json:"error_message,omitempty" db:"error_message"`
	FlowRunID        *string           `json:"flow_run_id,omitempty" db:"flow_run_id"`

	ArtImageID        *string `json:"art_image_id,omitempty" db:"art_image_id"`
	PodcastAudioID    *string `json:"podcast_audio_id,omitempty" db:"podcast_audio_id"`
	PodcastTranscript *string `json:"podcast_transcript,omitempty" db:"podcast_transcript"`

	OwnerUserID *string `json:"owner_user_id,omitempty" db:"owner_user_id"`
	IsGlobal    bool    `json:"is_global" db:"is_global"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// LearningObjectiveIDs returns the set of valid LO ids for this unit, used
// to validate exercise.lo_id references (spec.md §3 Lesson invariants).
func (u *Unit) LearningObjectiveIDs() map[string]bool {
	ids := make(map[string]bool, len(u.LearningObjectives))
	for _, lo := range u.LearningObjectives {
		ids[lo.ID] = true
	}
	return ids
}

// ReadyForCompletion reports whether the unit satisfies the invariant
// required to transition to status=completed: a non-empty lesson order.
func (u *Unit) ReadyForCompletion() bool {
	return len(u.LessonOrder) > 0
}
