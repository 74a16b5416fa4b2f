package config

const (
	// MaxTopicLength bounds a unit request's topic string.
	MaxTopicLength = 500

	// MaxSourceMaterialLength bounds a unit request's pasted source text
	// before sanitization.
	MaxSourceMaterialLength = 200_000

	// MaxCoachLearningObjectives bounds how many coach-supplied learning
	// objectives a single unit request may carry.
	MaxCoachLearningObjectives = 20

	// MinTargetLessonCount and MaxTargetLessonCount bound
	// UnitRequest.TargetLessonCount (spec.md §6).
	MinTargetLessonCount = 1
	MaxTargetLessonCount = 20
)
