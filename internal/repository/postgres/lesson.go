package postgres

import (
	"context"
	"fmt"

	"meridian/internal/domain"
	"meridian/internal/domain/models"
	"meridian/internal/domain/repositories"
)

// PostgresLessonRepository implements repositories.LessonRepository.
type PostgresLessonRepository struct {
	raw    *RepositoryConfig
	tables *TableNames
}

// NewLessonRepository creates a new lesson repository.
func NewLessonRepository(config *RepositoryConfig) repositories.LessonRepository {
	return &PostgresLessonRepository{raw: config, tables: config.Tables}
}

func (r *PostgresLessonRepository) exec(ctx context.Context) repositories.DBTX {
	return GetExecutor(ctx, r.raw.Pool)
}

func (r *PostgresLessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (unit_id, title, learner_level, source_material,
			flow_run_id, package_version, package,
			podcast_transcript, podcast_audio_id, podcast_duration_seconds,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING id, created_at, updated_at
	`, r.tables.Lessons)

	err := r.exec(ctx).QueryRow(ctx, query,
		lesson.UnitID, lesson.Title, lesson.LearnerLevel, lesson.SourceMaterial,
		lesson.FlowRunID, lesson.PackageVersion, lesson.Package,
		lesson.PodcastTranscript, lesson.PodcastAudioID, lesson.PodcastDurationSeconds,
	).Scan(&lesson.ID, &lesson.CreatedAt, &lesson.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

func (r *PostgresLessonRepository) GetByID(ctx context.Context, id, unitID string) (*models.Lesson, error) {
	query := fmt.Sprintf(`
		SELECT id, unit_id, title, learner_level, source_material,
			flow_run_id, package_version, package,
			podcast_transcript, podcast_audio_id, podcast_duration_seconds,
			created_at, updated_at
		FROM %s WHERE id = $1 AND unit_id = $2
	`, r.tables.Lessons)

	var lesson models.Lesson
	err := r.exec(ctx).QueryRow(ctx, query, id, unitID).Scan(
		&lesson.ID, &lesson.UnitID, &lesson.Title, &lesson.LearnerLevel, &lesson.SourceMaterial,
		&lesson.FlowRunID, &lesson.PackageVersion, &lesson.Package,
		&lesson.PodcastTranscript, &lesson.PodcastAudioID, &lesson.PodcastDurationSeconds,
		&lesson.CreatedAt, &lesson.UpdatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("lesson %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get lesson: %w", err)
	}
	return &lesson, nil
}

func (r *PostgresLessonRepository) Get(ctx context.Context, id string) (*models.Lesson, error) {
	query := fmt.Sprintf(`
		SELECT id, unit_id, title, learner_level, source_material,
			flow_run_id, package_version, package,
			podcast_transcript, podcast_audio_id, podcast_duration_seconds,
			created_at, updated_at
		FROM %s WHERE id = $1
	`, r.tables.Lessons)

	var lesson models.Lesson
	err := r.exec(ctx).QueryRow(ctx, query, id).Scan(
		&lesson.ID, &lesson.UnitID, &lesson.Title, &lesson.LearnerLevel, &lesson.SourceMaterial,
		&lesson.FlowRunID, &lesson.PackageVersion, &lesson.Package,
		&lesson.PodcastTranscript, &lesson.PodcastAudioID, &lesson.PodcastDurationSeconds,
		&lesson.CreatedAt, &lesson.UpdatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("lesson %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get lesson: %w", err)
	}
	return &lesson, nil
}

func (r *PostgresLessonRepository) Update(ctx context.Context, lesson *models.Lesson) error {
	query := fmt.Sprintf(`
		UPDATE %s SET title = $1, package_version = $2, package = $3,
			podcast_transcript = $4, podcast_audio_id = $5, podcast_duration_seconds = $6, updated_at = now()
		WHERE id = $7 AND unit_id = $8
	`, r.tables.Lessons)

	result, err := r.exec(ctx).Exec(ctx, query,
		lesson.Title, lesson.PackageVersion, lesson.Package,
		lesson.PodcastTranscript, lesson.PodcastAudioID, lesson.PodcastDurationSeconds,
		lesson.ID, lesson.UnitID,
	)
	if err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("lesson %s: %w", lesson.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *PostgresLessonRepository) DeleteByUnit(ctx context.Context, unitID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE unit_id = $1`, r.tables.Lessons)
	if _, err := r.exec(ctx).Exec(ctx, query, unitID); err != nil {
		return fmt.Errorf("delete lessons by unit: %w", err)
	}
	return nil
}
