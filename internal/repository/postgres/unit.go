package postgres

import (
	"context"
	"fmt"

	"meridian/internal/domain"
	"meridian/internal/domain/models"
	"meridian/internal/domain/repositories"
)

// PostgresUnitRepository implements repositories.UnitRepository.
type PostgresUnitRepository struct {
	raw    *RepositoryConfig
	tables *TableNames
}

// NewUnitRepository creates a new unit repository.
func NewUnitRepository(config *RepositoryConfig) repositories.UnitRepository {
	return &PostgresUnitRepository{raw: config, tables: config.Tables}
}

func (r *PostgresUnitRepository) exec(ctx context.Context) repositories.DBTX {
	return GetExecutor(ctx, r.raw.Pool)
}

func (r *PostgresUnitRepository) Create(ctx context.Context, unit *models.Unit) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (title, description, learner_level, learning_objectives, lesson_order,
			target_lesson_count, generated_from_topic, source_material, flow_type,
			status, creation_progress, error_message, flow_run_id,
			art_image_id, podcast_audio_id, podcast_transcript,
			owner_user_id, is_global, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, now(), now())
		RETURNING id, created_at, updated_at
	`, r.tables.Units)

	err := r.exec(ctx).QueryRow(ctx, query,
		unit.Title, unit.Description, unit.LearnerLevel, unit.LearningObjectives, unit.LessonOrder,
		unit.TargetLessonCount, unit.GeneratedFromTopic, unit.SourceMaterial, unit.FlowType,
		unit.Status, unit.CreationProgress, unit.ErrorMessage, unit.FlowRunID,
		unit.ArtImageID, unit.PodcastAudioID, unit.PodcastTranscript,
		unit.OwnerUserID, unit.IsGlobal,
	).Scan(&unit.ID, &unit.CreatedAt, &unit.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create unit: %w", err)
	}
	return nil
}

func (r *PostgresUnitRepository) GetByID(ctx context.Context, id string) (*models.Unit, error) {
	query := fmt.Sprintf(`
		SELECT id, title, description, learner_level, learning_objectives, lesson_order,
			target_lesson_count, generated_from_topic, source_material, flow_type,
			status, creation_progress, error_message, flow_run_id,
			art_image_id, podcast_audio_id, podcast_transcript,
			owner_user_id, is_global, created_at, updated_at
		FROM %s WHERE id = $1
	`, r.tables.Units)

	var unit models.Unit
	err := r.exec(ctx).QueryRow(ctx, query, id).Scan(
		&unit.ID, &unit.Title, &unit.Description, &unit.LearnerLevel, &unit.LearningObjectives, &unit.LessonOrder,
		&unit.TargetLessonCount, &unit.GeneratedFromTopic, &unit.SourceMaterial, &unit.FlowType,
		&unit.Status, &unit.CreationProgress, &unit.ErrorMessage, &unit.FlowRunID,
		&unit.ArtImageID, &unit.PodcastAudioID, &unit.PodcastTranscript,
		&unit.OwnerUserID, &unit.IsGlobal, &unit.CreatedAt, &unit.UpdatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("unit %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get unit: %w", err)
	}
	return &unit, nil
}

func (r *PostgresUnitRepository) GetByFlowRunID(ctx context.Context, flowRunID string) (*models.Unit, error) {
	query := fmt.Sprintf(`
		SELECT id, title, description, learner_level, learning_objectives, lesson_order,
			target_lesson_count, generated_from_topic, source_material, flow_type,
			status, creation_progress, error_message, flow_run_id,
			art_image_id, podcast_audio_id, podcast_transcript,
			owner_user_id, is_global, created_at, updated_at
		FROM %s WHERE flow_run_id = $1
	`, r.tables.Units)

	var unit models.Unit
	err := r.exec(ctx).QueryRow(ctx, query, flowRunID).Scan(
		&unit.ID, &unit.Title, &unit.Description, &unit.LearnerLevel, &unit.LearningObjectives, &unit.LessonOrder,
		&unit.TargetLessonCount, &unit.GeneratedFromTopic, &unit.SourceMaterial, &unit.FlowType,
		&unit.Status, &unit.CreationProgress, &unit.ErrorMessage, &unit.FlowRunID,
		&unit.ArtImageID, &unit.PodcastAudioID, &unit.PodcastTranscript,
		&unit.OwnerUserID, &unit.IsGlobal, &unit.CreatedAt, &unit.UpdatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("unit with flow_run_id %s: %w", flowRunID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get unit by flow run: %w", err)
	}
	return &unit, nil
}

func (r *PostgresUnitRepository) Update(ctx context.Context, unit *models.Unit) error {
	query := fmt.Sprintf(`
		UPDATE %s SET title = $1, description = $2, learning_objectives = $3, lesson_order = $4,
			source_material = $5, status = $6, creation_progress = $7, error_message = $8, flow_run_id = $9,
			art_image_id = $10, podcast_audio_id = $11, podcast_transcript = $12, updated_at = now()
		WHERE id = $13
	`, r.tables.Units)

	result, err := r.exec(ctx).Exec(ctx, query,
		unit.Title, unit.Description, unit.LearningObjectives, unit.LessonOrder,
		unit.SourceMaterial, unit.Status, unit.CreationProgress, unit.ErrorMessage, unit.FlowRunID,
		unit.ArtImageID, unit.PodcastAudioID, unit.PodcastTranscript,
		unit.ID,
	)
	if err != nil {
		return fmt.Errorf("update unit: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("unit %s: %w", unit.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *PostgresUnitRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Units)
	result, err := r.exec(ctx).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete unit: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("unit %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
