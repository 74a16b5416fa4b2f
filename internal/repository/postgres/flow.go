package postgres

import (
	"context"
	"fmt"

	"meridian/internal/domain"
	"meridian/internal/domain/models"
	"meridian/internal/domain/repositories"
)

// PostgresFlowRunRepository implements repositories.FlowRunRepository.
type PostgresFlowRunRepository struct {
	pool   repositories.DBTX
	raw    *RepositoryConfig
	tables *TableNames
}

// NewFlowRunRepository creates a new flow run repository.
func NewFlowRunRepository(config *RepositoryConfig) repositories.FlowRunRepository {
	return &PostgresFlowRunRepository{pool: config.Pool, raw: config, tables: config.Tables}
}

func (r *PostgresFlowRunRepository) exec(ctx context.Context) repositories.DBTX {
	return GetExecutor(ctx, r.raw.Pool)
}

func (r *PostgresFlowRunRepository) Create(ctx context.Context, run *models.FlowRun) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (flow_name, execution_mode, user_id, status, inputs, outputs, flow_metadata,
			current_step, step_progress, total_steps, progress_percentage,
			started_at, completed_at, last_heartbeat, execution_time_ms,
			total_tokens, total_cost, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, now())
		RETURNING id, created_at
	`, r.tables.FlowRuns)

	err := r.exec(ctx).QueryRow(ctx, query,
		run.FlowName, run.ExecutionMode, run.UserID, run.Status,
		run.Inputs, run.Outputs, run.FlowMetadata,
		run.CurrentStep, run.StepProgress, run.TotalSteps, run.ProgressPercentage,
		run.StartedAt, run.CompletedAt, run.LastHeartbeat, run.ExecutionTimeMs,
		run.TotalTokens, run.TotalCost, run.ErrorMessage,
	).Scan(&run.ID, &run.CreatedAt)
	if err != nil {
		return fmt.Errorf("create flow run: %w", err)
	}
	return nil
}

func (r *PostgresFlowRunRepository) GetByID(ctx context.Context, id string) (*models.FlowRun, error) {
	query := fmt.Sprintf(`
		SELECT id, flow_name, execution_mode, user_id, status, inputs, outputs, flow_metadata,
			current_step, step_progress, total_steps, progress_percentage,
			started_at, completed_at, last_heartbeat, execution_time_ms,
			total_tokens, total_cost, error_message, created_at
		FROM %s WHERE id = $1
	`, r.tables.FlowRuns)

	var run models.FlowRun
	err := r.exec(ctx).QueryRow(ctx, query, id).Scan(
		&run.ID, &run.FlowName, &run.ExecutionMode, &run.UserID, &run.Status,
		&run.Inputs, &run.Outputs, &run.FlowMetadata,
		&run.CurrentStep, &run.StepProgress, &run.TotalSteps, &run.ProgressPercentage,
		&run.StartedAt, &run.CompletedAt, &run.LastHeartbeat, &run.ExecutionTimeMs,
		&run.TotalTokens, &run.TotalCost, &run.ErrorMessage, &run.CreatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("flow run %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get flow run: %w", err)
	}
	return &run, nil
}

func (r *PostgresFlowRunRepository) Update(ctx context.Context, run *models.FlowRun) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = $1, outputs = $2, flow_metadata = $3,
			current_step = $4, step_progress = $5, progress_percentage = $6,
			started_at = $7, completed_at = $8, last_heartbeat = $9, execution_time_ms = $10,
			total_tokens = $11, total_cost = $12, error_message = $13
		WHERE id = $14
	`, r.tables.FlowRuns)

	result, err := r.exec(ctx).Exec(ctx, query,
		run.Status, run.Outputs, run.FlowMetadata,
		run.CurrentStep, run.StepProgress, run.ProgressPercentage,
		run.StartedAt, run.CompletedAt, run.LastHeartbeat, run.ExecutionTimeMs,
		run.TotalTokens, run.TotalCost, run.ErrorMessage,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update flow run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("flow run %s: %w", run.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *PostgresFlowRunRepository) List(ctx context.Context, page, pageSize int) ([]*models.FlowRun, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	var total int
	countQuery := fmt.Sprintf(`SELECT count(*) FROM %s`, r.tables.FlowRuns)
	if err := r.exec(ctx).QueryRow(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count flow runs: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, flow_name, execution_mode, user_id, status, inputs, outputs, flow_metadata,
			current_step, step_progress, total_steps, progress_percentage,
			started_at, completed_at, last_heartbeat, execution_time_ms,
			total_tokens, total_cost, error_message, created_at
		FROM %s ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, r.tables.FlowRuns)

	rows, err := r.exec(ctx).Query(ctx, query, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list flow runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.FlowRun
	for rows.Next() {
		var run models.FlowRun
		if err := rows.Scan(
			&run.ID, &run.FlowName, &run.ExecutionMode, &run.UserID, &run.Status,
			&run.Inputs, &run.Outputs, &run.FlowMetadata,
			&run.CurrentStep, &run.StepProgress, &run.TotalSteps, &run.ProgressPercentage,
			&run.StartedAt, &run.CompletedAt, &run.LastHeartbeat, &run.ExecutionTimeMs,
			&run.TotalTokens, &run.TotalCost, &run.ErrorMessage, &run.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan flow run: %w", err)
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate flow runs: %w", err)
	}
	return runs, total, nil
}

func (r *PostgresFlowRunRepository) ListStalled(ctx context.Context, olderThanSeconds int) ([]*models.FlowRun, error) {
	query := fmt.Sprintf(`
		SELECT id, flow_name, execution_mode, user_id, status, inputs, outputs, flow_metadata,
			current_step, step_progress, total_steps, progress_percentage,
			started_at, completed_at, last_heartbeat, execution_time_ms,
			total_tokens, total_cost, error_message, created_at
		FROM %s
		WHERE status = 'running' AND last_heartbeat < now() - ($1 || ' seconds')::interval
	`, r.tables.FlowRuns)

	rows, err := r.exec(ctx).Query(ctx, query, olderThanSeconds)
	if err != nil {
		return nil, fmt.Errorf("list stalled flow runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.FlowRun
	for rows.Next() {
		var run models.FlowRun
		if err := rows.Scan(
			&run.ID, &run.FlowName, &run.ExecutionMode, &run.UserID, &run.Status,
			&run.Inputs, &run.Outputs, &run.FlowMetadata,
			&run.CurrentStep, &run.StepProgress, &run.TotalSteps, &run.ProgressPercentage,
			&run.StartedAt, &run.CompletedAt, &run.LastHeartbeat, &run.ExecutionTimeMs,
			&run.TotalTokens, &run.TotalCost, &run.ErrorMessage, &run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan flow run: %w", err)
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stalled flow runs: %w", err)
	}
	return runs, nil
}

// PostgresFlowStepRunRepository implements repositories.FlowStepRunRepository.
type PostgresFlowStepRunRepository struct {
	raw    *RepositoryConfig
	tables *TableNames
}

// NewFlowStepRunRepository creates a new flow step run repository.
func NewFlowStepRunRepository(config *RepositoryConfig) repositories.FlowStepRunRepository {
	return &PostgresFlowStepRunRepository{raw: config, tables: config.Tables}
}

func (r *PostgresFlowStepRunRepository) exec(ctx context.Context) repositories.DBTX {
	return GetExecutor(ctx, r.raw.Pool)
}

func (r *PostgresFlowStepRunRepository) Create(ctx context.Context, step *models.FlowStepRun) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (flow_run_id, step_name, step_order, status, inputs, outputs, step_metadata,
			tokens_used, cost_estimate, execution_time_ms, error_message, error_type,
			llm_request_id, started_at, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())
		RETURNING id, created_at
	`, r.tables.FlowSteps)

	err := r.exec(ctx).QueryRow(ctx, query,
		step.FlowRunID, step.StepName, step.StepOrder, step.Status,
		step.Inputs, step.Outputs, step.StepMetadata,
		step.TokensUsed, step.CostEstimate, step.ExecutionTimeMs, step.ErrorMessage, step.ErrorType,
		step.LLMRequestID, step.StartedAt, step.CompletedAt,
	).Scan(&step.ID, &step.CreatedAt)
	if err != nil {
		return fmt.Errorf("create flow step run: %w", err)
	}
	return nil
}

func (r *PostgresFlowStepRunRepository) Update(ctx context.Context, step *models.FlowStepRun) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = $1, outputs = $2, step_metadata = $3, tokens_used = $4,
			cost_estimate = $5, execution_time_ms = $6, error_message = $7, error_type = $8,
			llm_request_id = $9, started_at = $10, completed_at = $11
		WHERE id = $12
	`, r.tables.FlowSteps)

	result, err := r.exec(ctx).Exec(ctx, query,
		step.Status, step.Outputs, step.StepMetadata, step.TokensUsed,
		step.CostEstimate, step.ExecutionTimeMs, step.ErrorMessage, step.ErrorType,
		step.LLMRequestID, step.StartedAt, step.CompletedAt,
		step.ID,
	)
	if err != nil {
		return fmt.Errorf("update flow step run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("flow step run %s: %w", step.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *PostgresFlowStepRunRepository) GetByID(ctx context.Context, id string) (*models.FlowStepRun, error) {
	query := fmt.Sprintf(`
		SELECT id, flow_run_id, step_name, step_order, status, inputs, outputs, step_metadata,
			tokens_used, cost_estimate, execution_time_ms, error_message, error_type,
			llm_request_id, started_at, completed_at, created_at
		FROM %s WHERE id = $1
	`, r.tables.FlowSteps)

	var step models.FlowStepRun
	err := r.exec(ctx).QueryRow(ctx, query, id).Scan(
		&step.ID, &step.FlowRunID, &step.StepName, &step.StepOrder, &step.Status,
		&step.Inputs, &step.Outputs, &step.StepMetadata,
		&step.TokensUsed, &step.CostEstimate, &step.ExecutionTimeMs, &step.ErrorMessage, &step.ErrorType,
		&step.LLMRequestID, &step.StartedAt, &step.CompletedAt, &step.CreatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("flow step run %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get flow step run: %w", err)
	}
	return &step, nil
}

func (r *PostgresFlowStepRunRepository) ListByFlowRun(ctx context.Context, flowRunID string) ([]*models.FlowStepRun, error) {
	query := fmt.Sprintf(`
		SELECT id, flow_run_id, step_name, step_order, status, inputs, outputs, step_metadata,
			tokens_used, cost_estimate, execution_time_ms, error_message, error_type,
			llm_request_id, started_at, completed_at, created_at
		FROM %s WHERE flow_run_id = $1 ORDER BY step_order ASC
	`, r.tables.FlowSteps)

	rows, err := r.exec(ctx).Query(ctx, query, flowRunID)
	if err != nil {
		return nil, fmt.Errorf("list flow step runs: %w", err)
	}
	defer rows.Close()

	var steps []*models.FlowStepRun
	for rows.Next() {
		var step models.FlowStepRun
		if err := rows.Scan(
			&step.ID, &step.FlowRunID, &step.StepName, &step.StepOrder, &step.Status,
			&step.Inputs, &step.Outputs, &step.StepMetadata,
			&step.TokensUsed, &step.CostEstimate, &step.ExecutionTimeMs, &step.ErrorMessage, &step.ErrorType,
			&step.LLMRequestID, &step.StartedAt, &step.CompletedAt, &step.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan flow step run: %w", err)
		}
		steps = append(steps, &step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flow step runs: %w", err)
	}
	return steps, nil
}
