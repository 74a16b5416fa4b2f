package postgres

import (
	"context"
	"fmt"

	"meridian/internal/domain"
	"meridian/internal/domain/models"
	"meridian/internal/domain/repositories"
)

// PostgresLLMRequestRepository implements repositories.LLMRequestRepository.
type PostgresLLMRequestRepository struct {
	raw    *RepositoryConfig
	tables *TableNames
}

// NewLLMRequestRepository creates a new LLM request repository.
func NewLLMRequestRepository(config *RepositoryConfig) repositories.LLMRequestRepository {
	return &PostgresLLMRequestRepository{raw: config, tables: config.Tables}
}

func (r *PostgresLLMRequestRepository) exec(ctx context.Context) repositories.DBTX {
	return GetExecutor(ctx, r.raw.Pool)
}

func (r *PostgresLLMRequestRepository) Create(ctx context.Context, req *models.LLMRequest) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, step_run_id, provider, model, api_variant,
			messages, request_payload, response_raw, response_content,
			provider_response_id, system_fingerprint, temperature, max_output_tokens, additional_params,
			input_tokens, output_tokens, tokens_used, cost_estimate,
			status, error_type, error_message, retry_attempt,
			cached, execution_time_ms, created_at, response_created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, now(), $25)
		RETURNING id, created_at
	`, r.tables.LLMRequests)

	err := r.exec(ctx).QueryRow(ctx, query,
		req.UserID, req.StepRunID, req.Provider, req.Model, req.APIVariant,
		req.Messages, req.RequestPayload, req.ResponseRaw, req.ResponseContent,
		req.ProviderResponseID, req.SystemFingerprint, req.Temperature, req.MaxOutputTokens, req.AdditionalParams,
		req.InputTokens, req.OutputTokens, req.TokensUsed, req.CostEstimate,
		req.Status, req.ErrorType, req.ErrorMessage, req.RetryAttempt,
		req.Cached, req.ExecutionTimeMs, req.ResponseCreatedAt,
	).Scan(&req.ID, &req.CreatedAt)
	if err != nil {
		return fmt.Errorf("create llm request: %w", err)
	}
	return nil
}

func (r *PostgresLLMRequestRepository) Update(ctx context.Context, req *models.LLMRequest) error {
	query := fmt.Sprintf(`
		UPDATE %s SET response_raw = $1, response_content = $2, provider_response_id = $3,
			system_fingerprint = $4, input_tokens = $5, output_tokens = $6, tokens_used = $7,
			cost_estimate = $8, status = $9, error_type = $10, error_message = $11,
			retry_attempt = $12, cached = $13, execution_time_ms = $14, response_created_at = $15
		WHERE id = $16
	`, r.tables.LLMRequests)

	result, err := r.exec(ctx).Exec(ctx, query,
		req.ResponseRaw, req.ResponseContent, req.ProviderResponseID,
		req.SystemFingerprint, req.InputTokens, req.OutputTokens, req.TokensUsed,
		req.CostEstimate, req.Status, req.ErrorType, req.ErrorMessage,
		req.RetryAttempt, req.Cached, req.ExecutionTimeMs, req.ResponseCreatedAt,
		req.ID,
	)
	if err != nil {
		return fmt.Errorf("update llm request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("llm request %s: %w", req.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *PostgresLLMRequestRepository) GetByID(ctx context.Context, id string) (*models.LLMRequest, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, step_run_id, provider, model, api_variant,
			messages, request_payload, response_raw, response_content,
			provider_response_id, system_fingerprint, temperature, max_output_tokens, additional_params,
			input_tokens, output_tokens, tokens_used, cost_estimate,
			status, error_type, error_message, retry_attempt,
			cached, execution_time_ms, created_at, response_created_at
		FROM %s WHERE id = $1
	`, r.tables.LLMRequests)

	req, err := r.scanRow(r.exec(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("llm request %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get llm request: %w", err)
	}
	return req, nil
}

func (r *PostgresLLMRequestRepository) ListByStepRun(ctx context.Context, stepRunID string) ([]*models.LLMRequest, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, step_run_id, provider, model, api_variant,
			messages, request_payload, response_raw, response_content,
			provider_response_id, system_fingerprint, temperature, max_output_tokens, additional_params,
			input_tokens, output_tokens, tokens_used, cost_estimate,
			status, error_type, error_message, retry_attempt,
			cached, execution_time_ms, created_at, response_created_at
		FROM %s WHERE step_run_id = $1 ORDER BY created_at ASC
	`, r.tables.LLMRequests)

	rows, err := r.exec(ctx).Query(ctx, query, stepRunID)
	if err != nil {
		return nil, fmt.Errorf("list llm requests by step run: %w", err)
	}
	defer rows.Close()

	var out []*models.LLMRequest
	for rows.Next() {
		req, err := r.scanRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan llm request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate llm requests: %w", err)
	}
	return out, nil
}

func (r *PostgresLLMRequestRepository) SumUsageForStep(ctx context.Context, stepRunID string) (int, float64, error) {
	query := fmt.Sprintf(`
		SELECT coalesce(sum(tokens_used), 0), coalesce(sum(cost_estimate), 0)
		FROM %s WHERE step_run_id = $1
	`, r.tables.LLMRequests)

	var tokens int
	var cost float64
	if err := r.exec(ctx).QueryRow(ctx, query, stepRunID).Scan(&tokens, &cost); err != nil {
		return 0, 0, fmt.Errorf("sum llm request usage: %w", err)
	}
	return tokens, cost, nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows, letting GetByID and
// the list/iterate paths share one field list.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *PostgresLLMRequestRepository) scanRow(row rowScanner) (*models.LLMRequest, error) {
	return r.scanRows(row)
}

func (r *PostgresLLMRequestRepository) scanRows(row rowScanner) (*models.LLMRequest, error) {
	var req models.LLMRequest
	err := row.Scan(
		&req.ID, &req.UserID, &req.StepRunID, &req.Provider, &req.Model, &req.APIVariant,
		&req.Messages, &req.RequestPayload, &req.ResponseRaw, &req.ResponseContent,
		&req.ProviderResponseID, &req.SystemFingerprint, &req.Temperature, &req.MaxOutputTokens, &req.AdditionalParams,
		&req.InputTokens, &req.OutputTokens, &req.TokensUsed, &req.CostEstimate,
		&req.Status, &req.ErrorType, &req.ErrorMessage, &req.RetryAttempt,
		&req.Cached, &req.ExecutionTimeMs, &req.CreatedAt, &req.ResponseCreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}
