// Package llm implements the LLM Gateway (spec.md §4.1): the single
// chokepoint through which every model call passes, fanning out to
// capability-routed Providers while logging a durable LLMRequest audit row
// per call.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"meridian/internal/domain"
	"meridian/internal/domain/models"
	"meridian/internal/domain/repositories"
	domainllm "meridian/internal/domain/services/llm"
	"meridian/internal/service/llm/pricing"
)

// Gateway implements domainllm.Gateway. It inserts a pending LLMRequest row
// before issuing a call, retries retryable failures, and always leaves the
// row either completed or failed — never stuck pending (spec.md §9
// "durable audit as the source of truth").
type Gateway struct {
	providers []domainllm.Provider
	requests  repositories.LLMRequestRepository
	prices    *pricing.Registry
	cache     *Cache
	retryer   *Retryer
	logger    *slog.Logger

	cacheEnabled bool
}

// NewGateway wires a Gateway from its providers (tried in order for
// SupportsModel routing), the LLMRequest audit repository, the pricing
// registry, an optional response cache, a retry policy, and a logger.
func NewGateway(
	providers []domainllm.Provider,
	requests repositories.LLMRequestRepository,
	prices *pricing.Registry,
	cache *Cache,
	cacheEnabled bool,
	retryer *Retryer,
	logger *slog.Logger,
) *Gateway {
	if retryer == nil {
		retryer = NewRetryer(DefaultRetryConfig())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		providers:    providers,
		requests:     requests,
		prices:       prices,
		cache:        cache,
		cacheEnabled: cacheEnabled,
		retryer:      retryer,
		logger:       logger,
	}
}

func (g *Gateway) providerFor(model string, capability domainllm.Capability) (domainllm.Provider, error) {
	for _, p := range g.providers {
		if p.SupportsModel(model, capability) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: no provider supports model %q for capability %q", domain.ErrProviderError, model, capability)
}

// GenerateResponse issues a plain-text completion (spec.md §4.1 op 1).
func (g *Gateway) GenerateResponse(ctx context.Context, req *domainllm.GenerateRequest) (*domainllm.GenerateResponse, string, error) {
	provider, err := g.providerFor(req.Model, domainllm.CapabilityText)
	if err != nil {
		return nil, "", err
	}

	key := textKey(provider.Name(), req.Model, req.Messages, req.Temperature, req.MaxOutputTokens)
	if g.cacheEnabled {
		if cached, ok := g.cache.GetText(key); ok {
			row := g.newPendingRow(req.UserID, provider.Name(), req.Model, req.Messages, req.Temperature, req.MaxOutputTokens, nil)
			row.Cached = true
			row.MarkCompleted(cached.ResponseRaw, cached.Content, cached.InputTokens, cached.OutputTokens, 0, 0, time.Now())
			if err := g.requests.Create(ctx, row); err != nil {
				g.logger.Error("llm gateway: persist cached request", "error", err)
			}
			return cached, row.ID, nil
		}
	}

	row := g.newPendingRow(req.UserID, provider.Name(), req.Model, req.Messages, req.Temperature, req.MaxOutputTokens, nil)
	if err := g.requests.Create(ctx, row); err != nil {
		return nil, "", fmt.Errorf("%w: create llm request row: %v", domain.ErrInternal, err)
	}

	start := time.Now()
	var resp *domainllm.GenerateResponse
	callErr := g.retryer.Do(ctx, func(attempt int) error {
		row.RetryAttempt = attempt
		var err error
		resp, err = provider.GenerateResponse(ctx, req)
		return err
	})
	execMs := time.Since(start).Milliseconds()

	if callErr != nil {
		g.markFailed(ctx, row, callErr, execMs)
		return nil, row.ID, callErr
	}

	cost := g.prices.TextCost(provider.Name(), req.Model, resp.InputTokens, resp.OutputTokens)
	row.MarkCompleted(resp.ResponseRaw, resp.Content, resp.InputTokens, resp.OutputTokens, cost, execMs, time.Now())
	row.ProviderResponseID = resp.ProviderResponseID
	row.SystemFingerprint = resp.SystemFingerprint
	if err := g.requests.Update(ctx, row); err != nil {
		g.logger.Error("llm gateway: update completed request", "error", err, "request_id", row.ID)
	}

	if g.cacheEnabled {
		g.cache.PutText(key, resp)
	}
	return resp, row.ID, nil
}

// GenerateStructured issues a schema-constrained completion (op 2).
func (g *Gateway) GenerateStructured(ctx context.Context, req *domainllm.StructuredRequest) (*domainllm.StructuredResponse, string, error) {
	provider, err := g.providerFor(req.Model, domainllm.CapabilityStructured)
	if err != nil {
		return nil, "", err
	}

	key := structuredKey(provider.Name(), req.Model, req.Messages, req.Temperature, req.MaxOutputTokens, req.SchemaName)
	if g.cacheEnabled {
		if cached, ok := g.cache.GetStructured(key); ok {
			row := g.newPendingRow(req.UserID, provider.Name(), req.Model, req.Messages, req.Temperature, req.MaxOutputTokens, map[string]interface{}{"schema_name": req.SchemaName})
			row.Cached = true
			contentJSON := fmt.Sprintf("%v", cached.Value)
			row.MarkCompleted(cached.ResponseRaw, contentJSON, cached.InputTokens, cached.OutputTokens, 0, 0, time.Now())
			if err := g.requests.Create(ctx, row); err != nil {
				g.logger.Error("llm gateway: persist cached structured request", "error", err)
			}
			return cached, row.ID, nil
		}
	}

	row := g.newPendingRow(req.UserID, provider.Name(), req.Model, req.Messages, req.Temperature, req.MaxOutputTokens, map[string]interface{}{"schema_name": req.SchemaName})
	if err := g.requests.Create(ctx, row); err != nil {
		return nil, "", fmt.Errorf("%w: create llm request row: %v", domain.ErrInternal, err)
	}

	start := time.Now()
	var resp *domainllm.StructuredResponse
	callErr := g.retryer.Do(ctx, func(attempt int) error {
		row.RetryAttempt = attempt
		var err error
		resp, err = provider.GenerateStructured(ctx, req)
		return err
	})
	execMs := time.Since(start).Milliseconds()

	if callErr != nil {
		g.markFailed(ctx, row, callErr, execMs)
		return nil, row.ID, callErr
	}

	cost := g.prices.TextCost(provider.Name(), req.Model, resp.InputTokens, resp.OutputTokens)
	row.MarkCompleted(resp.ResponseRaw, fmt.Sprintf("%v", resp.Value), resp.InputTokens, resp.OutputTokens, cost, execMs, time.Now())
	row.ProviderResponseID = resp.ProviderResponseID
	row.SystemFingerprint = resp.SystemFingerprint
	if err := g.requests.Update(ctx, row); err != nil {
		g.logger.Error("llm gateway: update completed structured request", "error", err, "request_id", row.ID)
	}

	if g.cacheEnabled {
		g.cache.PutStructured(key, resp)
	}
	return resp, row.ID, nil
}

// GenerateAudio synthesizes speech from text (op 3). Audio responses are
// never cached: they're one-shot artifacts persisted by the caller to the
// object store, not replayed from memory.
func (g *Gateway) GenerateAudio(ctx context.Context, req *domainllm.AudioRequest) (*domainllm.AudioResponse, string, error) {
	provider, err := g.providerFor(req.Model, domainllm.CapabilityAudio)
	if err != nil {
		return nil, "", err
	}

	messages := []models.LLMMessage{{Role: "user", Content: []models.MessagePart{{Type: "text", Text: req.Text}}}}
	row := g.newPendingRow(nil, provider.Name(), req.Model, messages, nil, nil, map[string]interface{}{"voice": req.Voice, "format": req.AudioFormat})
	if err := g.requests.Create(ctx, row); err != nil {
		return nil, "", fmt.Errorf("%w: create llm request row: %v", domain.ErrInternal, err)
	}

	start := time.Now()
	var resp *domainllm.AudioResponse
	callErr := g.retryer.Do(ctx, func(attempt int) error {
		row.RetryAttempt = attempt
		var err error
		resp, err = provider.GenerateAudio(ctx, req)
		return err
	})
	execMs := time.Since(start).Milliseconds()

	if callErr != nil {
		g.markFailed(ctx, row, callErr, execMs)
		return nil, row.ID, callErr
	}

	cost := g.prices.AudioCost(provider.Name(), req.Model, resp.DurationSeconds)
	row.MarkCompleted(resp.ResponseRaw, "", 0, 0, cost, execMs, time.Now())
	if err := g.requests.Update(ctx, row); err != nil {
		g.logger.Error("llm gateway: update completed audio request", "error", err, "request_id", row.ID)
	}
	return resp, row.ID, nil
}

// GenerateImage generates an image from a prompt (op 3).
func (g *Gateway) GenerateImage(ctx context.Context, req *domainllm.ImageRequest) (*domainllm.ImageResponse, string, error) {
	model := "dall-e-3"
	provider, err := g.providerFor(model, domainllm.CapabilityImage)
	if err != nil {
		return nil, "", err
	}

	messages := []models.LLMMessage{{Role: "user", Content: []models.MessagePart{{Type: "text", Text: req.Prompt}}}}
	row := g.newPendingRow(nil, provider.Name(), model, messages, nil, nil, map[string]interface{}{"size": req.Size, "quality": req.Quality, "style": req.Style})
	if err := g.requests.Create(ctx, row); err != nil {
		return nil, "", fmt.Errorf("%w: create llm request row: %v", domain.ErrInternal, err)
	}

	start := time.Now()
	var resp *domainllm.ImageResponse
	callErr := g.retryer.Do(ctx, func(attempt int) error {
		row.RetryAttempt = attempt
		var err error
		resp, err = provider.GenerateImage(ctx, req)
		return err
	})
	execMs := time.Since(start).Milliseconds()

	if callErr != nil {
		g.markFailed(ctx, row, callErr, execMs)
		return nil, row.ID, callErr
	}

	cost := g.prices.ImageCost(provider.Name(), model)
	row.MarkCompleted(resp.ResponseRaw, resp.RevisedPrompt, 0, 0, cost, execMs, time.Now())
	if err := g.requests.Update(ctx, row); err != nil {
		g.logger.Error("llm gateway: update completed image request", "error", err, "request_id", row.ID)
	}
	return resp, row.ID, nil
}

func (g *Gateway) newPendingRow(userID *string, provider, model string, messages []models.LLMMessage, temperature *float64, maxOutputTokens *int, additionalParams map[string]interface{}) *models.LLMRequest {
	return &models.LLMRequest{
		ID:               uuid.NewString(),
		UserID:           userID,
		Provider:         provider,
		Model:            model,
		APIVariant:       "messages",
		Messages:         messages,
		RequestPayload:   map[string]interface{}{},
		Temperature:      temperature,
		MaxOutputTokens:  maxOutputTokens,
		AdditionalParams: additionalParams,
		Status:           models.LLMRequestPending,
		CreatedAt:        time.Now(),
	}
}

func (g *Gateway) markFailed(ctx context.Context, row *models.LLMRequest, callErr error, execMs int64) {
	kind := domain.ClassifyErr(callErr)
	row.MarkFailed(string(kind), callErr.Error(), execMs)
	if err := g.requests.Update(ctx, row); err != nil {
		g.logger.Error("llm gateway: update failed request", "error", err, "request_id", row.ID)
	}
}
