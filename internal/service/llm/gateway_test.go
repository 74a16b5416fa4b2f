package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"meridian/internal/domain"
	"meridian/internal/domain/models"
	domainllm "meridian/internal/domain/services/llm"
	"meridian/internal/service/llm/pricing"
)

// fakeLLMRequests is an in-memory repositories.LLMRequestRepository.
type fakeLLMRequests struct {
	rows []*models.LLMRequest
}

func (f *fakeLLMRequests) Create(ctx context.Context, req *models.LLMRequest) error {
	f.rows = append(f.rows, req)
	return nil
}
func (f *fakeLLMRequests) Update(ctx context.Context, req *models.LLMRequest) error { return nil }
func (f *fakeLLMRequests) GetByID(ctx context.Context, id string) (*models.LLMRequest, error) {
	for _, r := range f.rows {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, domain.ErrNotFound
}
func (f *fakeLLMRequests) ListByStepRun(ctx context.Context, stepRunID string) ([]*models.LLMRequest, error) {
	return nil, nil
}
func (f *fakeLLMRequests) SumUsageForStep(ctx context.Context, stepRunID string) (int, float64, error) {
	return 0, 0, nil
}

// fakeProvider is a domainllm.Provider whose responses/errors are entirely
// controlled by its fields, and which counts how many times each operation
// is invoked (to assert retry behavior).
type fakeProvider struct {
	name  string
	model string

	genErrs  []error // consumed in order; last entry repeats once exhausted
	genCalls int
	genResp  *domainllm.GenerateResponse
}

func (p *fakeProvider) Name() string { return p.name }
func (p *fakeProvider) SupportsModel(model string, capability domainllm.Capability) bool {
	return model == p.model && capability == domainllm.CapabilityText
}
func (p *fakeProvider) GenerateResponse(ctx context.Context, req *domainllm.GenerateRequest) (*domainllm.GenerateResponse, error) {
	idx := p.genCalls
	p.genCalls++
	if idx < len(p.genErrs) && p.genErrs[idx] != nil {
		return nil, p.genErrs[idx]
	}
	return p.genResp, nil
}
func (p *fakeProvider) GenerateStructured(ctx context.Context, req *domainllm.StructuredRequest) (*domainllm.StructuredResponse, error) {
	return nil, errors.New("not implemented")
}
func (p *fakeProvider) GenerateAudio(ctx context.Context, req *domainllm.AudioRequest) (*domainllm.AudioResponse, error) {
	return nil, errors.New("not implemented")
}
func (p *fakeProvider) GenerateImage(ctx context.Context, req *domainllm.ImageRequest) (*domainllm.ImageResponse, error) {
	return nil, errors.New("not implemented")
}

func testPricing(t *testing.T) *pricing.Registry {
	t.Helper()
	r, err := pricing.NewRegistry()
	if err != nil {
		t.Fatalf("pricing.NewRegistry failed: %v", err)
	}
	return r
}

func quickRetryer() *Retryer {
	return NewRetryer(RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, JitterFactor: 0.01})
}

func TestGateway_GenerateResponse_PersistsCompletedRequest(t *testing.T) {
	provider := &fakeProvider{
		name:  "lorem",
		model: "lorem-text",
		genResp: &domainllm.GenerateResponse{
			Content: "hello world", Model: "lorem-text", Provider: "lorem",
			InputTokens: 10, OutputTokens: 20,
		},
	}
	requests := &fakeLLMRequests{}
	gw := NewGateway([]domainllm.Provider{provider}, requests, testPricing(t), NewCache(), false, quickRetryer(), nil)

	req := &domainllm.GenerateRequest{Model: "lorem-text", Messages: []models.LLMMessage{{Role: "user"}}}
	resp, requestID, err := gw.GenerateResponse(context.Background(), req)
	if err != nil {
		t.Fatalf("GenerateResponse returned error: %v", err)
	}
	if resp.Content != "hello world" {
		t.Errorf("resp.Content = %q, want %q", resp.Content, "hello world")
	}
	if len(requests.rows) != 1 {
		t.Fatalf("expected 1 persisted request row, got %d", len(requests.rows))
	}
	row := requests.rows[0]
	if row.ID != requestID {
		t.Errorf("returned requestID %q does not match persisted row id %q", requestID, row.ID)
	}
	if row.Status != models.LLMRequestCompleted {
		t.Errorf("row.Status = %v, want %v", row.Status, models.LLMRequestCompleted)
	}
	if row.TokensUsed != 30 {
		t.Errorf("row.TokensUsed = %d, want 30", row.TokensUsed)
	}
}

func TestGateway_GenerateResponse_RetriesThenSucceeds(t *testing.T) {
	provider := &fakeProvider{
		name:  "lorem",
		model: "lorem-text",
		genErrs: []error{
			domain.ErrTimeout,
			domain.ErrTimeout,
		},
		genResp: &domainllm.GenerateResponse{Content: "ok", Model: "lorem-text", Provider: "lorem"},
	}
	requests := &fakeLLMRequests{}
	gw := NewGateway([]domainllm.Provider{provider}, requests, testPricing(t), NewCache(), false, quickRetryer(), nil)

	req := &domainllm.GenerateRequest{Model: "lorem-text", Messages: []models.LLMMessage{{Role: "user"}}}
	resp, _, err := gw.GenerateResponse(context.Background(), req)
	if err != nil {
		t.Fatalf("GenerateResponse returned error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("resp.Content = %q, want %q", resp.Content, "ok")
	}
	if provider.genCalls != 3 {
		t.Errorf("expected 3 provider calls (2 retries), got %d", provider.genCalls)
	}
}

func TestGateway_GenerateResponse_PersistsFailedRequestOnNonRetryableError(t *testing.T) {
	provider := &fakeProvider{
		name:    "lorem",
		model:   "lorem-text",
		genErrs: []error{domain.ErrValidation},
	}
	requests := &fakeLLMRequests{}
	gw := NewGateway([]domainllm.Provider{provider}, requests, testPricing(t), NewCache(), false, quickRetryer(), nil)

	req := &domainllm.GenerateRequest{Model: "lorem-text", Messages: []models.LLMMessage{{Role: "user"}}}
	_, _, err := gw.GenerateResponse(context.Background(), req)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation to propagate, got %v", err)
	}
	if provider.genCalls != 1 {
		t.Errorf("expected non-retryable error to short-circuit after 1 call, got %d", provider.genCalls)
	}
	if len(requests.rows) != 1 || requests.rows[0].Status != models.LLMRequestFailed {
		t.Fatalf("expected exactly one persisted row in status=failed, got %+v", requests.rows)
	}
	if requests.rows[0].ErrorType == nil || *requests.rows[0].ErrorType != string(domain.KindValidationError) {
		t.Errorf("ErrorType = %v, want %q", requests.rows[0].ErrorType, domain.KindValidationError)
	}
}

func TestGateway_GenerateResponse_CacheHitSkipsProviderCall(t *testing.T) {
	provider := &fakeProvider{
		name:  "lorem",
		model: "lorem-text",
		genResp: &domainllm.GenerateResponse{Content: "first call", Model: "lorem-text", Provider: "lorem"},
	}
	requests := &fakeLLMRequests{}
	gw := NewGateway([]domainllm.Provider{provider}, requests, testPricing(t), NewCache(), true, quickRetryer(), nil)

	req := &domainllm.GenerateRequest{Model: "lorem-text", Messages: []models.LLMMessage{{Role: "user"}}}

	resp1, _, err := gw.GenerateResponse(context.Background(), req)
	if err != nil {
		t.Fatalf("first GenerateResponse returned error: %v", err)
	}
	resp2, _, err := gw.GenerateResponse(context.Background(), req)
	if err != nil {
		t.Fatalf("second GenerateResponse returned error: %v", err)
	}

	if provider.genCalls != 1 {
		t.Errorf("expected exactly 1 provider call with caching enabled, got %d", provider.genCalls)
	}
	if resp1.Content != resp2.Content {
		t.Errorf("expected cache hit to return the same content, got %q vs %q", resp1.Content, resp2.Content)
	}
	if len(requests.rows) != 2 {
		t.Fatalf("expected an audit row for both the miss and the cached hit, got %d", len(requests.rows))
	}
	if !requests.rows[1].Cached {
		t.Error("expected the second request's audit row to be marked Cached")
	}
}

func TestGateway_GenerateResponse_NoProviderSupportsModel(t *testing.T) {
	provider := &fakeProvider{name: "lorem", model: "lorem-text"}
	requests := &fakeLLMRequests{}
	gw := NewGateway([]domainllm.Provider{provider}, requests, testPricing(t), NewCache(), false, quickRetryer(), nil)

	req := &domainllm.GenerateRequest{Model: "some-unsupported-model", Messages: []models.LLMMessage{{Role: "user"}}}
	_, _, err := gw.GenerateResponse(context.Background(), req)
	if !errors.Is(err, domain.ErrProviderError) {
		t.Fatalf("expected ErrProviderError for an unsupported model, got %v", err)
	}
	if len(requests.rows) != 0 {
		t.Error("expected no audit row to be created when no provider can serve the request")
	}
}
