package models

import "time"

// LLMRequestStatus is the lifecycle state of a single model call.
type LLMRequestStatus string

const (
	LLMRequestPending   LLMRequestStatus = "pending"
	LLMRequestCompleted LLMRequestStatus = "completed"
	LLMRequestFailed    LLMRequestStatus = "failed"
)

// MessagePart is one piece of a message's content: either plain text or a
// structured part (e.g. an image URL) used for vision calls.
type MessagePart struct {
	Type     string `json:"type"` // "text" | "image_url"
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// LLMMessage is one entry in the ordered message list sent to the provider.
type LLMMessage struct {
	Role    string        `json:"role"` // "system" | "user" | "assistant"
	Content []MessagePart `json:"content"`
}

// Text returns the message's content as plain text, concatenating any text
// parts. Used by providers/tests that don't care about multimodal parts.
func (m LLMMessage) Text() string {
	var out string
	for _, p := range m.Content {
		if p.Type == "text" || p.Type == "" {
			out += p.Text
		}
	}
	return out
}

// LLMRequest is one persisted model call, per spec.md §3.
type LLMRequest struct {
	ID          string  `json:"id" db:"id"`
	UserID      *string `json:"user_id,omitempty" db:"user_id"`
	// StepRunID associates this call with the FlowStepRun that issued it, if
	// any. A standalone LLMRequest (no owning step) leaves this nil, per
	// spec.md §3: "an LLMRequest can exist without a step".
	StepRunID   *string `json:"step_run_id,omitempty" db:"step_run_id"`
	Provider    string  `json:"provider" db:"provider"`
	Model       string  `json:"model" db:"model"`
	APIVariant  string  `json:"api_variant" db:"api_variant"`

	Messages        []LLMMessage           `json:"messages" db:"messages"`
	RequestPayload  map[string]interface{} `json:"request_payload" db:"request_payload"`
	ResponseRaw     map[string]interface{} `json:"response_raw,omitempty" db:"response_raw"`
	ResponseContent string                 `json:"response_content,omitempty" db:"response_content"`

	ProviderResponseID *string `json:"provider_response_id,omitempty" db:"provider_response_id"`
	SystemFingerprint  *string `json:"system_fingerprint,omitempty" db:"system_fingerprint"`

	Temperature       *float64               `json:"temperature,omitempty" db:"temperature"`
	MaxOutputTokens    *int                   `json:"max_output_tokens,omitempty" db:"max_output_tokens"`
	AdditionalParams   map[string]interface{} `json:"additional_params,omitempty" db:"additional_params"`

	InputTokens  *int    `json:"input_tokens,omitempty" db:"input_tokens"`
	OutputTokens *int    `json:"output_tokens,omitempty" db:"output_tokens"`
	TokensUsed   int     `json:"tokens_used" db:"tokens_used"`
	CostEstimate float64 `json:"cost_estimate" db:"cost_estimate"`

	Status       LLMRequestStatus `json:"status" db:"status"`
	ErrorType    *string          `json:"error_type,omitempty" db:"error_type"`
	ErrorMessage *string          `json:"error_message,omitempty" db:"error_message"`
	RetryAttempt int              `json:"retry_attempt" db:"retry_attempt"`

	Cached          bool       `json:"cached" db:"cached"`
	ExecutionTimeMs int64      `json:"execution_time_ms" db:"execution_time_ms"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	ResponseCreatedAt *time.Time `json:"response_created_at,omitempty" db:"response_created_at"`
}

// MarkCompleted fills in the row fields written once the provider responds
// successfully. Enforces the invariant that a completed row always carries
// response_raw.
func (r *LLMRequest) MarkCompleted(responseRaw map[string]interface{}, responseContent string, inputTokens, outputTokens int, costEstimate float64, execTimeMs int64, now time.Time) {
	r.Status = LLMRequestCompleted
	r.ResponseRaw = responseRaw
	r.ResponseContent = responseContent
	r.InputTokens = &inputTokens
	r.OutputTokens = &outputTokens
	r.TokensUsed = inputTokens + outputTokens
	r.CostEstimate = costEstimate
	r.ExecutionTimeMs = execTimeMs
	r.ResponseCreatedAt = &now
}

// MarkFailed fills in the row fields written when a call fails terminally.
// Enforces the invariant that a failed row always carries error_type/error_message.
func (r *LLMRequest) MarkFailed(errType, errMessage string, execTimeMs int64) {
	r.Status = LLMRequestFailed
	r.ErrorType = &errType
	r.ErrorMessage = &errMessage
	r.ExecutionTimeMs = execTimeMs
}
