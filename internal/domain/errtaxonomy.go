package domain

import "errors"

// ErrorKind is the taxonomy of spec.md §7, recorded as error_type on
// LLMRequest and FlowStepRun rows. API error responses do not carry it:
// they are RFC 7807 problem details derived from the HTTP status code.
type ErrorKind string

const (
	KindValidationError  ErrorKind = "validation_error"
	KindProviderError    ErrorKind = "provider_error"
	KindRateLimited       ErrorKind = "rate_limited"
	KindTimeout           ErrorKind = "timeout"
	KindTransportError    ErrorKind = "transport_error"
	KindInvalidResponse   ErrorKind = "invalid_response"
	KindCancelled         ErrorKind = "cancelled"
	KindStalled           ErrorKind = "stalled"
	KindInternalError     ErrorKind = "internal_error"
)

// Sentinels for errors.Is-based classification, mirroring the CRUD
// sentinels above (ErrNotFound, ErrConflict, ErrValidation).
var (
	ErrProviderError  = errors.New("provider error")
	ErrRateLimited    = errors.New("rate limited")
	ErrTimeout        = errors.New("timeout")
	ErrTransport      = errors.New("transport error")
	ErrInvalidResponse = errors.New("invalid response")
	ErrCancelled      = errors.New("cancelled")
	ErrStalled        = errors.New("stalled")
	ErrInternal       = errors.New("internal error")
)

// Retryable reports whether an error of this kind may be retried per the
// LLM Gateway's retry policy (spec.md §4.1): rate_limited, timeout, and
// transient transport_error are retryable; everything else is not.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindRateLimited, KindTimeout, KindTransportError:
		return true
	default:
		return false
	}
}

// ClassifyErr maps a sentinel-wrapped error to its taxonomy kind, falling
// back to internal_error for anything unrecognized.
func ClassifyErr(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidationError
	case errors.Is(err, ErrProviderError):
		return KindProviderError
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrTransport):
		return KindTransportError
	case errors.Is(err, ErrInvalidResponse):
		return KindInvalidResponse
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, ErrStalled):
		return KindStalled
	default:
		return KindInternalError
	}
}
