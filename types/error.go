package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a routing or coordination failure. The kind decides
// whether the Retry/Backoff controller may re-attempt the operation.
type ErrorKind string

const (
	KindProtocol                 ErrorKind = "PROTOCOL"
	KindAuthentication           ErrorKind = "AUTHENTICATION"
	KindAuthorization            ErrorKind = "AUTHORIZATION"
	KindCapabilityNotFound       ErrorKind = "CAPABILITY_NOT_FOUND"
	KindAgentUnavailable         ErrorKind = "AGENT_UNAVAILABLE"
	KindResourceExhausted        ErrorKind = "RESOURCE_EXHAUSTED"
	KindTimeout                  ErrorKind = "TIMEOUT"
	KindRouting                  ErrorKind = "ROUTING_ERROR"
	KindSerialization            ErrorKind = "SERIALIZATION"
	KindValidation               ErrorKind = "VALIDATION"
	KindInternal                 ErrorKind = "INTERNAL"
	KindInsufficientParticipants ErrorKind = "INSUFFICIENT_PARTICIPANTS"
	KindStateConflict            ErrorKind = "STATE_CONFLICT"
)

// retryableKinds is the single source of truth for which kinds may be retried.
var retryableKinds = map[ErrorKind]bool{
	KindAgentUnavailable:  true,
	KindResourceExhausted: true,
	KindTimeout:           true,
	KindRouting:           true,
}

// KindRetryable reports whether errors of the given kind may be retried.
func KindRetryable(kind ErrorKind) bool {
	return retryableKinds[kind]
}

// ErrorCode is a machine-readable identifier for one specific failure within
// a kind, e.g. "DUPLICATE_AGENT" under KindStateConflict.
type ErrorCode string

const (
	CodeDuplicateAgent    ErrorCode = "DUPLICATE_AGENT"
	CodeAgentOffline      ErrorCode = "AGENT_OFFLINE"
	CodeAgentNotFound     ErrorCode = "AGENT_NOT_FOUND"
	CodeMessageExpired    ErrorCode = "MESSAGE_EXPIRED"
	CodeInvalidTarget     ErrorCode = "INVALID_TARGET"
	CodeInvalidSpec       ErrorCode = "INVALID_COORDINATION_SPEC"
	CodeNoPath            ErrorCode = "NO_PATH"
	CodeHopBudgetExceeded ErrorCode = "HOP_BUDGET_EXCEEDED"
	CodeCostExceeded      ErrorCode = "COST_EXCEEDED"
	CodeDeliveryTimeout   ErrorCode = "DELIVERY_TIMEOUT"
	CodeConsensusFailed   ErrorCode = "CONSENSUS_NOT_REACHED"
	CodeQuorumTooSmall    ErrorCode = "QUORUM_TOO_SMALL"
	CodePipelineAborted   ErrorCode = "PIPELINE_ABORTED"
	CodePipelineCancelled ErrorCode = "PIPELINE_CANCELLED"
	CodeAckMissing        ErrorCode = "ACK_MISSING"
	CodeBroadcastFailed   ErrorCode = "BROADCAST_FAILED"
	CodeRetriesExhausted  ErrorCode = "RETRIES_EXHAUSTED"
)

// Error is the structured error type used across the router. Retryable is
// derived from Kind at construction and never contradicts the taxonomy.
type Error struct {
	Code      ErrorCode `json:"code"`
	Kind      ErrorKind `json:"type"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	AgentID   string    `json:"agent_id,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error of the given kind. Retryable is set from the taxonomy.
func New(kind ErrorKind, message string) *Error {
	return &Error{
		Kind:      kind,
		Message:   message,
		Retryable: KindRetryable(kind),
	}
}

// Newf creates an Error with a formatted message.
func Newf(kind ErrorKind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// WithCode sets the machine-readable code.
func (e *Error) WithCode(code ErrorCode) *Error {
	e.Code = code
	return e
}

// WithCause attaches the underlying cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithAgent records the agent involved in the failure.
func (e *Error) WithAgent(agentID string) *Error {
	e.AgentID = agentID
	return e
}

// IsRetryable reports whether err is a retryable *Error. Unknown error types
// are treated as non-retryable: the retry controller only re-attempts
// failures the taxonomy explicitly allows.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetKind extracts the error kind, or KindInternal for foreign errors.
func GetKind(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// GetCode extracts the error code from an error.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
