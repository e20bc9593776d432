// Package errors provides standardized error handling for the consultation
// engine and its BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Terminal: no agents passed the eligibility filter, decided before any
	// network call.
	ErrCodeNoEligibleAgents ErrorCode = "NO_ELIGIBLE_AGENTS"

	// Per-agent call outcomes. Recorded as invalid response rows, never
	// retried within the same round.
	ErrCodeAgentTimeout     ErrorCode = "AGENT_TIMEOUT"
	ErrCodeAgentCallFailed  ErrorCode = "AGENT_CALL_FAILED"
	ErrCodeAgentAuthFailure ErrorCode = "AGENT_AUTH_FAILURE"

	// Validation reason codes carried on response rows.
	ErrCodeResponseTooShort     ErrorCode = "RESPONSE_TOO_SHORT"
	ErrCodeNoSubstantiveContent ErrorCode = "NO_SUBSTANTIVE_CONTENT"
	ErrCodeDuplicateResponse    ErrorCode = "DUPLICATE_RESPONSE"

	// Persistence and downstream delivery.
	ErrCodePersistenceWriteFailed ErrorCode = "PERSISTENCE_WRITE_FAILED"
	ErrCodeArchiveWriteFailed     ErrorCode = "ARCHIVE_WRITE_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	// Collaborators that degrade silently.
	ErrCodeTriageUnavailable  ErrorCode = "TRIAGE_UNAVAILABLE"
	ErrCodeSummarizerFallback ErrorCode = "SUMMARIZER_FALLBACK"

	// Caller input.
	ErrCodeInvalidConsultationInput ErrorCode = "INVALID_CONSULTATION_INPUT"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	if e.ErrorVariables != nil {
		for k, v := range e.ErrorVariables {
			vars[k] = v
		}
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewNoEligibleAgentsError creates the terminal no-eligible-agents error.
func NewNoEligibleAgentsError(askerID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoEligibleAgents,
		Message:   "No eligible agents available for consultation",
		Details:   fmt.Sprintf("askerId: %s", askerID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAgentTimeoutError creates a per-agent timeout error carrying the elapsed latency.
func NewAgentTimeoutError(agentID string, latencyMs int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeAgentTimeout,
		Message:   "Agent call exceeded timeout",
		Details:   fmt.Sprintf("agentId: %s", agentID),
		Retryable: false,
		Metadata:  map[string]interface{}{"latencyMs": latencyMs},
		Timestamp: time.Now().UTC(),
	}
}

// NewAgentCallFailedError creates a per-agent call failure error.
func NewAgentCallFailedError(agentID string, err error, latencyMs int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeAgentCallFailed,
		Message:   "Agent call failed",
		Details:   fmt.Sprintf("agentId: %s, error: %s", agentID, err.Error()),
		Retryable: false,
		Metadata:  map[string]interface{}{"latencyMs": latencyMs},
		Timestamp: time.Now().UTC(),
	}
}

// NewAgentAuthFailureError creates the circuit-breaking authorization error.
// Details distinguishes a failed credential refresh from a rejected chat call.
func NewAgentAuthFailureError(agentID, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAgentAuthFailure,
		Message:   "Agent authorization failed",
		Details:   fmt.Sprintf("agentId: %s, %s", agentID, details),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistenceWriteFailedError creates a retryable per-item persistence error.
func NewPersistenceWriteFailedError(key string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePersistenceWriteFailed,
		Message:   "Response persistence write failed",
		Details:   fmt.Sprintf("key: %s, error: %s", key, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewArchiveWriteFailedError creates a retryable archive write error.
func NewArchiveWriteFailedError(target string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeArchiveWriteFailed,
		Message:   "Consultation archive write failed",
		Details:   fmt.Sprintf("target: %s, error: %s", target, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTriageUnavailableError creates a retryable triage collaborator error.
func NewTriageUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTriageUnavailable,
		Message:   "Triage collaborator unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSummarizerFallbackError records a generative summarizer failure that the
// rule-based pipeline resolves silently.
func NewSummarizerFallbackError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSummarizerFallback,
		Message:   "Generative summarizer unavailable, rule-based pipeline used",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidConsultationInputError creates a non-retryable caller input error.
func NewInvalidConsultationInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidConsultationInput,
		Message:   "Consultation input rejected",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      "BUSINESS_RULE_VIOLATION",
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      "AUTHENTICATION_ERROR",
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes (identical
// on both sides so process models reference the same names).
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeNoEligibleAgents:         "NO_ELIGIBLE_AGENTS",
	ErrCodeAgentTimeout:             "AGENT_TIMEOUT",
	ErrCodeAgentCallFailed:          "AGENT_CALL_FAILED",
	ErrCodeAgentAuthFailure:         "AGENT_AUTH_FAILURE",
	ErrCodeResponseTooShort:         "RESPONSE_TOO_SHORT",
	ErrCodeNoSubstantiveContent:     "NO_SUBSTANTIVE_CONTENT",
	ErrCodeDuplicateResponse:        "DUPLICATE_RESPONSE",
	ErrCodePersistenceWriteFailed:   "PERSISTENCE_WRITE_FAILED",
	ErrCodeArchiveWriteFailed:       "ARCHIVE_WRITE_FAILED",
	ErrCodeNotificationSendFailed:   "NOTIFICATION_SEND_FAILED",
	ErrCodeTriageUnavailable:        "TRIAGE_UNAVAILABLE",
	ErrCodeSummarizerFallback:       "SUMMARIZER_FALLBACK",
	ErrCodeInvalidConsultationInput: "INVALID_CONSULTATION_INPUT",
}

// GetRetryCount returns the recommended job retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodePersistenceWriteFailed,
		ErrCodeArchiveWriteFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeTriageUnavailable:
		return 3 // Retryable technical errors

	default:
		return 0 // Terminal and per-agent outcomes: no job-level retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code) // Fallback
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "AGENT"):
		return "AGENT"
	case strings.Contains(codeStr, "RESPONSE") || strings.Contains(codeStr, "CONTENT") || strings.Contains(codeStr, "DUPLICATE"):
		return "VALIDATION"
	case strings.Contains(codeStr, "PERSISTENCE") || strings.Contains(codeStr, "ARCHIVE"):
		return "PERSISTENCE"
	case strings.Contains(codeStr, "SUMMARIZER"):
		return "SYNTHESIS"
	case strings.Contains(codeStr, "TRIAGE"):
		return "TRIAGE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	default:
		return "OTHER"
	}
}
