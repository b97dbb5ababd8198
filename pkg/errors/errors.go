package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeAuthorization  ErrorType = "authorization"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeConflict       ErrorType = "conflict"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeInternal       ErrorType = "internal"
	ErrorTypeExternal       ErrorType = "external"
	ErrorTypeTimeout        ErrorType = "timeout"

	// ErrorTypePathEscape marks a write target rejected by the path policy (C1).
	ErrorTypePathEscape ErrorType = "path_escape"
	// ErrorTypeDisallowedCommand marks a child-process invocation rejected by
	// the command allowlist (C2).
	ErrorTypeDisallowedCommand ErrorType = "disallowed_command"
	// ErrorTypeApprovalMissing means create_tickets was asked to execute
	// against a planId with no matching approval on disk.
	ErrorTypeApprovalMissing ErrorType = "approval_missing"
	// ErrorTypePlanHashMismatch means the approval's planHash no longer
	// matches the pending plan's current planHash.
	ErrorTypePlanHashMismatch ErrorType = "plan_hash_mismatch"
	// ErrorTypeTargetMismatch means the approval's repoFullName does not
	// match the pending plan's repoFullName (cross-target replay).
	ErrorTypeTargetMismatch ErrorType = "target_mismatch"
	// ErrorTypeIntegrityBroken means audit-chain verification found a hash
	// mismatch.
	ErrorTypeIntegrityBroken ErrorType = "integrity_broken"
)

// AppError represents an application error with context
type AppError struct {
	Type      ErrorType         `json:"type"`
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id"`
	Timestamp time.Time         `json:"timestamp"`
	Cause     error             `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Details:   make(map[string]string),
		Timestamp: time.Now(),
	}
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithRequestID adds a request ID to the error
func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// Common error constructors
func NewValidationError(message string) *AppError {
	return NewAppError(ErrorTypeValidation, "VALIDATION_ERROR", message)
}

func NewAuthenticationError(message string) *AppError {
	return NewAppError(ErrorTypeAuthentication, "AUTHENTICATION_ERROR", message)
}

func NewAuthorizationError(message string) *AppError {
	return NewAppError(ErrorTypeAuthorization, "AUTHORIZATION_ERROR", message)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrorTypeNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource))
}

func NewConflictError(message string) *AppError {
	return NewAppError(ErrorTypeConflict, "CONFLICT", message)
}

func NewRateLimitError(message string) *AppError {
	return NewAppError(ErrorTypeRateLimit, "RATE_LIMIT_EXCEEDED", message)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, "INTERNAL_ERROR", message)
}

func NewExternalError(service, message string) *AppError {
	return NewAppError(ErrorTypeExternal, "EXTERNAL_SERVICE_ERROR", message).
		WithDetail("service", service)
}

func NewTimeoutError(operation string) *AppError {
	return NewAppError(ErrorTypeTimeout, "TIMEOUT", fmt.Sprintf("%s timed out", operation))
}

// NewPathEscapeError reports a write target that resolved outside root.
func NewPathEscapeError(target, root string) *AppError {
	return NewAppError(ErrorTypePathEscape, "PATH_ESCAPE", fmt.Sprintf("%q resolves outside %q", target, root)).
		WithDetail("target", target).
		WithDetail("root", root)
}

// NewDisallowedCommandError reports a command line matching no allowlist entry.
func NewDisallowedCommandError(commandLine string) *AppError {
	return NewAppError(ErrorTypeDisallowedCommand, "DISALLOWED_COMMAND", "command does not match any allowlist entry").
		WithDetail("command", commandLine)
}

// NewScannerMissingError reports a scanner binary not found on PATH. Non-fatal:
// the runner records a meta-finding and continues.
func NewScannerMissingError(scanner, message string) *AppError {
	return NewAppError(ErrorTypeExternal, "SCANNER_MISSING", message).
		WithDetail("scanner", scanner)
}

// NewScannerError reports a scanner that ran but whose output could not be
// used. Non-fatal: the runner records the raw evidence and continues.
func NewScannerError(scanner, message string) *AppError {
	return NewAppError(ErrorTypeExternal, "SCANNER_ERROR", message).
		WithDetail("scanner", scanner)
}

// NewApprovalMissingError reports an execute call whose approvedPlanId has
// no matching approval record on disk.
func NewApprovalMissingError(planID string) *AppError {
	return NewAppError(ErrorTypeApprovalMissing, "APPROVAL_MISSING", fmt.Sprintf("no approval found for plan %q", planID)).
		WithDetail("plan_id", planID)
}

// NewPlanHashMismatchError reports that a pending plan was modified after approval.
func NewPlanHashMismatchError(planID string) *AppError {
	return NewAppError(ErrorTypePlanHashMismatch, "PLAN_HASH_MISMATCH", "approval planHash no longer matches the pending plan").
		WithDetail("plan_id", planID)
}

// NewTargetMismatchError reports a cross-target replay attempt: the
// approval's repoFullName does not match the pending plan's.
func NewTargetMismatchError(planID, approvalRepo, pendingRepo string) *AppError {
	return NewAppError(ErrorTypeTargetMismatch, "TARGET_MISMATCH", "approval repoFullName does not match pending plan repoFullName").
		WithDetail("plan_id", planID).
		WithDetail("approval_repo", approvalRepo).
		WithDetail("pending_repo", pendingRepo)
}

// NewIntegrityBrokenError reports a hash mismatch found during audit-chain verification.
func NewIntegrityBrokenError(brokenAt int, reason string) *AppError {
	return NewAppError(ErrorTypeIntegrityBroken, "INTEGRITY_BROKEN", reason).
		WithDetail("broken_at", fmt.Sprintf("%d", brokenAt))
}

func NewScanError(runID, message string) *AppError {
	return NewAppError(ErrorTypeInternal, "SCAN_ERROR", message).
		WithDetail("run_id", runID)
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Type == errorType
	}
	return false
}

// GetCode returns the error code if it's an AppError
func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN_ERROR"
}

// GetType returns the error type if it's an AppError
func GetType(err error) ErrorType {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Type
	}
	return ErrorTypeInternal
}