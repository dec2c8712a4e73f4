// internal/executor/errors.go
package executor

// ErrorCode is a string type used for structured reporting from the executor.
type ErrorCode string

const (
	// -- Plan validation --
	ErrCodeInvalidCoordinate  ErrorCode = "INVALID_COORDINATE"
	ErrCodeMissingText        ErrorCode = "MISSING_TEXT"
	ErrCodeUnrecognizedAction ErrorCode = "UNRECOGNIZED_ACTION"
	ErrCodeNoAction           ErrorCode = "NO_ACTION"
	ErrCodeInferenceFailure   ErrorCode = "INFERENCE_FAILURE"

	// -- Dispatch --
	ErrCodeAuditFailure     ErrorCode = "AUDIT_FAILURE"
	ErrCodeExecutionFailure ErrorCode = "EXECUTION_FAILURE"
	ErrCodeScreenUnknown    ErrorCode = "SCREEN_SIZE_UNAVAILABLE"
	ErrCodeOperatorAbort    ErrorCode = "OPERATOR_ABORT"

	// -- Internal --
	ErrCodeExecutorPanic ErrorCode = "EXECUTOR_PANIC"
)
