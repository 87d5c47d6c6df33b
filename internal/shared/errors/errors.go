package errors

import "errors"

// Domain errors
var (
	// Parse errors
	ErrUnrecognizedFormat = errors.New("unrecognized proxy configuration format")
	ErrNoOutbounds        = errors.New("configuration has no usable outbound")
	ErrEmptyInput         = errors.New("input cannot be empty")

	// Evaluation errors
	ErrEvaluation      = errors.New("evaluation failed")
	ErrInvalidSnapshot = errors.New("invalid wifi network snapshot")
	ErrNoResponse      = errors.New("no response from target")

	// Aggregation errors
	ErrAggregation = errors.New("aggregation failed")

	// Session errors
	ErrInvalidTransition = errors.New("invalid session state transition")
	ErrSessionTerminated = errors.New("session already terminated")
	ErrUnsupportedTarget = errors.New("unsupported scan target type")
	ErrSessionNotFound   = errors.New("scan session not found")
	ErrAllEvaluatorsFail = errors.New("all evaluators failed")

	// Repository errors
	ErrRepositoryOperation   = errors.New("repository operation failed")
	ErrScanResultNotFound    = errors.New("scan result not found")
	ErrSerializationFailed   = errors.New("serialization failed")
	ErrDeserializationFailed = errors.New("deserialization failed")
)
