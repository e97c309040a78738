package domain

import "errors"

// Failure taxonomy. Callers wrap these with fmt.Errorf("...: %w") and test
// with errors.Is. A metric whose denominator is structurally zero is not an
// error: its value is NaN and the row is still emitted.
var (
	// ErrInputShape marks mismatched field or coordinate shapes. Fatal to the task.
	ErrInputShape = errors.New("input shape mismatch")

	// ErrDataUnavailable marks a field source that cannot supply data for a task.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrConfiguration marks a malformed metric request or plan. Fatal to the run.
	ErrConfiguration = errors.New("invalid configuration")
)

// Failure reasons used as log attributes and metric labels.
const (
	ReasonDataUnavailable = "data_unavailable"
	ReasonInputShape      = "input_shape"
	ReasonConfiguration   = "configuration"
	ReasonSink            = "sink"
	ReasonPanic           = "panic"
	ReasonOther           = "error"
)

// FailureReason classifies a task error into one of the Reason constants.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrDataUnavailable):
		return ReasonDataUnavailable
	case errors.Is(err, ErrInputShape):
		return ReasonInputShape
	case errors.Is(err, ErrConfiguration):
		return ReasonConfiguration
	default:
		return ReasonOther
	}
}
