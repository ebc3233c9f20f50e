package service

import (
	"errors"
	"fmt"
)

// ErrDataUnavailable: у тика нет данных для сигнала. Не фатально.
var ErrDataUnavailable = errors.New("data unavailable")

var (
	ErrWarmingUp   = fmt.Errorf("%w: window warming up", ErrDataUnavailable)
	ErrBadBaseline = fmt.Errorf("%w: non-positive baseline price", ErrDataUnavailable)
)

var (
	ErrInvalidSample = errors.New("invalid sample")
	ErrOutOfOrder    = errors.New("sample older than latest")
)

// ValidationError: значение вне допустимого диапазона.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// InconsistencyError: нарушен порядок exit < entry < invalidation.
type InconsistencyError struct {
	Field  string
	Reason string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}
