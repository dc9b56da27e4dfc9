package core

import (
	"errors"
	"fmt"
)

var (
	ErrNonPositiveSemiDefinite = errors.New("covariance matrix is not positive semi-definite")
	ErrDimensionMismatch       = errors.New("dimension mismatch")
	ErrRatingOutOfRange        = errors.New("rating index out of range")
	ErrInvalidProbabilities    = errors.New("invalid migration probabilities")
	ErrInvalidParameter        = errors.New("invalid parameter")
	ErrNonFiniteAssetValue     = errors.New("asset value is not finite")
	ErrEmptyPortfolio          = errors.New("portfolio has no borrowers")
)

// ConfigurationError is raised while the portfolio is being wired, before any trial runs.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NumericalError is raised from inside a trial when the factor model produces an unusable value.
type NumericalError struct {
	Op    string
	Value float64
	Err   error
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("numerical error in %s (value %v): %v", e.Op, e.Value, e.Err)
}

func (e *NumericalError) Unwrap() error {
	return e.Err
}

func configErrorf(op string, sentinel error, format string, args ...any) error {
	return &ConfigurationError{Op: op, Err: fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))}
}

func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

func IsNumericalError(err error) bool {
	var ne *NumericalError
	return errors.As(err, &ne)
}
