package insights

import (
	"errors"
)

// ErrNotTrained is returned by Predict while the agent has no model.
var ErrNotTrained = errors.New("complication model not trained: train the model first")

// ConfigurationError reports training input that cannot produce a model.
type ConfigurationError struct {
	reason error
}

func (e ConfigurationError) Error() string {
	return "configuration error: " + e.reason.Error()
}

func (e ConfigurationError) Unwrap() error {
	return e.reason
}

func IsConfigurationError(err error) bool {
	var ce ConfigurationError
	return errors.As(err, &ce)
}

// ValidationError reports a malformed request payload.
type ValidationError struct {
	reason error
}

func NewValidationError(reason error) ValidationError {
	return ValidationError{reason: reason}
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
