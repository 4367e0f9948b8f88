package errs

import "fmt"

// ModelError wraps a failed model invocation. It terminates the current query
// but leaves the thread resumable.
type ModelError struct {
	Provider string
	Model    string
	cause    error
}

func (v *ModelError) Error() string {
	return fmt.Sprintf("model %s/%s failed: %v", v.Provider, v.Model, v.cause)
}

func (v *ModelError) Unwrap() error {
	return v.cause
}

func NewModelError(provider, model string, cause error) *ModelError {
	return &ModelError{
		Provider: provider,
		Model:    model,
		cause:    cause,
	}
}

var _ error = &ModelError{}
