package errs

import "fmt"

// message is the formatted text shared by the errors below. Each error is a
// distinct type so callers can dispatch with errors.As.
type message struct {
	text string
}

func (m *message) Error() string {
	return m.text
}

func format(f string, args []any) message {
	return message{text: fmt.Sprintf(f, args...)}
}

// ConfigError is raised before any loop iteration when provider selection,
// credentials or the tool server registry are unusable.
type ConfigError struct{ message }

func ConfigErrorf(f string, args ...any) *ConfigError {
	return &ConfigError{format(f, args)}
}

// ValidationError rejects caller input: an empty query, a path-like thread
// id or a malformed message.
type ValidationError struct{ message }

func ValidationErrorf(f string, args ...any) *ValidationError {
	return &ValidationError{format(f, args)}
}

// NotFoundError reports a thread id with no checkpoint.
type NotFoundError struct{ message }

func NotFoundErrorf(f string, args ...any) *NotFoundError {
	return &NotFoundError{format(f, args)}
}

// InternalError covers checkpoint storage failures and broken loop state.
type InternalError struct{ message }

func InternalErrorf(f string, args ...any) *InternalError {
	return &InternalError{format(f, args)}
}

// CanceledError ends a query whose context was canceled between loop states.
type CanceledError struct{ message }

func CanceledErrorf(f string, args ...any) *CanceledError {
	return &CanceledError{format(f, args)}
}

var (
	_ error = &ConfigError{}
	_ error = &ValidationError{}
	_ error = &NotFoundError{}
	_ error = &InternalError{}
	_ error = &CanceledError{}
)
