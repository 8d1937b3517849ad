package services

import "errors"

// ErrJoinCodeExhausted is returned when no unused join code was found.
var ErrJoinCodeExhausted = errors.New("could not allocate a unique join code")

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

// ExternalServiceError wraps a failure of the AI provider or another
// collaborator outside this process.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string { return e.Service + ": " + e.Err.Error() }

func (e *ExternalServiceError) Unwrap() error { return e.Err }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }
