package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrSourceNotFound    = errors.New("source image not found")
	ErrOutOfBounds       = errors.New("watermark is outside of the image box")
	ErrEngineFailure     = errors.New("image engine failure")
	ErrStorageFailure    = errors.New("cache storage failure")
	ErrRemoteFailure     = errors.New("remote service failure")
	ErrNilDependency     = errors.New("required dependency is nil")
	ErrInvalidConfig     = errors.New("invalid configuration")
)

// ParamError reports a rejected operation or placeholder field.
type ParamError struct {
	Op     string
	Field  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s: wrong %s %s: %s", ErrInvalidParameters, e.Op, e.Field, e.Reason)
}

func (e *ParamError) Unwrap() error {
	return ErrInvalidParameters
}

func paramErr(op, field, reason string) error {
	return &ParamError{Op: op, Field: field, Reason: reason}
}
