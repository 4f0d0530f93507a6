// Package framework provides the module development framework used by
// modules registered with the runtime in system/core.
package framework

import (
	"errors"
	"fmt"
)

// ErrInvalidManifest is returned when a ModuleBuilder is assembled without a
// name or an Init function.
var ErrInvalidManifest = errors.New("invalid manifest")

// ServiceError wraps an error with module context.
type ServiceError struct {
	Service string // Module name
	Op      string // Operation that failed
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Service, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(service, op string, err error) *ServiceError {
	return &ServiceError{
		Service: service,
		Op:      op,
		Err:     err,
	}
}

// WrapServiceError wraps an error with module context. If err is nil,
// returns nil.
func WrapServiceError(service, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewServiceError(service, op, err)
}

// WrapModuleError wraps an error with module context. Alias of
// WrapServiceError kept under a module-facing name for ModuleBuilder.
func WrapModuleError(module, op string, err error) error {
	return WrapServiceError(module, op, err)
}
