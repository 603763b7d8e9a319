package domain

import (
	"errors"
	"fmt"
)

// ErrModuleNotFound is returned when no source file matches a logical name.
var ErrModuleNotFound = errors.New("module not found")

// CompileError reports a transpilation failure for one source module.
type CompileError struct {
	Source string
	Err    error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s: %v", e.Source, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// LoadError reports that a compiled artifact could not be read, parsed or
// evaluated, or does not export a handler.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// InvocationError is a failure reported by (or about) a handler: a callback
// error, a rejected promise, a thrown exception or an unusable response.
type InvocationError struct {
	Message string
}

func (e *InvocationError) Error() string { return e.Message }
