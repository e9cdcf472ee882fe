package config

import (
	"fmt"
	"strings"
)

// TypeMismatchError reports a value whose kind is not accepted where it is used.
type TypeMismatchError struct {
	// Option is the dotted path of the option, empty for bare value access.
	Option string

	// Expected is the set of accepted kinds.
	Expected KindSet

	// Got names the kind (or Go type) that was supplied.
	Got string
}

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	if e.Option == "" {
		return fmt.Sprintf("type mismatch: expected %s, got %s", e.Expected, e.Got)
	}
	return fmt.Sprintf("option %s: type mismatch: expected %s, got %s", e.Option, e.Expected, e.Got)
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	// Source is the document the error was found in, if known.
	Source string

	// Path is the dotted option path.
	Path string

	// Message is the error message.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Source != "" {
		b.WriteString(e.Source)
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
