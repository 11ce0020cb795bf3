// pkg/model/errors.go
package model

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField is returned when an identifying field is empty
	ErrMissingField = errors.New("missing required field")
	// ErrNoProduction is returned when an activity has no production exchange
	ErrNoProduction = errors.New("activity has no production exchange")
	// ErrMultipleProduction is returned when an activity has more than one production exchange
	ErrMultipleProduction = errors.New("activity has more than one production exchange")
)

// MissingFieldError names the record and field that failed validation
type MissingFieldError struct {
	Kind  string
	Name  string
	Field Field
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s %q: %s: %q", e.Kind, e.Name, ErrMissingField, e.Field)
}

func (e *MissingFieldError) Unwrap() error {
	return ErrMissingField
}
