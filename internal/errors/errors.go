// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError names the fields that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Fields, ", "))
}

func NewValidation(fields ...string) error {
	return &ValidationError{Fields: fields}
}

// NotFoundError is returned when an entity does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Entity, e.ID)
}

func NewNotFound(entity string, id fmt.Stringer) error {
	return &NotFoundError{Entity: entity, ID: id.String()}
}

func NewCampaignNotFound(id fmt.Stringer) error {
	return NewNotFound("campaign", id)
}

func NewTemplateNotFound(id fmt.Stringer) error {
	return NewNotFound("template", id)
}

// ConflictError means the request clashes with current state.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

func NewConflict(format string, args ...any) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

// ChannelError is one recipient's dispatch failure.
type ChannelError struct {
	Channel string
	Err     error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("%s dispatch: %v", e.Channel, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

func NewChannelError(channel string, err error) error {
	return &ChannelError{Channel: channel, Err: err}
}

// InfrastructureError wraps store or transport outages.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// Infra wraps err unless it is nil or already part of the taxonomy.
func Infra(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) || IsConflict(err) || IsValidation(err) || IsInfrastructure(err) {
		return err
	}
	return &InfrastructureError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

func IsChannel(err error) bool {
	var e *ChannelError
	return errors.As(err, &e)
}

func IsInfrastructure(err error) bool {
	var e *InfrastructureError
	return errors.As(err, &e)
}
