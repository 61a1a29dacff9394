// Package errs holds the error taxonomy shared by the domain services:
// validation, not found, storage and conflict failures.
package errs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ValidationError is malformed or out-of-range input.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Msg
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg)
}

// NotFoundError means a referenced product, line or other row does not exist.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// StorageError wraps a failure reported by the underlying store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ConflictError lists the products whose snapshot changed since it was read.
type ConflictError struct {
	ProductIDs []int64
}

func (e *ConflictError) Error() string {
	ids := make([]string, 0, len(e.ProductIDs))
	for _, id := range e.ProductIDs {
		ids = append(ids, fmt.Sprint(id))
	}
	return "conflict: snapshot changed concurrently for products " + strings.Join(ids, ",")
}

func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// Storage wraps err as a StorageError unless it already belongs to the
// taxonomy. pgx.ErrNoRows is left untouched so callers can map it.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) || IsValidation(err) || IsNotFound(err) || IsConflict(err) || IsStorage(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsStorage(err error) bool {
	var e *StorageError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}
