package models

import "fmt"

// DataAccessError is returned when the message store cannot be read or has an unexpected schema
type DataAccessError struct {
	Locator string
	Err     error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("data access failed for %s: %v", e.Locator, e.Err)
}

func (e *DataAccessError) Unwrap() error {
	return e.Err
}

// TrainingError is returned when a classifier cannot be fit.
// Fold is -1 for the final refit on the whole training split.
type TrainingError struct {
	Category string
	Fold     int
	Err      error
}

func (e *TrainingError) Error() string {
	if e.Fold < 0 {
		return fmt.Sprintf("training failed for category %q: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("training failed for category %q in fold %d: %v", e.Category, e.Fold, e.Err)
}

func (e *TrainingError) Unwrap() error {
	return e.Err
}

// SerializationError is returned when the trained artifact cannot be written or read
type SerializationError struct {
	Path string
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("model artifact %s: %v", e.Path, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}
