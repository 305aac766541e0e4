package entstore

import (
	"fmt"

	"github.com/hupe1980/entstore/model"
)

// DecodeError indicates that a patch entry's payload could not be decoded
// during Apply. Entries applied before the failing one are not rolled back.
//
// The underlying codec error can be accessed via errors.Unwrap.
type DecodeError struct {
	ID      model.ObjectID
	Version model.Version
	cause   error
}

// NewDecodeError wraps a codec failure for the given row.
func NewDecodeError(id model.ObjectID, version model.Version, cause error) *DecodeError {
	return &DecodeError{ID: id, Version: version, cause: cause}
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode row %s at %s: %v", e.ID, e.Version, e.cause)
}

func (e *DecodeError) Unwrap() error { return e.cause }
