package domain

import "errors"

// ErrInvalidTransition is returned when a status update would move a
// record backward along its lifecycle, or the record is not in the
// expected state. Callers treat it as a data error: the record is left
// untouched and the operation is not retried.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")
