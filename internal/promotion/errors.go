package promotion

import (
	"errors"
	"fmt"
)

// Precondition rejections. These surface directly to the caller with no
// catalog work done and no audit entry written.
var (
	ErrNotFound        = errors.New("staging product not found")
	ErrNotApproved     = errors.New("product not approved")
	ErrAlreadyPromoted = errors.New("product already promoted")
)

// ConnectionError means the catalog store could not be reached when opening
// the transaction. No audit entry is written; nothing was attempted.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("catalog store unavailable: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ResolutionError means find-or-create of a referenced entity failed inside
// the transaction. The transaction is rolled back and a failure audit entry
// is written.
type ResolutionError struct {
	Entity string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve %s: %v", e.Entity, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// TxError means an insert or the commit failed inside the catalog
// transaction. The transaction is rolled back and a failure audit entry is
// written.
type TxError struct {
	Op  string
	Err error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("catalog %s failed: %v", e.Op, e.Err)
}

func (e *TxError) Unwrap() error { return e.Err }
