package txmgr

import (
	"errors"
	"fmt"
)

// ErrTransactionInConflict is returned when a transaction's write was
// rejected because another transaction's write to the same key won the
// race. It may be wrapped; test with errors.Is(err, ErrTransactionInConflict).
var ErrTransactionInConflict = errors.New("write attempt conflicts with another transaction")

type transactionInConflictError struct {
	txID uint64
}

func (e transactionInConflictError) Error() string {
	return fmt.Sprintf("transaction %d conflicts with another transaction", e.txID)
}

func (e transactionInConflictError) Is(err error) bool {
	if err == ErrTransactionInConflict {
		return true
	}
	downcasted, ok := err.(transactionInConflictError)
	return ok && downcasted == e
}

// Conflict wraps ErrTransactionInConflict with the conflicting
// transaction's ID for diagnostics.
func Conflict(txID uint64) error {
	return transactionInConflictError{txID: txID}
}
