package ledger

import (
	"errors"
	"fmt"
)

// ErrInsufficientFunds is the fault raised when a debit would drive a
// balance negative. By the time a caller sees it, the speculative
// store writes of the failed operation have already been rolled back;
// the intent record for the attempt stays in the log.
var ErrInsufficientFunds = errors.New("ledger: insufficient funds")

// InsufficientFundsError carries the rejected request details.
type InsufficientFundsError struct {
	Account   string
	Balance   int64
	Requested int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("ledger: insufficient funds on %s: balance %d, requested %d",
		e.Account, e.Balance, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}
