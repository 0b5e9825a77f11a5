package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInvalidAmount         = errors.New("amount must not be negative")
	ErrLimitsExceedTotal     = errors.New("instrument limits exceed requested amount")
	ErrNoUnlimitedInstrument = errors.New("no unlimited payment instrument available")
	ErrAmbiguousUnlimited    = errors.New("more than one unlimited payment instrument selected")
	ErrLedgerInconsistent    = errors.New("ledger state inconsistent with requested amount")
	ErrNotChargeEvent        = errors.New("event is not an approved charge")
)

// FatalError marks an invariant violation: a logic or data-integrity bug
// upstream rather than a gateway problem. Processors abort the whole call
// when one is raised and never convert it into a payment event.
type FatalError struct {
	err error
}

func Fatal(err error) error {
	return &FatalError{err: err}
}

func Fatalf(format string, args ...any) error {
	return &FatalError{err: fmt.Errorf(format, args...)}
}

func (e *FatalError) Error() string {
	return "fatal: " + e.err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.err
}

func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
