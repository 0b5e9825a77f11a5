package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/GonzaloLabandera/elasticpath-sub029/internal/money"
)

type PaymentType string

const (
	PaymentTypeReserve       PaymentType = "RESERVE"
	PaymentTypeModifyReserve PaymentType = "MODIFY_RESERVE"
	PaymentTypeCancelReserve PaymentType = "CANCEL_RESERVE"
	PaymentTypeCharge        PaymentType = "CHARGE"
	PaymentTypeCredit        PaymentType = "CREDIT"
	PaymentTypeManualCredit  PaymentType = "MANUAL_CREDIT"
	PaymentTypeReverseCharge PaymentType = "REVERSE_CHARGE"
)

type PaymentStatus string

const (
	PaymentStatusApproved PaymentStatus = "APPROVED"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	// PaymentStatusSkipped records an outcome taken without a gateway call,
	// e.g. reserving against a provider that has no reserve capability.
	// Ledger folds treat skipped events as effective, like approved ones.
	PaymentStatusSkipped PaymentStatus = "SKIPPED"
)

// PaymentEvent is one immutable entry in an order's payment ledger. Events
// are created only by the processors as the outcome of a single
// orchestration step and are never mutated or deleted afterwards.
type PaymentEvent struct {
	GUID uuid.UUID
	// ParentGUID links a follow-on event (charge, cancel, modify, credit)
	// to the event it acted on.
	ParentGUID *uuid.UUID
	Type       PaymentType
	Status     PaymentStatus
	Amount     money.Money
	Instrument *OrderPaymentInstrument
	// ReferenceID is the order number the event belongs to.
	ReferenceID string
	// OriginalInstrument marks events produced against an instrument the
	// shopper selected, as opposed to follow-up reservations the engine
	// created on its own.
	OriginalInstrument bool
	TemporaryFailure   bool
	ExternalMessage    string
	InternalMessage    string
	// EventData is the opaque key/value payload the gateway returned for
	// this step; it is replayed to the gateway on follow-on calls.
	EventData map[string]string
	CreatedAt time.Time
}

// Effective reports whether the event's outcome holds: approved events and
// skipped events both count when folding the ledger, failed ones never do.
func (e *PaymentEvent) Effective() bool {
	return e.Status != PaymentStatusFailed
}
