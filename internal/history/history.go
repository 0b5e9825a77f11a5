// Package history derives aggregate facts from an order's payment ledger.
// Every query is a pure fold over the ordered event sequence; nothing here
// mutates the ledger, and no processor may learn "current state" any other
// way.
package history

import (
	"github.com/google/uuid"

	"github.com/GonzaloLabandera/elasticpath-sub029/internal/domain"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/money"
)

type History struct {
	ledger   []*domain.PaymentEvent
	currency money.Currency
}

func New(ledger []*domain.PaymentEvent, currency money.Currency) *History {
	return &History{ledger: ledger, currency: currency}
}

// ChargeableEvent pairs a still-open reservation event with the amount that
// can currently be charged against it.
type ChargeableEvent struct {
	Event  *domain.PaymentEvent
	Amount money.Money
}

// RefundableEvent pairs a charge event with its remaining refundable
// amount.
type RefundableEvent struct {
	Event  *domain.PaymentEvent
	Amount money.Money
}

// ReservableInstrument is an instrument that can still take reservations.
// Remaining is nil for unlimited instruments.
type ReservableInstrument struct {
	Instrument *domain.OrderPaymentInstrument
	Remaining  *money.Money
}

// openReservation tracks one reservation through its parent-GUID chain.
// Modify events replace the reservation in place; a charge or cancel closes
// it. A charge always consumes the whole reservation: when the engine
// charges less than was reserved it re-reserves the remainder as a new
// event, so the fold must not count the old reservation's leftover again.
type openReservation struct {
	event    *domain.PaymentEvent
	reserved money.Money
	closed   bool
}

func (h *History) openReservations() []*openReservation {
	byGUID := make(map[uuid.UUID]*openReservation)
	var ordered []*openReservation

	for _, e := range h.ledger {
		if !e.Effective() {
			continue
		}
		switch e.Type {
		case domain.PaymentTypeReserve:
			r := &openReservation{event: e, reserved: e.Amount.Clone()}
			byGUID[e.GUID] = r
			ordered = append(ordered, r)
		case domain.PaymentTypeModifyReserve:
			if e.ParentGUID == nil {
				continue
			}
			if r, ok := byGUID[*e.ParentGUID]; ok && !r.closed {
				delete(byGUID, r.event.GUID)
				r.event = e
				r.reserved = e.Amount.Clone()
				byGUID[e.GUID] = r
			}
		case domain.PaymentTypeCancelReserve, domain.PaymentTypeCharge:
			if e.ParentGUID == nil {
				continue
			}
			if r, ok := byGUID[*e.ParentGUID]; ok {
				r.closed = true
				delete(byGUID, *e.ParentGUID)
			}
		}
	}

	open := make([]*openReservation, 0, len(ordered))
	for _, r := range ordered {
		if !r.closed {
			open = append(open, r)
		}
	}
	return open
}

// AvailableReservedAmount is the total still held across open reservations.
func (h *History) AvailableReservedAmount() money.Money {
	total := money.Zero(h.currency)
	for _, r := range h.openReservations() {
		total = total.Plus(r.reserved)
	}
	return total
}

// ChargedAmount is the total settled: effective charges minus effective
// charge reversals.
func (h *History) ChargedAmount() money.Money {
	total := money.Zero(h.currency)
	for _, e := range h.ledger {
		if !e.Effective() {
			continue
		}
		switch e.Type {
		case domain.PaymentTypeCharge:
			total = total.Plus(e.Amount)
		case domain.PaymentTypeReverseCharge:
			total = total.Minus(e.Amount)
		}
	}
	return total
}

// RefundedAmount is the total returned to the shopper via credits, manual
// or gateway-backed.
func (h *History) RefundedAmount() money.Money {
	total := money.Zero(h.currency)
	for _, e := range h.ledger {
		if !e.Effective() {
			continue
		}
		switch e.Type {
		case domain.PaymentTypeCredit, domain.PaymentTypeManualCredit:
			total = total.Plus(e.Amount)
		}
	}
	return total
}

// ChargeableEvents returns the open reservation events in ledger order,
// each with the amount currently chargeable against it.
func (h *History) ChargeableEvents() []ChargeableEvent {
	open := h.openReservations()
	out := make([]ChargeableEvent, 0, len(open))
	for _, r := range open {
		if r.reserved.IsPositive() {
			out = append(out, ChargeableEvent{Event: r.event, Amount: r.reserved.Clone()})
		}
	}
	return out
}

// RefundableEvents returns, in ledger order, each charge event that still
// has a refundable remainder, with that remainder. Credits and reversals
// are attributed to their parent charge through ParentGUID.
func (h *History) RefundableEvents() []RefundableEvent {
	type refundable struct {
		event     *domain.PaymentEvent
		remaining money.Money
	}
	byGUID := make(map[uuid.UUID]*refundable)
	var ordered []*refundable

	for _, e := range h.ledger {
		if !e.Effective() {
			continue
		}
		switch e.Type {
		case domain.PaymentTypeCharge:
			r := &refundable{event: e, remaining: e.Amount.Clone()}
			byGUID[e.GUID] = r
			ordered = append(ordered, r)
		case domain.PaymentTypeCredit, domain.PaymentTypeManualCredit, domain.PaymentTypeReverseCharge:
			if e.ParentGUID == nil {
				continue
			}
			if r, ok := byGUID[*e.ParentGUID]; ok {
				r.remaining.Decrease(e.Amount)
			}
		}
	}

	out := make([]RefundableEvent, 0, len(ordered))
	for _, r := range ordered {
		if r.remaining.IsPositive() {
			out = append(out, RefundableEvent{Event: r.event, Amount: r.remaining.Clone()})
		}
	}
	return out
}

// ReservableInstruments filters the given instruments down to those that
// can still take a reservation, with the remaining headroom per the
// instrument's limit. Unlimited instruments are always reservable.
func (h *History) ReservableInstruments(instruments []*domain.OrderPaymentInstrument) []ReservableInstrument {
	reservedPer := make(map[uuid.UUID]money.Money)
	for _, r := range h.openReservations() {
		if r.event.Instrument == nil {
			continue
		}
		guid := r.event.Instrument.GUID
		cur, ok := reservedPer[guid]
		if !ok {
			cur = money.Zero(h.currency)
		}
		reservedPer[guid] = cur.Plus(r.reserved)
	}

	out := make([]ReservableInstrument, 0, len(instruments))
	for _, inst := range instruments {
		if !inst.Limited() {
			out = append(out, ReservableInstrument{Instrument: inst})
			continue
		}
		remaining := inst.Limit.Clone()
		if reserved, ok := reservedPer[inst.GUID]; ok {
			remaining.Decrease(reserved)
		}
		if remaining.IsPositive() {
			out = append(out, ReservableInstrument{Instrument: inst, Remaining: &remaining})
		}
	}
	return out
}
