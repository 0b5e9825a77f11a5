package processor

import (
	"context"
	"fmt"

	"github.com/GonzaloLabandera/elasticpath-sub029/internal/domain"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/gateway"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/history"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/logging"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/money"
)

// ModifyReservationProcessor brings the total authorized amount of an order
// (available reservations plus charges) to a requested target. Providers
// without a native modify capability are simulated with reserve and cancel.
type ModifyReservationProcessor struct {
	resolver     gateway.Resolver
	reservations *ReservationProcessor
	cancels      *CancelReservationProcessor
}

func NewModifyReservationProcessor(resolver gateway.Resolver, reservations *ReservationProcessor, cancels *CancelReservationProcessor) *ModifyReservationProcessor {
	return &ModifyReservationProcessor{
		resolver:     resolver,
		reservations: reservations,
		cancels:      cancels,
	}
}

// modification is one (reservation event, new target amount) pair.
type modification struct {
	event     *domain.PaymentEvent
	newAmount money.Money
}

func (p *ModifyReservationProcessor) ModifyReservation(ctx context.Context, req *Request) (*Response, error) {
	log := logging.FromContext(ctx)

	h := req.history()
	orderAmount := h.AvailableReservedAmount().Plus(h.ChargedAmount())
	difference := req.Amount.Minus(orderAmount)
	chargeable := h.ChargeableEvents()

	log.Info("modify reservation requested",
		"reference_id", req.OrderContext.ReferenceID,
		"requested", req.Amount.String(),
		"order_amount", orderAmount.String(),
		"difference", difference.String(),
	)

	if len(chargeable) == 0 {
		resp, err := p.reserveDifference(ctx, req, h, difference)
		if err != nil {
			return nil, fmt.Errorf("ModifyReservation: %w", err)
		}
		return resp, nil
	}

	switch {
	case difference.IsPositive():
		resp, err := p.increase(ctx, req, chargeable, difference)
		if err != nil {
			return nil, fmt.Errorf("ModifyReservation: %w", err)
		}
		return resp, nil
	case difference.IsNegative():
		resp, err := p.decrease(ctx, req, chargeable, difference.Abs())
		if err != nil {
			return nil, fmt.Errorf("ModifyReservation: %w", err)
		}
		return resp, nil
	default:
		return &Response{Success: true}, nil
	}
}

// reserveDifference covers orders with no open reservation yet: the whole
// difference is a fresh reservation across the instruments that still have
// headroom.
func (p *ModifyReservationProcessor) reserveDifference(ctx context.Context, req *Request, h *history.History, difference money.Money) (*Response, error) {
	reservable := h.ReservableInstruments(req.Instruments)

	instruments := make([]*domain.OrderPaymentInstrument, 0, len(reservable))
	for _, ri := range reservable {
		inst := *ri.Instrument
		if ri.Remaining != nil {
			remaining := ri.Remaining.Clone()
			inst.Limit = &remaining
		}
		instruments = append(instruments, &inst)
	}

	sub := *req
	sub.Amount = difference
	sub.Instruments = instruments

	resp, err := p.reservations.Reserve(ctx, &sub)
	if err != nil {
		return nil, fmt.Errorf("reserveDifference: %w", err)
	}
	return resp, nil
}

// increase raises the single unlimited instrument's reservation by the
// difference. Limited instruments are already at their cap, so more funds
// can only land on the unlimited one.
func (p *ModifyReservationProcessor) increase(ctx context.Context, req *Request, chargeable []history.ChargeableEvent, difference money.Money) (*Response, error) {
	if req.HasSingleReservePerPI {
		return &Response{
			Success:         false,
			ExternalMessage: "the reservation could not be increased",
			InternalMessage: "provider allows a single reservation per payment instrument; cannot increase an existing reservation",
		}, nil
	}

	unlimited, err := singleUnlimitedInstrument(req.Instruments)
	if err != nil {
		return nil, fmt.Errorf("increase: %w", err)
	}

	var target *history.ChargeableEvent
	for i := range chargeable {
		ce := &chargeable[i]
		if ce.Event.Instrument != nil && ce.Event.Instrument.GUID == unlimited.GUID {
			target = ce
			break
		}
	}
	if target == nil {
		return nil, domain.Fatal(fmt.Errorf("increase: no open reservation on unlimited instrument %s: %w", unlimited.GUID, domain.ErrLedgerInconsistent))
	}

	mods := []modification{{event: target.Event, newAmount: target.Amount.Plus(difference)}}
	return p.apply(ctx, req, mods)
}

// decrease walks the open reservations in order, zeroing or partially
// reducing each until the excess is consumed. Anything left after the walk
// means the ledger disagrees with the requested amount.
func (p *ModifyReservationProcessor) decrease(ctx context.Context, req *Request, chargeable []history.ChargeableEvent, amountToDecrease money.Money) (*Response, error) {
	var mods []modification
	for _, ce := range chargeable {
		if !amountToDecrease.HasBalance() {
			break
		}
		if ce.Amount.Compare(amountToDecrease) <= 0 {
			mods = append(mods, modification{event: ce.Event, newAmount: money.Zero(req.currency())})
			amountToDecrease.Decrease(ce.Amount)
		} else {
			mods = append(mods, modification{event: ce.Event, newAmount: ce.Amount.Minus(amountToDecrease)})
			amountToDecrease.ResetToZero()
		}
	}
	if amountToDecrease.HasBalance() {
		return nil, domain.Fatal(fmt.Errorf("decrease: %s left after walking all reservations: %w", amountToDecrease, domain.ErrLedgerInconsistent))
	}
	return p.apply(ctx, req, mods)
}

// apply executes the per-event modifications and judges the whole request:
// the target must not exceed what was ever authorized on the order.
func (p *ModifyReservationProcessor) apply(ctx context.Context, req *Request, mods []modification) (*Response, error) {
	var events []*domain.PaymentEvent
	for _, m := range mods {
		evs, err := p.applyOne(ctx, req, m)
		if err != nil {
			return nil, fmt.Errorf("apply: %w", err)
		}
		events = append(events, evs...)
	}

	h := req.historyWith(events)
	authorized := h.AvailableReservedAmount().Plus(h.ChargedAmount()).Plus(h.RefundedAmount())
	success := req.Amount.Compare(authorized) <= 0

	return buildResponse(events, success,
		"the reservation could not be modified",
		fmt.Sprintf("authorized %s is below requested %s", authorized, req.Amount),
	), nil
}

func (p *ModifyReservationProcessor) applyOne(ctx context.Context, req *Request, m modification) ([]*domain.PaymentEvent, error) {
	if m.newAmount.IsNegative() {
		return nil, domain.Fatal(fmt.Errorf("applyOne: new amount %s: %w", m.newAmount, domain.ErrInvalidAmount))
	}

	// A zero target releases the reservation outright.
	if !m.newAmount.HasBalance() {
		e, err := p.cancels.cancelOne(ctx, m.event, req)
		if err != nil {
			return nil, fmt.Errorf("applyOne: %w", err)
		}
		return []*domain.PaymentEvent{e}, nil
	}

	provider, err := resolveProvider(ctx, p.resolver, m.event.Instrument)
	if err != nil {
		return nil, fmt.Errorf("applyOne: %w", err)
	}

	if cap, ok := provider.Capability(gateway.KindModifyReserve); ok {
		e := invokeCapability(ctx, cap, domain.PaymentTypeModifyReserve, m.newAmount, m.event.Instrument, m.event, req, m.event.OriginalInstrument)
		if e.Status == domain.PaymentStatusFailed && m.event.Amount.Compare(m.newAmount) >= 0 {
			// The gateway refused, but the existing hold already covers the
			// lower target; account for the target without a gateway call.
			skipped := newEvent(domain.PaymentTypeModifyReserve, domain.PaymentStatusSkipped, m.newAmount, m.event.Instrument, m.event, req, m.event.OriginalInstrument)
			skipped.InternalMessage = e.InternalMessage
			return []*domain.PaymentEvent{skipped}, nil
		}
		return []*domain.PaymentEvent{e}, nil
	}

	return p.simulate(ctx, req, m)
}

// simulate composes a modify out of reserve and cancel for providers
// without a native modify capability. Increases reserve the delta on top;
// decreases reserve the lower target fresh and release the original, so
// the net reserved amount lands correctly either way.
func (p *ModifyReservationProcessor) simulate(ctx context.Context, req *Request, m modification) ([]*domain.PaymentEvent, error) {
	switch m.newAmount.Compare(m.event.Amount) {
	case 1:
		delta := m.newAmount.Minus(m.event.Amount)
		e, err := p.reservations.ReserveToSimulateModify(ctx, delta, m.event.Instrument, req)
		if err != nil {
			return nil, fmt.Errorf("simulate: %w", err)
		}
		return []*domain.PaymentEvent{e}, nil
	case -1:
		fresh, err := p.reservations.ReserveToSimulateModify(ctx, m.newAmount, m.event.Instrument, req)
		if err != nil {
			return nil, fmt.Errorf("simulate: %w", err)
		}
		if !fresh.Effective() {
			// The lower hold never materialized; keep the original so the
			// order does not lose its funds.
			return []*domain.PaymentEvent{fresh}, nil
		}
		cancel, err := p.cancels.cancelOne(ctx, m.event, req)
		if err != nil {
			return nil, fmt.Errorf("simulate: %w", err)
		}
		return []*domain.PaymentEvent{fresh, cancel}, nil
	default:
		return nil, nil
	}
}

// singleUnlimitedInstrument returns the one instrument without a limit.
// Zero or multiple unlimited instruments indicate bad caller data, not a
// gateway condition.
func singleUnlimitedInstrument(instruments []*domain.OrderPaymentInstrument) (*domain.OrderPaymentInstrument, error) {
	var unlimited *domain.OrderPaymentInstrument
	for _, inst := range instruments {
		if inst.Limited() {
			continue
		}
		if unlimited != nil {
			return nil, domain.Fatal(fmt.Errorf("instruments %s and %s: %w", unlimited.GUID, inst.GUID, domain.ErrAmbiguousUnlimited))
		}
		unlimited = inst
	}
	if unlimited == nil {
		return nil, domain.Fatal(domain.ErrNoUnlimitedInstrument)
	}
	return unlimited, nil
}
