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

// ChargeProcessor settles an order's reservations. It tops up reservations
// when they fall short, splits the charge across open reservations, retains
// leftover holds for non-final payments, and recovers from failed charges
// by treating the reservation as expired.
type ChargeProcessor struct {
	resolver      gateway.Resolver
	reservations  *ReservationProcessor
	modifications *ModifyReservationProcessor
	cancels       *CancelReservationProcessor
}

func NewChargeProcessor(resolver gateway.Resolver, reservations *ReservationProcessor, modifications *ModifyReservationProcessor, cancels *CancelReservationProcessor) *ChargeProcessor {
	return &ChargeProcessor{
		resolver:      resolver,
		reservations:  reservations,
		modifications: modifications,
		cancels:       cancels,
	}
}

// ChargePayment charges the order up to req.Amount, the total chargeable
// amount. Success means the charged amount over old ledger plus new events
// equals that total exactly.
func (p *ChargeProcessor) ChargePayment(ctx context.Context, req *Request) (*Response, error) {
	log := logging.FromContext(ctx)

	if !req.Amount.HasBalance() {
		return &Response{Success: true}, nil
	}
	if req.Amount.IsNegative() {
		return nil, domain.Fatal(fmt.Errorf("ChargePayment: %s: %w", req.Amount, domain.ErrInvalidAmount))
	}

	h := req.history()
	toBeCharged := req.Amount.Minus(h.ChargedAmount())

	var events []*domain.PaymentEvent
	if h.AvailableReservedAmount().Compare(toBeCharged) < 0 {
		topUp, err := p.topUpReservations(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("ChargePayment: %w", err)
		}
		events = append(events, topUp...)

		h = req.historyWith(events)
		if h.AvailableReservedAmount().Compare(toBeCharged) < 0 {
			log.Warn("insufficient reservation after top-up",
				"reference_id", req.OrderContext.ReferenceID,
				"available", h.AvailableReservedAmount().String(),
				"to_be_charged", toBeCharged.String(),
			)
			return buildResponse(events, false,
				"insufficient funds to charge the order",
				fmt.Sprintf("available reservation %s is below charge amount %s after top-up: %s", h.AvailableReservedAmount(), toBeCharged, domain.ErrInsufficientFunds),
			), nil
		}
	}

	// Single-reserve providers cannot split a charge across partial
	// payments; charging waits for the final payment.
	if req.HasSingleReservePerPI && !req.FinalPayment {
		return &Response{Events: events, Success: true}, nil
	}

	for _, ce := range h.ChargeableEvents() {
		if !toBeCharged.IsPositive() {
			break
		}

		switch toBeCharged.Compare(ce.Amount) {
		case 0:
			evs, charged, err := p.chargeEvent(ctx, req, ce, ce.Amount)
			if err != nil {
				return nil, fmt.Errorf("ChargePayment: %w", err)
			}
			events = append(events, evs...)
			if charged {
				toBeCharged.ResetToZero()
			}
		case 1:
			evs, charged, err := p.chargeEvent(ctx, req, ce, ce.Amount)
			if err != nil {
				return nil, fmt.Errorf("ChargePayment: %w", err)
			}
			events = append(events, evs...)
			if charged {
				toBeCharged.Decrease(ce.Amount)
			}
		default:
			amount := toBeCharged.Clone()
			evs, charged, err := p.chargeEvent(ctx, req, ce, amount)
			if err != nil {
				return nil, fmt.Errorf("ChargePayment: %w", err)
			}
			events = append(events, evs...)
			if charged {
				if !req.FinalPayment {
					// Keep a hold for the remainder so later payments can
					// still settle against this instrument.
					leftover := ce.Amount.Minus(amount)
					retained, err := p.reservations.ReserveToSimulateModify(ctx, leftover, ce.Event.Instrument, req)
					if err != nil {
						return nil, fmt.Errorf("ChargePayment: retain leftover: %w", err)
					}
					events = append(events, retained)
				}
				toBeCharged.ResetToZero()
			}
		}
	}

	charged := req.historyWith(events).ChargedAmount()
	success := charged.Equal(req.Amount)

	log.Info("charge processed",
		"reference_id", req.OrderContext.ReferenceID,
		"requested", req.Amount.String(),
		"charged", charged.String(),
		"events", len(events),
		"success", success,
	)

	return buildResponse(events, success,
		"the order could not be charged",
		fmt.Sprintf("charged %s of requested %s", charged, req.Amount),
	), nil
}

// topUpReservations raises the order's reservations to the full chargeable
// total via the modify saga.
func (p *ChargeProcessor) topUpReservations(ctx context.Context, req *Request) ([]*domain.PaymentEvent, error) {
	sub := *req
	resp, err := p.modifications.ModifyReservation(ctx, &sub)
	if err != nil {
		return nil, fmt.Errorf("topUpReservations: %w", err)
	}
	return resp.Events, nil
}

// chargeEvent charges amount against one reservation. On a gateway failure
// it records the failed event, then recovers by treating the reservation as
// expired: cancel it, reserve the same amount fresh and retry the charge
// once against the new hold. The bool reports whether the amount was
// ultimately charged.
func (p *ChargeProcessor) chargeEvent(ctx context.Context, req *Request, ce history.ChargeableEvent, amount money.Money) ([]*domain.PaymentEvent, bool, error) {
	first := p.chargeOne(ctx, req, ce.Event, amount)
	if first.Effective() {
		return []*domain.PaymentEvent{first}, true, nil
	}
	events := []*domain.PaymentEvent{first}

	cancel, err := p.cancels.cancelOne(ctx, ce.Event, req)
	if err != nil {
		return nil, false, fmt.Errorf("chargeEvent: %w", err)
	}
	events = append(events, cancel)
	if !cancel.Effective() {
		return events, false, nil
	}

	fresh, err := p.reservations.ReserveToSimulateModify(ctx, ce.Amount, ce.Event.Instrument, req)
	if err != nil {
		return nil, false, fmt.Errorf("chargeEvent: %w", err)
	}
	events = append(events, fresh)
	if !fresh.Effective() {
		return events, false, nil
	}

	retry := p.chargeOne(ctx, req, fresh, amount)
	events = append(events, retry)
	return events, retry.Effective(), nil
}

// chargeOne settles amount against a single reservation event. A provider
// without a charge capability (pay-on-invoice style) yields a skipped
// event that the folds count as charged.
func (p *ChargeProcessor) chargeOne(ctx context.Context, req *Request, reservation *domain.PaymentEvent, amount money.Money) *domain.PaymentEvent {
	provider, err := resolveProvider(ctx, p.resolver, reservation.Instrument)
	if err != nil {
		e := newEvent(domain.PaymentTypeCharge, domain.PaymentStatusFailed, amount, reservation.Instrument, reservation, req, reservation.OriginalInstrument)
		e.ExternalMessage = "payment could not be processed"
		e.InternalMessage = err.Error()
		return e
	}

	cap, ok := provider.Capability(gateway.KindCharge)
	if !ok {
		return newEvent(domain.PaymentTypeCharge, domain.PaymentStatusSkipped, amount, reservation.Instrument, reservation, req, reservation.OriginalInstrument)
	}
	return invokeCapability(ctx, cap, domain.PaymentTypeCharge, amount, reservation.Instrument, reservation, req, reservation.OriginalInstrument)
}
