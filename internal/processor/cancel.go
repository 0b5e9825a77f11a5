package processor

import (
	"context"
	"fmt"

	"github.com/GonzaloLabandera/elasticpath-sub029/internal/domain"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/gateway"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/logging"
)

// CancelReservationProcessor releases holds. It is also the rollback path
// the charge and modify sagas lean on.
type CancelReservationProcessor struct {
	resolver gateway.Resolver
}

func NewCancelReservationProcessor(resolver gateway.Resolver) *CancelReservationProcessor {
	return &CancelReservationProcessor{resolver: resolver}
}

// CancelReservation cancels the selected reservation events. Success means
// the available reserved amount dropped by exactly the requested amount.
func (p *CancelReservationProcessor) CancelReservation(ctx context.Context, req *Request) (*Response, error) {
	log := logging.FromContext(ctx)

	before := req.history().AvailableReservedAmount()

	var events []*domain.PaymentEvent
	for _, ev := range req.SelectedEvents {
		e, err := p.cancelOne(ctx, ev, req)
		if err != nil {
			return nil, fmt.Errorf("CancelReservation: %w", err)
		}
		events = append(events, e)
	}

	after := req.historyWith(events).AvailableReservedAmount()
	success := before.Minus(after).Equal(req.Amount)

	log.Info("cancel reservation processed",
		"reference_id", req.OrderContext.ReferenceID,
		"requested", req.Amount.String(),
		"released", before.Minus(after).String(),
		"success", success,
	)

	return buildResponse(events, success,
		"the reservation could not be released",
		fmt.Sprintf("released %s of requested %s", before.Minus(after), req.Amount),
	), nil
}

// CancelAllReservations derives every still-open reservation from the
// ledger and cancels the lot.
func (p *CancelReservationProcessor) CancelAllReservations(ctx context.Context, req *Request) (*Response, error) {
	h := req.history()

	sub := *req
	sub.Amount = h.AvailableReservedAmount()
	sub.SelectedEvents = nil
	for _, ce := range h.ChargeableEvents() {
		sub.SelectedEvents = append(sub.SelectedEvents, ce.Event)
	}

	resp, err := p.CancelReservation(ctx, &sub)
	if err != nil {
		return nil, fmt.Errorf("CancelAllReservations: %w", err)
	}
	return resp, nil
}

// cancelOne releases a single reservation: the cancel capability when the
// provider has one, a skipped event otherwise.
func (p *CancelReservationProcessor) cancelOne(ctx context.Context, reservation *domain.PaymentEvent, req *Request) (*domain.PaymentEvent, error) {
	provider, err := resolveProvider(ctx, p.resolver, reservation.Instrument)
	if err != nil {
		return nil, fmt.Errorf("cancelOne: %w", err)
	}

	cap, ok := provider.Capability(gateway.KindCancelReserve)
	if !ok {
		return newEvent(domain.PaymentTypeCancelReserve, domain.PaymentStatusSkipped, reservation.Amount, reservation.Instrument, reservation, req, reservation.OriginalInstrument), nil
	}
	return invokeCapability(ctx, cap, domain.PaymentTypeCancelReserve, reservation.Amount, reservation.Instrument, reservation, req, reservation.OriginalInstrument), nil
}
