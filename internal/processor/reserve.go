package processor

import (
	"context"
	"fmt"

	"github.com/GonzaloLabandera/elasticpath-sub029/internal/domain"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/gateway"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/logging"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/money"
)

// ReservationProcessor places holds across the instruments selected for an
// order. Limited instruments take their limit; the single unlimited
// instrument takes whatever remains.
type ReservationProcessor struct {
	resolver gateway.Resolver
}

func NewReservationProcessor(resolver gateway.Resolver) *ReservationProcessor {
	return &ReservationProcessor{resolver: resolver}
}

func (p *ReservationProcessor) Reserve(ctx context.Context, req *Request) (*Response, error) {
	log := logging.FromContext(ctx)

	if !req.Amount.HasBalance() {
		return &Response{Success: true}, nil
	}
	if req.Amount.IsNegative() {
		return nil, domain.Fatal(fmt.Errorf("Reserve: %s: %w", req.Amount, domain.ErrInvalidAmount))
	}

	// The remainder after all limited instruments take their share goes to
	// the unlimited instrument.
	amountAfterLimits := req.Amount.Clone()
	for _, inst := range req.Instruments {
		if inst.Limited() {
			amountAfterLimits.Decrease(*inst.Limit)
		}
	}
	if amountAfterLimits.IsNegative() {
		return nil, domain.Fatal(fmt.Errorf("Reserve: %w", domain.ErrLimitsExceedTotal))
	}

	var events []*domain.PaymentEvent
	for _, inst := range req.Instruments {
		amount := amountAfterLimits
		if inst.Limited() {
			amount = inst.Limit.Clone()
		}
		if !amount.HasBalance() {
			continue
		}

		e, err := p.reserveOne(ctx, amount, inst, nil, req, true)
		if err != nil {
			return nil, fmt.Errorf("Reserve: %w", err)
		}
		events = append(events, e)
	}

	reserved := money.Zero(req.currency())
	for _, e := range events {
		if e.Effective() {
			reserved = reserved.Plus(e.Amount)
		}
	}
	success := reserved.Equal(req.Amount)

	log.Info("reservation processed",
		"reference_id", req.OrderContext.ReferenceID,
		"requested", req.Amount.String(),
		"reserved", reserved.String(),
		"events", len(events),
		"success", success,
	)

	return buildResponse(events, success,
		"the requested amount could not be reserved",
		fmt.Sprintf("reserved %s of requested %s", reserved, req.Amount),
	), nil
}

// ReserveToSimulateModify places a single ad-hoc reservation on one
// instrument. Modify and charge use it to top up or retain holds the
// gateway cannot express natively; the event is not counted as an original
// instrument selection.
func (p *ReservationProcessor) ReserveToSimulateModify(ctx context.Context, amount money.Money, inst *domain.OrderPaymentInstrument, req *Request) (*domain.PaymentEvent, error) {
	if amount.IsNegative() {
		return nil, domain.Fatal(fmt.Errorf("ReserveToSimulateModify: %s: %w", amount, domain.ErrInvalidAmount))
	}
	e, err := p.reserveOne(ctx, amount, inst, nil, req, false)
	if err != nil {
		return nil, fmt.Errorf("ReserveToSimulateModify: %w", err)
	}
	return e, nil
}

// reserveOne invokes the reserve capability when the provider has one; a
// provider without it (pay-on-invoice style) yields a skipped event that
// the ledger folds treat as reserved.
func (p *ReservationProcessor) reserveOne(ctx context.Context, amount money.Money, inst *domain.OrderPaymentInstrument, parent *domain.PaymentEvent, req *Request, original bool) (*domain.PaymentEvent, error) {
	provider, err := resolveProvider(ctx, p.resolver, inst)
	if err != nil {
		return nil, fmt.Errorf("reserveOne: %w", err)
	}

	cap, ok := provider.Capability(gateway.KindReserve)
	if !ok {
		return newEvent(domain.PaymentTypeReserve, domain.PaymentStatusSkipped, amount, inst, parent, req, original), nil
	}
	return invokeCapability(ctx, cap, domain.PaymentTypeReserve, amount, inst, parent, req, original), nil
}
