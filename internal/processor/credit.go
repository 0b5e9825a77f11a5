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

// CreditProcessor returns settled funds to the shopper, either through the
// gateway's credit capability or as a manual credit recorded without a
// gateway call. It also reverses whole charges, preferring a dedicated
// reverse-charge capability and falling back to credit.
type CreditProcessor struct {
	resolver gateway.Resolver
}

func NewCreditProcessor(resolver gateway.Resolver) *CreditProcessor {
	return &CreditProcessor{resolver: resolver}
}

func (p *CreditProcessor) Credit(ctx context.Context, req *Request) (*Response, error) {
	resp, err := p.credit(ctx, req, false)
	if err != nil {
		return nil, fmt.Errorf("Credit: %w", err)
	}
	return resp, nil
}

// ManualCredit records the refund in the ledger without involving the
// gateway, for refunds settled out of band.
func (p *CreditProcessor) ManualCredit(ctx context.Context, req *Request) (*Response, error) {
	resp, err := p.credit(ctx, req, true)
	if err != nil {
		return nil, fmt.Errorf("ManualCredit: %w", err)
	}
	return resp, nil
}

func (p *CreditProcessor) credit(ctx context.Context, req *Request, manual bool) (*Response, error) {
	log := logging.FromContext(ctx)

	if req.Amount.IsNegative() {
		return nil, domain.Fatal(fmt.Errorf("credit: %s: %w", req.Amount, domain.ErrInvalidAmount))
	}

	h := req.history()
	refundedBefore := h.RefundedAmount()
	refundable := h.ChargedAmount().Minus(refundedBefore)
	if refundable.Compare(req.Amount) < 0 {
		return nil, domain.Fatal(fmt.Errorf("credit: refundable %s is below requested %s: %w", refundable, req.Amount, domain.ErrInsufficientFunds))
	}

	toRefund := req.Amount.Clone()
	var events []*domain.PaymentEvent
	for _, re := range h.RefundableEvents() {
		if !toRefund.IsPositive() {
			break
		}
		amount := re.Amount
		if toRefund.Compare(re.Amount) < 0 {
			amount = toRefund.Clone()
		}

		e, err := p.creditOne(ctx, req, re, amount, manual)
		if err != nil {
			return nil, fmt.Errorf("credit: %w", err)
		}
		events = append(events, e)
		if e.Effective() {
			toRefund.Decrease(amount)
		}
	}

	refundedAfter := req.historyWith(events).RefundedAmount()
	success := refundedAfter.Equal(refundedBefore.Plus(req.Amount))

	log.Info("credit processed",
		"reference_id", req.OrderContext.ReferenceID,
		"requested", req.Amount.String(),
		"refunded", refundedAfter.Minus(refundedBefore).String(),
		"manual", manual,
		"success", success,
	)

	return buildResponse(events, success,
		"the refund could not be processed",
		fmt.Sprintf("refunded %s of requested %s", refundedAfter.Minus(refundedBefore), req.Amount),
	), nil
}

// creditOne refunds amount against one charge event. Manual credits never
// touch the gateway; otherwise the credit capability runs, with absence
// recorded as skipped.
func (p *CreditProcessor) creditOne(ctx context.Context, req *Request, re history.RefundableEvent, amount money.Money, manual bool) (*domain.PaymentEvent, error) {
	if manual {
		return newEvent(domain.PaymentTypeManualCredit, domain.PaymentStatusApproved, amount, re.Event.Instrument, re.Event, req, re.Event.OriginalInstrument), nil
	}

	provider, err := resolveProvider(ctx, p.resolver, re.Event.Instrument)
	if err != nil {
		return nil, fmt.Errorf("creditOne: %w", err)
	}

	cap, ok := provider.Capability(gateway.KindCredit)
	if !ok {
		return newEvent(domain.PaymentTypeCredit, domain.PaymentStatusSkipped, amount, re.Event.Instrument, re.Event, req, re.Event.OriginalInstrument), nil
	}
	return invokeCapability(ctx, cap, domain.PaymentTypeCredit, amount, re.Event.Instrument, re.Event, req, re.Event.OriginalInstrument), nil
}

// ReverseCharge undoes the selected charges in full. Partial reversals are
// not supported; callers wanting a partial amount back use Credit.
func (p *CreditProcessor) ReverseCharge(ctx context.Context, req *Request) (*Response, error) {
	log := logging.FromContext(ctx)

	for _, ev := range req.SelectedEvents {
		if ev.Type != domain.PaymentTypeCharge || ev.Status != domain.PaymentStatusApproved {
			return nil, domain.Fatal(fmt.Errorf("ReverseCharge: event %s is %s %s: %w", ev.GUID, ev.Status, ev.Type, domain.ErrNotChargeEvent))
		}
	}

	var events []*domain.PaymentEvent
	for _, ev := range req.SelectedEvents {
		evs, err := p.reverseOne(ctx, req, ev)
		if err != nil {
			return nil, fmt.Errorf("ReverseCharge: %w", err)
		}
		events = append(events, evs...)
	}

	charged := req.historyWith(events).ChargedAmount()
	success := !charged.HasBalance()

	log.Info("reverse charge processed",
		"reference_id", req.OrderContext.ReferenceID,
		"events", len(events),
		"charged_after", charged.String(),
		"success", success,
	)

	return buildResponse(events, success,
		"the charge could not be reversed",
		fmt.Sprintf("charged amount %s remains after reversal", charged),
	), nil
}

// reverseOne prefers the dedicated reverse-charge capability; on its
// absence or failure the reversal is simulated through the credit
// capability for the same amount. Either way the ledger records a
// reverse-charge event so the charged amount folds to zero.
func (p *CreditProcessor) reverseOne(ctx context.Context, req *Request, charge *domain.PaymentEvent) ([]*domain.PaymentEvent, error) {
	provider, err := resolveProvider(ctx, p.resolver, charge.Instrument)
	if err != nil {
		return nil, fmt.Errorf("reverseOne: %w", err)
	}

	var events []*domain.PaymentEvent
	if cap, ok := provider.Capability(gateway.KindReverseCharge); ok {
		e := invokeCapability(ctx, cap, domain.PaymentTypeReverseCharge, charge.Amount, charge.Instrument, charge, req, charge.OriginalInstrument)
		events = append(events, e)
		if e.Effective() {
			return events, nil
		}
	}

	if cap, ok := provider.Capability(gateway.KindCredit); ok {
		e := invokeCapability(ctx, cap, domain.PaymentTypeReverseCharge, charge.Amount, charge.Instrument, charge, req, charge.OriginalInstrument)
		events = append(events, e)
		return events, nil
	}

	events = append(events, newEvent(domain.PaymentTypeReverseCharge, domain.PaymentStatusSkipped, charge.Amount, charge.Instrument, charge, req, charge.OriginalInstrument))
	return events, nil
}
