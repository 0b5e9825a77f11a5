// Package processor implements the payment orchestration sagas. Each
// processor takes a request embedding the order's full ledger, invokes
// gateway capabilities, and returns only the newly produced events; success
// is judged from the post-hoc state of old ledger plus new events, never
// from a single call's result. Nothing here persists anything: the caller
// owns the ledger and re-supplies it on the next call.
package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/GonzaloLabandera/elasticpath-sub029/internal/domain"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/gateway"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/history"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/logging"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/money"
)

// Request is a read-only view over one order's payment state for a single
// operation.
type Request struct {
	// Ledger is the order's full, time-ordered event history.
	Ledger []*domain.PaymentEvent
	// Amount is the operation's requested amount. Its currency is the
	// order currency.
	Amount       money.Money
	OrderContext gateway.OrderContext
	// CustomData is caller-supplied data passed through to every
	// capability call.
	CustomData map[string]string
	// Instruments are the payment instruments selected for the operation.
	Instruments []*domain.OrderPaymentInstrument
	// SelectedEvents are the prior events the operation acts on (cancel,
	// reverse charge).
	SelectedEvents        []*domain.PaymentEvent
	HasSingleReservePerPI bool
	FinalPayment          bool
}

func (r *Request) currency() money.Currency {
	return r.Amount.Currency
}

func (r *Request) history() *history.History {
	return history.New(r.Ledger, r.currency())
}

// historyWith folds the request ledger extended with events produced so far
// in this call.
func (r *Request) historyWith(events []*domain.PaymentEvent) *history.History {
	combined := make([]*domain.PaymentEvent, 0, len(r.Ledger)+len(events))
	combined = append(combined, r.Ledger...)
	combined = append(combined, events...)
	return history.New(combined, r.currency())
}

// Response carries only the events produced by this call; the caller is
// responsible for persisting old ledger + new events.
type Response struct {
	Events          []*domain.PaymentEvent
	Success         bool
	ExternalMessage string
	InternalMessage string
}

// buildResponse assembles the response messages. A failed event's messages
// always surface, even when the numeric success criterion holds; when the
// request failed without producing a failed event, the fallback messages
// explain why.
func buildResponse(events []*domain.PaymentEvent, success bool, fallbackExternal, fallbackInternal string) *Response {
	resp := &Response{Events: events, Success: success}
	for _, e := range events {
		if e.Status == domain.PaymentStatusFailed {
			resp.ExternalMessage = e.ExternalMessage
			resp.InternalMessage = e.InternalMessage
			break
		}
	}
	if !success && resp.ExternalMessage == "" && resp.InternalMessage == "" {
		resp.ExternalMessage = fallbackExternal
		resp.InternalMessage = fallbackInternal
	}
	return resp
}

func newEvent(t domain.PaymentType, status domain.PaymentStatus, amount money.Money, inst *domain.OrderPaymentInstrument, parent *domain.PaymentEvent, req *Request, original bool) *domain.PaymentEvent {
	e := &domain.PaymentEvent{
		GUID:               uuid.New(),
		Type:               t,
		Status:             status,
		Amount:             amount.Clone(),
		Instrument:         inst,
		ReferenceID:        req.OrderContext.ReferenceID,
		OriginalInstrument: original,
		CreatedAt:          time.Now().UTC(),
	}
	if parent != nil {
		guid := parent.GUID
		e.ParentGUID = &guid
	}
	return e
}

// invokeCapability runs one gateway call and converts the outcome into a
// payment event: approved with the gateway payload on success, failed with
// the capability error's messages otherwise.
func invokeCapability(ctx context.Context, cap gateway.Capability, t domain.PaymentType, amount money.Money, inst *domain.OrderPaymentInstrument, parent *domain.PaymentEvent, req *Request, original bool) *domain.PaymentEvent {
	log := logging.FromContext(ctx)

	gwReq := gateway.Request{
		Amount:         amount,
		InstrumentData: inst.Instrument.Data,
		CustomData:     req.CustomData,
		OrderContext:   req.OrderContext,
	}
	if parent != nil {
		gwReq.PriorEventData = parent.EventData
	}

	resp, err := cap.Execute(ctx, gwReq)
	if err != nil {
		capErr := gateway.AsCapabilityError(err)
		log.Warn("capability call failed",
			"type", t,
			"amount", amount.String(),
			"reference_id", req.OrderContext.ReferenceID,
			"temporary", capErr.TemporaryFailure,
			"error", capErr.InternalMessage,
		)
		e := newEvent(t, domain.PaymentStatusFailed, amount, inst, parent, req, original)
		e.TemporaryFailure = capErr.TemporaryFailure
		e.ExternalMessage = capErr.ExternalMessage
		e.InternalMessage = capErr.InternalMessage
		return e
	}

	e := newEvent(t, domain.PaymentStatusApproved, amount, inst, parent, req, original)
	e.EventData = resp.Data
	return e
}

func resolveProvider(ctx context.Context, resolver gateway.Resolver, inst *domain.OrderPaymentInstrument) (gateway.Provider, error) {
	provider, err := resolver.Resolve(ctx, inst.Instrument.ProviderConfigGUID)
	if err != nil {
		return nil, fmt.Errorf("resolveProvider: %s: %w", inst.Instrument.ProviderConfigGUID, err)
	}
	return provider, nil
}
