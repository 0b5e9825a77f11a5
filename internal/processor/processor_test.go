package processor

import (
	"github.com/google/uuid"

	"github.com/GonzaloLabandera/elasticpath-sub029/internal/domain"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/gateway"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/gateway/gatewaytest"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/money"
)

func usd(s string) money.Money {
	return money.MustParse(s, money.CurrencyUSD)
}

// engine bundles the five processors wired against one scripted provider.
type engine struct {
	providerConfig uuid.UUID
	resolver       gatewaytest.Resolver
	reservations   *ReservationProcessor
	cancels        *CancelReservationProcessor
	modifications  *ModifyReservationProcessor
	charges        *ChargeProcessor
	credits        *CreditProcessor
}

func newEngine(provider gateway.Provider) *engine {
	cfg := uuid.New()
	resolver := gatewaytest.Resolver{cfg: provider}

	reservations := NewReservationProcessor(resolver)
	cancels := NewCancelReservationProcessor(resolver)
	modifications := NewModifyReservationProcessor(resolver, reservations, cancels)

	return &engine{
		providerConfig: cfg,
		resolver:       resolver,
		reservations:   reservations,
		cancels:        cancels,
		modifications:  modifications,
		charges:        NewChargeProcessor(resolver, reservations, modifications, cancels),
		credits:        NewCreditProcessor(resolver),
	}
}

// allApprove scripts every capability kind to approve.
func allApprove() map[gateway.Kind]gateway.Capability {
	return map[gateway.Kind]gateway.Capability{
		gateway.KindReserve:       gatewaytest.Approve(),
		gateway.KindModifyReserve: gatewaytest.Approve(),
		gateway.KindCancelReserve: gatewaytest.Approve(),
		gateway.KindCharge:        gatewaytest.Approve(),
		gateway.KindCredit:        gatewaytest.Approve(),
		gateway.KindReverseCharge: gatewaytest.Approve(),
	}
}

func (e *engine) unlimitedInstrument() *domain.OrderPaymentInstrument {
	return &domain.OrderPaymentInstrument{
		GUID: uuid.New(),
		Instrument: domain.PaymentInstrument{
			ProviderConfigGUID: e.providerConfig,
			Data:               map[string]string{"token": "tok"},
		},
	}
}

func (e *engine) limitedInstrument(limit string) *domain.OrderPaymentInstrument {
	inst := e.unlimitedInstrument()
	l := usd(limit)
	inst.Limit = &l
	return inst
}

func (e *engine) request(ledger []*domain.PaymentEvent, amount string, instruments ...*domain.OrderPaymentInstrument) *Request {
	return &Request{
		Ledger:       ledger,
		Amount:       usd(amount),
		OrderContext: gateway.OrderContext{ReferenceID: "order-1001"},
		Instruments:  instruments,
	}
}

// outcomes flattens events to "TYPE/STATUS" strings for compact
// assertions on saga shape.
func outcomes(events []*domain.PaymentEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = string(e.Type) + "/" + string(e.Status)
	}
	return out
}
