package domain

import (
	"github.com/google/uuid"

	"github.com/GonzaloLabandera/elasticpath-sub029/internal/money"
)

// PaymentInstrument is the shopper-facing payment method configuration.
type PaymentInstrument struct {
	// ProviderConfigGUID identifies the gateway configuration the
	// instrument is backed by; the resolver maps it to a Provider.
	ProviderConfigGUID uuid.UUID
	// Data is opaque instrument state (tokens, card references) passed
	// through to every capability call.
	Data map[string]string
	// SingleReservePerPI marks providers that allow only one active
	// reservation per instrument.
	SingleReservePerPI bool
}

// OrderPaymentInstrument is a payment instrument as selected for one order,
// optionally capped at a per-order limit. A nil Limit means the instrument
// is unlimited; at most one unlimited instrument may be selected for an
// operation, which is what lets the reservation allocation assign it the
// remainder after all limited instruments are consumed.
type OrderPaymentInstrument struct {
	GUID       uuid.UUID
	Instrument PaymentInstrument
	Limit      *money.Money
}

func (o *OrderPaymentInstrument) Limited() bool {
	return o.Limit != nil
}
