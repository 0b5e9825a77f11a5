// Package gateway defines the contract between the orchestration engine and
// external payment gateways. A provider exposes an optional set of
// capabilities; absence of a capability is a first-class branch for the
// processors (skip, or simulate with other capabilities), never an error.
package gateway

import (
	"context"

	"github.com/google/uuid"

	"github.com/GonzaloLabandera/elasticpath-sub029/internal/money"
)

type Kind string

const (
	KindReserve       Kind = "reserve"
	KindModifyReserve Kind = "modify_reserve"
	KindCancelReserve Kind = "cancel_reserve"
	KindCharge        Kind = "charge"
	KindCredit        Kind = "credit"
	KindReverseCharge Kind = "reverse_charge"
)

// OrderContext carries the order-level facts a gateway may need alongside a
// capability call. The engine passes it through untouched.
type OrderContext struct {
	ReferenceID string
	Metadata    map[string]string
}

type Request struct {
	Amount money.Money
	// InstrumentData is the opaque instrument payload.
	InstrumentData map[string]string
	// PriorEventData is the event data the gateway returned on the step
	// this call follows on from (e.g. the reservation a charge settles).
	PriorEventData map[string]string
	// CustomData is caller-supplied request data, passed through.
	CustomData   map[string]string
	OrderContext OrderContext
}

type Response struct {
	// Data is the opaque payload the gateway returned; it is stored on the
	// resulting payment event and replayed on follow-on calls.
	Data map[string]string
}

// Capability is one discrete gateway operation. A call either returns a
// response or fails with a *CapabilityError; any other error is treated as
// a non-temporary capability failure.
type Capability interface {
	Execute(ctx context.Context, req Request) (*Response, error)
}

// Provider is a resolved gateway configuration.
type Provider interface {
	// Capability returns the provider's implementation of the given kind,
	// or false when the provider does not support it.
	Capability(kind Kind) (Capability, bool)
	SingleReservePerPI() bool
}

// Resolver maps a payment instrument's provider configuration to a
// provider.
type Resolver interface {
	Resolve(ctx context.Context, providerConfigGUID uuid.UUID) (Provider, error)
}
