// Package gatewaytest provides a scriptable in-memory gateway for processor
// tests and local wiring. Capabilities approve, decline, or decline once
// and then approve, and record every request they see.
package gatewaytest

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/GonzaloLabandera/elasticpath-sub029/internal/gateway"
)

// Capability is a scripted gateway operation. The zero value approves every
// call.
type Capability struct {
	// Calls records every request in order.
	Calls []gateway.Request

	failures  int
	failErr   *gateway.CapabilityError
	responded int
}

// Approve returns a capability that approves every call.
func Approve() *Capability {
	return &Capability{}
}

// Fail returns a capability that declines every call with the given
// messages.
func Fail(temporary bool, external, internal string) *Capability {
	return &Capability{
		failures: -1,
		failErr: &gateway.CapabilityError{
			TemporaryFailure: temporary,
			ExternalMessage:  external,
			InternalMessage:  internal,
		},
	}
}

// FailThenApprove returns a capability that declines the first call and
// approves every call after it.
func FailThenApprove(temporary bool, external, internal string) *Capability {
	c := Fail(temporary, external, internal)
	c.failures = 1
	return c
}

func (c *Capability) Execute(_ context.Context, req gateway.Request) (*gateway.Response, error) {
	c.Calls = append(c.Calls, req)
	call := len(c.Calls)

	if c.failures < 0 || call <= c.failures {
		return nil, c.failErr
	}

	c.responded++
	return &gateway.Response{Data: map[string]string{
		"transaction": "txn-" + strconv.Itoa(call),
	}}, nil
}

// Provider is an in-memory gateway configuration backed by scripted
// capabilities.
type Provider struct {
	caps               map[gateway.Kind]gateway.Capability
	singleReservePerPI bool
}

func NewProvider(caps map[gateway.Kind]gateway.Capability) *Provider {
	return &Provider{caps: caps}
}

func NewSingleReserveProvider(caps map[gateway.Kind]gateway.Capability) *Provider {
	return &Provider{caps: caps, singleReservePerPI: true}
}

func (p *Provider) Capability(kind gateway.Kind) (gateway.Capability, bool) {
	cap, ok := p.caps[kind]
	return cap, ok
}

func (p *Provider) SingleReservePerPI() bool {
	return p.singleReservePerPI
}

// Resolver maps provider configuration GUIDs to providers.
type Resolver map[uuid.UUID]gateway.Provider

func (r Resolver) Resolve(_ context.Context, providerConfigGUID uuid.UUID) (gateway.Provider, error) {
	p, ok := r[providerConfigGUID]
	if !ok {
		return nil, fmt.Errorf("Resolve: unknown provider configuration %s", providerConfigGUID)
	}
	return p, nil
}
