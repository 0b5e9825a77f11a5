package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GonzaloLabandera/elasticpath-sub029/internal/domain"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/gateway"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/gateway/gatewaytest"
)

func TestReserveSingleUnlimitedInstrument(t *testing.T) {
	e := newEngine(gatewaytest.NewProvider(allApprove()))
	ctx := context.Background()

	resp, err := e.reservations.Reserve(ctx, e.request(nil, "100", e.unlimitedInstrument()))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	require.Equal(t, []string{"RESERVE/APPROVED"}, outcomes(resp.Events))
	assert.True(t, resp.Events[0].Amount.Equal(usd("100")))
	assert.True(t, resp.Events[0].OriginalInstrument)
	assert.NotEmpty(t, resp.Events[0].EventData)
}

func TestReserveZeroAmountShortCircuits(t *testing.T) {
	reserve := gatewaytest.Approve()
	e := newEngine(gatewaytest.NewProvider(map[gateway.Kind]gateway.Capability{
		gateway.KindReserve: reserve,
	}))

	resp, err := e.reservations.Reserve(context.Background(), e.request(nil, "0", e.unlimitedInstrument()))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Empty(t, resp.Events)
	assert.Empty(t, reserve.Calls)
}

func TestReserveSplitsAcrossLimits(t *testing.T) {
	reserve := gatewaytest.Approve()
	e := newEngine(gatewaytest.NewProvider(map[gateway.Kind]gateway.Capability{
		gateway.KindReserve: reserve,
	}))
	ctx := context.Background()

	limited := e.limitedInstrument("30")
	unlimited := e.unlimitedInstrument()

	resp, err := e.reservations.Reserve(ctx, e.request(nil, "100", limited, unlimited))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	require.Len(t, resp.Events, 2)
	assert.True(t, resp.Events[0].Amount.Equal(usd("30")))
	assert.True(t, resp.Events[1].Amount.Equal(usd("70")))
	require.Len(t, reserve.Calls, 2)
}

func TestReserveLimitsExceedingTotalIsFatal(t *testing.T) {
	e := newEngine(gatewaytest.NewProvider(allApprove()))

	_, err := e.reservations.Reserve(context.Background(),
		e.request(nil, "50", e.limitedInstrument("40"), e.limitedInstrument("40"), e.unlimitedInstrument()))

	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))
	assert.ErrorIs(t, err, domain.ErrLimitsExceedTotal)
}

func TestReserveNegativeAmountIsFatal(t *testing.T) {
	e := newEngine(gatewaytest.NewProvider(allApprove()))

	_, err := e.reservations.Reserve(context.Background(), e.request(nil, "-1", e.unlimitedInstrument()))

	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestReserveWithoutCapabilitySkips(t *testing.T) {
	// pay-on-invoice style provider: no reserve capability at all
	e := newEngine(gatewaytest.NewProvider(nil))

	resp, err := e.reservations.Reserve(context.Background(), e.request(nil, "100", e.unlimitedInstrument()))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	require.Equal(t, []string{"RESERVE/SKIPPED"}, outcomes(resp.Events))
	assert.True(t, resp.Events[0].Amount.Equal(usd("100")))
}

func TestReserveCapabilityFailure(t *testing.T) {
	e := newEngine(gatewaytest.NewProvider(map[gateway.Kind]gateway.Capability{
		gateway.KindReserve: gatewaytest.Fail(true, "card declined", "issuer timeout"),
	}))

	resp, err := e.reservations.Reserve(context.Background(), e.request(nil, "100", e.unlimitedInstrument()))
	require.NoError(t, err)

	assert.False(t, resp.Success)
	require.Equal(t, []string{"RESERVE/FAILED"}, outcomes(resp.Events))
	assert.True(t, resp.Events[0].TemporaryFailure)
	assert.Equal(t, "card declined", resp.ExternalMessage)
	assert.Equal(t, "issuer timeout", resp.InternalMessage)
}

func TestReservePartialFailureSumsShort(t *testing.T) {
	// limited instrument fails, unlimited succeeds: reserved sum is short
	// of the request, so the response reports failure.
	e := newEngine(gatewaytest.NewProvider(map[gateway.Kind]gateway.Capability{
		gateway.KindReserve: gatewaytest.FailThenApprove(false, "declined", "hard decline"),
	}))
	ctx := context.Background()

	limited := e.limitedInstrument("30")
	unlimited := e.unlimitedInstrument()

	resp, err := e.reservations.Reserve(ctx, e.request(nil, "100", limited, unlimited))
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, "declined", resp.ExternalMessage)
}

func TestReserveToSimulateModify(t *testing.T) {
	e := newEngine(gatewaytest.NewProvider(allApprove()))

	ev, err := e.reservations.ReserveToSimulateModify(context.Background(), usd("20"), e.unlimitedInstrument(), e.request(nil, "20"))
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentTypeReserve, ev.Type)
	assert.Equal(t, domain.PaymentStatusApproved, ev.Status)
	assert.True(t, ev.Amount.Equal(usd("20")))
	assert.False(t, ev.OriginalInstrument)
}
