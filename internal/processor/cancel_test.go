package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GonzaloLabandera/elasticpath-sub029/internal/domain"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/gateway"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/gateway/gatewaytest"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/history"
	"github.com/GonzaloLabandera/elasticpath-sub029/internal/money"
)

// reserveLedger reserves the given amounts and returns the resulting ledger.
func reserveLedger(t *testing.T, e *engine, inst *domain.OrderPaymentInstrument, amounts ...string) []*domain.PaymentEvent {
	t.Helper()
	ctx := context.Background()

	var ledger []*domain.PaymentEvent
	for _, amount := range amounts {
		resp, err := e.reservations.Reserve(ctx, e.request(ledger, amount, inst))
		require.NoError(t, err)
		require.True(t, resp.Success)
		ledger = append(ledger, resp.Events...)
	}
	return ledger
}

func TestCancelReservation(t *testing.T) {
	e := newEngine(gatewaytest.NewProvider(allApprove()))
	ctx := context.Background()

	inst := e.unlimitedInstrument()
	ledger := reserveLedger(t, e, inst, "100")

	req := e.request(ledger, "100")
	req.SelectedEvents = ledger

	resp, err := e.cancels.CancelReservation(ctx, req)
	require.NoError(t, err)

	assert.True(t, resp.Success)
	require.Equal(t, []string{"CANCEL_RESERVE/APPROVED"}, outcomes(resp.Events))

	after := history.New(append(ledger, resp.Events...), money.CurrencyUSD)
	assert.False(t, after.AvailableReservedAmount().HasBalance())
}

func TestCancelWithoutCapabilitySkips(t *testing.T) {
	e := newEngine(gatewaytest.NewProvider(map[gateway.Kind]gateway.Capability{
		gateway.KindReserve: gatewaytest.Approve(),
	}))
	ctx := context.Background()

	ledger := reserveLedger(t, e, e.unlimitedInstrument(), "50")
	req := e.request(ledger, "50")
	req.SelectedEvents = ledger

	resp, err := e.cancels.CancelReservation(ctx, req)
	require.NoError(t, err)

	assert.True(t, resp.Success)
	require.Equal(t, []string{"CANCEL_RESERVE/SKIPPED"}, outcomes(resp.Events))
}

func TestCancelFailureReportsShortfall(t *testing.T) {
	e := newEngine(gatewaytest.NewProvider(map[gateway.Kind]gateway.Capability{
		gateway.KindReserve:       gatewaytest.Approve(),
		gateway.KindCancelReserve: gatewaytest.Fail(false, "cannot release", "gateway rejected void"),
	}))
	ctx := context.Background()

	ledger := reserveLedger(t, e, e.unlimitedInstrument(), "100")
	req := e.request(ledger, "100")
	req.SelectedEvents = ledger

	resp, err := e.cancels.CancelReservation(ctx, req)
	require.NoError(t, err)

	assert.False(t, resp.Success)
	require.Equal(t, []string{"CANCEL_RESERVE/FAILED"}, outcomes(resp.Events))
	assert.Equal(t, "cannot release", resp.ExternalMessage)
}

func TestCancelAllReservations(t *testing.T) {
	e := newEngine(gatewaytest.NewProvider(allApprove()))
	ctx := context.Background()

	inst := e.unlimitedInstrument()
	ledger := reserveLedger(t, e, inst, "40", "60")

	resp, err := e.cancels.CancelAllReservations(ctx, e.request(ledger, "0"))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, []string{"CANCEL_RESERVE/APPROVED", "CANCEL_RESERVE/APPROVED"}, outcomes(resp.Events))

	after := history.New(append(ledger, resp.Events...), money.CurrencyUSD)
	assert.False(t, after.AvailableReservedAmount().HasBalance())
}

func TestReserveThenCancelRoundTrip(t *testing.T) {
	e := newEngine(gatewaytest.NewProvider(allApprove()))
	ctx := context.Background()

	inst := e.unlimitedInstrument()
	ledger := reserveLedger(t, e, inst, "40")
	before := history.New(ledger, money.CurrencyUSD).AvailableReservedAmount()

	resp, err := e.reservations.Reserve(ctx, e.request(ledger, "25", inst))
	require.NoError(t, err)
	ledger = append(ledger, resp.Events...)

	req := e.request(ledger, "25")
	req.SelectedEvents = resp.Events
	cancelResp, err := e.cancels.CancelReservation(ctx, req)
	require.NoError(t, err)
	require.True(t, cancelResp.Success)

	after := history.New(append(ledger, cancelResp.Events...), money.CurrencyUSD).AvailableReservedAmount()
	assert.True(t, before.Equal(after), "before %s after %s", before, after)
}
