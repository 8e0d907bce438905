package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cspace/internal/domain/directory"
	"cspace/internal/domain/pricing"
	"cspace/internal/domain/shared/fault"
)

var now = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func newRecord(t *testing.T, id string, base int64) *Record {
	t.Helper()
	r, err := NewRecord(NewRecordParams{
		ID:                RecordID(id),
		CycleID:           "cycle-1",
		LocationID:        "loc-1",
		RoomID:            directory.RoomID("room-" + id),
		Occupants:         []directory.UserID{"tenant-" + directory.UserID(id)},
		BasePrice:         base,
		ElectricUnitPrice: 3000,
		Currency:          "VND",
		CreatedAt:         now,
	})
	require.NoError(t, err)
	return r
}

func TestNewCycleNormalisesAnchor(t *testing.T) {
	c, err := NewCycle(NewCycleParams{ID: "c1", LocationID: "loc-1", CreatedBy: "admin", AnchorDate: now, CreatedAt: now})
	require.NoError(t, err)

	assert.Equal(t, CycleDraft, c.Status)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), c.AnchorDate)
	assert.Equal(t, "2025-03", c.Period().Key())
	require.Len(t, c.PendingEvents(), 1)
	assert.Equal(t, EventCycleCreated, c.PendingEvents()[0].EventName())
}

func TestNewCycleRequiresAnchor(t *testing.T) {
	_, err := NewCycle(NewCycleParams{ID: "c1", LocationID: "loc-1", CreatedBy: "admin"})
	assert.True(t, errors.Is(err, fault.ErrInvalidInput))
}

func TestNewRecordSeedsBasePrice(t *testing.T) {
	r := newRecord(t, "a", 1_000_000)

	assert.Equal(t, RecordPendingSetup, r.Status)
	assert.Equal(t, int64(1_000_000), r.BilledAmount)
	assert.Equal(t, pricing.DiscountFixedAmount, r.Charges.DiscountKind)
}

func TestRecordUpdateLeavesPendingSetup(t *testing.T) {
	r := newRecord(t, "a", 1_000_000)

	require.NoError(t, r.Update(UpdateFields{Electric: ptr(int64(10)), Water: ptr(int64(5000))}, now))

	assert.Equal(t, RecordUnpaid, r.Status)
	assert.Equal(t, int64(1_035_000), r.BilledAmount)
}

func TestRecordUpdateWithZeroesStaysPending(t *testing.T) {
	r := newRecord(t, "a", 1_000_000)

	require.NoError(t, r.Update(UpdateFields{Electric: ptr(int64(0))}, now))

	assert.Equal(t, RecordPendingSetup, r.Status)
}

func TestRecordUpdateNeverReturnsToPending(t *testing.T) {
	r := newRecord(t, "a", 1_000_000)
	require.NoError(t, r.Update(UpdateFields{Water: ptr(int64(5000))}, now))
	require.NoError(t, r.Update(UpdateFields{Water: ptr(int64(0))}, now))

	assert.Equal(t, RecordUnpaid, r.Status)
	assert.Equal(t, int64(1_000_000), r.BilledAmount)
}

func TestRecordUpdateRejectsInvalidInput(t *testing.T) {
	r := newRecord(t, "a", 1_000_000)

	err := r.Update(UpdateFields{DiscountKind: ptr(pricing.DiscountPercentage), DiscountValue: ptr(int64(120))}, now)

	assert.True(t, errors.Is(err, fault.ErrInvalidInput))
	assert.Equal(t, int64(1_000_000), r.BilledAmount)
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	r := newRecord(t, "a", 1_000_000)
	r.Issue(now)

	changed, err := r.MarkPaid(SettledManually, "tenant-a", now)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = r.MarkPaid(SettledByGateway, "tenant-a", now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, SettledManually, r.SettledVia)
	assert.Len(t, r.PendingEvents(), 1)
}

func TestPaidAndCanceledRecordsRejectChanges(t *testing.T) {
	paid := newRecord(t, "a", 100)
	paid.Issue(now)
	_, err := paid.MarkPaid(SettledByGateway, "tenant-a", now)
	require.NoError(t, err)
	assert.ErrorIs(t, paid.Update(UpdateFields{Water: ptr(int64(1))}, now), ErrInvalidState)
	assert.ErrorIs(t, paid.MarkUnpaid(now), ErrInvalidState, "gateway payments are not reverted")

	canceled := newRecord(t, "b", 100)
	require.NoError(t, canceled.Cancel(now))
	_, err = canceled.MarkPaid(SettledManually, "tenant-b", now)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, canceled.Cancel(now), ErrInvalidState)
}

func TestPendingRecordCannotBeSettled(t *testing.T) {
	r := newRecord(t, "a", 100)

	_, err := r.MarkPaid(SettledManually, "tenant-a", now)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, RecordPendingSetup, r.Status)
	assert.False(t, r.Payable())

	assert.True(t, r.Issue(now))
	assert.True(t, r.Payable())
	changed, err := r.MarkPaid(SettledManually, "tenant-a", now)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestCancelRevertsManualSettlementOnly(t *testing.T) {
	manual := newRecord(t, "a", 100)
	manual.Issue(now)
	_, err := manual.MarkPaid(SettledManually, "tenant-a", now)
	require.NoError(t, err)
	manual.ClearEvents()

	require.NoError(t, manual.Cancel(now))
	assert.Equal(t, RecordCanceled, manual.Status)
	assert.Empty(t, manual.PaidBy)
	require.Len(t, manual.PendingEvents(), 1)
	assert.Equal(t, EventPaymentReverted, manual.PendingEvents()[0].EventName())

	gateway := newRecord(t, "b", 100)
	gateway.Issue(now)
	_, err = gateway.MarkPaid(SettledByGateway, "tenant-b", now)
	require.NoError(t, err)
	assert.ErrorIs(t, gateway.Cancel(now), ErrInvalidState)
	assert.Equal(t, RecordPaid, gateway.Status)
}

func TestMarkUnpaidRevertsManualPayment(t *testing.T) {
	r := newRecord(t, "a", 100)
	r.Issue(now)
	_, err := r.MarkPaid(SettledManually, "tenant-a", now)
	require.NoError(t, err)
	r.ClearEvents()

	require.NoError(t, r.MarkUnpaid(now))

	assert.Equal(t, RecordUnpaid, r.Status)
	assert.Empty(t, r.PaidBy)
	require.Len(t, r.PendingEvents(), 1)
	reverted := r.PendingEvents()[0].(PaymentReverted)
	assert.Equal(t, directory.UserID("tenant-a"), reverted.PayerID)
}

func TestSumTotalsIgnoresCanceled(t *testing.T) {
	a := newRecord(t, "a", 1_000_000)
	b := newRecord(t, "b", 1_500_000)
	c := newRecord(t, "c", 700_000)
	require.NoError(t, b.Update(UpdateFields{PrepaidOffset: ptr(int64(500_000))}, now))
	a.Issue(now)
	_, err := a.MarkPaid(SettledManually, "tenant-a", now)
	require.NoError(t, err)
	require.NoError(t, c.Cancel(now))

	got := SumTotals([]*Record{a, b, c})

	assert.Equal(t, Totals{Billed: 2_000_000, Prepaid: 500_000, Received: 1_500_000}, got)
}

func TestCycleCompletesWhenSettled(t *testing.T) {
	c, err := NewCycle(NewCycleParams{ID: "c1", LocationID: "loc-1", CreatedBy: "admin", AnchorDate: now, CreatedAt: now})
	require.NoError(t, err)
	a := newRecord(t, "a", 1_000_000)
	b := newRecord(t, "b", 1_500_000)

	c.ApplyTotals(SumTotals([]*Record{a, b}), now)
	assert.False(t, c.CompleteIfSettled(now), "drafts never complete")

	require.NoError(t, c.Publish([]directory.UserID{"tenant-a", "tenant-a", "tenant-b"}, now))
	assert.False(t, c.CompleteIfSettled(now))

	for _, r := range []*Record{a, b} {
		r.Issue(now)
		_, err := r.MarkPaid(SettledManually, "admin", now)
		require.NoError(t, err)
	}
	c.ApplyTotals(SumTotals([]*Record{a, b}), now)

	assert.True(t, c.CompleteIfSettled(now))
	assert.Equal(t, CycleCompleted, c.Status)
	assert.Equal(t, int64(2_500_000), c.TotalReceived)
	assert.False(t, c.CompleteIfSettled(now))
}

func TestCycleTransitions(t *testing.T) {
	c, err := NewCycle(NewCycleParams{ID: "c1", LocationID: "loc-1", CreatedBy: "admin", AnchorDate: now, CreatedAt: now})
	require.NoError(t, err)

	assert.ErrorIs(t, c.Reopen(now), ErrInvalidState)
	require.NoError(t, c.Publish(nil, now))
	assert.ErrorIs(t, c.Publish(nil, now), ErrInvalidState)
	require.NoError(t, c.Reopen(now))
	assert.Equal(t, CycleDraft, c.Status)

	c.Status = CycleCompleted
	assert.ErrorIs(t, c.MarkDeleted(now), ErrCycleClosed)
	assert.ErrorIs(t, c.EnsureEditable(), ErrCycleClosed)
	assert.True(t, errors.Is(c.MarkDeleted(now), fault.ErrInvalidTransition))
}
