package engine_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cspace/internal/app/commands"
	"cspace/internal/app/dto"
	"cspace/internal/app/engine"
	"cspace/internal/app/handlers/cycles"
	ledgerapp "cspace/internal/app/handlers/ledger"
	"cspace/internal/app/handlers/notify"
	"cspace/internal/app/handlers/payments"
	"cspace/internal/app/handlers/revenue"
	"cspace/internal/app/handlers/settlement"
	"cspace/internal/app/handlers/support"
	"cspace/internal/app/policies"
	"cspace/internal/app/queries"
	"cspace/internal/app/uow"
	"cspace/internal/domain/directory"
	"cspace/internal/domain/shared/fault"
	"cspace/internal/domain/shared/money"
	"cspace/internal/infra/gateway/stripe"
	"cspace/internal/infra/storage/memory"
	"cspace/internal/infra/validation"
)

const webhookSecret = "whsec_test"

var march = time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

type fakeGateway struct {
	mu        sync.Mutex
	transfers []string
	// onTransfer, when set, runs before the transfer is recorded and can fail it.
	onTransfer func(ctx context.Context) error
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req policies.CheckoutRequest) (policies.CheckoutSession, error) {
	return policies.CheckoutSession{ID: "cs_" + req.PaymentID, URL: "https://pay.example.com/" + req.PaymentID}, nil
}

func (g *fakeGateway) TransferFunds(ctx context.Context, destination string, amount money.Money, key string) (string, error) {
	if g.onTransfer != nil {
		if err := g.onTransfer(ctx); err != nil {
			return "", err
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transfers = append(g.transfers, fmt.Sprintf("%s:%d", destination, amount.Amount))
	return "tr_" + key, nil
}

func (g *fakeGateway) ExchangeAuthorizationCode(_ context.Context, code string) (string, error) {
	return "acct_" + code, nil
}

func (g *fakeGateway) transferCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.transfers)
}

type harness struct {
	t       *testing.T
	eng     *engine.Engine
	factory memory.Factory
	gateway *fakeGateway
}

func newHarness(t *testing.T, payout string) *harness {
	t.Helper()
	store := memory.NewStore()
	factory := memory.Factory{Store: store}
	seedLocation(t, factory, payout)

	gw := &fakeGateway{}
	box := store.Outbox()
	eng := engine.New(engine.Deps{
		UoWFactory:  factory,
		Outbox:      box,
		Idempotency: memory.NewIdempotencyStore(time.Hour),
		Locker:      memory.NewLocker(),
		LockTTL:     time.Second,
		Validator:   validation.New(),
		Gateway:     gw,
		Verifier:    stripe.NewVerifier(webhookSecret),
		Inbox:       memory.NewInbox(),
		Currency:    "VND",
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	box.SetSink(eng.Relay.Sink())
	return &harness{t: t, eng: eng, factory: factory, gateway: gw}
}

func seedLocation(t *testing.T, factory uow.UoWFactory, payout string) {
	t.Helper()
	err := support.RunInUnit(context.Background(), factory, func(ctx context.Context, unit uow.UnitOfWork) error {
		users := []*directory.User{
			{ID: "u-admin", Name: "Admin", Email: "admin@example.com", LocationID: "loc-1", Role: directory.RoleAdmin},
			{ID: "u-a", Name: "Tenant A", LocationID: "loc-1", Role: directory.RoleTenant},
			{ID: "u-b", Name: "Tenant B", LocationID: "loc-1", Role: directory.RoleTenant},
		}
		for _, u := range users {
			if err := unit.Users().Save(ctx, u); err != nil {
				return err
			}
		}
		rooms := []*directory.Room{
			{ID: "room-a", LocationID: "loc-1", Name: "A", BasePrice: 1_000_000, Occupied: true, Occupants: []directory.UserID{"u-a"}},
			{ID: "room-b", LocationID: "loc-1", Name: "B", BasePrice: 1_500_000, Occupied: true, Occupants: []directory.UserID{"u-b"}},
			{ID: "room-c", LocationID: "loc-1", Name: "C", BasePrice: 900_000},
		}
		for _, r := range rooms {
			if err := unit.Rooms().Save(ctx, r); err != nil {
				return err
			}
		}
		return unit.Locations().Save(ctx, &directory.Location{
			ID:                "loc-1",
			Name:              "Riverside",
			Currency:          "VND",
			ElectricUnitPrice: 3_000,
			PayoutDestination: payout,
			AdminIDs:          []directory.UserID{"u-admin"},
		})
	})
	require.NoError(t, err)
}

func dispatch[C commands.Command, R any](h *harness, cmd C) (R, error) {
	return commands.Dispatch[C, R](context.Background(), h.eng.Commands, cmd)
}

func ask[Q queries.Query, R any](h *harness, q Q) R {
	h.t.Helper()
	out, err := queries.Ask[Q, R](context.Background(), h.eng.Queries, q)
	require.NoError(h.t, err)
	return out
}

func (h *harness) createCycle(anchor time.Time) *dto.CycleDetail {
	h.t.Helper()
	detail, err := dispatch[cycles.CreateCycleCommand, *dto.CycleDetail](h, cycles.CreateCycleCommand{
		LocationID: "loc-1", CreatedBy: "u-admin", AnchorDate: anchor,
	})
	require.NoError(h.t, err)
	return detail
}

func (h *harness) publish(cycleID string) *dto.CycleDetail {
	h.t.Helper()
	detail, err := dispatch[cycles.PublishCycleCommand, *dto.CycleDetail](h, cycles.PublishCycleCommand{CycleID: cycleID})
	require.NoError(h.t, err)
	return detail
}

func (h *harness) pay(recordID, payer string) *settlement.Outcome {
	h.t.Helper()
	out, err := dispatch[settlement.ManualPayCommand, *settlement.Outcome](h, settlement.ManualPayCommand{PaymentID: recordID, PayerID: payer})
	require.NoError(h.t, err)
	return out
}

func (h *harness) records(cycleID string) map[string]dto.Record {
	h.t.Helper()
	coll := ask[payments.ListRecordsQuery, dto.RecordCollection](h, payments.ListRecordsQuery{CycleID: cycleID})
	return lo.KeyBy(coll.Items, func(r dto.Record) string { return r.RoomID })
}

func (h *harness) ledgerFor(payer string) []dto.LedgerEntry {
	h.t.Helper()
	return ask[ledgerapp.ListLedgerQuery, dto.LedgerCollection](h, ledgerapp.ListLedgerQuery{PayerID: payer}).Items
}

func TestTwoRoomCycleSettlesToCompletion(t *testing.T) {
	h := newHarness(t, "acct_loc1")

	created := h.createCycle(march)
	assert.Equal(t, "2025-03", created.Cycle.Month)
	assert.Equal(t, "DRAFT", created.Cycle.Status)
	require.Len(t, created.Records, 2)
	assert.Equal(t, int64(2_500_000), created.Cycle.TotalBilled)
	cycleID := created.Cycle.ID

	recs := h.records(cycleID)
	assert.Equal(t, "PENDING_SETUP", recs["room-a"].Status)

	electric := int64(10)
	updated, err := dispatch[payments.UpdateRecordCommand, *dto.Record](h, payments.UpdateRecordCommand{
		RecordID: recs["room-a"].ID,
		Fields:   payments.RecordFields{Electric: &electric},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1_030_000), updated.Billed.Amount)
	assert.Equal(t, "UNPAID", updated.Status)

	published := h.publish(cycleID)
	assert.Equal(t, "PUBLISHED", published.Cycle.Status)
	assert.Equal(t, int64(2_530_000), published.Cycle.TotalBilled)
	recs = h.records(cycleID)
	assert.Equal(t, "UNPAID", recs["room-b"].Status)

	inbox := ask[notify.ListNotificationsQuery, dto.NotificationCollection](h, notify.ListNotificationsQuery{UserID: "u-a"})
	require.NotEmpty(t, inbox.Items)
	assert.Equal(t, "CYCLE_PUBLISHED", inbox.Items[0].Kind)

	first := h.pay(recs["room-a"].ID, "u-a")
	assert.True(t, first.Settled)
	assert.False(t, first.CycleCompleted)

	second := h.pay(recs["room-b"].ID, "u-b")
	assert.True(t, second.Settled)
	assert.True(t, second.CycleCompleted)

	rev := ask[revenue.GetRevenueQuery, dto.Revenue](h, revenue.GetRevenueQuery{LocationID: "loc-1"})
	assert.Equal(t, int64(2_530_000), rev.TotalRevenue.Amount)

	entries := h.ledgerFor("u-a")
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1_030_000), entries[0].Amount.Amount)
	assert.Equal(t, "SETTLEMENT", entries[0].Kind)
	assert.Equal(t, "MANUAL", entries[0].Method)
}

func TestPrepaidOffsetCountsTowardCompletion(t *testing.T) {
	h := newHarness(t, "")
	c := h.createCycle(march)
	h.publish(c.Cycle.ID)
	recs := h.records(c.Cycle.ID)

	prepaid := int64(200_000)
	updated, err := dispatch[payments.UpdateRecordCommand, *dto.Record](h, payments.UpdateRecordCommand{
		RecordID: recs["room-a"].ID,
		Fields:   payments.RecordFields{PrepaidOffset: &prepaid},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(800_000), updated.Billed.Amount)

	first := h.pay(recs["room-a"].ID, "u-a")
	assert.False(t, first.CycleCompleted)
	mid, err := dispatch[cycles.InspectCycleCommand, *dto.CycleDetail](h, cycles.InspectCycleCommand{CycleID: c.Cycle.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2_300_000), mid.Cycle.TotalBilled)
	assert.Equal(t, int64(1_000_000), mid.Cycle.TotalReceived)
	assert.Equal(t, "PUBLISHED", mid.Cycle.Status)

	second := h.pay(recs["room-b"].ID, "u-b")
	assert.True(t, second.CycleCompleted)
	done, err := dispatch[cycles.InspectCycleCommand, *dto.CycleDetail](h, cycles.InspectCycleCommand{CycleID: c.Cycle.ID})
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", done.Cycle.Status)
	assert.Equal(t, int64(2_500_000), done.Cycle.TotalReceived)
	assert.Equal(t, int64(200_000), done.Cycle.TotalPrepaid)

	rev := ask[revenue.GetRevenueQuery, dto.Revenue](h, revenue.GetRevenueQuery{LocationID: "loc-1"})
	assert.Equal(t, int64(2_500_000), rev.TotalRevenue.Amount)
}

func TestCreateCycleRejectsSecondCycleInSameMonth(t *testing.T) {
	h := newHarness(t, "")
	h.createCycle(march)

	_, err := dispatch[cycles.CreateCycleCommand, *dto.CycleDetail](h, cycles.CreateCycleCommand{
		LocationID: "loc-1", CreatedBy: "u-admin", AnchorDate: march.AddDate(0, 0, 10),
	})
	assert.ErrorIs(t, err, fault.ErrDuplicate)

	april := h.createCycle(march.AddDate(0, 1, 0))
	assert.Equal(t, "2025-04", april.Cycle.Month)
}

func TestCreateCycleValidatesInput(t *testing.T) {
	h := newHarness(t, "")
	_, err := dispatch[cycles.CreateCycleCommand, *dto.CycleDetail](h, cycles.CreateCycleCommand{CreatedBy: "u-admin", AnchorDate: march})
	assert.ErrorIs(t, err, fault.ErrInvalidInput)

	_, err = dispatch[cycles.CreateCycleCommand, *dto.CycleDetail](h, cycles.CreateCycleCommand{
		LocationID: "loc-404", CreatedBy: "u-admin", AnchorDate: march,
	})
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestDeleteCycle(t *testing.T) {
	h := newHarness(t, "")

	draft := h.createCycle(march)
	res, err := dispatch[cycles.DeleteCycleCommand, *cycles.DeleteCycleResult](h, cycles.DeleteCycleCommand{CycleID: draft.Cycle.ID})
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	_, err = queries.Ask[payments.ListRecordsQuery, dto.RecordCollection](context.Background(), h.eng.Queries, payments.ListRecordsQuery{CycleID: draft.Cycle.ID})
	assert.ErrorIs(t, err, fault.ErrNotFound)

	done := h.createCycle(march)
	h.publish(done.Cycle.ID)
	for _, r := range h.records(done.Cycle.ID) {
		h.pay(r.ID, r.Occupants[0])
	}
	_, err = dispatch[cycles.DeleteCycleCommand, *cycles.DeleteCycleResult](h, cycles.DeleteCycleCommand{CycleID: done.Cycle.ID})
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)

	rev := ask[revenue.GetRevenueQuery, dto.Revenue](h, revenue.GetRevenueQuery{LocationID: "loc-1"})
	assert.Equal(t, int64(2_500_000), rev.TotalRevenue.Amount)
}

func TestManualPayIsIdempotent(t *testing.T) {
	h := newHarness(t, "")
	c := h.createCycle(march)
	h.publish(c.Cycle.ID)
	recordID := h.records(c.Cycle.ID)["room-a"].ID

	first := h.pay(recordID, "u-a")
	again := h.pay(recordID, "u-a")
	assert.True(t, first.Settled)
	assert.False(t, again.Settled)
	assert.True(t, again.AlreadyPaid)
	assert.Len(t, h.ledgerFor("u-a"), 1)
}

func TestConcurrentManualPaySettlesOnce(t *testing.T) {
	h := newHarness(t, "")
	c := h.createCycle(march)
	h.publish(c.Cycle.ID)
	recordID := h.records(c.Cycle.ID)["room-b"].ID

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		settled int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := dispatch[settlement.ManualPayCommand, *settlement.Outcome](h, settlement.ManualPayCommand{PaymentID: recordID, PayerID: "u-b"})
			if !assert.NoError(t, err) {
				return
			}
			if out.Settled {
				mu.Lock()
				settled++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, settled)
	assert.Len(t, h.ledgerFor("u-b"), 1)
}

func TestManualPayWithIdempotencyKeyReplaysOutcome(t *testing.T) {
	h := newHarness(t, "")
	c := h.createCycle(march)
	h.publish(c.Cycle.ID)
	recordID := h.records(c.Cycle.ID)["room-a"].ID

	cmd := settlement.ManualPayCommand{PaymentID: recordID, PayerID: "u-a", IdempotencyKeyV: "pay-1"}
	first, err := dispatch[settlement.ManualPayCommand, *settlement.Outcome](h, cmd)
	require.NoError(t, err)
	replayed, err := dispatch[settlement.ManualPayCommand, *settlement.Outcome](h, cmd)
	require.NoError(t, err)
	assert.Equal(t, first, replayed)
	assert.True(t, replayed.Settled)
}

func TestReopenRevertsManualPayments(t *testing.T) {
	h := newHarness(t, "")
	c := h.createCycle(march)
	h.publish(c.Cycle.ID)
	recordID := h.records(c.Cycle.ID)["room-a"].ID
	h.pay(recordID, "u-a")

	reopened, err := dispatch[cycles.ReopenCycleCommand, *dto.CycleDetail](h, cycles.ReopenCycleCommand{CycleID: c.Cycle.ID})
	require.NoError(t, err)
	assert.Equal(t, "DRAFT", reopened.Cycle.Status)
	assert.Zero(t, reopened.Cycle.TotalReceived)

	rec := h.records(c.Cycle.ID)["room-a"]
	assert.Equal(t, "UNPAID", rec.Status)
	assert.Empty(t, rec.PaidBy)

	entries := h.ledgerFor("u-a")
	require.Len(t, entries, 2)
	kinds := lo.Map(entries, func(e dto.LedgerEntry, _ int) string { return e.Kind })
	assert.ElementsMatch(t, []string{"SETTLEMENT", "REVERSAL"}, kinds)

	rev := ask[revenue.GetRevenueQuery, dto.Revenue](h, revenue.GetRevenueQuery{LocationID: "loc-1"})
	assert.Zero(t, rev.TotalRevenue.Amount)

	_, err = dispatch[cycles.ReopenCycleCommand, *dto.CycleDetail](h, cycles.ReopenCycleCommand{CycleID: c.Cycle.ID})
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)
}

func TestBulkUpdateTouchesOpenRecordsOnly(t *testing.T) {
	h := newHarness(t, "")
	c := h.createCycle(march)
	h.publish(c.Cycle.ID)
	h.pay(h.records(c.Cycle.ID)["room-a"].ID, "u-a")

	water := int64(50_000)
	_, err := dispatch[payments.BulkUpdateRecordsCommand, *dto.RecordCollection](h, payments.BulkUpdateRecordsCommand{
		CycleID: c.Cycle.ID,
		Fields:  payments.RecordFields{Water: &water},
	})
	require.NoError(t, err)

	recs := h.records(c.Cycle.ID)
	assert.Equal(t, int64(1_000_000), recs["room-a"].Billed.Amount)
	assert.Equal(t, int64(1_550_000), recs["room-b"].Billed.Amount)

	bad := "HALF"
	_, err = dispatch[payments.BulkUpdateRecordsCommand, *dto.RecordCollection](h, payments.BulkUpdateRecordsCommand{
		CycleID: c.Cycle.ID,
		Fields:  payments.RecordFields{DiscountKind: &bad},
	})
	assert.ErrorIs(t, err, fault.ErrInvalidInput)
}

func TestAddAndCancelRecord(t *testing.T) {
	h := newHarness(t, "")
	c := h.createCycle(march)

	_, err := dispatch[payments.AddRecordCommand, *dto.Record](h, payments.AddRecordCommand{CycleID: c.Cycle.ID, RoomID: "room-a"})
	assert.ErrorIs(t, err, fault.ErrDuplicate)

	canceled, err := dispatch[payments.CancelRecordCommand, *dto.Record](h, payments.CancelRecordCommand{RecordID: h.records(c.Cycle.ID)["room-a"].ID})
	require.NoError(t, err)
	assert.Equal(t, "CANCELED", canceled.Status)

	added, err := dispatch[payments.AddRecordCommand, *dto.Record](h, payments.AddRecordCommand{CycleID: c.Cycle.ID, RoomID: "room-a"})
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), added.Billed.Amount)
}

func TestCancelPaidRecordBooksReversal(t *testing.T) {
	h := newHarness(t, "")
	c := h.createCycle(march)
	h.publish(c.Cycle.ID)
	recordID := h.records(c.Cycle.ID)["room-a"].ID
	h.pay(recordID, "u-a")

	canceled, err := dispatch[payments.CancelRecordCommand, *dto.Record](h, payments.CancelRecordCommand{RecordID: recordID})
	require.NoError(t, err)
	assert.Equal(t, "CANCELED", canceled.Status)

	entries := h.ledgerFor("u-a")
	require.Len(t, entries, 2)
	sum := lo.SumBy(entries, func(e dto.LedgerEntry) int64 { return e.Amount.Amount })
	assert.Zero(t, sum)
	assert.True(t, lo.ContainsBy(entries, func(e dto.LedgerEntry) bool { return e.Kind == "REVERSAL" }))

	detail, err := dispatch[cycles.InspectCycleCommand, *dto.CycleDetail](h, cycles.InspectCycleCommand{CycleID: c.Cycle.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1_500_000), detail.Cycle.TotalBilled)
	assert.Zero(t, detail.Cycle.TotalReceived)
	rev := ask[revenue.GetRevenueQuery, dto.Revenue](h, revenue.GetRevenueQuery{LocationID: "loc-1"})
	assert.Zero(t, rev.TotalRevenue.Amount)
}

func TestCancelRefusesGatewayPaidRecord(t *testing.T) {
	h := newHarness(t, "acct_loc1")
	c := h.createCycle(march)
	h.publish(c.Cycle.ID)
	recordID := h.records(c.Cycle.ID)["room-a"].ID
	payload, sig := signedWebhook(t, "evt_1", recordID, "u-a")
	require.NoError(t, h.eng.Webhooks.Ingest(context.Background(), payload, sig))

	_, err := dispatch[payments.CancelRecordCommand, *dto.Record](h, payments.CancelRecordCommand{RecordID: recordID})
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)
	assert.Equal(t, "PAID", h.records(c.Cycle.ID)["room-a"].Status)
	assert.Len(t, h.ledgerFor("u-a"), 1)
}

func TestPendingRecordIsNotPayable(t *testing.T) {
	h := newHarness(t, "acct_loc1")
	c := h.createCycle(march)
	recordID := h.records(c.Cycle.ID)["room-a"].ID

	_, err := dispatch[settlement.ManualPayCommand, *settlement.Outcome](h, settlement.ManualPayCommand{PaymentID: recordID, PayerID: "u-a"})
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)

	_, err = dispatch[settlement.InitiateCheckoutCommand, *policies.CheckoutSession](h, settlement.InitiateCheckoutCommand{
		PaymentID:  recordID,
		PayerID:    "u-a",
		SuccessURL: "https://app.example.com/ok",
		CancelURL:  "https://app.example.com/cancel",
	})
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)

	payload, sig := signedWebhook(t, "evt_1", recordID, "u-a")
	require.NoError(t, h.eng.Webhooks.Ingest(context.Background(), payload, sig))
	assert.Zero(t, h.gateway.transferCount())
	assert.Equal(t, "PENDING_SETUP", h.records(c.Cycle.ID)["room-a"].Status)
	assert.Empty(t, h.ledgerFor("u-a"))
}

func signedWebhook(t *testing.T, eventID, recordID, payer string) ([]byte, string) {
	t.Helper()
	payload := []byte(fmt.Sprintf(`{
  "id": %q,
  "object": "event",
  "api_version": "2023-10-16",
  "type": "checkout.session.completed",
  "data": {"object": {
    "id": "cs_test",
    "object": "checkout.session",
    "payment_status": "paid",
    "metadata": {"payment_id": %q, "payer_id": %q}
  }}
}`, eventID, recordID, payer))
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return payload, fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestGatewayWebhookSettlesOnce(t *testing.T) {
	h := newHarness(t, "acct_loc1")
	c := h.createCycle(march)
	h.publish(c.Cycle.ID)
	recordID := h.records(c.Cycle.ID)["room-a"].ID

	session, err := dispatch[settlement.InitiateCheckoutCommand, *policies.CheckoutSession](h, settlement.InitiateCheckoutCommand{
		PaymentID:  recordID,
		PayerID:    "u-a",
		SuccessURL: "https://app.example.com/ok",
		CancelURL:  "https://app.example.com/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_"+recordID, session.ID)

	payload, sig := signedWebhook(t, "evt_1", recordID, "u-a")
	require.NoError(t, h.eng.Webhooks.Ingest(context.Background(), payload, sig))
	require.NoError(t, h.eng.Webhooks.Ingest(context.Background(), payload, sig))

	payload2, sig2 := signedWebhook(t, "evt_2", recordID, "u-a")
	require.NoError(t, h.eng.Webhooks.Ingest(context.Background(), payload2, sig2))

	assert.Equal(t, 1, h.gateway.transferCount())
	rec := h.records(c.Cycle.ID)["room-a"]
	assert.Equal(t, "PAID", rec.Status)
	assert.Equal(t, "GATEWAY", rec.SettledVia)
	entries := h.ledgerFor("u-a")
	require.Len(t, entries, 1)
	assert.Equal(t, "GATEWAY", entries[0].Method)

	admin := ask[notify.ListNotificationsQuery, dto.NotificationCollection](h, notify.ListNotificationsQuery{UserID: "u-admin"})
	assert.True(t, lo.ContainsBy(admin.Items, func(n dto.Notification) bool { return n.Kind == "PAYMENT_RECEIVED" }))
}

func TestGatewayWebhookRejectsForgedSignature(t *testing.T) {
	h := newHarness(t, "acct_loc1")
	payload, _ := signedWebhook(t, "evt_1", "rec-x", "u-a")

	err := h.eng.Webhooks.Ingest(context.Background(), payload, fmt.Sprintf("t=%d,v1=deadbeef", time.Now().Unix()))
	assert.ErrorIs(t, err, policies.ErrInvalidSignature)
	assert.Zero(t, h.gateway.transferCount())
}

func TestGatewayWebhookRetriesUntilPayoutConnected(t *testing.T) {
	h := newHarness(t, "")
	c := h.createCycle(march)
	h.publish(c.Cycle.ID)
	recordID := h.records(c.Cycle.ID)["room-a"].ID
	payload, sig := signedWebhook(t, "evt_1", recordID, "u-a")

	err := h.eng.Webhooks.Ingest(context.Background(), payload, sig)
	assert.ErrorIs(t, err, directory.ErrNoPayoutAccount)

	dest, err := dispatch[settlement.ConnectPayoutDestinationCommand, *dto.PayoutDestination](h, settlement.ConnectPayoutDestinationCommand{
		LocationID: "loc-1", ActorID: "u-admin", Code: "xyz",
	})
	require.NoError(t, err)
	assert.Equal(t, "acct_xyz", dest.AccountID)

	require.NoError(t, h.eng.Webhooks.Ingest(context.Background(), payload, sig))
	assert.Equal(t, 1, h.gateway.transferCount())
	assert.Equal(t, "PAID", h.records(c.Cycle.ID)["room-a"].Status)
}

func TestGatewayWebhookRedeliveredAfterCallerHangsUp(t *testing.T) {
	h := newHarness(t, "acct_loc1")
	c := h.createCycle(march)
	h.publish(c.Cycle.ID)
	recordID := h.records(c.Cycle.ID)["room-a"].ID
	payload, sig := signedWebhook(t, "evt_1", recordID, "u-a")

	ctx, cancel := context.WithCancel(context.Background())
	h.gateway.onTransfer = func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	}
	err := h.eng.Webhooks.Ingest(ctx, payload, sig)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "UNPAID", h.records(c.Cycle.ID)["room-a"].Status)

	h.gateway.onTransfer = nil
	require.NoError(t, h.eng.Webhooks.Ingest(context.Background(), payload, sig))
	assert.Equal(t, 1, h.gateway.transferCount())
	assert.Equal(t, "PAID", h.records(c.Cycle.ID)["room-a"].Status)
	assert.Len(t, h.ledgerFor("u-a"), 1)

	// a later duplicate is answered from the inbox
	require.NoError(t, h.eng.Webhooks.Ingest(context.Background(), payload, sig))
	assert.Equal(t, 1, h.gateway.transferCount())
}

func TestConnectPayoutRequiresLocationAdmin(t *testing.T) {
	h := newHarness(t, "")
	_, err := dispatch[settlement.ConnectPayoutDestinationCommand, *dto.PayoutDestination](h, settlement.ConnectPayoutDestinationCommand{
		LocationID: "loc-1", ActorID: "u-a", Code: "xyz",
	})
	assert.ErrorIs(t, err, fault.ErrInvalidInput)
}
