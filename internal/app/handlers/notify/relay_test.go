package notify

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	handlersupport "cspace/internal/app/handlers/support"
	"cspace/internal/app/outbox"
	"cspace/internal/app/uow"
	domainbilling "cspace/internal/domain/billing"
	"cspace/internal/domain/directory"
	"cspace/internal/domain/shared/events"
	"cspace/internal/infra/storage/memory"
)

var at = time.Date(2025, 5, 3, 10, 0, 0, 0, time.UTC)

type pushRecorder struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (p *pushRecorder) Notify(_ context.Context, ids []string, _, _, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, ids)
	return p.err
}

type mailRecorder struct {
	to      []string
	subject string
}

func (m *mailRecorder) Send(_ context.Context, to []string, subject, _ string) error {
	m.to, m.subject = to, subject
	return nil
}

type statementRecorder struct {
	key  string
	body string
}

func (s *statementRecorder) Upload(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.key, s.body = key, string(data)
	return "https://files.example.com/" + key, nil
}

func seeded(t *testing.T) memory.Factory {
	t.Helper()
	f := memory.Factory{Store: memory.NewStore()}
	err := handlersupport.RunInUnit(context.Background(), f, func(ctx context.Context, unit uow.UnitOfWork) error {
		for _, u := range []*directory.User{
			{ID: "admin", Email: "admin@example.com", Role: directory.RoleAdmin},
			{ID: "t1", Role: directory.RoleTenant},
		} {
			if err := unit.Users().Save(ctx, u); err != nil {
				return err
			}
		}
		record, err := domainbilling.NewRecord(domainbilling.NewRecordParams{
			ID:         "rec-1",
			CycleID:    "cyc-1",
			LocationID: "loc-1",
			RoomID:     "room-1",
			Occupants:  []directory.UserID{"t1"},
			BasePrice:  2_000_000,
			Currency:   "VND",
			CreatedAt:  at,
		})
		if err != nil {
			return err
		}
		if err := unit.Records().Save(ctx, record); err != nil {
			return err
		}
		return unit.Locations().Save(ctx, &directory.Location{
			ID: "loc-1", Name: "Garden House", Currency: "VND", AdminIDs: []directory.UserID{"admin"},
		})
	})
	require.NoError(t, err)
	return f
}

func encode(t *testing.T, ev events.DomainEvent) outbox.EventRecord {
	t.Helper()
	rec, err := outbox.JSONEventEncoder{}.Encode(ev)
	require.NoError(t, err)
	return rec
}

func inboxOf(t *testing.T, f memory.Factory, user directory.UserID) []string {
	t.Helper()
	unit, err := f.Begin(context.Background(), uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer unit.Rollback(context.Background())
	items, err := unit.Notifications().ListByUser(context.Background(), user, 0)
	require.NoError(t, err)
	kinds := make([]string, 0, len(items))
	for _, n := range items {
		kinds = append(kinds, string(n.Kind))
	}
	return kinds
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestGatewaySettlementNotifiesTenantsAndAdmins(t *testing.T) {
	f := seeded(t)
	push := &pushRecorder{}
	mail := &mailRecorder{}
	relay := &Relay{UoWFactory: f, Notifier: push, Mailer: mail, Logger: quietLogger()}

	err := relay.Handle(context.Background(), encode(t, domainbilling.PaymentSettled{
		RecordID: "rec-1", CycleID: "cyc-1", LocationID: "loc-1", RoomID: "room-1",
		PayerID: "t1", Occupants: []directory.UserID{"t1"},
		Amount: 2_000_000, Currency: "VND", Method: domainbilling.SettledByGateway, At: at,
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"PAYMENT_RECEIPT"}, inboxOf(t, f, "t1"))
	assert.Equal(t, []string{"PAYMENT_RECEIVED"}, inboxOf(t, f, "admin"))
	assert.Len(t, push.calls, 2)
	assert.Equal(t, []string{"admin@example.com"}, mail.to)
	assert.Contains(t, mail.subject, "Garden House")
}

func TestManualSettlementSkipsAdminFanout(t *testing.T) {
	f := seeded(t)
	mail := &mailRecorder{}
	relay := &Relay{UoWFactory: f, Mailer: mail, Logger: quietLogger()}

	err := relay.Handle(context.Background(), encode(t, domainbilling.PaymentSettled{
		RecordID: "rec-1", LocationID: "loc-1", PayerID: "t1",
		Amount: 2_000_000, Currency: "VND", Method: domainbilling.SettledManually, At: at,
	}))
	require.NoError(t, err)
	assert.Empty(t, inboxOf(t, f, "admin"))
	assert.Empty(t, mail.to)
}

func TestPushFailureDoesNotFailDelivery(t *testing.T) {
	f := seeded(t)
	relay := &Relay{UoWFactory: f, Notifier: &pushRecorder{err: errors.New("fcm down")}, Logger: quietLogger()}

	err := relay.Handle(context.Background(), encode(t, domainbilling.CyclePublishedEvent{
		CycleID: "cyc-1", LocationID: "loc-1", Month: "2025-05", Recipients: []directory.UserID{"t1", "t1", ""}, At: at,
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"CYCLE_PUBLISHED"}, inboxOf(t, f, "t1"))
}

func TestCycleCompletedExportsStatement(t *testing.T) {
	f := seeded(t)
	statements := &statementRecorder{}
	relay := &Relay{UoWFactory: f, Statements: statements, Logger: quietLogger()}

	err := relay.Handle(context.Background(), encode(t, domainbilling.CycleCompletedEvent{
		CycleID: "cyc-1", LocationID: "loc-1", Month: "2025-05", TotalBilled: 2_000_000, TotalReceived: 2_000_000, Currency: "VND", At: at,
	}))
	require.NoError(t, err)
	assert.Equal(t, "statements/loc-1/2025-05/cyc-1.csv", statements.key)
	assert.Equal(t, []string{"CYCLE_COMPLETED"}, inboxOf(t, f, "admin"))

	rows, err := csv.NewReader(strings.NewReader(statements.body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, statementHeader, rows[0])
	assert.Equal(t, "rec-1", rows[1][0])
	assert.Equal(t, "2000000", rows[1][11])
}

func TestUnknownEventsAreIgnored(t *testing.T) {
	relay := &Relay{UoWFactory: seeded(t), Logger: quietLogger()}
	assert.NoError(t, relay.Handle(context.Background(), outbox.EventRecord{Name: "billing.cycle.created", Payload: []byte(`{}`)}))
}

func TestUndecodablePayloadIsReported(t *testing.T) {
	relay := &Relay{UoWFactory: seeded(t), Logger: quietLogger()}
	err := relay.Handle(context.Background(), outbox.EventRecord{Name: domainbilling.EventPaymentSettled, Payload: []byte(`{`)})
	assert.Error(t, err)
}
