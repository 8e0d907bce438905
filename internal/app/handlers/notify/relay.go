// Package notify turns committed billing events into push notifications,
// inbox entries, admin emails and cycle statements. Nothing here can fail a
// settlement: it only ever sees events that are already committed.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	handlersupport "cspace/internal/app/handlers/support"
	"cspace/internal/app/outbox"
	"cspace/internal/app/policies"
	"cspace/internal/app/uow"
	domainbilling "cspace/internal/domain/billing"
	"cspace/internal/domain/directory"
	"cspace/internal/domain/notifications"
	"cspace/internal/domain/shared/money"
)

// Relay dispatches outbox records by event name. Unknown events are skipped.
type Relay struct {
	UoWFactory uow.UoWFactory
	Notifier   policies.Notifier
	Mailer     policies.Mailer
	Statements policies.StatementStore
	Logger     *slog.Logger
}

// message is one notification fanned out to several users.
type message struct {
	recipients []directory.UserID
	location   directory.LocationID
	title      string
	body       string
	kind       notifications.Kind
	dataID     string
	adminOnly  bool
}

func (r *Relay) Handle(ctx context.Context, rec outbox.EventRecord) error {
	switch rec.Name {
	case domainbilling.EventCyclePublished:
		var ev domainbilling.CyclePublishedEvent
		if err := rec.Decode(&ev); err != nil {
			return fmt.Errorf("notify: decode %s: %w", rec.Name, err)
		}
		return r.cyclePublished(ctx, ev)
	case domainbilling.EventPaymentSettled:
		var ev domainbilling.PaymentSettled
		if err := rec.Decode(&ev); err != nil {
			return fmt.Errorf("notify: decode %s: %w", rec.Name, err)
		}
		return r.paymentSettled(ctx, ev)
	case domainbilling.EventCycleCompleted:
		var ev domainbilling.CycleCompletedEvent
		if err := rec.Decode(&ev); err != nil {
			return fmt.Errorf("notify: decode %s: %w", rec.Name, err)
		}
		return r.cycleCompleted(ctx, ev)
	default:
		return nil
	}
}

func (r *Relay) cyclePublished(ctx context.Context, ev domainbilling.CyclePublishedEvent) error {
	return r.deliver(ctx, message{
		recipients: ev.Recipients,
		location:   ev.LocationID,
		title:      "New bill available",
		body:       fmt.Sprintf("Your rent bill for %s is ready. Please review and pay before the due date.", ev.Month),
		kind:       notifications.KindCyclePublished,
		dataID:     string(ev.CycleID),
	})
}

func (r *Relay) paymentSettled(ctx context.Context, ev domainbilling.PaymentSettled) error {
	amount := money.Money{Amount: ev.Amount, Currency: ev.Currency}
	receipt := message{
		recipients: lo.Uniq(append(append([]directory.UserID(nil), ev.Occupants...), ev.PayerID)),
		location:   ev.LocationID,
		title:      "Payment received",
		body:       fmt.Sprintf("We received your payment of %s. Thank you!", amount),
		kind:       notifications.KindPaymentReceipt,
		dataID:     string(ev.RecordID),
	}
	if err := r.deliver(ctx, receipt); err != nil {
		return err
	}
	if ev.Method != domainbilling.SettledByGateway {
		return nil
	}

	location, admins, err := r.locationAdmins(ctx, ev.LocationID)
	if err != nil {
		r.logger().Warn("cannot resolve location admins", "location_id", ev.LocationID, "error", err)
		return nil
	}
	adminMsg := message{
		recipients: location.AdminIDs,
		location:   ev.LocationID,
		title:      "Online payment received",
		body:       fmt.Sprintf("A tenant paid %s online for room %s.", amount, ev.RoomID),
		kind:       notifications.KindPaymentReceived,
		dataID:     string(ev.RecordID),
		adminOnly:  true,
	}
	if err := r.deliver(ctx, adminMsg); err != nil {
		return err
	}
	r.email(ctx, admins, "Online payment received at "+location.Name, paymentEmail(location, ev, amount))
	return nil
}

func (r *Relay) cycleCompleted(ctx context.Context, ev domainbilling.CycleCompletedEvent) error {
	location, _, err := r.locationAdmins(ctx, ev.LocationID)
	if err != nil {
		r.logger().Warn("cannot resolve location admins", "location_id", ev.LocationID, "error", err)
		return nil
	}
	amount := money.Money{Amount: ev.TotalReceived, Currency: ev.Currency}
	if err := r.deliver(ctx, message{
		recipients: location.AdminIDs,
		location:   ev.LocationID,
		title:      "Billing cycle completed",
		body:       fmt.Sprintf("All rent for %s has been collected (%s).", ev.Month, amount),
		kind:       notifications.KindCycleCompleted,
		dataID:     string(ev.CycleID),
		adminOnly:  true,
	}); err != nil {
		return err
	}
	if url, err := r.exportStatement(ctx, ev); err != nil {
		r.logger().Warn("statement export failed", "cycle_id", ev.CycleID, "error", err)
	} else if url != "" {
		r.logger().Info("statement exported", "cycle_id", ev.CycleID, "url", url)
	}
	return nil
}

// deliver stores an inbox entry per recipient and then pushes. Push failures
// are logged; the inbox write is the part worth retrying.
func (r *Relay) deliver(ctx context.Context, msg message) error {
	recipients := lo.Uniq(lo.Compact(msg.recipients))
	if len(recipients) == 0 {
		return nil
	}
	now := time.Now().UTC()
	items := lo.Map(recipients, func(id directory.UserID, _ int) *notifications.Notification {
		return &notifications.Notification{
			ID:         notifications.ID(uuid.NewString()),
			UserID:     id,
			LocationID: msg.location,
			Title:      msg.title,
			Body:       msg.body,
			Kind:       msg.kind,
			DataID:     msg.dataID,
			AdminOnly:  msg.adminOnly,
			CreatedAt:  now,
		}
	})
	err := handlersupport.RunInUnit(ctx, r.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		return unit.Notifications().Add(ctx, items...)
	})
	if err != nil {
		return fmt.Errorf("notify: store inbox: %w", err)
	}

	if r.Notifier == nil {
		return nil
	}
	ids := lo.Map(recipients, func(id directory.UserID, _ int) string { return string(id) })
	if err := r.Notifier.Notify(ctx, ids, msg.title, msg.body, msg.dataID); err != nil {
		r.logger().Warn("push notification failed", "kind", msg.kind, "recipients", len(ids), "error", err)
	}
	return nil
}

func (r *Relay) email(ctx context.Context, admins []*directory.User, subject, body string) {
	if r.Mailer == nil {
		return
	}
	to := lo.FilterMap(admins, func(u *directory.User, _ int) (string, bool) { return u.Email, u.Email != "" })
	if len(to) == 0 {
		return
	}
	if err := r.Mailer.Send(ctx, to, subject, body); err != nil {
		r.logger().Warn("admin email failed", "subject", subject, "error", err)
	}
}

func (r *Relay) locationAdmins(ctx context.Context, id directory.LocationID) (*directory.Location, []*directory.User, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, r.UoWFactory)
	if err != nil {
		return nil, nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	location, err := unit.Locations().ByID(execCtx, id)
	if err != nil {
		return nil, nil, err
	}
	admins, err := unit.Users().ByIDs(execCtx, location.AdminIDs)
	if err != nil {
		return nil, nil, err
	}
	return location, admins, nil
}

func (r *Relay) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Sink adapts the relay to the outbox delivery contract.
func (r *Relay) Sink() outbox.Sink {
	return outbox.SinkFunc(r.Handle)
}
