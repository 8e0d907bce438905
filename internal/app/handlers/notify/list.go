package notify

import (
	"context"

	"github.com/samber/lo"

	"cspace/internal/app/dto"
	handlersupport "cspace/internal/app/handlers/support"
	"cspace/internal/app/queries"
	"cspace/internal/app/uow"
	"cspace/internal/domain/directory"
	"cspace/internal/domain/notifications"
)

const listNotificationsKey = "notifications.list"

type ListNotificationsQuery struct {
	UserID string `validate:"required"`
	Limit  int
}

func (q ListNotificationsQuery) Key() string { return listNotificationsKey }

type ListNotificationsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListNotificationsHandler) Handle(ctx context.Context, q ListNotificationsQuery) (dto.NotificationCollection, error) {
	_, limit := handlersupport.Page(0, q.Limit)
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.NotificationCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	items, err := unit.Notifications().ListByUser(execCtx, directory.UserID(q.UserID), limit)
	if err != nil {
		return dto.NotificationCollection{}, err
	}
	return dto.NotificationCollection{
		Items: lo.Map(items, func(n *notifications.Notification, _ int) dto.Notification { return dto.MapNotification(n) }),
	}, nil
}

var _ queries.Handler[ListNotificationsQuery, dto.NotificationCollection] = (*ListNotificationsHandler)(nil)
