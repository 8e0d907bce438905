package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"cspace/internal/app/dto"
	ledgerapp "cspace/internal/app/handlers/ledger"
	"cspace/internal/app/handlers/notify"
	"cspace/internal/app/queries"
)

type MeHTTP interface {
	Notifications(c *gin.Context)
	Ledger(c *gin.Context)
}

type MeHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h MeHandler) Notifications(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	limit, ok := optionalInt(c, "limit")
	if !ok {
		return
	}
	query := notify.ListNotificationsQuery{UserID: user.ID, Limit: limit}
	result, err := queries.Ask[notify.ListNotificationsQuery, dto.NotificationCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Ledger lists entries filtered by payer or location. With neither given it
// shows the caller's own payments.
func (h MeHandler) Ledger(c *gin.Context) {
	from, ok := optionalDate(c, "from")
	if !ok {
		return
	}
	to, ok := optionalDate(c, "to")
	if !ok {
		return
	}
	offset, ok := optionalInt(c, "offset")
	if !ok {
		return
	}
	limit, ok := optionalInt(c, "limit")
	if !ok {
		return
	}
	query := ledgerapp.ListLedgerQuery{
		PayerID:    c.Query("payer_id"),
		LocationID: c.Query("location_id"),
		From:       from,
		To:         to,
		Offset:     offset,
		Limit:      limit,
	}
	if query.PayerID == "" && query.LocationID == "" {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		query.PayerID = user.ID
	}
	result, err := queries.Ask[ledgerapp.ListLedgerQuery, dto.LedgerCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ MeHTTP = MeHandler{}
