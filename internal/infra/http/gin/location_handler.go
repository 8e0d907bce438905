package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"cspace/internal/app/commands"
	"cspace/internal/app/dto"
	"cspace/internal/app/handlers/revenue"
	"cspace/internal/app/handlers/settlement"
	"cspace/internal/app/queries"
)

type LocationsHTTP interface {
	Revenue(c *gin.Context)
	ConnectPayout(c *gin.Context)
}

type LocationHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

func (h LocationHandler) Revenue(c *gin.Context) {
	query := revenue.GetRevenueQuery{LocationID: c.Param("id")}
	result, err := queries.Ask[revenue.GetRevenueQuery, dto.Revenue](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type connectPayoutRequest struct {
	Code string `json:"code" binding:"required"`
}

func (h LocationHandler) ConnectPayout(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req connectPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	cmd := settlement.ConnectPayoutDestinationCommand{LocationID: c.Param("id"), ActorID: user.ID, Code: req.Code}
	result, err := commands.Dispatch[settlement.ConnectPayoutDestinationCommand, *dto.PayoutDestination](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ LocationsHTTP = LocationHandler{}
