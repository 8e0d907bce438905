package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"cspace/internal/app/commands"
	"cspace/internal/app/dto"
	"cspace/internal/app/handlers/cycles"
	"cspace/internal/app/handlers/payments"
	"cspace/internal/app/queries"
)

type CyclesHTTP interface {
	Create(c *gin.Context)
	List(c *gin.Context)
	Get(c *gin.Context)
	Publish(c *gin.Context)
	Reopen(c *gin.Context)
	Delete(c *gin.Context)
	Records(c *gin.Context)
	AddRecord(c *gin.Context)
	BulkUpdate(c *gin.Context)
}

type CycleHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createCycleRequest struct {
	LocationID string `json:"location_id" binding:"required"`
	AnchorDate string `json:"anchor_date" binding:"required"`
}

func (h CycleHandler) Create(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req createCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	anchor, err := parseDate(req.AnchorDate)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	cmd := cycles.CreateCycleCommand{
		LocationID:      req.LocationID,
		CreatedBy:       user.ID,
		AnchorDate:      anchor,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[cycles.CreateCycleCommand, *dto.CycleDetail](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h CycleHandler) List(c *gin.Context) {
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
	query := cycles.ListCyclesQuery{
		LocationID: c.Query("location_id"),
		CreatedBy:  c.Query("created_by"),
		Status:     c.Query("status"),
		From:       from,
		To:         to,
		Offset:     offset,
		Limit:      limit,
	}
	result, err := queries.Ask[cycles.ListCyclesQuery, dto.CycleCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Get goes through the command bus because reading a cycle may complete it.
func (h CycleHandler) Get(c *gin.Context) {
	cmd := cycles.InspectCycleCommand{CycleID: c.Param("id")}
	result, err := commands.Dispatch[cycles.InspectCycleCommand, *dto.CycleDetail](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CycleHandler) Publish(c *gin.Context) {
	cmd := cycles.PublishCycleCommand{CycleID: c.Param("id")}
	result, err := commands.Dispatch[cycles.PublishCycleCommand, *dto.CycleDetail](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CycleHandler) Reopen(c *gin.Context) {
	cmd := cycles.ReopenCycleCommand{CycleID: c.Param("id")}
	result, err := commands.Dispatch[cycles.ReopenCycleCommand, *dto.CycleDetail](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CycleHandler) Delete(c *gin.Context) {
	cmd := cycles.DeleteCycleCommand{CycleID: c.Param("id")}
	result, err := commands.Dispatch[cycles.DeleteCycleCommand, *cycles.DeleteCycleResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CycleHandler) Records(c *gin.Context) {
	query := payments.ListRecordsQuery{CycleID: c.Param("id")}
	result, err := queries.Ask[payments.ListRecordsQuery, dto.RecordCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type addRecordRequest struct {
	RoomID string `json:"room_id" binding:"required"`
}

func (h CycleHandler) AddRecord(c *gin.Context) {
	var req addRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	cmd := payments.AddRecordCommand{CycleID: c.Param("id"), RoomID: req.RoomID}
	result, err := commands.Dispatch[payments.AddRecordCommand, *dto.Record](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h CycleHandler) BulkUpdate(c *gin.Context) {
	var fields payments.RecordFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		badRequest(c, err.Error())
		return
	}
	cmd := payments.BulkUpdateRecordsCommand{CycleID: c.Param("id"), Fields: fields}
	result, err := commands.Dispatch[payments.BulkUpdateRecordsCommand, *dto.RecordCollection](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ CyclesHTTP = CycleHandler{}
