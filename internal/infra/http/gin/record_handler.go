package ginserver

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"cspace/internal/app/commands"
	"cspace/internal/app/dto"
	"cspace/internal/app/handlers/payments"
	"cspace/internal/app/handlers/settlement"
	"cspace/internal/app/policies"
)

type RecordsHTTP interface {
	Update(c *gin.Context)
	Cancel(c *gin.Context)
	Pay(c *gin.Context)
	Checkout(c *gin.Context)
}

type RecordHandler struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

func (h RecordHandler) Update(c *gin.Context) {
	var fields payments.RecordFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		badRequest(c, err.Error())
		return
	}
	cmd := payments.UpdateRecordCommand{RecordID: c.Param("id"), Fields: fields}
	result, err := commands.Dispatch[payments.UpdateRecordCommand, *dto.Record](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h RecordHandler) Cancel(c *gin.Context) {
	cmd := payments.CancelRecordCommand{RecordID: c.Param("id")}
	result, err := commands.Dispatch[payments.CancelRecordCommand, *dto.Record](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type payRequest struct {
	PayerID string `json:"payer_id"`
}

// Pay records a manual settlement. The payer defaults to the caller so an
// admin can mark a tenant's cash payment by naming them.
func (h RecordHandler) Pay(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err.Error())
		return
	}
	payer := req.PayerID
	if payer == "" {
		payer = user.ID
	}
	cmd := settlement.ManualPayCommand{
		PaymentID:       c.Param("id"),
		PayerID:         payer,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[settlement.ManualPayCommand, *settlement.Outcome](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type checkoutRequest struct {
	SuccessURL string `json:"success_url" binding:"required"`
	CancelURL  string `json:"cancel_url" binding:"required"`
}

func (h RecordHandler) Checkout(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	cmd := settlement.InitiateCheckoutCommand{
		PaymentID:       c.Param("id"),
		PayerID:         user.ID,
		SuccessURL:      req.SuccessURL,
		CancelURL:       req.CancelURL,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[settlement.InitiateCheckoutCommand, *policies.CheckoutSession](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ RecordsHTTP = RecordHandler{}
