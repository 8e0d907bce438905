package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"cspace/internal/app/handlers/settlement"
)

const signatureHeader = "Stripe-Signature"

// maxWebhookBytes caps the body read from the gateway.
const maxWebhookBytes = 64 << 10

type WebhookHTTP interface {
	Gateway(c *gin.Context)
}

type WebhookHandler struct {
	Ingestor *settlement.WebhookIngestor
	Logger   *slog.Logger
}

func (h WebhookHandler) Gateway(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes)
	payload, err := c.GetRawData()
	if err != nil {
		badRequest(c, "unreadable body")
		return
	}
	if err := h.Ingestor.Ingest(c.Request.Context(), payload, c.GetHeader(signatureHeader)); err != nil {
		if h.Logger != nil {
			h.Logger.WarnContext(c.Request.Context(), "webhook not accepted", "error", err)
		}
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

var _ WebhookHTTP = WebhookHandler{}
