package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"cspace/internal/infra/config"
	"cspace/internal/infra/obs"
)

type Handlers struct {
	Cycles    CyclesHTTP
	Records   RecordsHTTP
	Locations LocationsHTTP
	Me        MeHTTP
	Webhooks  WebhookHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter wires the routes; handlers left nil are not mounted.
func NewRouter(obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(obsMW.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key", userIDHeader},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	router.Use(Identity())

	registerSwaggerRoutes(router)

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Cycles != nil {
		cyclesGroup := api.Group("/cycles")
		cyclesGroup.POST("", h.Cycles.Create)
		cyclesGroup.GET("", h.Cycles.List)
		cyclesGroup.GET("/:id", h.Cycles.Get)
		cyclesGroup.POST("/:id/publish", h.Cycles.Publish)
		cyclesGroup.POST("/:id/reopen", h.Cycles.Reopen)
		cyclesGroup.DELETE("/:id", h.Cycles.Delete)
		cyclesGroup.GET("/:id/records", h.Cycles.Records)
		cyclesGroup.POST("/:id/records", h.Cycles.AddRecord)
		cyclesGroup.PATCH("/:id/records", h.Cycles.BulkUpdate)
	}
	if h.Records != nil {
		recordsGroup := api.Group("/records")
		recordsGroup.PATCH("/:id", h.Records.Update)
		recordsGroup.POST("/:id/cancel", h.Records.Cancel)
		recordsGroup.POST("/:id/pay", h.Records.Pay)
		recordsGroup.POST("/:id/checkout", h.Records.Checkout)
	}
	if h.Locations != nil {
		api.GET("/locations/:id/revenue", h.Locations.Revenue)
		api.POST("/locations/:id/payout-destination", h.Locations.ConnectPayout)
	}
	if h.Me != nil {
		api.GET("/ledger", h.Me.Ledger)
		api.GET("/me/notifications", h.Me.Notifications)
	}
	if h.Webhooks != nil {
		api.POST("/webhooks/gateway", h.Webhooks.Gateway)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
