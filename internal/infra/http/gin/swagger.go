package ginserver

import (
	_ "embed"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
)

//go:embed swagger/openapi.json
var swaggerSpec []byte

//go:embed swagger/index.html
var swaggerHTML string

const swaggerSpecPath = "/swagger/doc.json"

// registerSwaggerRoutes serves the OpenAPI document for the billing API and a
// Swagger UI page that loads it.
func registerSwaggerRoutes(router gin.IRoutes) {
	page := []byte(strings.ReplaceAll(swaggerHTML, "{{SPEC_URL}}", swaggerSpecPath))
	router.GET(swaggerSpecPath, func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", swaggerSpec)
	})
	router.GET("/swagger", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", page)
	})
}
