package server

import (
	"github.com/labstack/echo/v4"

	"graphrag/internal/server/middleware"
	"graphrag/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("", middleware.AuthMiddleware)

	apiRoutes.POST("/upload", routes.UploadHandler)

	// Graph routes
	apiRoutes.GET("/graphs", routes.ListGraphsHandler)
	apiRoutes.POST("/graphs/:id/query", routes.QueryGraphHandler)
	apiRoutes.POST("/graphs/:id/chat", routes.ChatGraphHandler)
	apiRoutes.GET("/graphs/:id", routes.GetGraphHandler)
	apiRoutes.GET("/graphs/:id/triplets", routes.GetTripletsHandler)
	apiRoutes.GET("/graphs/:id/logs", routes.GetUpdateLogHandler)
	apiRoutes.DELETE("/graphs/:id", routes.ResetGraphHandler)
}
