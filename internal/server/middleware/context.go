package middleware

import (
	"github.com/labstack/echo/v4"

	"graphrag/pkg/pipeline"
)

// App holds the process-wide collaborators handlers need.
type App struct {
	Service      *pipeline.Service
	MasterAPIKey string
}

// AppContext wraps the echo context with application state.
type AppContext struct {
	echo.Context
	App *App
}

// AppContextMiddleware attaches the application state to every request.
func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{Context: c, App: app})
		}
	}
}
