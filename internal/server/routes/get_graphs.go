package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"graphrag/internal/server/middleware"
)

// ListGraphsHandler returns the ids of all graphs currently live in the
// cache. Graphs that only exist as persisted snapshots are not listed.
func ListGraphsHandler(c echo.Context) error {
	svc := c.(*middleware.AppContext).App.Service
	ctx := c.Request().Context()

	type listResponse struct {
		GraphIDs []string `json:"graph_ids"`
	}
	return c.JSON(http.StatusOK, listResponse{GraphIDs: svc.ListGraphs(ctx)})
}
