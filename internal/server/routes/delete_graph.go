package routes

import (
	"net/http"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"graphrag/internal/server/middleware"
	"graphrag/pkg/logger"
)

// ResetGraphHandler evicts the graph from the cache. The persisted snapshot
// survives unless purge=true is passed.
func ResetGraphHandler(c echo.Context) error {
	type resetParams struct {
		GraphID string `param:"id" validate:"required"`
		Purge   bool   `query:"purge"`
	}

	params := new(resetParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request params"})
	}

	svc := c.(*middleware.AppContext).App.Service
	ctx := c.Request().Context()

	// Purge before evicting so the clear serializes with the live
	// pipeline's persists.
	if params.Purge {
		if err := svc.PurgeSnapshot(ctx, params.GraphID); err != nil {
			logger.Error("Failed to purge snapshot", "graph", params.GraphID, "err", err)
			return c.JSON(http.StatusInternalServerError, messageResponse{Message: "Internal server error"})
		}
	}
	if err := svc.Reset(ctx, params.GraphID); err != nil {
		return c.JSON(errorStatus(err), messageResponse{Message: errorMessage(err)})
	}

	return c.JSON(http.StatusOK, messageResponse{Message: "Graph reset successfully"})
}
