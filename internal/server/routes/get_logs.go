package routes

import (
	"net/http"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"graphrag/internal/server/middleware"
	"graphrag/pkg/common"
	"graphrag/pkg/logger"
)

func GetUpdateLogHandler(c echo.Context) error {
	type getLogsParams struct {
		GraphID string `param:"id" validate:"required"`
	}

	type getLogsResponse struct {
		Logs []common.UpdateLogEntry `json:"logs"`
	}

	params := new(getLogsParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request params"})
	}

	svc := c.(*middleware.AppContext).App.Service
	ctx := c.Request().Context()

	logs, err := svc.GetUpdateLog(ctx, params.GraphID)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			logger.Error("Failed to read update log", "graph", params.GraphID, "err", err)
		}
		return c.JSON(status, messageResponse{Message: errorMessage(err)})
	}

	return c.JSON(http.StatusOK, getLogsResponse{Logs: logs})
}
