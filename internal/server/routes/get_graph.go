package routes

import (
	"net/http"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"graphrag/internal/server/middleware"
	"graphrag/pkg/logger"
)

func GetGraphHandler(c echo.Context) error {
	type getGraphParams struct {
		GraphID string `param:"id" validate:"required"`
	}

	params := new(getGraphParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request params"})
	}

	svc := c.(*middleware.AppContext).App.Service
	ctx := c.Request().Context()

	export, err := svc.GetGraph(ctx, params.GraphID)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			logger.Error("Failed to export graph", "graph", params.GraphID, "err", err)
		}
		return c.JSON(status, messageResponse{Message: errorMessage(err)})
	}

	return c.JSON(http.StatusOK, export)
}
