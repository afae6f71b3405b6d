package routes

import (
	"net/http"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"graphrag/internal/server/middleware"
	"graphrag/pkg/logger"
)

func QueryGraphHandler(c echo.Context) error {
	type queryParams struct {
		GraphID  string `param:"id" validate:"required"`
		Question string `json:"question" validate:"required"`
	}

	type queryResponse struct {
		Answer string `json:"answer"`
	}

	params := new(queryParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request params"})
	}

	svc := c.(*middleware.AppContext).App.Service
	ctx := c.Request().Context()

	answer, err := svc.Query(ctx, params.GraphID, params.Question)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			logger.Error("Failed to answer query", "graph", params.GraphID, "err", err)
		}
		return c.JSON(status, messageResponse{Message: errorMessage(err)})
	}

	return c.JSON(http.StatusOK, queryResponse{Answer: answer})
}
