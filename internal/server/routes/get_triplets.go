package routes

import (
	"net/http"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"graphrag/internal/server/middleware"
	"graphrag/pkg/common"
)

func GetTripletsHandler(c echo.Context) error {
	type getTripletsParams struct {
		GraphID string `param:"id" validate:"required"`
	}

	type getTripletsResponse struct {
		Triplets []common.Triplet `json:"triplets"`
	}

	params := new(getTripletsParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request params"})
	}

	svc := c.(*middleware.AppContext).App.Service
	ctx := c.Request().Context()

	triplets, err := svc.GetTriplets(ctx, params.GraphID)
	if err != nil {
		return c.JSON(errorStatus(err), messageResponse{Message: errorMessage(err)})
	}

	return c.JSON(http.StatusOK, getTripletsResponse{Triplets: triplets})
}
