package routes

import (
	"errors"
	"net/http"

	"graphrag/pkg/common"
)

type messageResponse struct {
	Message string `json:"message"`
}

// errorStatus maps an error kind to the HTTP status the client sees. Internal
// detail never leaves the process beyond a short message.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrMissingInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return "Graph not found"
	case errors.Is(err, common.ErrMissingInput):
		return "Missing input"
	case errors.Is(err, common.ErrInvalidInput):
		return "Invalid input"
	default:
		return "Internal server error"
	}
}
