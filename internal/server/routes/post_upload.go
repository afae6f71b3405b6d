package routes

import (
	"io"
	"net/http"
	"unicode/utf8"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"graphrag/internal/server/middleware"
	"graphrag/pkg/common"
	"graphrag/pkg/logger"
)

// UploadHandler ingests text into a graph. Without a graph_id a new graph is
// created; with one, the text is applied as an incremental update. Text
// arrives as the "text" form field or a UTF-8 "file" upload.
func UploadHandler(c echo.Context) error {
	type uploadParams struct {
		GraphID string `form:"graph_id"`
		Text    string `form:"text"`
	}

	type uploadResponse struct {
		GraphID string              `json:"graph_id"`
		Graph   *common.GraphExport `json:"graph"`
	}

	params := new(uploadParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request params"})
	}

	text := params.Text
	if text == "" {
		fileHeader, err := c.FormFile("file")
		if err == nil {
			file, err := fileHeader.Open()
			if err != nil {
				return c.JSON(http.StatusBadRequest, messageResponse{Message: "Could not read uploaded file"})
			}
			defer file.Close()
			data, err := io.ReadAll(file)
			if err != nil {
				return c.JSON(http.StatusBadRequest, messageResponse{Message: "Could not read uploaded file"})
			}
			if !utf8.Valid(data) {
				return c.JSON(http.StatusBadRequest, messageResponse{Message: "File must be UTF-8 text"})
			}
			text = string(data)
		}
	}
	if text == "" {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Provide text or a file to upload"})
	}

	svc := c.(*middleware.AppContext).App.Service
	ctx := c.Request().Context()

	graphID, export, err := svc.UploadOrUpdate(ctx, params.GraphID, text)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			logger.Error("Failed to ingest upload", "graph", params.GraphID, "err", err)
		}
		return c.JSON(status, messageResponse{Message: errorMessage(err)})
	}

	return c.JSON(http.StatusOK, uploadResponse{GraphID: graphID, Graph: export})
}
