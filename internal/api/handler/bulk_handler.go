package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/user-directory/internal/core/domain"
	"github.com/99minutos/user-directory/internal/core/ports"
)

// maxUploadBytes bounds the multipart part read for a bulk upload.
const maxUploadBytes = 10 << 20

// BulkHandler serves CSV bulk uploads.
type BulkHandler struct {
	importer ports.BulkImporter
}

func NewBulkHandler(importer ports.BulkImporter) *BulkHandler {
	return &BulkHandler{importer: importer}
}

// Upload handles POST /bulk_upload_users with a multipart "file" field.
//
// @Summary      Create users from a CSV file
// @Description  Columns first_name, last_name, email and password are required; org is optional.
// @Tags         users
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "CSV file"
// @Success      200   {object}  bulkResponse
// @Failure      400   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /bulk_upload_users [post]
func (h *BulkHandler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}
	if fh.Size > maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}

	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}
	defer f.Close()

	result, err := h.importer.Import(c.Request().Context(), fh.Filename, f)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return echo.NewHTTPError(http.StatusBadRequest, invalidInputMessage(err))
		}
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// invalidInputMessage drops the sentinel prefix from a wrapped error.
func invalidInputMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), domain.ErrInvalidInput.Error()+": ")
	if msg == "" {
		return domain.ErrInvalidInput.Error()
	}
	return msg
}
