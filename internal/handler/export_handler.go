package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ndc-portal-api/internal/dto"
	"github.com/noah-isme/ndc-portal-api/internal/models"
	"github.com/noah-isme/ndc-portal-api/internal/service"
	"github.com/noah-isme/ndc-portal-api/pkg/response"
)

type exportService interface {
	RequestPDF(ctx context.Context, requestID string, actor *models.JWTClaims) (*service.ExportFile, error)
	RequestsCSV(ctx context.Context, query dto.NDCRequestQuery, actor *models.JWTClaims) (*service.ExportFile, error)
}

// ExportHandler streams certificate PDFs and request CSV reports.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc exportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// RequestPDF godoc
// @Summary Download a request certificate as PDF
// @Tags Exports
// @Produce application/pdf
// @Param id path string true "Request ID"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /requests/{id}/export.pdf [get]
func (h *ExportHandler) RequestPDF(c *gin.Context) {
	file, err := h.service.RequestPDF(c.Request.Context(), pathParam(c, "id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// RequestsCSV godoc
// @Summary Export requests with approval summaries as CSV
// @Tags Exports
// @Produce text/csv
// @Param search query string false "Search by name, roll number or ticket"
// @Param course query string false "Course filter"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /requests/export.csv [get]
func (h *ExportHandler) RequestsCSV(c *gin.Context) {
	var query dto.NDCRequestQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	file, err := h.service.RequestsCSV(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
