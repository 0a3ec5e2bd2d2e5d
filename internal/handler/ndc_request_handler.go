package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ndc-portal-api/internal/dto"
	"github.com/noah-isme/ndc-portal-api/internal/models"
	"github.com/noah-isme/ndc-portal-api/pkg/response"
)

type ndcRequestService interface {
	Submit(ctx context.Context, req dto.SubmitNDCRequest, photo *dto.PhotoUpload, actor *models.JWTClaims) (*dto.SubmitNDCResult, error)
	ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.NDCRequest, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.NDCRequest, error)
	List(ctx context.Context, query dto.NDCRequestQuery, actor *models.JWTClaims) ([]dto.NDCRequestSummary, *models.Pagination, error)
}

// NDCRequestHandler exposes submission and retrieval of NDC requests.
type NDCRequestHandler struct {
	service ndcRequestService
}

// NewNDCRequestHandler constructs the handler.
func NewNDCRequestHandler(svc ndcRequestService) *NDCRequestHandler {
	return &NDCRequestHandler{service: svc}
}

// Submit godoc
// @Summary Submit an NDC request
// @Description Creates the request and one pending approval per active admin
// @Tags Requests
// @Accept multipart/form-data
// @Produce json
// @Param studentName formData string true "Student name"
// @Param course formData string true "Course"
// @Param batch formData string true "Batch"
// @Param rollNumber formData string true "Roll number"
// @Param phoneNumber formData string true "Phone number"
// @Param email formData string true "Email"
// @Param address formData string true "Address"
// @Param photo formData file false "Passport size photo (jpeg or png)"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Security BearerAuth
// @Router /requests [post]
func (h *NDCRequestHandler) Submit(c *gin.Context) {
	var req dto.SubmitNDCRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, bindError(err, "invalid request payload"))
		return
	}

	var photo *dto.PhotoUpload
	header, err := c.FormFile("photo")
	switch {
	case err == nil:
		file, openErr := header.Open()
		if openErr != nil {
			response.Error(c, bindError(openErr, "failed to read photo"))
			return
		}
		defer file.Close()
		photo = &dto.PhotoUpload{Filename: header.Filename, Size: header.Size, Content: file}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		response.Error(c, bindError(err, "invalid photo upload"))
		return
	}

	result, err := h.service.Submit(c.Request.Context(), req, photo, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListMine godoc
// @Summary List own requests
// @Tags Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /requests/mine [get]
func (h *NDCRequestHandler) ListMine(c *gin.Context) {
	items, err := h.service.ListMine(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// List godoc
// @Summary List all requests with approval progress
// @Tags Requests
// @Produce json
// @Param course query string false "Course"
// @Param batch query string false "Batch"
// @Param search query string false "Name, roll number or ticket"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Param sort_order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /requests [get]
func (h *NDCRequestHandler) List(c *gin.Context) {
	var query dto.NDCRequestQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	rows, pagination, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

// Get godoc
// @Summary Get a request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /requests/{id} [get]
func (h *NDCRequestHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), pathParam(c, "id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}
