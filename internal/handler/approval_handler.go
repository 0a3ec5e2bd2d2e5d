package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ndc-portal-api/internal/dto"
	"github.com/noah-isme/ndc-portal-api/internal/models"
	"github.com/noah-isme/ndc-portal-api/pkg/response"
)

type approvalService interface {
	Track(ctx context.Context, requestID string, actor *models.JWTClaims) (*dto.ApprovalProgress, error)
	TrackByTicket(ctx context.Context, ticket string, actor *models.JWTClaims) (*dto.ApprovalProgress, error)
	RecordDecision(ctx context.Context, requestID, adminID string, req dto.RecordDecisionRequest, actor *models.JWTClaims) (*models.Approval, error)
	ReopenReview(ctx context.Context, requestID, adminID string, actor *models.JWTClaims) (*models.Approval, error)
	PendingForAdmin(ctx context.Context, actor *models.JWTClaims) ([]models.PendingApproval, error)
}

// ApprovalHandler exposes tracking and decision endpoints.
type ApprovalHandler struct {
	service approvalService
}

// NewApprovalHandler constructs the handler.
func NewApprovalHandler(svc approvalService) *ApprovalHandler {
	return &ApprovalHandler{service: svc}
}

// Track godoc
// @Summary Approval progress of a request
// @Tags Approvals
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope "No approvers configured"
// @Security BearerAuth
// @Router /requests/{id}/approvals [get]
func (h *ApprovalHandler) Track(c *gin.Context) {
	progress, err := h.service.Track(c.Request.Context(), pathParam(c, "id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}

// TrackByTicket godoc
// @Summary Approval progress by ticket number
// @Tags Approvals
// @Produce json
// @Param ticket path string true "Ticket number (NDC-123456)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /track/{ticket} [get]
func (h *ApprovalHandler) TrackByTicket(c *gin.Context) {
	progress, err := h.service.TrackByTicket(c.Request.Context(), pathParam(c, "ticket"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}

// RecordDecision godoc
// @Summary Approve or reject a request
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param adminId path string true "Admin ID (must be the caller)"
// @Param payload body dto.RecordDecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /requests/{id}/approvals/{adminId} [put]
func (h *ApprovalHandler) RecordDecision(c *gin.Context) {
	var req dto.RecordDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid decision payload"))
		return
	}
	approval, err := h.service.RecordDecision(c.Request.Context(), pathParam(c, "id"), pathParam(c, "adminId"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, approval, nil)
}

// ReopenReview godoc
// @Summary Request a review of a rejection
// @Tags Approvals
// @Produce json
// @Param id path string true "Request ID"
// @Param adminId path string true "Admin ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope "Approval is not rejected"
// @Security BearerAuth
// @Router /requests/{id}/approvals/{adminId}/review [post]
func (h *ApprovalHandler) ReopenReview(c *gin.Context) {
	approval, err := h.service.ReopenReview(c.Request.Context(), pathParam(c, "id"), pathParam(c, "adminId"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, approval, nil)
}

// Pending godoc
// @Summary Pending approvals of the calling admin
// @Tags Approvals
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /approvals/pending [get]
func (h *ApprovalHandler) Pending(c *gin.Context) {
	items, err := h.service.PendingForAdmin(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
