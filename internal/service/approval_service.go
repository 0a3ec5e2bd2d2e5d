package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ndc-portal-api/internal/dto"
	"github.com/noah-isme/ndc-portal-api/internal/models"
	"github.com/noah-isme/ndc-portal-api/internal/repository"
	"github.com/noah-isme/ndc-portal-api/pkg/config"
	appErrors "github.com/noah-isme/ndc-portal-api/pkg/errors"
)

type approvalRepository interface {
	ListByRequest(ctx context.Context, requestID string) ([]models.Approval, error)
	ListByRequests(ctx context.Context, requestIDs []string) ([]models.Approval, error)
	UpdateDecision(ctx context.Context, requestID, adminID string, status models.ApprovalStatus, remarks *string, at time.Time) (*models.Approval, error)
	UpsertDecision(ctx context.Context, requestID, adminID string, status models.ApprovalStatus, remarks *string, at time.Time) (*models.Approval, error)
	Reopen(ctx context.Context, requestID, adminID string, at time.Time) (*models.Approval, bool, error)
	PendingForAdmin(ctx context.Context, adminID string, includeUnassigned bool) ([]models.PendingApproval, error)
}

type requestReader interface {
	FindByID(ctx context.Context, id string) (*models.NDCRequest, error)
	FindByTicket(ctx context.Context, ticket string) (*models.NDCRequest, error)
}

type approverDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListEligibleAdmins(ctx context.Context) ([]models.AdminSummary, error)
	ListAdminsByIDs(ctx context.Context, ids []string) ([]models.AdminSummary, error)
}

// ApprovalConfig selects the eligibility and reopen policies.
type ApprovalConfig struct {
	Eligibility  string
	ReopenPolicy string
}

// ApprovalService aggregates approval progress and records admin decisions.
type ApprovalService struct {
	approvals approvalRepository
	requests  requestReader
	admins    approverDirectory
	audit     auditTrail
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    ApprovalConfig
	now       func() time.Time
}

// NewApprovalService constructs the service.
func NewApprovalService(approvals approvalRepository, requests requestReader, admins approverDirectory, audit auditWriter, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ApprovalConfig) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if cfg.Eligibility == "" {
		cfg.Eligibility = config.EligibilityDynamic
	}
	if cfg.ReopenPolicy == "" {
		cfg.ReopenPolicy = config.ReopenPolicyOwnerOrStaff
	}
	return &ApprovalService{
		approvals: approvals,
		requests:  requests,
		admins:    admins,
		audit:     auditTrail{writer: audit, logger: logger, source: "approval-service"},
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Track computes the live approval progress of a request by id.
func (s *ApprovalService) Track(ctx context.Context, requestID string, actor *models.JWTClaims) (*dto.ApprovalProgress, error) {
	if err := s.validator.Var(requestID, "required,uuid"); err != nil {
		return nil, validationError(err, "invalid request id")
	}
	req, err := s.loadRequest(ctx, s.requests.FindByID, requestID)
	if err != nil {
		return nil, err
	}
	return s.track(ctx, req, actor)
}

// TrackByTicket computes the live approval progress of a request by ticket number.
func (s *ApprovalService) TrackByTicket(ctx context.Context, ticket string, actor *models.JWTClaims) (*dto.ApprovalProgress, error) {
	ticket = strings.ToUpper(strings.TrimSpace(ticket))
	if err := s.validator.Var(ticket, "required,ticket"); err != nil {
		return nil, validationError(err, "invalid ticket number")
	}
	req, err := s.loadRequest(ctx, s.requests.FindByTicket, ticket)
	if err != nil {
		return nil, err
	}
	return s.track(ctx, req, actor)
}

func (s *ApprovalService) track(ctx context.Context, req *models.NDCRequest, actor *models.JWTClaims) (*dto.ApprovalProgress, error) {
	if err := authorizeRequestView(req, actor); err != nil {
		return nil, err
	}

	approvals, err := s.approvals.ListByRequest(ctx, req.ID)
	if err != nil {
		return nil, appErrors.Upstream(err, "failed to load approvals")
	}
	admins, err := s.eligibleAdmins(ctx, approvals)
	if err != nil {
		return nil, err
	}

	summary, items, err := AggregateProgress(admins, approvals)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTrack(summary.OverallStatus)

	return &dto.ApprovalProgress{
		RequestID:       req.ID,
		TicketNumber:    req.TicketNumber,
		ApprovalSummary: summary,
		StatusList:      items,
	}, nil
}

// Summaries computes the aggregate of many requests with one approval query and one admin query.
// Requests without eligible admins report "No Approvers" instead of failing the batch.
func (s *ApprovalService) Summaries(ctx context.Context, requestIDs []string) (map[string]dto.ApprovalSummary, error) {
	result := make(map[string]dto.ApprovalSummary, len(requestIDs))
	if len(requestIDs) == 0 {
		return result, nil
	}

	approvals, err := s.approvals.ListByRequests(ctx, requestIDs)
	if err != nil {
		return nil, appErrors.Upstream(err, "failed to load approvals")
	}
	byRequest := make(map[string][]models.Approval, len(requestIDs))
	for _, a := range approvals {
		byRequest[a.RequestID] = append(byRequest[a.RequestID], a)
	}

	admins, err := s.eligibleAdmins(ctx, approvals)
	if err != nil {
		return nil, err
	}

	for _, id := range requestIDs {
		rows := byRequest[id]
		eligible := admins
		if s.config.Eligibility == config.EligibilitySnapshot {
			eligible = adminsHoldingRows(admins, rows)
		}
		summary, _, err := AggregateProgress(eligible, rows)
		if errors.Is(err, appErrors.ErrNoApprovers) {
			summary = dto.ApprovalSummary{OverallStatus: dto.OverallNoApprovers}
		} else if err != nil {
			return nil, err
		}
		result[id] = summary
	}
	return result, nil
}

// RecordDecision stores the acting admin's approve/reject decision on a request.
func (s *ApprovalService) RecordDecision(ctx context.Context, requestID, adminID string, req dto.RecordDecisionRequest, actor *models.JWTClaims) (*models.Approval, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin || actor.UserID != adminID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned admin can record this decision")
	}
	if err := s.validator.Var(requestID, "required,uuid"); err != nil {
		return nil, validationError(err, "invalid request id")
	}
	req.Remarks = strings.TrimSpace(req.Remarks)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid decision payload")
	}
	if err := s.requireActiveAdmin(ctx, actor.UserID); err != nil {
		return nil, err
	}
	if _, err := s.loadRequest(ctx, s.requests.FindByID, requestID); err != nil {
		return nil, err
	}

	record := s.approvals.UpdateDecision
	if s.config.Eligibility == config.EligibilityDynamic {
		record = s.approvals.UpsertDecision
	}
	approval, err := record(ctx, requestID, adminID, req.Decision, optionalString(req.Remarks), s.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNoApprovalAssignment
		}
		return nil, appErrors.Upstream(err, "failed to record decision")
	}

	s.metrics.RecordDecision(string(req.Decision))
	s.audit.emit(ctx, actor.UserID, models.AuditActionApprovalDecision, models.AuditResourceApproval, requestID, map[string]interface{}{
		"adminId":  adminID,
		"decision": req.Decision,
		"remarks":  req.Remarks,
	})
	return approval, nil
}

// ReopenReview sends a rejected approval back to the admin as pending with review requested.
// Repeating the call on an already reopened row returns it unchanged.
func (s *ApprovalService) ReopenReview(ctx context.Context, requestID, adminID string, actor *models.JWTClaims) (*models.Approval, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Var(requestID, "required,uuid"); err != nil {
		return nil, validationError(err, "invalid request id")
	}
	if err := s.validator.Var(adminID, "required,uuid"); err != nil {
		return nil, validationError(err, "invalid admin id")
	}

	req, err := s.loadRequest(ctx, s.requests.FindByID, requestID)
	if err != nil {
		return nil, err
	}
	if !s.canReopen(req, actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to request a review for this request")
	}

	approval, changed, err := s.approvals.Reopen(ctx, requestID, adminID, s.now())
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.ErrNoApprovalAssignment
		case errors.Is(err, repository.ErrApprovalNotRejected):
			return nil, appErrors.ErrNotRejected
		default:
			return nil, appErrors.Upstream(err, "failed to reopen review")
		}
	}

	if changed {
		s.metrics.RecordReopen()
		s.audit.emit(ctx, actor.UserID, models.AuditActionApprovalReviewRequest, models.AuditResourceApproval, requestID, map[string]interface{}{
			"adminId": adminID,
		})
	}
	return approval, nil
}

// PendingForAdmin returns the acting admin's work queue. Under dynamic eligibility it also
// lists requests fanned out before the admin joined the pool.
func (s *ApprovalService) PendingForAdmin(ctx context.Context, actor *models.JWTClaims) ([]models.PendingApproval, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	if err := s.requireActiveAdmin(ctx, actor.UserID); err != nil {
		return nil, err
	}
	items, err := s.approvals.PendingForAdmin(ctx, actor.UserID, s.config.Eligibility == config.EligibilityDynamic)
	if err != nil {
		return nil, appErrors.Upstream(err, "failed to load pending approvals")
	}
	return items, nil
}

// requireActiveAdmin re-reads the account so a token minted before a demotion or
// deactivation cannot keep acting as an approver.
func (s *ApprovalService) requireActiveAdmin(ctx context.Context, userID string) error {
	user, err := s.admins.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrForbidden, "approver account no longer exists")
		}
		return appErrors.Upstream(err, "failed to load approver")
	}
	if user.Role != models.RoleAdmin || !user.Active {
		return appErrors.Clone(appErrors.ErrForbidden, "account is not an active approver")
	}
	return nil
}

func (s *ApprovalService) canReopen(req *models.NDCRequest, actor *models.JWTClaims) bool {
	if actor.UserID == req.OwnerID {
		return true
	}
	if s.config.ReopenPolicy != config.ReopenPolicyOwnerOrStaff {
		return false
	}
	return actor.Role == models.RoleAdmin || actor.Role == models.RoleSuperAdmin
}

// eligibleAdmins resolves the approver set under the configured policy. Under the snapshot
// policy the set is the admins holding one of the given rows.
func (s *ApprovalService) eligibleAdmins(ctx context.Context, approvals []models.Approval) ([]models.AdminSummary, error) {
	var (
		admins []models.AdminSummary
		err    error
	)
	if s.config.Eligibility == config.EligibilitySnapshot {
		admins, err = s.admins.ListAdminsByIDs(ctx, distinctAdminIDs(approvals))
	} else {
		admins, err = s.admins.ListEligibleAdmins(ctx)
	}
	if err != nil {
		return nil, appErrors.Upstream(err, "failed to load approvers")
	}
	return admins, nil
}

func (s *ApprovalService) loadRequest(ctx context.Context, find func(context.Context, string) (*models.NDCRequest, error), key string) (*models.NDCRequest, error) {
	req, err := find(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Upstream(err, "failed to load request")
	}
	return req, nil
}

// authorizeRequestView lets students see their own requests and staff see every request.
func authorizeRequestView(req *models.NDCRequest, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	switch actor.Role {
	case models.RoleAdmin, models.RoleSuperAdmin:
		return nil
	case models.RoleStudent:
		if req.OwnerID == actor.UserID {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "request belongs to another user")
}

func distinctAdminIDs(approvals []models.Approval) []string {
	seen := make(map[string]struct{}, len(approvals))
	ids := make([]string, 0, len(approvals))
	for _, a := range approvals {
		if _, ok := seen[a.AdminID]; ok {
			continue
		}
		seen[a.AdminID] = struct{}{}
		ids = append(ids, a.AdminID)
	}
	return ids
}

func adminsHoldingRows(admins []models.AdminSummary, rows []models.Approval) []models.AdminSummary {
	holders := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		holders[r.AdminID] = struct{}{}
	}
	out := make([]models.AdminSummary, 0, len(rows))
	for _, a := range admins {
		if _, ok := holders[a.ID]; ok {
			out = append(out, a)
		}
	}
	return out
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	v := strings.TrimSpace(value)
	return &v
}
