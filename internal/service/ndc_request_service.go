package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ndc-portal-api/internal/dto"
	"github.com/noah-isme/ndc-portal-api/internal/models"
	"github.com/noah-isme/ndc-portal-api/internal/repository"
	appErrors "github.com/noah-isme/ndc-portal-api/pkg/errors"
	"github.com/noah-isme/ndc-portal-api/pkg/middleware/requestid"
	"github.com/noah-isme/ndc-portal-api/pkg/storage"
)

type ndcRequestRepository interface {
	CreateWithApprovals(ctx context.Context, req *models.NDCRequest) (int, error)
	FindByID(ctx context.Context, id string) (*models.NDCRequest, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.NDCRequest, error)
	List(ctx context.Context, filter models.NDCRequestFilter) ([]models.NDCRequest, int, error)
}

type courseLookup interface {
	FindByName(ctx context.Context, name string) (*models.Course, error)
}

type approvalSummarizer interface {
	Summaries(ctx context.Context, requestIDs []string) (map[string]dto.ApprovalSummary, error)
}

// PhotoPolicy bounds accepted passport photos.
type PhotoPolicy struct {
	MaxBytes     int64
	AllowedTypes []string
}

// NDCRequestService handles submission and retrieval of NDC requests.
type NDCRequestService struct {
	requests  ndcRequestRepository
	courses   courseLookup
	approvals approvalSummarizer
	photos    storage.PhotoStore
	audit     auditTrail
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	policy    PhotoPolicy
	now       func() time.Time
	ticket    func() (string, error)
}

// NewNDCRequestService constructs the service.
func NewNDCRequestService(requests ndcRequestRepository, courses courseLookup, approvals approvalSummarizer, photos storage.PhotoStore, audit auditWriter, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, policy PhotoPolicy) *NDCRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if policy.MaxBytes <= 0 {
		policy.MaxBytes = 2 * 1024 * 1024
	}
	if len(policy.AllowedTypes) == 0 {
		policy.AllowedTypes = []string{"image/jpeg", "image/png"}
	}
	return &NDCRequestService{
		requests:  requests,
		courses:   courses,
		approvals: approvals,
		photos:    photos,
		audit:     auditTrail{writer: audit, logger: logger, source: "ndc-request-service"},
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		policy:    policy,
		now:       func() time.Time { return time.Now().UTC() },
		ticket:    newTicketNumber,
	}
}

// Submit stores the optional photo, then creates the request and fans out one pending approval per admin.
// The photo is removed again when the request cannot be created.
func (s *NDCRequestService) Submit(ctx context.Context, req dto.SubmitNDCRequest, photo *dto.PhotoUpload, actor *models.JWTClaims) (result *dto.SubmitNDCResult, err error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleStudent && actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can submit requests")
	}
	defer func() {
		if err != nil {
			s.metrics.RecordSubmission(submissionOutcome(err), 0)
		}
	}()

	req = trimSubmission(req)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid request payload")
	}

	course, err := s.courses.FindByName(ctx, req.Course)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown course")
		}
		return nil, appErrors.Upstream(err, "failed to load course")
	}

	ticket, err := s.ticket()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate ticket number")
	}

	record := &models.NDCRequest{
		TicketNumber: ticket,
		OwnerID:      actor.UserID,
		StudentName:  req.StudentName,
		Course:       course.Name,
		Batch:        req.Batch,
		RollNumber:   req.RollNumber,
		PhoneNumber:  req.PhoneNumber,
		Email:        strings.ToLower(req.Email),
		Address:      req.Address,
		Status:       models.RequestStatusPending,
	}

	if photo != nil && photo.Content != nil {
		key, url, err := s.storePhoto(ctx, actor.UserID, ticket, photo)
		if err != nil {
			return nil, err
		}
		record.PhotoKey = &key
		record.PhotoURL = &url
	}

	count, err := s.createWithFreshTicket(ctx, record)
	if err != nil {
		s.discardPhoto(record.PhotoKey)
		switch {
		case errors.Is(err, repository.ErrNoEligibleAdmins):
			return nil, appErrors.ErrNoApprovers
		case errors.Is(err, repository.ErrFanout):
			return nil, appErrors.WithCause(appErrors.ErrFanoutFailed, err)
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrConflict, "could not allocate a unique ticket number, please resubmit")
		case errors.Is(err, errTicketGeneration):
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate ticket number")
		default:
			return nil, appErrors.Upstream(err, "failed to create request")
		}
	}

	s.metrics.RecordSubmission("created", count)
	s.audit.emit(ctx, actor.UserID, models.AuditActionRequestSubmit, models.AuditResourceRequest, record.ID, map[string]interface{}{
		"ticketNumber":  record.TicketNumber,
		"approvalCount": count,
	})
	s.logger.Info("ndc request submitted",
		zap.String("request_id", record.ID),
		zap.String("ticket", record.TicketNumber),
		zap.Int("approvals", count),
		zap.String("correlation_id", requestid.FromContext(ctx)),
	)

	return &dto.SubmitNDCResult{Request: record, ApprovalCount: count}, nil
}

const maxTicketAttempts = 5

var errTicketGeneration = errors.New("ticket generation failed")

// createWithFreshTicket persists the request, drawing a new ticket number
// whenever the store reports a collision. The photo key keeps the first draw.
func (s *NDCRequestService) createWithFreshTicket(ctx context.Context, record *models.NDCRequest) (int, error) {
	var err error
	for attempt := 1; attempt <= maxTicketAttempts; attempt++ {
		var count int
		count, err = s.requests.CreateWithApprovals(ctx, record)
		if !errors.Is(err, repository.ErrDuplicate) {
			return count, err
		}
		s.logger.Warn("ticket number collision",
			zap.String("ticket", record.TicketNumber),
			zap.Int("attempt", attempt),
		)
		if attempt == maxTicketAttempts {
			break
		}
		ticket, genErr := s.ticket()
		if genErr != nil {
			return 0, fmt.Errorf("%w: %v", errTicketGeneration, genErr)
		}
		record.TicketNumber = ticket
	}
	return 0, err
}

// ListMine returns the caller's own requests, newest first.
func (s *NDCRequestService) ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.NDCRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	items, err := s.requests.ListByOwner(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Upstream(err, "failed to list requests")
	}
	for i := range items {
		s.refreshPhotoURL(ctx, &items[i])
	}
	return items, nil
}

// Get returns a single request visible to the caller.
func (s *NDCRequestService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.NDCRequest, error) {
	if err := s.validator.Var(id, "required,uuid"); err != nil {
		return nil, validationError(err, "invalid request id")
	}
	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Upstream(err, "failed to load request")
	}
	if err := authorizeRequestView(req, actor); err != nil {
		return nil, err
	}
	s.refreshPhotoURL(ctx, req)
	return req, nil
}

// List returns the super-admin dashboard rows with their aggregate approval state.
func (s *NDCRequestService) List(ctx context.Context, query dto.NDCRequestQuery, actor *models.JWTClaims) ([]dto.NDCRequestSummary, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleSuperAdmin {
		return nil, nil, appErrors.ErrForbidden
	}

	filter := models.NDCRequestFilter{
		Course:    query.Course,
		Batch:     query.Batch,
		Search:    query.Search,
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortOrder: query.SortOrder,
	}
	items, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Upstream(err, "failed to list requests")
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	summaries, err := s.approvals.Summaries(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	rows := make([]dto.NDCRequestSummary, 0, len(items))
	for i := range items {
		s.refreshPhotoURL(ctx, &items[i])
		rows = append(rows, dto.NDCRequestSummary{NDCRequest: items[i], Approval: summaries[items[i].ID]})
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return rows, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

func (s *NDCRequestService) storePhoto(ctx context.Context, ownerID, ticket string, photo *dto.PhotoUpload) (string, string, error) {
	if photo.Size > s.policy.MaxBytes {
		return "", "", appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("photo exceeds %d bytes", s.policy.MaxBytes))
	}
	data, err := io.ReadAll(io.LimitReader(photo.Content, s.policy.MaxBytes+1))
	if err != nil {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "failed to read photo")
	}
	if int64(len(data)) > s.policy.MaxBytes {
		return "", "", appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("photo exceeds %d bytes", s.policy.MaxBytes))
	}
	if len(data) == 0 {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "photo is empty")
	}

	detected := mimetype.Detect(data)
	if !s.allowedType(detected) {
		return "", "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("photo type %s is not allowed", detected.String()))
	}

	key := fmt.Sprintf("%s/%s-%d%s", ownerID, ticket, s.now().Unix(), detected.Extension())
	url, err := s.photos.Put(ctx, key, bytes.NewReader(data), int64(len(data)), detected.String())
	if err != nil {
		return "", "", appErrors.Upstream(err, "failed to store photo")
	}
	return key, url, nil
}

func (s *NDCRequestService) allowedType(detected *mimetype.MIME) bool {
	for _, allowed := range s.policy.AllowedTypes {
		if detected.Is(allowed) {
			return true
		}
	}
	return false
}

func (s *NDCRequestService) discardPhoto(key *string) {
	if key == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.photos.Delete(ctx, *key); err != nil {
		s.logger.Warn("failed to remove orphaned photo", zap.String("key", *key), zap.Error(err))
	}
}

// refreshPhotoURL replaces the stored URL with a fresh one; the stored value is kept on failure.
func (s *NDCRequestService) refreshPhotoURL(ctx context.Context, req *models.NDCRequest) {
	if req.PhotoKey == nil || s.photos == nil {
		return
	}
	url, err := s.photos.URL(ctx, *req.PhotoKey)
	if err != nil {
		s.logger.Warn("failed to refresh photo url", zap.String("request_id", req.ID), zap.Error(err))
		return
	}
	req.PhotoURL = &url
}

func trimSubmission(req dto.SubmitNDCRequest) dto.SubmitNDCRequest {
	req.StudentName = strings.TrimSpace(req.StudentName)
	req.Course = strings.TrimSpace(req.Course)
	req.Batch = strings.TrimSpace(req.Batch)
	req.RollNumber = strings.TrimSpace(req.RollNumber)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.Email = strings.TrimSpace(req.Email)
	req.Address = strings.TrimSpace(req.Address)
	return req
}

func submissionOutcome(err error) string {
	switch appErrors.FromError(err).Code {
	case appErrors.ErrValidation.Code, appErrors.ErrPayloadTooLarge.Code:
		return "invalid"
	case appErrors.ErrNoApprovers.Code:
		return "no_approvers"
	case appErrors.ErrForbidden.Code, appErrors.ErrUnauthorized.Code:
		return "forbidden"
	default:
		return "failed"
	}
}

// newTicketNumber returns "NDC-" followed by six random digits.
func newTicketNumber() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("NDC-%06d", n.Int64()), nil
}
