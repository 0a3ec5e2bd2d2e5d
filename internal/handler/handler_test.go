package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ndc-portal-api/internal/dto"
	"github.com/noah-isme/ndc-portal-api/internal/middleware"
	"github.com/noah-isme/ndc-portal-api/internal/models"
	"github.com/noah-isme/ndc-portal-api/internal/service"
	"github.com/noah-isme/ndc-portal-api/pkg/response"
)

func newTestContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func withActor(c *gin.Context, id string, role models.UserRole) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: id, Role: role})
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

type stubAuthService struct {
	claims     *models.JWTClaims
	login      *models.LoginRequest
	changedFor string
	loggedOut  *models.LogoutRequest
	err        error
}

func (s *stubAuthService) SignUp(ctx context.Context, req models.SignUpRequest, meta models.LoginRequest) (*models.LoginResponse, error) {
	return &models.LoginResponse{}, nil
}

func (s *stubAuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.login = &req
	return &models.LoginResponse{}, nil
}

func (s *stubAuthService) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{}, nil
}

func (s *stubAuthService) Logout(ctx context.Context, req models.LogoutRequest, claims *models.JWTClaims, meta models.LoginRequest) error {
	s.loggedOut = &req
	return nil
}

func (s *stubAuthService) Me(ctx context.Context, claims *models.JWTClaims) (*models.UserInfo, error) {
	return &models.UserInfo{ID: claims.UserID}, nil
}

func (s *stubAuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	if s.err != nil {
		return s.err
	}
	s.changedFor = userID
	return nil
}

func (s *stubAuthService) ValidateToken(ctx context.Context, token string) (*models.JWTClaims, error) {
	return s.claims, nil
}

type stubUserService struct{}

func (stubUserService) Profile(ctx context.Context, actor *models.JWTClaims) (*models.User, error) {
	return &models.User{ID: actor.UserID}, nil
}

func (stubUserService) UpdateProfile(ctx context.Context, req dto.UpdateProfileRequest, actor *models.JWTClaims) (*models.User, error) {
	return &models.User{ID: actor.UserID}, nil
}

func (stubUserService) List(ctx context.Context, query dto.UserQuery, actor *models.JWTClaims) ([]models.User, *models.Pagination, error) {
	return nil, &models.Pagination{}, nil
}

func (stubUserService) Create(ctx context.Context, req dto.CreateUserRequest, actor *models.JWTClaims) (*models.User, error) {
	return &models.User{}, nil
}

func (stubUserService) UpdateRole(ctx context.Context, id string, req dto.UpdateRoleRequest, actor *models.JWTClaims) (*models.User, error) {
	return &models.User{ID: id}, nil
}

type stubCourseService struct{}

func (stubCourseService) List(ctx context.Context) ([]models.Course, error) {
	return []models.Course{{ID: "c1", Name: "B.Tech"}}, nil
}

func (stubCourseService) Create(ctx context.Context, req dto.CreateCourseRequest, actor *models.JWTClaims) (*models.Course, error) {
	return &models.Course{ID: "c2", Name: req.Name}, nil
}

type stubRequestService struct {
	submitted  *dto.SubmitNDCRequest
	photoBytes []byte
	err        error
}

func (s *stubRequestService) Submit(ctx context.Context, req dto.SubmitNDCRequest, photo *dto.PhotoUpload, actor *models.JWTClaims) (*dto.SubmitNDCResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.submitted = &req
	if photo != nil {
		data, err := io.ReadAll(photo.Content)
		if err != nil {
			return nil, err
		}
		s.photoBytes = data
	}
	return &dto.SubmitNDCResult{Request: &models.NDCRequest{ID: "req-1", TicketNumber: "NDC-000001"}, ApprovalCount: 2}, nil
}

func (s *stubRequestService) ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.NDCRequest, error) {
	return []models.NDCRequest{}, nil
}

func (s *stubRequestService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.NDCRequest, error) {
	return &models.NDCRequest{ID: id}, nil
}

func (s *stubRequestService) List(ctx context.Context, query dto.NDCRequestQuery, actor *models.JWTClaims) ([]dto.NDCRequestSummary, *models.Pagination, error) {
	return []dto.NDCRequestSummary{}, &models.Pagination{Page: 1}, nil
}

type stubApprovalService struct {
	progress *dto.ApprovalProgress
	decision *dto.RecordDecisionRequest
	err      error
}

func (s *stubApprovalService) Track(ctx context.Context, requestID string, actor *models.JWTClaims) (*dto.ApprovalProgress, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.progress, nil
}

func (s *stubApprovalService) TrackByTicket(ctx context.Context, ticket string, actor *models.JWTClaims) (*dto.ApprovalProgress, error) {
	return s.Track(ctx, ticket, actor)
}

func (s *stubApprovalService) RecordDecision(ctx context.Context, requestID, adminID string, req dto.RecordDecisionRequest, actor *models.JWTClaims) (*models.Approval, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.decision = &req
	return &models.Approval{RequestID: requestID, AdminID: adminID, Status: req.Decision}, nil
}

func (s *stubApprovalService) ReopenReview(ctx context.Context, requestID, adminID string, actor *models.JWTClaims) (*models.Approval, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Approval{RequestID: requestID, AdminID: adminID, Status: models.ApprovalPending}, nil
}

func (s *stubApprovalService) PendingForAdmin(ctx context.Context, actor *models.JWTClaims) ([]models.PendingApproval, error) {
	return []models.PendingApproval{}, nil
}

type stubExportService struct {
	err error
}

func (s *stubExportService) RequestPDF(ctx context.Context, requestID string, actor *models.JWTClaims) (*service.ExportFile, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &service.ExportFile{Filename: "NDC_Request_NDC-000001.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.3")}, nil
}

func (s *stubExportService) RequestsCSV(ctx context.Context, query dto.NDCRequestQuery, actor *models.JWTClaims) (*service.ExportFile, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &service.ExportFile{Filename: "ndc_requests_20261016.csv", ContentType: "text/csv", Data: []byte("Ticket Number\n")}, nil
}
