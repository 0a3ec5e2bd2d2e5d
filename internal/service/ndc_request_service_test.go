package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/ndc-portal-api/internal/dto"
	"github.com/noah-isme/ndc-portal-api/internal/models"
	"github.com/noah-isme/ndc-portal-api/internal/repository"
	appErrors "github.com/noah-isme/ndc-portal-api/pkg/errors"
	"github.com/noah-isme/ndc-portal-api/pkg/storage"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type stubRequestRepo struct {
	created   *models.NDCRequest
	createErr error
	dupes     int
	attempts  []string
	approvals int
	byID      map[string]*models.NDCRequest
	owned     []models.NDCRequest
	listed    []models.NDCRequest
	total     int
	filter    models.NDCRequestFilter
}

func (s *stubRequestRepo) CreateWithApprovals(ctx context.Context, req *models.NDCRequest) (int, error) {
	s.attempts = append(s.attempts, req.TicketNumber)
	if len(s.attempts) <= s.dupes {
		return 0, repository.ErrDuplicate
	}
	if s.createErr != nil {
		return 0, s.createErr
	}
	req.ID = testRequestID
	s.created = req
	return s.approvals, nil
}

func (s *stubRequestRepo) FindByID(ctx context.Context, id string) (*models.NDCRequest, error) {
	if req, ok := s.byID[id]; ok {
		copy := *req
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubRequestRepo) ListByOwner(ctx context.Context, ownerID string) ([]models.NDCRequest, error) {
	return s.owned, nil
}

func (s *stubRequestRepo) List(ctx context.Context, filter models.NDCRequestFilter) ([]models.NDCRequest, int, error) {
	s.filter = filter
	return s.listed, s.total, nil
}

type stubCourses struct {
	names map[string]bool
}

func (s *stubCourses) FindByName(ctx context.Context, name string) (*models.Course, error) {
	for n := range s.names {
		if strings.EqualFold(n, name) {
			return &models.Course{ID: "course-1", Name: n}, nil
		}
	}
	return nil, sql.ErrNoRows
}

type stubSummarizer struct {
	result map[string]dto.ApprovalSummary
	ids    []string
}

func (s *stubSummarizer) Summaries(ctx context.Context, ids []string) (map[string]dto.ApprovalSummary, error) {
	s.ids = ids
	return s.result, nil
}

type memoryPhotoStore struct {
	objects map[string][]byte
	types   map[string]string
	putErr  error
	deleted []string
}

func newMemoryPhotoStore() *memoryPhotoStore {
	return &memoryPhotoStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryPhotoStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if m.putErr != nil {
		return "", m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.objects[key] = data
	m.types[key] = contentType
	return "https://photos.test/" + key, nil
}

func (m *memoryPhotoStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryPhotoStore) Delete(ctx context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	delete(m.objects, key)
	return nil
}

func (m *memoryPhotoStore) URL(ctx context.Context, key string) (string, error) {
	return "https://photos.test/fresh/" + key, nil
}

func validSubmission() dto.SubmitNDCRequest {
	return dto.SubmitNDCRequest{
		StudentName: " Rina Putri ",
		Course:      "computer science",
		Batch:       "2024",
		RollNumber:  "CS-042",
		PhoneNumber: "+628123456789",
		Email:       "Rina@Example.com",
		Address:     "Jl. Merdeka 1",
	}
}

func newRequestFixture() (*NDCRequestService, *stubRequestRepo, *memoryPhotoStore, *stubSummarizer) {
	repo := &stubRequestRepo{approvals: 3, byID: map[string]*models.NDCRequest{}}
	photos := newMemoryPhotoStore()
	summaries := &stubSummarizer{}
	svc := NewNDCRequestService(repo, &stubCourses{names: map[string]bool{"Computer Science": true}}, summaries, photos, &stubAuditWriter{}, NewMetricsService(), nil, zap.NewNop(), PhotoPolicy{MaxBytes: 1024})
	svc.ticket = func() (string, error) { return "NDC-000042", nil }
	return svc, repo, photos, summaries
}

func TestNDCRequestServiceSubmitWithoutPhoto(t *testing.T) {
	svc, repo, _, _ := newRequestFixture()

	result, err := svc.Submit(context.Background(), validSubmission(), nil, student())
	require.NoError(t, err)
	assert.Equal(t, 3, result.ApprovalCount)
	assert.Equal(t, "NDC-000042", repo.created.TicketNumber)
	assert.Equal(t, "Computer Science", repo.created.Course)
	assert.Equal(t, "Rina Putri", repo.created.StudentName)
	assert.Equal(t, "rina@example.com", repo.created.Email)
	assert.Equal(t, testOwnerID, repo.created.OwnerID)
	assert.Nil(t, repo.created.PhotoKey)
}

func TestNDCRequestServiceSubmitStoresPhoto(t *testing.T) {
	svc, repo, photos, _ := newRequestFixture()
	upload := &dto.PhotoUpload{Filename: "me.png", Size: int64(len(pngHeader)), Content: bytes.NewReader(pngHeader)}

	_, err := svc.Submit(context.Background(), validSubmission(), upload, student())
	require.NoError(t, err)
	require.NotNil(t, repo.created.PhotoKey)
	key := *repo.created.PhotoKey
	assert.True(t, strings.HasPrefix(key, testOwnerID+"/NDC-000042-"), key)
	assert.True(t, strings.HasSuffix(key, ".png"), key)
	assert.Equal(t, "image/png", photos.types[key])
	assert.Equal(t, "https://photos.test/"+key, *repo.created.PhotoURL)
}

func TestNDCRequestServiceSubmitRejectsBadPhotos(t *testing.T) {
	svc, _, photos, _ := newRequestFixture()

	textUpload := &dto.PhotoUpload{Content: strings.NewReader("definitely not an image")}
	_, err := svc.Submit(context.Background(), validSubmission(), textUpload, student())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 2048)...)
	_, err = svc.Submit(context.Background(), validSubmission(), &dto.PhotoUpload{Content: bytes.NewReader(big)}, student())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPayloadTooLarge.Code, appErrors.FromError(err).Code)
	assert.Empty(t, photos.objects)
}

func TestNDCRequestServiceSubmitValidation(t *testing.T) {
	svc, _, _, _ := newRequestFixture()

	req := validSubmission()
	req.PhoneNumber = "12-34"
	_, err := svc.Submit(context.Background(), req, nil, student())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	req = validSubmission()
	req.Course = "Astrology"
	_, err = svc.Submit(context.Background(), req, nil, student())
	require.Error(t, err)
	assert.Equal(t, "unknown course", appErrors.FromError(err).Message)
}

func TestNDCRequestServiceSubmitForbiddenForAdmins(t *testing.T) {
	svc, _, _, _ := newRequestFixture()

	_, err := svc.Submit(context.Background(), validSubmission(), nil, adminActor(testAdminA))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestNDCRequestServiceSubmitCompensatesOnFanoutFailure(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
	}{
		{name: "no admins", err: repository.ErrNoEligibleAdmins, code: appErrors.ErrNoApprovers.Code},
		{name: "fanout", err: fmt.Errorf("%w: insert approval rows: boom", repository.ErrFanout), code: appErrors.ErrFanoutFailed.Code},
		{name: "store", err: errors.New("connection refused"), code: appErrors.ErrUpstream.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, photos, _ := newRequestFixture()
			repo.createErr = tc.err
			upload := &dto.PhotoUpload{Content: bytes.NewReader(pngHeader)}

			_, err := svc.Submit(context.Background(), validSubmission(), upload, student())
			require.Error(t, err)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
			assert.Len(t, photos.deleted, 1)
			assert.Empty(t, photos.objects)
		})
	}
}

func TestNDCRequestServiceSubmitRetriesTicketCollision(t *testing.T) {
	svc, repo, photos, _ := newRequestFixture()
	repo.dupes = 1
	draws := []string{"NDC-000042", "NDC-000043"}
	svc.ticket = func() (string, error) {
		next := draws[0]
		draws = draws[1:]
		return next, nil
	}
	upload := &dto.PhotoUpload{Content: bytes.NewReader(pngHeader)}

	result, err := svc.Submit(context.Background(), validSubmission(), upload, student())
	require.NoError(t, err)
	assert.Equal(t, []string{"NDC-000042", "NDC-000043"}, repo.attempts)
	assert.Equal(t, "NDC-000043", result.Request.TicketNumber)
	assert.Empty(t, photos.deleted)
}

func TestNDCRequestServiceSubmitGivesUpAfterRepeatedCollisions(t *testing.T) {
	svc, repo, photos, _ := newRequestFixture()
	repo.dupes = maxTicketAttempts

	_, err := svc.Submit(context.Background(), validSubmission(), &dto.PhotoUpload{Content: bytes.NewReader(pngHeader)}, student())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Len(t, repo.attempts, maxTicketAttempts)
	assert.Len(t, photos.deleted, 1)
}

func TestNDCRequestServiceSubmitPhotoUploadFailure(t *testing.T) {
	svc, repo, photos, _ := newRequestFixture()
	photos.putErr = errors.New("bucket unavailable")

	_, err := svc.Submit(context.Background(), validSubmission(), &dto.PhotoUpload{Content: bytes.NewReader(pngHeader)}, student())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUpstream.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.created)
}

func TestNDCRequestServiceGetScopesAndRefreshesURL(t *testing.T) {
	svc, repo, _, _ := newRequestFixture()
	key := testOwnerID + "/NDC-000042-1.png"
	repo.byID[testRequestID] = &models.NDCRequest{ID: testRequestID, OwnerID: testOwnerID, PhotoKey: &key}

	got, err := svc.Get(context.Background(), testRequestID, student())
	require.NoError(t, err)
	require.NotNil(t, got.PhotoURL)
	assert.Equal(t, "https://photos.test/fresh/"+key, *got.PhotoURL)

	_, err = svc.Get(context.Background(), testRequestID, &models.JWTClaims{UserID: testAdminB, Role: models.RoleStudent})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Get(context.Background(), testRequestID, adminActor(testAdminA))
	require.NoError(t, err)
}

func TestNDCRequestServiceListAttachesSummaries(t *testing.T) {
	svc, repo, _, summaries := newRequestFixture()
	repo.listed = []models.NDCRequest{{ID: "r1"}, {ID: "r2"}}
	repo.total = 7
	summaries.result = map[string]dto.ApprovalSummary{
		"r1": {OverallStatus: dto.OverallApproved, ProgressPercent: 100},
		"r2": {OverallStatus: dto.OverallNoApprovers},
	}

	rows, pagination, err := svc.List(context.Background(), dto.NDCRequestQuery{Course: "CS", PageSize: 500}, &models.JWTClaims{UserID: testSuperID, Role: models.RoleSuperAdmin})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"r1", "r2"}, summaries.ids)
	assert.Equal(t, dto.OverallApproved, rows[0].Approval.OverallStatus)
	assert.Equal(t, dto.OverallNoApprovers, rows[1].Approval.OverallStatus)
	assert.Equal(t, "CS", repo.filter.Course)
	assert.Equal(t, 7, pagination.TotalCount)
	assert.Equal(t, 100, pagination.PageSize)

	_, _, err = svc.List(context.Background(), dto.NDCRequestQuery{}, adminActor(testAdminA))
	require.Error(t, err)
}

func TestNewTicketNumberFormat(t *testing.T) {
	validate := NewValidator()
	for i := 0; i < 20; i++ {
		ticket, err := newTicketNumber()
		require.NoError(t, err)
		assert.NoError(t, validate.Var(ticket, "ticket"), ticket)
	}
}
