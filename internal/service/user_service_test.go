package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/ndc-portal-api/internal/dto"
	"github.com/noah-isme/ndc-portal-api/internal/models"
	"github.com/noah-isme/ndc-portal-api/internal/repository"
	appErrors "github.com/noah-isme/ndc-portal-api/pkg/errors"
)

type mockUserRepo struct {
	users     map[string]*models.User
	listUsers []models.User
	listCount int
	listErr   error
	filter    models.UserFilter
	auditLogs []*models.AuditLog
	revoked   []string
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.filter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listUsers, m.listCount, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = "generated"
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, user *models.User) error {
	return m.save(user)
}

func (m *mockUserRepo) UpdateRole(ctx context.Context, user *models.User) error {
	return m.save(user)
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revoked = append(m.revoked, userID)
	return nil
}

func (m *mockUserRepo) save(user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func TestUserServiceList(t *testing.T) {
	repo := &mockUserRepo{listUsers: []models.User{{ID: "1", Email: "a@example.com"}}, listCount: 1}
	svc := NewUserService(repo, nil, zap.NewNop())
	role := models.RoleAdmin
	users, pagination, err := svc.List(context.Background(), dto.UserQuery{Role: &role, Page: 1, PageSize: 10}, superAdmin())
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.TotalCount)
	require.NotNil(t, repo.filter.Role)
	assert.Equal(t, models.RoleAdmin, *repo.filter.Role)

	_, _, err = svc.List(context.Background(), dto.UserQuery{}, adminActor(testAdminA))
	require.Error(t, err)
}

func TestUserServiceCreate(t *testing.T) {
	repo := &mockUserRepo{users: make(map[string]*models.User)}
	svc := NewUserService(repo, nil, zap.NewNop())
	req := dto.CreateUserRequest{Email: " Library@Example.COM ", FullName: "Library Desk", Username: "library", Password: "secret1", Role: models.RoleAdmin}

	user, err := svc.Create(context.Background(), req, superAdmin())
	require.NoError(t, err)
	assert.Equal(t, "library@example.com", user.Email)
	assert.True(t, user.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")))
	assert.NotEmpty(t, repo.auditLogs)

	_, err = svc.Create(context.Background(), req, superAdmin())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateRejectsUnknownRole(t *testing.T) {
	svc := NewUserService(&mockUserRepo{}, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), dto.CreateUserRequest{Email: "x@example.com", FullName: "X", Password: "secret1", Role: 9}, superAdmin())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdateRole(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{testOwnerID: {ID: testOwnerID, Email: "a@example.com", Role: models.RoleStudent, Active: true}}}
	svc := NewUserService(repo, nil, zap.NewNop())
	role := models.RoleAdmin
	active := false

	user, err := svc.UpdateRole(context.Background(), testOwnerID, dto.UpdateRoleRequest{Role: &role, Active: &active}, superAdmin())
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.False(t, user.Active)
	assert.Equal(t, models.RoleAdmin, repo.users[testOwnerID].Role)
	assert.NotEmpty(t, repo.auditLogs)

	_, err = svc.UpdateRole(context.Background(), "11111111-2222-4333-8444-555555555555", dto.UpdateRoleRequest{Role: &role}, superAdmin())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.UpdateRole(context.Background(), "missing", dto.UpdateRoleRequest{Role: &role}, superAdmin())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.UpdateRole(context.Background(), testSuperID, dto.UpdateRoleRequest{Role: &role}, superAdmin())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdateRoleRevokesSessions(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{testAdminA: {ID: testAdminA, Email: "desk@example.com", Role: models.RoleAdmin, Active: true}}}
	svc := NewUserService(repo, nil, zap.NewNop())

	inactive := false
	_, err := svc.UpdateRole(context.Background(), testAdminA, dto.UpdateRoleRequest{Active: &inactive}, superAdmin())
	require.NoError(t, err)
	assert.Equal(t, []string{testAdminA}, repo.revoked)

	unchanged := false
	_, err = svc.UpdateRole(context.Background(), testAdminA, dto.UpdateRoleRequest{Active: &unchanged}, superAdmin())
	require.NoError(t, err)
	assert.Len(t, repo.revoked, 1)
}

func TestUserServiceProfileUpdate(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{testOwnerID: {ID: testOwnerID, Email: "rina@example.com", FullName: "Rina", Role: models.RoleStudent}}}
	svc := NewUserService(repo, nil, zap.NewNop())
	phone := " +628123456789 "
	username := "rina"

	user, err := svc.UpdateProfile(context.Background(), dto.UpdateProfileRequest{Phone: &phone, Username: &username}, student())
	require.NoError(t, err)
	assert.Equal(t, "+628123456789", user.Phone)
	assert.Equal(t, "rina", user.Username)
	assert.Equal(t, "Rina", user.FullName)

	profile, err := svc.Profile(context.Background(), student())
	require.NoError(t, err)
	assert.Equal(t, "rina", profile.Username)

	bad := "call me"
	_, err = svc.UpdateProfile(context.Background(), dto.UpdateProfileRequest{Phone: &bad}, student())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
