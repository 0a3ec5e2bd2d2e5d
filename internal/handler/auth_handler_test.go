package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ndc-portal-api/internal/models"
	appErrors "github.com/noah-isme/ndc-portal-api/pkg/errors"
)

func TestAuthHandlerLoginCapturesClientMeta(t *testing.T) {
	svc := &stubAuthService{}
	h := NewAuthHandler(svc)

	c, w := newTestContext(http.MethodPost, "/auth/login", []byte(`{"email":"asha@example.edu","password":"secret1"}`))
	c.Request.Header.Set("User-Agent", "portal-web")

	h.Login(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.login)
	assert.Equal(t, "asha@example.edu", svc.login.Email)
	assert.Equal(t, "portal-web", svc.login.UserAgent)
}

func TestAuthHandlerLoginRejectsMalformedBody(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})

	c, w := newTestContext(http.MethodPost, "/auth/login", []byte(`{"email":`))

	h.Login(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeEnvelope(t, w).Error.Code)
}

func TestAuthHandlerLoginPropagatesServiceError(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{err: appErrors.ErrInvalidCredentials})

	c, w := newTestContext(http.MethodPost, "/auth/login", []byte(`{"email":"asha@example.edu","password":"nope"}`))

	h.Login(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerSignUpCreated(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})

	c, w := newTestContext(http.MethodPost, "/auth/signup", []byte(`{"email":"new@example.edu","password":"secret1","full_name":"New Student"}`))

	h.SignUp(c)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAuthHandlerMeRequiresClaims(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})

	c, w := newTestContext(http.MethodGet, "/auth/me", nil)
	h.Me(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newTestContext(http.MethodGet, "/auth/me", nil)
	withActor(c, "student-1", models.RoleStudent)
	h.Me(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student-1", decodeEnvelope(t, w).Data.(map[string]interface{})["id"])
}

func TestAuthHandlerLogoutWithoutBody(t *testing.T) {
	svc := &stubAuthService{}
	h := NewAuthHandler(svc)

	c, w := newTestContext(http.MethodPost, "/auth/logout", nil)
	withActor(c, "admin-1", models.RoleAdmin)

	h.Logout(c)
	assert.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, svc.loggedOut)
	assert.Empty(t, svc.loggedOut.RefreshToken)
}

func TestAuthHandlerChangePassword(t *testing.T) {
	svc := &stubAuthService{}
	h := NewAuthHandler(svc)

	c, w := newTestContext(http.MethodPut, "/profile/password", []byte(`{"old_password":"secret1","new_password":"secret2"}`))
	withActor(c, "student-1", models.RoleStudent)

	h.ChangePassword(c)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "student-1", svc.changedFor)

	svc = &stubAuthService{err: appErrors.Clone(appErrors.ErrInvalidCredentials, "current password is incorrect")}
	h = NewAuthHandler(svc)
	c, w = newTestContext(http.MethodPut, "/profile/password", []byte(`{"old_password":"bad","new_password":"secret2"}`))
	withActor(c, "student-1", models.RoleStudent)

	h.ChangePassword(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
