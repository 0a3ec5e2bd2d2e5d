package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ndc-portal-api/internal/models"
	"github.com/noah-isme/ndc-portal-api/internal/service"
	appErrors "github.com/noah-isme/ndc-portal-api/pkg/errors"
)

type fakeValidator struct {
	claims *models.JWTClaims
}

func (f fakeValidator) ValidateToken(ctx context.Context, token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return f.claims, nil
}

type recordingAudit struct {
	logs []*models.AuditLog
}

func (r *recordingAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func newRouter(claims *models.JWTClaims, handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	chain := append([]gin.HandlerFunc{JWT(fakeValidator{claims: claims})}, handlers...)
	chain = append(chain, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.PUT("/requests/:id/approvals/:adminId", chain...)
	return router
}

func serve(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/requests/r1/approvals/admin-1", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestJWTRejectsMissingAndInvalidTokens(t *testing.T) {
	router := newRouter(&models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	assert.Equal(t, http.StatusUnauthorized, serve(router, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "Bearer bad").Code)
	assert.Equal(t, http.StatusNoContent, serve(router, "Bearer good").Code)
}

func TestRequireRolesAndSelf(t *testing.T) {
	guards := []gin.HandlerFunc{RequireRoles(models.RoleAdmin), RequireSelf("adminId")}

	self := newRouter(&models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}, guards...)
	assert.Equal(t, http.StatusNoContent, serve(self, "Bearer good").Code)

	other := newRouter(&models.JWTClaims{UserID: "admin-2", Role: models.RoleAdmin}, guards...)
	assert.Equal(t, http.StatusForbidden, serve(other, "Bearer good").Code)

	super := newRouter(&models.JWTClaims{UserID: "admin-1", Role: models.RoleSuperAdmin}, guards...)
	rec := serve(super, "Bearer good")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "FORBIDDEN"))
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", RequireRoles(models.RoleSuperAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestAuditRecordsSuccessfulRequestsOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	writer := &recordingAudit{}
	router := gin.New()
	router.GET("/files/photos", Audit(writer, nil, models.AuditActionPhotoDownload, models.AuditResourceRequest), func(c *gin.Context) {
		if c.Query("token") == "" {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/files/photos", nil))
	require.Empty(t, writer.logs)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/files/photos?token=abc", nil))
	require.Len(t, writer.logs, 1)
	assert.Equal(t, models.AuditActionPhotoDownload, writer.logs[0].Action)
	assert.Nil(t, writer.logs[0].UserID)
}

func TestMetricsLabelsUnmatchedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/requests/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/requests/abc", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	scrape := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := scrape.Body.String()
	assert.Contains(t, body, `path="/requests/:id"`)
	assert.Contains(t, body, `path="unmatched"`)
	assert.NotContains(t, body, `path="/nope"`)
}
