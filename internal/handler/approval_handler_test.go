package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ndc-portal-api/internal/dto"
	"github.com/noah-isme/ndc-portal-api/internal/models"
	appErrors "github.com/noah-isme/ndc-portal-api/pkg/errors"
)

func TestApprovalHandlerTrack(t *testing.T) {
	svc := &stubApprovalService{progress: &dto.ApprovalProgress{
		RequestID:       "req-1",
		ApprovalSummary: dto.ApprovalSummary{TotalAdmins: 2, Approved: 1, Pending: 1, ProgressPercent: 50, OverallStatus: dto.OverallInReview},
	}}
	h := NewApprovalHandler(svc)

	c, w := newTestContext(http.MethodGet, "/requests/req-1/approvals", nil)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	withActor(c, "student-1", models.RoleStudent)

	h.Track(c)
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	data := env.Data.(map[string]interface{})
	assert.Equal(t, "In Review", data["overallStatus"])
	assert.EqualValues(t, 50, data["progressPercent"])
}

func TestApprovalHandlerTrackNoApprovers(t *testing.T) {
	h := NewApprovalHandler(&stubApprovalService{err: appErrors.ErrNoApprovers})

	c, w := newTestContext(http.MethodGet, "/requests/req-1/approvals", nil)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	withActor(c, "student-1", models.RoleStudent)

	h.Track(c)
	require.Equal(t, http.StatusConflict, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrNoApprovers.Code, env.Error.Code)
}

func TestApprovalHandlerRecordDecision(t *testing.T) {
	svc := &stubApprovalService{}
	h := NewApprovalHandler(svc)

	c, w := newTestContext(http.MethodPut, "/requests/req-1/approvals/admin-1", []byte(`{"decision":"rejected","remarks":"library fine unpaid"}`))
	c.Params = gin.Params{{Key: "id", Value: "req-1"}, {Key: "adminId", Value: "admin-1"}}
	withActor(c, "admin-1", models.RoleAdmin)

	h.RecordDecision(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.decision)
	assert.Equal(t, models.ApprovalRejected, svc.decision.Decision)
	assert.Equal(t, "library fine unpaid", svc.decision.Remarks)
}

func TestApprovalHandlerRecordDecisionRejectsMalformedBody(t *testing.T) {
	svc := &stubApprovalService{}
	h := NewApprovalHandler(svc)

	c, w := newTestContext(http.MethodPut, "/requests/req-1/approvals/admin-1", []byte(`{"decision":`))
	c.Params = gin.Params{{Key: "id", Value: "req-1"}, {Key: "adminId", Value: "admin-1"}}
	withActor(c, "admin-1", models.RoleAdmin)

	h.RecordDecision(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, svc.decision)
}

func TestApprovalHandlerReopenNotRejected(t *testing.T) {
	h := NewApprovalHandler(&stubApprovalService{err: appErrors.ErrNotRejected})

	c, w := newTestContext(http.MethodPost, "/requests/req-1/approvals/admin-1/review", nil)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}, {Key: "adminId", Value: "admin-1"}}
	withActor(c, "student-1", models.RoleStudent)

	h.ReopenReview(c)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}
