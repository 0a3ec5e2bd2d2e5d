package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ndc-portal-api/internal/models"
)

func TestCourseHandlerList(t *testing.T) {
	h := NewCourseHandler(stubCourseService{})

	c, w := newTestContext(http.MethodGet, "/courses", nil)
	withActor(c, "student-1", models.RoleStudent)

	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	items := decodeEnvelope(t, w).Data.([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "B.Tech", items[0].(map[string]interface{})["name"])
}

func TestCourseHandlerCreate(t *testing.T) {
	h := NewCourseHandler(stubCourseService{})

	c, w := newTestContext(http.MethodPost, "/courses", []byte(`{"name":"MCA"}`))
	withActor(c, "root", models.RoleSuperAdmin)

	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "MCA", decodeEnvelope(t, w).Data.(map[string]interface{})["name"])
}
