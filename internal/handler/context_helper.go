package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ndc-portal-api/internal/middleware"
	"github.com/noah-isme/ndc-portal-api/internal/models"
	appErrors "github.com/noah-isme/ndc-portal-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func requestMeta(c *gin.Context) models.LoginRequest {
	return models.LoginRequest{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

func bindError(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func pathParam(c *gin.Context, name string) string {
	return strings.TrimSpace(c.Param(name))
}
