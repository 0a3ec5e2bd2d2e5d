package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/ndc-portal-api/pkg/errors"
	"github.com/noah-isme/ndc-portal-api/pkg/response"
	"github.com/noah-isme/ndc-portal-api/pkg/storage"
)

type photoDownloader interface {
	KeyFromToken(token string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// FileHandler serves photos kept on the local disk through signed links.
type FileHandler struct {
	photos photoDownloader
	logger *zap.Logger
}

// NewFileHandler constructs the handler.
func NewFileHandler(photos photoDownloader, logger *zap.Logger) *FileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileHandler{photos: photos, logger: logger}
}

// Photo godoc
// @Summary Download a student photo using a signed token
// @Tags Files
// @Produce image/png,image/jpeg
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/photos [get]
func (h *FileHandler) Photo(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "download token is required"))
		return
	}
	key, err := h.photos.KeyFromToken(token)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, http.StatusUnauthorized, "invalid or expired download token"))
		return
	}

	reader, err := h.photos.Get(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "photo not found"))
			return
		}
		h.logger.Error("failed to read photo", zap.String("key", key), zap.Error(err))
		response.Error(c, appErrors.Upstream(err, "failed to read photo"))
		return
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		response.Error(c, appErrors.Upstream(err, "failed to read photo"))
		return
	}

	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, mimetype.Detect(data).String(), data)
}
