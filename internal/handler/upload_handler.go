package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coaching-center-api/internal/service"
	appErrors "github.com/noah-isme/coaching-center-api/pkg/errors"
	"github.com/noah-isme/coaching-center-api/pkg/response"
)

type uploadService interface {
	MaxFileBytes() int64
	UploadImage(ctx context.Context, raw []byte) (*service.UploadedImage, error)
	DeleteImage(ctx context.Context, key string) error
}

// UploadHandler accepts profile photo uploads.
type UploadHandler struct {
	uploads uploadService
}

// NewUploadHandler constructs UploadHandler.
func NewUploadHandler(uploads uploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// UploadImage godoc
// @Summary Upload an image
// @Description Multipart field "file". The image is resized and stored; the public URL is returned.
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Image"
// @Success 201 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /uploads/images [post]
func (h *UploadHandler) UploadImage(c *gin.Context) {
	limit := h.uploads.MaxFileBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+1024*1024)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, "image exceeds upload limit"))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "multipart field file is required"))
		return
	}
	if header.Size > limit {
		response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, "image exceeds upload limit"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "could not read upload"))
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "could not read upload"))
		return
	}
	uploaded, err := h.uploads.UploadImage(c.Request.Context(), raw)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, uploaded)
}

// DeleteImage godoc
// @Summary Delete an uploaded image
// @Tags Uploads
// @Param key path string true "Object key returned by the upload"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Router /uploads/images/{key} [delete]
func (h *UploadHandler) DeleteImage(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "key is required"))
		return
	}
	if err := h.uploads.DeleteImage(c.Request.Context(), key); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
