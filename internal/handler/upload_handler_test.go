package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coaching-center-api/internal/service"
	appErrors "github.com/noah-isme/coaching-center-api/pkg/errors"
)

type uploadServiceStub struct {
	limit    int64
	received []byte
	deleted  []string
}

func (s *uploadServiceStub) MaxFileBytes() int64 { return s.limit }

func (s *uploadServiceStub) UploadImage(_ context.Context, raw []byte) (*service.UploadedImage, error) {
	s.received = raw
	if bytes.HasPrefix(raw, []byte("text")) {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia, "unsupported image format")
	}
	return &service.UploadedImage{Key: "images/abc.png", URL: "https://cdn.example.com/images/abc.png", ContentType: "image/png"}, nil
}

func (s *uploadServiceStub) DeleteImage(_ context.Context, key string) error {
	if !strings.HasPrefix(key, "images/") {
		return appErrors.Clone(appErrors.ErrValidation, "key is outside the upload area")
	}
	s.deleted = append(s.deleted, key)
	return nil
}

func multipartRequest(t *testing.T, field string, payload []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, "photo.png")
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/uploads/images", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func uploadTestRouter(stub *uploadServiceStub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewUploadHandler(stub)
	r.POST("/uploads/images", h.UploadImage)
	r.DELETE("/uploads/images/*key", h.DeleteImage)
	return r
}

func TestUploadHandlerStoresImage(t *testing.T) {
	stub := &uploadServiceStub{limit: 1024}
	w := performRequest(uploadTestRouter(stub), multipartRequest(t, "file", []byte("\x89PNG fake")))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "https://cdn.example.com/images/abc.png")
	assert.Equal(t, []byte("\x89PNG fake"), stub.received)
}

func TestUploadHandlerRejects(t *testing.T) {
	tests := []struct {
		name   string
		field  string
		data   []byte
		status int
	}{
		{name: "missing field", field: "photo", data: []byte("\x89PNG"), status: http.StatusBadRequest},
		{name: "too large", field: "file", data: bytes.Repeat([]byte("a"), 2048), status: http.StatusRequestEntityTooLarge},
		{name: "not an image", field: "file", data: []byte("text/plain"), status: http.StatusUnsupportedMediaType},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stub := &uploadServiceStub{limit: 1024}
			w := performRequest(uploadTestRouter(stub), multipartRequest(t, tc.field, tc.data))
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestUploadHandlerDeleteImage(t *testing.T) {
	stub := &uploadServiceStub{limit: 1024}
	r := uploadTestRouter(stub)

	w := performRequest(r, httptest.NewRequest(http.MethodDelete, "/uploads/images/images/20240301/abc.png", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"images/20240301/abc.png"}, stub.deleted)

	w = performRequest(r, httptest.NewRequest(http.MethodDelete, "/uploads/images/secrets/key.pem", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
