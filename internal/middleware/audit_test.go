package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/coaching-center-api/internal/models"
)

type auditSink struct {
	entries []*models.AuditLog
}

func (s *auditSink) CreateAuditLog(_ context.Context, entry *models.AuditLog) error {
	s.entries = append(s.entries, entry)
	return nil
}

func auditRouter(sink *auditSink, logger *zap.Logger, values interface{}, status int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/payments/:teacherId", func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
		c.Next()
	}, Audit(sink, logger, models.AuditActionSettlementCreate, "teacher_payments"), func(c *gin.Context) {
		SetAuditResource(c, "pay-1", values)
		c.Status(status)
	})
	return r
}

func TestAuditRecordsSuccessfulWrites(t *testing.T) {
	sink := &auditSink{}
	r := auditRouter(sink, nil, map[string]string{"month": "2024-03"}, http.StatusCreated)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payments/t1", nil))

	require.Len(t, sink.entries, 1)
	entry := sink.entries[0]
	assert.Equal(t, models.AuditActionSettlementCreate, entry.Action)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "pay-1", *entry.ResourceID)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "admin-1", *entry.UserID)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.NewValues, &body))
	assert.Equal(t, map[string]interface{}{"month": "2024-03"}, body["record"])
}

func TestAuditSkipsFailedWrites(t *testing.T) {
	sink := &auditSink{}
	r := auditRouter(sink, nil, nil, http.StatusConflict)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/payments/t1", nil))
	assert.Empty(t, sink.entries)
}

func TestAuditDropsUnencodableRecord(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sink := &auditSink{}
	r := auditRouter(sink, zap.New(core), map[string]interface{}{"bad": make(chan int)}, http.StatusCreated)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/payments/t1", nil))

	require.Len(t, sink.entries, 1)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(sink.entries[0].NewValues, &body))
	assert.NotContains(t, body, "record")
	assert.Equal(t, "POST", body["method"])
	assert.Equal(t, 1, logs.FilterMessage("failed to encode audit record").Len())
}
