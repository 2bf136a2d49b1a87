package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/coaching-center-api/internal/models"
)

const (
	auditResourceIDKey = "audit_resource_id"
	auditValuesKey     = "audit_values"
)

// AuditLogWriter persists audit entries.
type AuditLogWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SetAuditResource attaches the affected record to the audit entry written
// for the current request.
func SetAuditResource(c *gin.Context, resourceID string, values interface{}) {
	if c == nil {
		return
	}
	if resourceID != "" {
		c.Set(auditResourceIDKey, resourceID)
	}
	if values != nil {
		c.Set(auditValuesKey, values)
	}
}

// Audit creates a middleware that records audit logs after successful requests.
func Audit(repo AuditLogWriter, logger *zap.Logger, action, resource string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if repo == nil || c.Writer.Status() >= 400 {
			return
		}

		var userID *string
		if claims, ok := c.Get(ContextUserKey); ok {
			if user, ok := claims.(*models.JWTClaims); ok {
				id := user.UserID
				userID = &id
			}
		}

		var resourceID *string
		if value := c.GetString(auditResourceIDKey); value != "" {
			resourceID = &value
		}

		payload := map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		}
		if values, ok := c.Get(auditValuesKey); ok {
			payload["record"] = values
		}
		body, err := json.Marshal(payload)
		if err != nil {
			logger.Warn("failed to encode audit record", zap.String("action", action), zap.Error(err))
			delete(payload, "record")
			body, err = json.Marshal(payload)
			if err != nil {
				body = nil
			}
		}

		err = repo.CreateAuditLog(c.Request.Context(), &models.AuditLog{
			UserID:     userID,
			Action:     action,
			Resource:   resource,
			ResourceID: resourceID,
			NewValues:  body,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
		})
		if err != nil {
			logger.Warn("failed to write audit log", zap.String("action", action), zap.String("resource", resource), zap.Error(err))
		}
	}
}
