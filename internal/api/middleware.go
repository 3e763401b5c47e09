package api

import (
	"strconv"
	"strings"
	"time"

	"pos-checkout/internal/apperrors"
	"pos-checkout/internal/models"
	"pos-checkout/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	sessionHeader     = "X-Session-ID"
	sessionContextKey = "session"
)

// sessionID reads the session from X-Session-ID or a bearer Authorization header
func sessionID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(sessionHeader)); id != "" {
		return id
	}
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// requireSession rejects requests without a live operator session
func (h *Handler) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := h.sessions.Authenticate(c.Request.Context(), sessionID(c))
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		c.Set(sessionContextKey, sess)
		c.Next()
	}
}

func currentSession(c *gin.Context) *models.Session {
	return c.MustGet(sessionContextKey).(*models.Session)
}

// writeError renders err as {"error": {"code", "message"}}
func writeError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		util.GetLogger().Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": errorBody(err)})
}

func errorBody(err error) gin.H {
	return gin.H{
		"code":    apperrors.Code(err),
		"message": apperrors.Message(err),
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
