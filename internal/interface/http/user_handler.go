package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/resume-analyzer-api/internal/application"
	"github.com/oksasatya/resume-analyzer-api/internal/interface/middleware"
	"github.com/oksasatya/resume-analyzer-api/pkg/response"
)

// AuditReader is satisfied by *elastic.AuditSink.
type AuditReader interface {
	Recent(ctx context.Context, userID string, size int) ([]application.AuditEvent, error)
}

type UserHandler struct {
	Svc    *application.AuthService
	Audit  AuditReader
	Logger *logrus.Logger
}

func NewUserHandler(svc *application.AuthService, audit AuditReader, logger *logrus.Logger) *UserHandler {
	return &UserHandler{Svc: svc, Audit: audit, Logger: logger}
}

// GetProfile GET /api/me
func (h *UserHandler) GetProfile(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserIDKey)
	u, err := h.Svc.Profile(c.Request.Context(), uid)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, u, "profile", nil)
}

// Activity GET /api/me/activity?size=n returns the caller's recent auth
// events. Empty when no audit backend is configured.
func (h *UserHandler) Activity(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserIDKey)
	if h.Audit == nil {
		response.Success(c, http.StatusOK, []application.AuditEvent{}, "activity", nil)
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	events, err := h.Audit.Recent(c.Request.Context(), uid, size)
	if err != nil {
		if h.Logger != nil {
			h.Logger.WithError(err).WithField("user_id", uid).Warn("audit search failed")
		}
		response.Error[any](c, http.StatusServiceUnavailable, "activity unavailable", nil)
		return
	}
	response.Success(c, http.StatusOK, events, "activity", nil)
}
