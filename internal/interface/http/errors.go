package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/resume-analyzer-api/internal/application"
	"github.com/oksasatya/resume-analyzer-api/pkg/response"
)

// statusFor maps an auth failure kind to its HTTP status.
func statusFor(k application.ErrorKind) int {
	switch k {
	case application.KindDuplicateEmail:
		return http.StatusConflict
	case application.KindInvalidCredentials:
		return http.StatusUnauthorized
	case application.KindAccountInactive:
		return http.StatusForbidden
	case application.KindAccountLocked:
		return http.StatusLocked
	case application.KindInvalidRefreshToken:
		return http.StatusUnauthorized
	case application.KindUserNotFound:
		return http.StatusNotFound
	case application.KindInvalidOrExpiredToken, application.KindInvalidVerificationToken,
		application.KindPasswordTooLong:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError answers with the typed failure's message, or a generic 500
// for anything untyped. Untyped errors are logged, never echoed.
func writeError(c *gin.Context, logger *logrus.Logger, err error) {
	if k, ok := application.KindOf(err); ok {
		response.Error[any](c, statusFor(k), err.Error(), gin.H{"code": k.String()})
		return
	}
	if logger != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"path":       c.FullPath(),
			"request_id": c.GetString("request_id"),
		}).Error("request failed")
	}
	response.Error[any](c, http.StatusInternalServerError, "internal server error", nil)
}
