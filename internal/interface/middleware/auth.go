package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/resume-analyzer-api/internal/domain/entity"
	"github.com/oksasatya/resume-analyzer-api/internal/domain/repository"
	"github.com/oksasatya/resume-analyzer-api/pkg/helpers"
	"github.com/oksasatya/resume-analyzer-api/pkg/response"
)

// Auth validates the access token and sets userID, userEmail and userRole
// in the Gin context. When users is non-nil the account must still exist
// and be active.
func Auth(jwt AccessVerifier, users repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := accessToken(c)
		if token == "" {
			response.Abort(c, http.StatusUnauthorized, "missing access token", nil)
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			msg := "invalid access token"
			if errors.Is(err, helpers.ErrTokenExpired) {
				msg = "access token expired"
			}
			response.Abort(c, http.StatusUnauthorized, msg, nil)
			return
		}

		role := claims.Role
		if users != nil {
			u, err := users.FindByID(c.Request.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					response.Abort(c, http.StatusUnauthorized, "user no longer exists", nil)
					return
				}
				response.Abort(c, http.StatusInternalServerError, "internal server error", nil)
				return
			}
			if !u.IsActive {
				response.Abort(c, http.StatusUnauthorized, "account is deactivated", nil)
				return
			}
			role = u.Role.String()
		}

		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxUserEmailKey, claims.Email)
		c.Set(CtxUserRoleKey, role)
		c.Next()
	}
}

// RequireRole lets the request through only for the given roles. It must
// run after Auth.
func RequireRole(roles ...entity.Role) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r.String()] = struct{}{}
	}
	return func(c *gin.Context) {
		if c.GetString(CtxUserIDKey) == "" {
			response.Abort(c, http.StatusUnauthorized, "access denied", nil)
			return
		}
		if _, ok := allowed[c.GetString(CtxUserRoleKey)]; !ok {
			response.Abort(c, http.StatusForbidden, "insufficient permissions", nil)
			return
		}
		c.Next()
	}
}
