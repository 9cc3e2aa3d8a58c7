package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/resume-analyzer-api/pkg/helpers"
)

// Context keys set by Auth.
const (
	CtxUserIDKey    = "userID"
	CtxUserEmailKey = "userEmail"
	CtxUserRoleKey  = "userRole"
)

// AccessVerifier is satisfied by *helpers.JWTManager.
type AccessVerifier interface {
	ParseAccessToken(token string) (*helpers.AccessClaims, error)
}

// accessToken reads a bearer token from the Authorization header and falls
// back to the access_token cookie.
func accessToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
	}
	if tok, err := c.Cookie(helpers.AccessCookie); err == nil {
		return tok
	}
	return ""
}
