package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	handlers "github.com/oksasatya/resume-analyzer-api/internal/interface/http"
	"github.com/oksasatya/resume-analyzer-api/internal/interface/middleware"
)

type AuthModule struct {
	Handler *handlers.AuthHandler
	Auth    gin.HandlerFunc
	Limit   Limiter
}

func NewAuthModule(h *handlers.AuthHandler, auth gin.HandlerFunc, limit Limiter) *AuthModule {
	return &AuthModule{Handler: h, Auth: auth, Limit: limit}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	perPath := middleware.KeyByIPAndPath()

	a := rg.Group("/auth")
	a.POST("/register", m.Limit.Per(10, time.Minute, perPath), m.Handler.Register)
	a.POST("/login", m.Limit.Per(10, time.Minute, perPath), m.Handler.Login)
	a.POST("/refresh", m.Limit.Per(60, time.Minute, perPath), m.Handler.Refresh)
	a.POST("/logout", m.Limit.Per(60, time.Minute, perPath), m.Handler.Logout)
	a.POST("/forgot-password", m.Limit.Per(5, time.Minute, perPath), m.Handler.ForgotPassword)
	a.POST("/reset-password", m.Limit.Per(30, time.Minute, perPath), m.Handler.ResetPassword)
	a.POST("/verify-email", m.Limit.Per(30, time.Minute, perPath), m.Handler.VerifyEmail)

	// Resending is per user so one account cannot flood an inbox.
	a.POST("/verify/resend", m.Auth, m.Limit.Per(5, time.Minute, middleware.KeyByUserID()), m.Handler.ResendVerification)
}
