package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	handlers "github.com/oksasatya/resume-analyzer-api/internal/interface/http"
	"github.com/oksasatya/resume-analyzer-api/internal/interface/middleware"
)

// UserModule serves the signed-in user's own data:
// GET /api/me, GET /api/me/activity
type UserModule struct {
	Handler *handlers.UserHandler
	Auth    gin.HandlerFunc
	Limit   Limiter
}

func NewUserModule(h *handlers.UserHandler, auth gin.HandlerFunc, limit Limiter) *UserModule {
	return &UserModule{Handler: h, Auth: auth, Limit: limit}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	me := rg.Group("/me")
	me.Use(m.Auth, m.Limit.Per(120, time.Minute, middleware.KeyByUserID()))
	{
		me.GET("", m.Handler.GetProfile)
		me.GET("/activity", m.Handler.Activity)
	}
}
