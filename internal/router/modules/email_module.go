package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/resume-analyzer-api/internal/domain/entity"
	handlers "github.com/oksasatya/resume-analyzer-api/internal/interface/http"
	"github.com/oksasatya/resume-analyzer-api/internal/interface/middleware"
)

type EmailModule struct {
	Handler *handlers.EmailHandler
	Auth    gin.HandlerFunc
	Limit   Limiter
}

func NewEmailModule(h *handlers.EmailHandler, auth gin.HandlerFunc, limit Limiter) *EmailModule {
	return &EmailModule{Handler: h, Auth: auth, Limit: limit}
}

func (m *EmailModule) Register(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")
	admin.Use(
		m.Auth,
		middleware.RequireRole(entity.RoleAdmin),
		m.Limit.Per(60, time.Minute, middleware.KeyByUserID()),
	)
	{
		admin.POST("/email/send", m.Handler.Send)
	}
}
