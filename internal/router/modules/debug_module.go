package modules

import (
	"expvar"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/resume-analyzer-api/internal/interface/middleware"
)

type DebugModule struct {
	Limit Limiter
}

func NewDebugModule(limit Limiter) *DebugModule { return &DebugModule{Limit: limit} }

func (m *DebugModule) Register(rg *gin.RouterGroup) {
	// expvar counters, including the "auth" map, rate-limited per IP
	rg.GET("/debug/vars", m.Limit.Per(120, time.Minute, middleware.KeyByIP()), gin.WrapH(expvar.Handler()))
}
