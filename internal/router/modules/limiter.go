package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/resume-analyzer-api/internal/interface/middleware"
)

// Limiter builds Redis-backed rate limits. A nil Redis disables them.
type Limiter struct {
	Redis  *redis.Client
	Logger *logrus.Logger
	Allow  middleware.AllowFunc
}

func (l Limiter) Per(max int, window time.Duration, key middleware.KeyFunc) gin.HandlerFunc {
	return middleware.RateLimit(l.Redis, max, window, key, l.Allow, l.Logger)
}
