package router

import (
	"github.com/oksasatya/resume-analyzer-api/internal/container"
	handlers "github.com/oksasatya/resume-analyzer-api/internal/interface/http"
	"github.com/oksasatya/resume-analyzer-api/internal/interface/middleware"
	"github.com/oksasatya/resume-analyzer-api/internal/router/modules"
)

// InitModules builds the handlers from the container and registers every
// feature module. Call once during startup, before RegisterAll.
func InitModules(r *Registry, c *container.Container) {
	limit := modules.Limiter{Redis: c.Redis, Logger: c.Logger}
	if c.Cfg.Env == "development" {
		limit.Allow = middleware.AllowPrivateIP()
	}
	auth := middleware.Auth(c.JWT, c.Users)

	// A nil *AuditSink must not become a non-nil interface.
	var audit handlers.AuditReader
	if c.Audit != nil {
		audit = c.Audit
	}

	r.Add(modules.NewAuthModule(
		handlers.NewAuthHandler(c.Auth, c.Logger, c.Cfg.CookieDomain, c.Cfg.CookieSecure), auth, limit))
	r.Add(modules.NewUserModule(handlers.NewUserHandler(c.Auth, audit, c.Logger), auth, limit))
	r.Add(modules.NewEmailModule(handlers.NewEmailHandler(c.Notifier, c.Logger, c.Cfg), auth, limit))
	if c.Cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(limit))
	}
}
