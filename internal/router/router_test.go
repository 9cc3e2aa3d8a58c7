package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/resume-analyzer-api/config"
	"github.com/oksasatya/resume-analyzer-api/internal/application"
	"github.com/oksasatya/resume-analyzer-api/internal/container"
	"github.com/oksasatya/resume-analyzer-api/internal/domain/entity"
	"github.com/oksasatya/resume-analyzer-api/internal/infrastructure/memory"
	"github.com/oksasatya/resume-analyzer-api/pkg/helpers"
	"github.com/oksasatya/resume-analyzer-api/pkg/mailer"
	"github.com/oksasatya/resume-analyzer-api/pkg/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
	validation.Init()
}

// newTestContainer wires the container by hand with in-memory stores and
// no Redis, so rate limits are disabled.
func newTestContainer(t *testing.T, debug bool) *container.Container {
	t.Helper()
	cfg := &config.Config{
		Env:                 "test",
		CookieDomain:        "localhost",
		MailSendEnabled:     true,
		DebugMetricsEnabled: debug,
	}
	logger := helpers.NewNopLogger()
	users := memory.NewUserRepository()
	deny := memory.NewDenylist()
	jwt := helpers.NewJWTManager("access-secret", "refresh-secret", 15*time.Minute, time.Hour, "test")
	notifier := mailer.NewNotifier(cfg, mailer.LogDispatcher{Logger: logger})

	return &container.Container{
		Cfg:      cfg,
		Logger:   logger,
		JWT:      jwt,
		Users:    users,
		Denylist: deny,
		Notifier: notifier,
		Auth: application.NewAuthService(application.AuthDeps{
			Users:    users,
			Denylist: deny,
			Notifier: notifier,
			Hasher:   helpers.NewBcryptHasher(bcrypt.MinCost),
			Tokens:   jwt,
			Logger:   logger,
		}),
	}
}

func newEngine(c *container.Container) *gin.Engine {
	r := gin.New()
	reg := NewRegistry(r)
	InitModules(reg, c)
	reg.RegisterAll()
	return r
}

func do(r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestInitModules_RegistersRoutes(t *testing.T) {
	r := newEngine(newTestContainer(t, false))

	got := map[string]bool{}
	for _, ri := range r.Routes() {
		got[ri.Method+" "+ri.Path] = true
	}
	for _, want := range []string{
		"POST /api/auth/register",
		"POST /api/auth/login",
		"POST /api/auth/refresh",
		"POST /api/auth/logout",
		"POST /api/auth/forgot-password",
		"POST /api/auth/reset-password",
		"POST /api/auth/verify-email",
		"POST /api/auth/verify/resend",
		"GET /api/me",
		"GET /api/me/activity",
		"POST /api/admin/email/send",
	} {
		assert.True(t, got[want], "missing route %s", want)
	}
	assert.False(t, got["GET /api/debug/vars"], "debug vars must be opt-in")
}

func TestInitModules_DebugVars(t *testing.T) {
	r := newEngine(newTestContainer(t, true))
	w := do(r, http.MethodGet, "/api/debug/vars", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"auth"`)
}

func TestRegistry_UnknownRouteIsJSON404(t *testing.T) {
	r := newEngine(newTestContainer(t, false))
	w := do(r, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestRouter_SessionAndAdminFlow(t *testing.T) {
	c := newTestContainer(t, false)
	r := newEngine(c)

	w := do(r, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":      "ada@example.com",
		"password":   "Sup3r$ecret",
		"first_name": "Ada",
		"last_name":  "Lovelace",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var out struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	token := out.Data.AccessToken
	require.NotEmpty(t, token)

	w = do(r, http.MethodGet, "/api/me", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ada@example.com")

	w = do(r, http.MethodGet, "/api/me/activity", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	job := map[string]any{"to": "bob@example.com", "subject": "hi", "text": "hello"}
	w = do(r, http.MethodPost, "/api/admin/email/send", token, job)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The role is read from the store, so promotion applies to the
	// token already issued.
	u, err := c.Users.FindByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	u.Role = entity.RoleAdmin
	require.NoError(t, c.Users.Save(context.Background(), u))

	w = do(r, http.MethodPost, "/api/admin/email/send", token, job)
	assert.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	w = do(r, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
