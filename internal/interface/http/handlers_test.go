package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/resume-analyzer-api/config"
	"github.com/oksasatya/resume-analyzer-api/internal/application"
	"github.com/oksasatya/resume-analyzer-api/internal/infrastructure/memory"
	"github.com/oksasatya/resume-analyzer-api/internal/interface/middleware"
	"github.com/oksasatya/resume-analyzer-api/pkg/helpers"
	"github.com/oksasatya/resume-analyzer-api/pkg/mailer"
	"github.com/oksasatya/resume-analyzer-api/pkg/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
	validation.Init()
}

type tokenNotifier struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (n *tokenNotifier) put(kind, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.tokens == nil {
		n.tokens = map[string]string{}
	}
	n.tokens[kind] = token
	return nil
}

func (n *tokenNotifier) get(kind string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokens[kind]
}

func (n *tokenNotifier) SendVerification(_ context.Context, _, _, token string) error {
	return n.put("verify", token)
}

func (n *tokenNotifier) SendPasswordReset(_ context.Context, _, _, token string) error {
	return n.put("reset", token)
}

func (n *tokenNotifier) SendWelcome(context.Context, string, string) error { return nil }

type stubAudit struct {
	events []application.AuditEvent
	err    error
}

func (s *stubAudit) Recent(_ context.Context, _ string, _ int) ([]application.AuditEvent, error) {
	return s.events, s.err
}

type env struct {
	r        *gin.Engine
	notifier *tokenNotifier
}

func newEnv(t *testing.T) *env {
	t.Helper()
	users := memory.NewUserRepository()
	jwt := helpers.NewJWTManager("access", "refresh", 15*time.Minute, time.Hour, "test")
	n := &tokenNotifier{}
	svc := application.NewAuthService(application.AuthDeps{
		Users:      users,
		Denylist:   memory.NewDenylist(),
		Notifier:   n,
		Hasher:     helpers.NewBcryptHasher(bcrypt.MinCost),
		Tokens:     jwt,
		Logger:     helpers.NewNopLogger(),
		Policy:     application.DefaultPolicy(),
		Background: func(fn func()) { fn() },
	})
	ah := NewAuthHandler(svc, helpers.NewNopLogger(), "localhost", false)
	uh := NewUserHandler(svc, &stubAudit{events: []application.AuditEvent{{Action: application.AuditRegister}}}, helpers.NewNopLogger())

	r := gin.New()
	api := r.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", ah.Register)
	auth.POST("/login", ah.Login)
	auth.POST("/refresh", ah.Refresh)
	auth.POST("/logout", ah.Logout)
	auth.POST("/forgot-password", ah.ForgotPassword)
	auth.POST("/reset-password", ah.ResetPassword)
	auth.POST("/verify-email", ah.VerifyEmail)
	protected := api.Group("", middleware.Auth(jwt, users))
	protected.POST("/auth/verify/resend", ah.ResendVerification)
	protected.GET("/me", uh.GetProfile)
	protected.GET("/me/activity", uh.Activity)
	return &env{r: r, notifier: n}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

func (e *env) do(t *testing.T, method, path string, body any, mutate ...func(*http.Request)) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mutate {
		m(req)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	var out envelope
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func bearer(tok string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func cookie(name, value string) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: name, Value: value}) }
}

var alice = map[string]string{
	"email":      "alice@example.com",
	"password":   "Aa1!aaaa",
	"first_name": "Alice",
	"last_name":  "Smith",
}

type session struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (e *env) register(t *testing.T) session {
	t.Helper()
	w, body := e.do(t, http.MethodPost, "/api/auth/register", alice)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var s session
	require.NoError(t, json.Unmarshal(body.Data, &s))
	return s
}

func TestRegisterAndLogin(t *testing.T) {
	e := newEnv(t)

	w, body := e.do(t, http.MethodPost, "/api/auth/register", alice)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, body.Success)
	assert.NotContains(t, string(body.Data), "password")
	cookies := w.Result().Cookies()
	names := map[string]bool{}
	for _, c := range cookies {
		names[c.Name] = c.HttpOnly
	}
	assert.True(t, names[helpers.AccessCookie])
	assert.True(t, names[helpers.RefreshCookie])

	w, body = e.do(t, http.MethodPost, "/api/auth/register", alice)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, string(body.Error), "duplicate_email")

	w, _ = e.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "ALICE@example.com", "password": "Aa1!aaaa"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, wrong := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "alice@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, unknown := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "nobody@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, wrong.Message, unknown.Message)
}

func TestRegister_ValidationDetails(t *testing.T) {
	e := newEnv(t)

	w, body := e.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "not-an-email", "password": "weak", "first_name": "A1", "last_name": "Smith",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var details map[string]string
	require.NoError(t, json.Unmarshal(body.Error, &details))
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "password")
	assert.Contains(t, details, "first_name")
}

func TestLogin_LockedReturns423(t *testing.T) {
	e := newEnv(t)
	e.register(t)

	for i := 0; i < 5; i++ {
		e.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "alice@example.com", "password": "wrong"})
	}
	w, body := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "alice@example.com", "password": "Aa1!aaaa"})
	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Contains(t, string(body.Error), "account_locked")
}

func TestRefreshAndLogout(t *testing.T) {
	e := newEnv(t)
	s := e.register(t)

	w, _ := e.do(t, http.MethodPost, "/api/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/auth/refresh", nil, cookie(helpers.RefreshCookie, "garbage"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := e.do(t, http.MethodPost, "/api/auth/refresh", nil, cookie(helpers.RefreshCookie, s.RefreshToken))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(body.Data), "access_token")

	w, _ = e.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": s.RefreshToken})
	assert.Equal(t, http.StatusOK, w.Code)

	for i := 0; i < 2; i++ {
		w, _ = e.do(t, http.MethodPost, "/api/auth/logout", map[string]string{"refresh_token": s.RefreshToken})
		assert.Equal(t, http.StatusOK, w.Code)
	}
	w, _ = e.do(t, http.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/auth/refresh", nil, cookie(helpers.RefreshCookie, s.RefreshToken))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestForgotAndResetPassword(t *testing.T) {
	e := newEnv(t)
	e.register(t)

	w, unknown := e.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "nobody@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, e.notifier.get("reset"))

	w, known := e.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "alice@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, unknown.Message, known.Message)
	token := e.notifier.get("reset")
	require.NotEmpty(t, token)

	w, _ = e.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{"token": token, "password": "Nn9#newpass"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, body := e.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{"token": token, "password": "Nn9#newpass"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, string(body.Error), "invalid_or_expired_token")
}

func TestPasswordOverBcryptLimitIs400(t *testing.T) {
	e := newEnv(t)
	long := "Aa1!" + strings.Repeat("a", 96)

	w, body := e.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "long@example.com", "password": long, "first_name": "Long", "last_name": "Pass",
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Contains(t, string(body.Error), "password")

	e.register(t)
	w, _ = e.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "alice@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	token := e.notifier.get("reset")

	w, _ = e.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{"token": token, "password": long})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// the token survives the rejected attempt
	w, _ = e.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{"token": token, "password": "Nn9#newpass"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWriteError_PasswordTooLongIs400(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	writeError(c, helpers.NewNopLogger(), application.ErrPasswordTooLong)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "password_too_long")
}

func TestVerifyEmailAndResend(t *testing.T) {
	e := newEnv(t)
	s := e.register(t)

	w, _ := e.do(t, http.MethodPost, "/api/auth/verify/resend", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := e.do(t, http.MethodPost, "/api/auth/verify/resend", nil, bearer(s.AccessToken))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(body.Data), "sent")

	w, _ = e.do(t, http.MethodPost, "/api/auth/verify-email", map[string]string{"token": e.notifier.get("verify")})
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = e.do(t, http.MethodPost, "/api/auth/verify-email", map[string]string{"token": e.notifier.get("verify")})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, string(body.Error), "invalid_verification_token")

	w, body = e.do(t, http.MethodPost, "/api/auth/verify/resend", nil, bearer(s.AccessToken))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(body.Data), "already_verified")
}

func TestMe(t *testing.T) {
	e := newEnv(t)
	s := e.register(t)

	w, _ := e.do(t, http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := e.do(t, http.MethodGet, "/api/me", nil, bearer(s.AccessToken))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(body.Data), "alice@example.com")

	w, body = e.do(t, http.MethodGet, "/api/me/activity", nil, cookie(helpers.AccessCookie, s.AccessToken))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(body.Data), application.AuditRegister)
}

func TestStatusFor_CoversEveryKind(t *testing.T) {
	want := map[application.ErrorKind]int{
		application.KindDuplicateEmail:           http.StatusConflict,
		application.KindInvalidCredentials:       http.StatusUnauthorized,
		application.KindAccountInactive:          http.StatusForbidden,
		application.KindAccountLocked:            http.StatusLocked,
		application.KindInvalidRefreshToken:      http.StatusUnauthorized,
		application.KindUserNotFound:             http.StatusNotFound,
		application.KindInvalidOrExpiredToken:    http.StatusBadRequest,
		application.KindInvalidVerificationToken: http.StatusBadRequest,
		application.KindPasswordTooLong:          http.StatusBadRequest,
	}
	for k, code := range want {
		assert.Equal(t, code, statusFor(k), k.String())
	}
	assert.Equal(t, http.StatusInternalServerError, statusFor(0))
}

func TestWriteError_UntypedIsGeneric(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	writeError(c, helpers.NewNopLogger(), errors.New("pq: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

type jobRecorder struct {
	jobs []mailer.EmailJob
	err  error
}

func (j *jobRecorder) Send(_ context.Context, job mailer.EmailJob) error {
	j.jobs = append(j.jobs, job)
	return j.err
}

func TestEmailHandler_Send(t *testing.T) {
	rec := &jobRecorder{}
	cfg := &config.Config{MailSendEnabled: true}
	h := NewEmailHandler(rec, helpers.NewNopLogger(), cfg)
	r := gin.New()
	r.POST("/send", h.Send)
	e := &env{r: r}

	w, _ := e.do(t, http.MethodPost, "/send", map[string]any{"to": "bob@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = e.do(t, http.MethodPost, "/send", map[string]any{"to": "bob@example.com", "template": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = e.do(t, http.MethodPost, "/send", map[string]any{"to": "bob@example.com", "subject": "Hi", "text": "hello"})
	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, rec.jobs, 1)
	assert.Equal(t, "Hi", rec.jobs[0].Subject)

	rec.err = errors.New("queue down")
	w, _ = e.do(t, http.MethodPost, "/send", map[string]any{"to": "bob@example.com", "template": "welcome"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	cfg.MailSendEnabled = false
	w, body := e.do(t, http.MethodPost, "/send", map[string]any{"to": "bob@example.com", "template": "welcome"})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, string(body.Data), "disabled")
}
