package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/resume-analyzer-api/internal/application"
	"github.com/oksasatya/resume-analyzer-api/internal/interface/middleware"
	"github.com/oksasatya/resume-analyzer-api/pkg/helpers"
	"github.com/oksasatya/resume-analyzer-api/pkg/response"
	"github.com/oksasatya/resume-analyzer-api/pkg/validation"
)

type AuthHandler struct {
	Svc     *application.AuthService
	Logger  *logrus.Logger
	Cookies *helpers.Manager
}

func NewAuthHandler(svc *application.AuthService, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *AuthHandler {
	return &AuthHandler{Svc: svc, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

type registerRequest struct {
	Email     string `json:"email" binding:"required,email,max=254"`
	Password  string `json:"password" binding:"required,strongpwd"`
	FirstName string `json:"first_name" binding:"required,personname"`
	LastName  string `json:"last_name" binding:"required,personname"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,strongpwd"`
}

type verifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

type sessionResponse struct {
	User         any    `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Register POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	res, err := h.Svc.Register(c.Request.Context(), application.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	h.Cookies.SetPair(c, res.AccessToken, res.AccessTokenExpiry, res.RefreshToken, res.RefreshTokenExpiry)
	response.Success(c, http.StatusCreated, sessionResponse{User: res.User, AccessToken: res.AccessToken, RefreshToken: res.RefreshToken},
		"user registered successfully", expiryMeta(res))
}

// Login POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	res, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	h.Cookies.SetPair(c, res.AccessToken, res.AccessTokenExpiry, res.RefreshToken, res.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, sessionResponse{User: res.User, AccessToken: res.AccessToken, RefreshToken: res.RefreshToken},
		"login successful", expiryMeta(res))
}

// Refresh POST /api/auth/refresh. The token comes from the refresh cookie
// or the JSON body.
func (h *AuthHandler) Refresh(c *gin.Context) {
	token := refreshTokenFrom(c)
	if token == "" {
		response.Error[any](c, http.StatusUnauthorized, "refresh token required", nil)
		return
	}
	res, err := h.Svc.Refresh(c.Request.Context(), token)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	h.Cookies.SetAccess(c, res.AccessToken, res.AccessTokenExpiry)
	response.Success(c, http.StatusOK, gin.H{"access_token": res.AccessToken}, "token refreshed",
		map[string]any{"access_expires_at": res.AccessTokenExpiry})
}

// Logout POST /api/auth/logout. Always succeeds.
func (h *AuthHandler) Logout(c *gin.Context) {
	if token := refreshTokenFrom(c); token != "" {
		h.Svc.Logout(c.Request.Context(), token)
	}
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, gin.H{"logged_out": true}, "logged out", nil)
}

// ForgotPassword POST /api/auth/forgot-password. The answer is the same
// whether or not the address is registered.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, nil, "if an account exists for this email, a reset link has been sent", nil)
}

// ResetPassword POST /api/auth/reset-password {token, password}
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"reset": true}, "password updated", nil)
}

// VerifyEmail POST /api/auth/verify-email {token}
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"verified": true}, "email verified", nil)
}

// ResendVerification POST /api/auth/verify/resend (auth required)
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserIDKey)
	if uid == "" {
		response.Error[any](c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	already, err := h.Svc.ResendVerification(c.Request.Context(), uid)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	if already {
		response.Success(c, http.StatusOK, gin.H{"already_verified": true}, "already verified", nil)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sent": true}, "verification email sent", nil)
}

func refreshTokenFrom(c *gin.Context) string {
	if tok, err := c.Cookie(helpers.RefreshCookie); err == nil && tok != "" {
		return tok
	}
	var body refreshRequest
	if err := c.ShouldBindJSON(&body); err == nil {
		return body.RefreshToken
	}
	return ""
}

func expiryMeta(res *application.AuthResult) map[string]any {
	return map[string]any{
		"access_expires_at":  res.AccessTokenExpiry,
		"refresh_expires_at": res.RefreshTokenExpiry,
	}
}
