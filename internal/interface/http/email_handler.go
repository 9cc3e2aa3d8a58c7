package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/resume-analyzer-api/config"
	"github.com/oksasatya/resume-analyzer-api/pkg/mailer"
	"github.com/oksasatya/resume-analyzer-api/pkg/response"
	"github.com/oksasatya/resume-analyzer-api/pkg/validation"
)

// JobSender is satisfied by *mailer.Notifier.
type JobSender interface {
	Send(ctx context.Context, job mailer.EmailJob) error
}

type EmailHandler struct {
	Mail   JobSender
	Logger *logrus.Logger
	Cfg    *config.Config
}

func NewEmailHandler(mail JobSender, logger *logrus.Logger, cfg *config.Config) *EmailHandler {
	return &EmailHandler{Mail: mail, Logger: logger, Cfg: cfg}
}

type sendEmailRequest struct {
	To       string         `json:"to" binding:"required,email"`
	Template string         `json:"template" binding:"omitempty,oneof=universal verify_email forgot_password welcome"`
	Data     map[string]any `json:"data"`    // template data
	Subject  string         `json:"subject"` // required without template
	Text     string         `json:"text"`
	HTML     string         `json:"html"`
}

// Send POST /api/admin/email/send (admin only)
func (h *EmailHandler) Send(c *gin.Context) {
	var req sendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	if req.Template == "" {
		if req.Subject == "" || (req.Text == "" && req.HTML == "") {
			response.Error[any](c, http.StatusBadRequest, "either template or subject with text/html is required", nil)
			return
		}
	}

	if h.Cfg != nil && !h.Cfg.MailSendEnabled {
		response.Success[any](c, http.StatusAccepted, map[string]any{"enqueued": false, "disabled": true}, "email sending disabled", nil)
		return
	}

	job := mailer.EmailJob{To: req.To}
	if req.Template != "" {
		job.Template = req.Template
		job.Data = req.Data
	} else {
		job.Subject = req.Subject
		job.Text = req.Text
		job.HTML = req.HTML
	}
	if err := h.Mail.Send(c.Request.Context(), job); err != nil {
		if h.Logger != nil {
			h.Logger.WithError(err).WithField("to", req.To).Warn("failed to dispatch email job")
		}
		response.Error[any](c, http.StatusBadGateway, "failed to dispatch email", nil)
		return
	}
	response.Success[any](c, http.StatusAccepted, map[string]any{"enqueued": true}, "email accepted", nil)
}
