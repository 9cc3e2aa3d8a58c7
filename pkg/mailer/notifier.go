package mailer

import (
	"context"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/resume-analyzer-api/config"
	mailtpl "github.com/oksasatya/resume-analyzer-api/pkg/mailer/templates"
)

// Dispatcher hands a job to a delivery channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, job EmailJob) error
}

// JSONPublisher is satisfied by helpers.RabbitPublisher.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// Sender is satisfied by *Mailgun.
type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// QueueDispatcher enqueues jobs for cmd/email_worker.
type QueueDispatcher struct {
	Pub JSONPublisher
}

func (d QueueDispatcher) Dispatch(ctx context.Context, job EmailJob) error {
	return d.Pub.PublishJSON(ctx, job)
}

// DirectDispatcher renders and sends inline, for deployments without a queue.
type DirectDispatcher struct {
	Sender Sender
}

func (d DirectDispatcher) Dispatch(ctx context.Context, job EmailJob) error {
	subject, text, html, err := RenderJob(&job)
	if err != nil {
		return err
	}
	return d.Sender.Send(ctx, job.To, subject, text, html)
}

// LogDispatcher only logs; used when MAIL_SEND_ENABLED=false.
type LogDispatcher struct {
	Logger *logrus.Logger
}

func (d LogDispatcher) Dispatch(_ context.Context, job EmailJob) error {
	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"to":       job.To,
			"template": job.Template,
			"type":     job.Data["Type"],
		}).Info("email sending disabled; job dropped")
	}
	return nil
}

// Notifier builds transactional emails for the auth flows.
type Notifier struct {
	Cfg        *config.Config
	Dispatcher Dispatcher
	Now        func() time.Time
}

func NewNotifier(cfg *config.Config, d Dispatcher) *Notifier {
	return &Notifier{Cfg: cfg, Dispatcher: d, Now: time.Now}
}

func (n *Notifier) SendVerification(ctx context.Context, email, name, token string) error {
	link := withToken(n.Cfg.VerifyEmailURL, token)
	data := mailtpl.NewVerifyEmailData(n.Cfg, name, email, link, mailtpl.WithTime(n.Now()))
	return n.Dispatcher.Dispatch(ctx, EmailJob{To: email, Template: mailtpl.Universal, Data: data})
}

func (n *Notifier) SendPasswordReset(ctx context.Context, email, name, token string) error {
	link := withToken(n.Cfg.ResetPasswordURL, token)
	data := mailtpl.NewForgotPasswordData(n.Cfg, name, email, link,
		mailtpl.WithTime(n.Now()),
		mailtpl.WithExpiresAt(n.Now().Add(n.Cfg.ResetTokenTTL)),
	)
	return n.Dispatcher.Dispatch(ctx, EmailJob{To: email, Template: mailtpl.Universal, Data: data})
}

func (n *Notifier) SendWelcome(ctx context.Context, email, name string) error {
	data := mailtpl.NewWelcomeData(n.Cfg, name, email, n.Cfg.FrontendURL+"/dashboard", mailtpl.WithTime(n.Now()))
	return n.Dispatcher.Dispatch(ctx, EmailJob{To: email, Template: mailtpl.Universal, Data: data})
}

// Send dispatches a caller-built job as is.
func (n *Notifier) Send(ctx context.Context, job EmailJob) error {
	return n.Dispatcher.Dispatch(ctx, job)
}

func withToken(base, token string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
