package mailer

import (
	"errors"
	"fmt"
	"strings"

	mailtpl "github.com/oksasatya/resume-analyzer-api/pkg/mailer/templates"
)

var ErrEmptyMessage = errors.New("email job has neither template nor subject with body")

// RenderJob resolves a queued job into subject, text and html bodies.
// Legacy template names are mapped onto the universal template first.
func RenderJob(job *EmailJob) (subject, text, html string, err error) {
	EnsureRecipientAndEmail(job)
	MapLegacyToUniversal(job)

	if job.Template == "" {
		if job.Subject == "" || (job.Text == "" && job.HTML == "") {
			return "", "", "", ErrEmptyMessage
		}
		html = job.HTML
		if html == "" {
			html = job.Text
		}
		return job.Subject, job.Text, html, nil
	}
	if !strings.EqualFold(job.Template, mailtpl.Universal) {
		return "", "", "", fmt.Errorf("unknown email template %q", job.Template)
	}
	text, html, err = mailtpl.RenderUniversal(job.Data)
	if err != nil {
		return "", "", "", err
	}
	return mailtpl.SubjectFor(job.Data), text, html, nil
}

func EnsureRecipientAndEmail(job *EmailJob) {
	if job.Data == nil {
		job.Data = map[string]any{}
	}
	if v, ok := job.Data["Email"]; !ok || fmt.Sprintf("%v", v) == "" {
		job.Data["Email"] = job.To
	}
	if v, ok := job.Data["RecipientEmail"]; !ok || fmt.Sprintf("%v", v) == "" {
		job.Data["RecipientEmail"] = job.To
	}
}

func MapLegacyToUniversal(job *EmailJob) {
	switch strings.ToLower(job.Template) {
	case mailtpl.VerifyEmail, mailtpl.ForgotPassword, mailtpl.Welcome:
		if job.Data == nil {
			job.Data = map[string]any{}
		}
		if v, ok := job.Data["Type"]; !ok || fmt.Sprintf("%v", v) == "" {
			job.Data["Type"] = strings.ToLower(job.Template)
		}
		job.Template = mailtpl.Universal
	}
}
