// internal/jobboard/notify/templates.go
package notify

import (
	"bytes"
	"fmt"
	"text/template"

	"job-board/internal/models"
)

type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

// Only decisions are emailed to the applicant.
var emailTemplates = map[models.ApplicationStatus]emailTemplate{
	models.ApplicationAccepted: mustTemplate(
		"Your application to {{.Company}} was accepted",
		"Good news! {{.Company}} accepted your application for {{.JobTitle}}. They will be in touch at this address.",
	),
	models.ApplicationRejected: mustTemplate(
		"Update on your application to {{.Company}}",
		"Thank you for applying for {{.JobTitle}} at {{.Company}}. The team has decided not to move forward with your application.",
	),
}

func mustTemplate(subject, body string) emailTemplate {
	return emailTemplate{
		subject: template.Must(template.New("subject").Parse(subject)),
		body:    template.Must(template.New("body").Parse(body)),
	}
}

func render(t emailTemplate, evt models.ApplicationEvent) (string, string, error) {
	var subject, body bytes.Buffer
	if err := t.subject.Execute(&subject, evt); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := t.body.Execute(&body, evt); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return subject.String(), body.String(), nil
}
