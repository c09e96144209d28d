// Package email provides email sending capabilities via SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration
type Config struct {
	Host      string
	Port      string
	Username  string
	Password  string
	From      string
	FromName  string
	EnableTLS bool
}

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

// NewService creates a new email service
func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendEmail sends a plain text email
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		from,
		subject,
		body,
	))

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg)
}

// SendHTMLEmail sends an HTML email
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	// Simple multipart message
	boundary := "boundary-koinonia"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	// Plain text part (fallback)
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	// HTML part
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// AccountApprovedData holds data for the account-approved email.
type AccountApprovedData struct {
	AppName    string
	MemberName string
	BranchName string
	LoginURL   string
}

// NewSermonData holds data for the new-sermon notification email.
type NewSermonData struct {
	AppName     string
	MemberName  string
	SermonTitle string
	Preacher    string
	SermonURL   string
}

// SendAccountApprovedEmail tells a member their registration was approved.
func (s *Service) SendAccountApprovedEmail(to, memberName, branchName, loginURL string) error {
	data := AccountApprovedData{
		AppName:    "Koinonia",
		MemberName: memberName,
		BranchName: branchName,
		LoginURL:   loginURL,
	}

	subject := "Your Koinonia account has been approved"
	html, err := renderTemplate(accountApprovedEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render account approved template: %w", err)
	}

	return s.SendHTMLEmail([]string{to}, subject, html)
}

// SendNewSermonEmail notifies a member that a new sermon was uploaded.
func (s *Service) SendNewSermonEmail(to, memberName, sermonTitle, preacher, sermonURL string) error {
	data := NewSermonData{
		AppName:     "Koinonia",
		MemberName:  memberName,
		SermonTitle: sermonTitle,
		Preacher:    preacher,
		SermonURL:   sermonURL,
	}

	subject := fmt.Sprintf("New sermon: %s", sermonTitle)
	html, err := renderTemplate(newSermonEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render new sermon template: %w", err)
	}

	return s.SendHTMLEmail([]string{to}, subject, html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const accountApprovedEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Your {{.AppName}} account is approved</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #0066cc; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
        .link { word-break: break-all; color: #0066cc; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Welcome, {{.MemberName}}!</h2>

    <p>Your registration with the {{.BranchName}} branch has been approved. You can now sign in and take part in church life online.</p>

    <p>
        <a href="{{.LoginURL}}" class="button">Sign In</a>
    </p>

    <p>Or copy and paste this link into your browser:</p>
    <p class="link">{{.LoginURL}}</p>

    <div class="footer">
        <p>If you did not register with {{.AppName}}, you can safely ignore this email.</p>
    </div>
</body>
</html>`

const newSermonEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>New sermon on {{.AppName}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #0066cc; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
        .link { word-break: break-all; color: #0066cc; }
        .meta { background: #f6f8fa; padding: 12px; border-radius: 4px; margin: 20px 0; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Hi {{.MemberName}},</h2>

    <p>A new sermon has been uploaded and is ready to watch.</p>

    <div class="meta">
        <strong>{{.SermonTitle}}</strong><br>
        Preacher: {{.Preacher}}
    </div>

    <p>
        <a href="{{.SermonURL}}" class="button">Watch Sermon</a>
    </p>

    <p>Or copy and paste this link into your browser:</p>
    <p class="link">{{.SermonURL}}</p>

    <div class="footer">
        <p>You are receiving this because you are an approved member of {{.AppName}}.</p>
    </div>
</body>
</html>`
