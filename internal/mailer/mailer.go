// Package mailer sends notification email via SMTP. Unconfigured
// deployments get a no-op mailer; every send is best effort and callers
// log failures instead of surfacing them to the user.
package mailer

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	BaseURL  string
}

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

// NewService creates a new mailer
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

// Send sends a plain text email
func (s *Service) Send(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return nil
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

// SendNewResponse notifies a listing owner that someone responded.
func (s *Service) SendNewResponse(to, ownerName, responderName, listingTitle string, listingID int64) error {
	subject := fmt.Sprintf("New response to %q", listingTitle)
	body := fmt.Sprintf(
		"Hi %s,\n\n"+
			"%s responded to your listing %q.\n\n"+
			"View the response and reply here:\n%s/listing/%d\n\n"+
			"- %s",
		ownerName, responderName, listingTitle, s.config.BaseURL, listingID, s.config.FromName,
	)
	return s.Send([]string{to}, subject, body)
}

// SendResponseStatus notifies a responder that the listing owner changed
// their response status.
func (s *Service) SendResponseStatus(to, responderName, listingTitle, status string, responseID int64) error {
	subject := fmt.Sprintf("Your response to %q was %s", listingTitle, status)
	body := fmt.Sprintf(
		"Hi %s,\n\n"+
			"Your response to %q is now %s.\n\n"+
			"See the conversation here:\n%s/responses/%d\n\n"+
			"- %s",
		responderName, listingTitle, status, s.config.BaseURL, responseID, s.config.FromName,
	)
	return s.Send([]string{to}, subject, body)
}

// SendOrgDecision notifies an organization contact of the verification
// decision. Approved orgs get a link to their directory page.
func (s *Service) SendOrgDecision(to, contactName, orgName string, approved bool, orgID int64) error {
	if approved {
		subject := fmt.Sprintf("%s has been verified", orgName)
		body := fmt.Sprintf(
			"Hi %s,\n\n"+
				"%s is now a verified organization and appears in the directory:\n%s/organization/%d\n\n"+
				"- %s",
			contactName, orgName, s.config.BaseURL, orgID, s.config.FromName,
		)
		return s.Send([]string{to}, subject, body)
	}
	subject := fmt.Sprintf("Verification decision for %s", orgName)
	body := fmt.Sprintf(
		"Hi %s,\n\n"+
			"We could not verify %s at this time. You can continue to use your individual account, "+
			"and you are welcome to apply again with updated details.\n\n"+
			"- %s",
		contactName, orgName, s.config.FromName,
	)
	return s.Send([]string{to}, subject, body)
}
