// Package email provides email sending capabilities via SMTP.
package email

import (
	"bytes"
	"encoding/base64"
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
}

// Attachment is a file attached to an outgoing message.
type Attachment struct {
	Filename string
	Content  []byte
	MimeType string
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

func (s *Service) fromHeader() string {
	if s.config.FromName != "" {
		return fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}
	return s.config.From
}

// SendHTMLEmail sends an HTML email without attachments.
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	return s.SendHTMLEmailWithAttachments(to, subject, htmlBody, nil)
}

// SendHTMLEmailWithAttachments sends an HTML email, optionally carrying
// file attachments in a multipart/mixed envelope.
func (s *Service) SendHTMLEmailWithAttachments(to []string, subject, htmlBody string, attachments []Attachment) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	mixedBoundary := "mixed-jobsheet"
	altBoundary := "alt-jobsheet"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", s.fromHeader())
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/mixed; boundary=\"%s\"\r\n", mixedBoundary)
	fmt.Fprintf(&msg, "\r\n")

	// Body: alternative part with a plain-text fallback
	fmt.Fprintf(&msg, "--%s\r\n", mixedBoundary)
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", altBoundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", altBoundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", altBoundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", altBoundary)

	for _, attachment := range attachments {
		mimeType := attachment.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		fmt.Fprintf(&msg, "--%s\r\n", mixedBoundary)
		fmt.Fprintf(&msg, "Content-Type: %s; name=\"%s\"\r\n", mimeType, attachment.Filename)
		fmt.Fprintf(&msg, "Content-Disposition: attachment; filename=\"%s\"\r\n", attachment.Filename)
		fmt.Fprintf(&msg, "Content-Transfer-Encoding: base64\r\n")
		fmt.Fprintf(&msg, "\r\n")
		writeBase64Lines(&msg, attachment.Content)
		fmt.Fprintf(&msg, "\r\n")
	}

	fmt.Fprintf(&msg, "--%s--\r\n", mixedBoundary)

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// writeBase64Lines encodes content wrapped at 76 characters per RFC 2045.
func writeBase64Lines(msg *bytes.Buffer, content []byte) {
	encoded := base64.StdEncoding.EncodeToString(content)
	for len(encoded) > 76 {
		msg.WriteString(encoded[:76])
		msg.WriteString("\r\n")
		encoded = encoded[76:]
	}
	if len(encoded) > 0 {
		msg.WriteString(encoded)
		msg.WriteString("\r\n")
	}
}
