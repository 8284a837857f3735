// Package mail delivers transactional email. The SMTP sender covers
// production; the log sender is for development mode, where reset links
// land in the service log instead of an inbox.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"strainforge.org/internal/obs"
)

// LogSender writes mail to the service log instead of delivering it.
type LogSender struct{}

func (LogSender) SendPasswordReset(_ context.Context, email, token string) error {
	obs.Warnf("password reset email (log sender)", map[string]any{
		"to":    email,
		"token": token,
	})
	return nil
}

// SMTPSender delivers mail over a plain SMTP relay.
type SMTPSender struct {
	Addr     string // host:port of the relay
	From     string
	ResetURL string // base URL the token is appended to
}

func (s *SMTPSender) SendPasswordReset(ctx context.Context, email, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	link := strings.TrimRight(s.ResetURL, "/") + "/" + token
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Password reset\r\n\r\n"+
		"A password reset was requested for your account.\r\n\r\n"+
		"Follow this link to choose a new password: %s\r\n\r\n"+
		"The link expires shortly. If you did not request a reset, ignore this email.\r\n",
		s.From, email, link)
	if err := smtp.SendMail(s.Addr, nil, s.From, []string{email}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
