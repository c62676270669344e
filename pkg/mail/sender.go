package mail

import (
	"context"
	"fmt"
	"net/mail"
	"net/smtp"
	"net/url"
	"strings"

	"github.com/covault/covault/pkg/config"
	"github.com/covault/covault/pkg/observability"
	"github.com/covault/covault/pkg/orgs"
)

// SMTPSender delivers organization invitations as plain-text email over
// SMTP. It implements orgs.InviteMailer.
type SMTPSender struct {
	cfg         config.MailConfig
	linkBaseURL string
	logger      *observability.Logger

	// sendMail is swapped out in tests.
	sendMail func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender builds a sender from mail settings. linkBaseURL is the web
// vault URL invitation links point at, without a trailing slash.
func NewSMTPSender(cfg config.MailConfig, linkBaseURL string, logger *observability.Logger) *SMTPSender {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &SMTPSender{
		cfg:         cfg,
		linkBaseURL: strings.TrimRight(linkBaseURL, "/"),
		logger:      logger,
		sendMail:    smtp.SendMail,
	}
}

// SendOrganizationInvite composes and delivers the invitation email. The
// SMTP client cannot be interrupted mid-session, so the context is only
// consulted before the dial.
func (s *SMTPSender) SendOrganizationInvite(ctx context.Context, orgName string, member *orgs.Member, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("Join %s", orgName)
	link := s.inviteLink(member, token)
	body := strings.Join([]string{
		fmt.Sprintf("You have been invited to join the %s organization.", orgName),
		"",
		"To accept the invitation, open the link below and log in or create an account:",
		"",
		"  " + link,
		"",
		"The invitation expires 5 days after it was sent. If you were not",
		"expecting it, you can ignore this email.",
	}, "\r\n")

	headers := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n",
		s.fromHeader(), member.Email, subject,
	)
	msg := []byte(headers + body + "\r\n")

	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}

	if err := s.sendMail(addr, auth, s.cfg.FromAddress, []string{member.Email}, msg); err != nil {
		return fmt.Errorf("failed to send invite mail: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"organization_id": member.OrganizationID,
		"member_id":       member.ID,
	}).Debug("invitation email sent")
	return nil
}

func (s *SMTPSender) inviteLink(member *orgs.Member, token string) string {
	query := url.Values{}
	query.Set("organizationId", member.OrganizationID.String())
	query.Set("memberId", member.ID.String())
	query.Set("email", member.Email)
	query.Set("token", token)
	return s.linkBaseURL + "/accept-organization?" + query.Encode()
}

func (s *SMTPSender) fromHeader() string {
	if s.cfg.FromName == "" {
		return s.cfg.FromAddress
	}
	addr := mail.Address{Name: s.cfg.FromName, Address: s.cfg.FromAddress}
	return addr.String()
}

// LogSender records invitations in the log instead of delivering them. It
// stands in for the SMTP sender in development and tests.
type LogSender struct {
	logger *observability.Logger
}

// NewLogSender builds a sender that only logs.
func NewLogSender(logger *observability.Logger) *LogSender {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &LogSender{logger: logger}
}

// SendOrganizationInvite logs the invitation and reports success.
func (s *LogSender) SendOrganizationInvite(ctx context.Context, orgName string, member *orgs.Member, token string) error {
	s.logger.WithFields(map[string]interface{}{
		"organization":    orgName,
		"organization_id": member.OrganizationID,
		"member_id":       member.ID,
		"email":           member.Email,
		"token":           token,
	}).Info("organization invitation (mail disabled)")
	return nil
}

// NewSenderFromConfig returns the SMTP sender when an SMTP host is
// configured and the logging sender otherwise.
func NewSenderFromConfig(cfg config.MailConfig, linkBaseURL string, logger *observability.Logger) orgs.InviteMailer {
	if cfg.SMTPHost == "" {
		return NewLogSender(logger)
	}
	return NewSMTPSender(cfg, linkBaseURL, logger)
}
