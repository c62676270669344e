// Package mail delivers organization invitation email.
//
// # Overview
//
// SMTPSender composes a plain-text invitation with an accept link and
// delivers it over SMTP with optional PLAIN auth. LogSender writes the
// invitation to the log instead, which is the default whenever no SMTP
// host is configured. Both satisfy orgs.InviteMailer; the orchestrator
// dispatches them off the request path, so a slow or failing mail server
// never blocks an invite call.
//
// # Usage Example
//
//	sender := mail.NewSenderFromConfig(cfg.Mail, cfg.Invites.LinkBaseURL, logger)
//	svc, err := orgs.NewService(orgs.ServiceConfig{
//		// ...
//		Mailer: sender,
//	})
//
// # Related Packages
//
//   - pkg/orgs: defines the InviteMailer interface and dispatch semantics
//   - pkg/config: SMTP and invite link settings
package mail
