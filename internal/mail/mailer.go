package mail

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/SamiTelo/API-Football/internal/config"
	"github.com/SamiTelo/API-Football/internal/models"
)

const (
	KindVerification  = "verification"
	KindTwoFactor     = "two_factor"
	KindPasswordReset = "password_reset"
)

type Message struct {
	To      string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers messages through the configured SMTP relay.
type SMTPSender struct {
	cfg    config.MailConfig
	dialer *gomail.Dialer
}

func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass),
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if s.cfg.SMTPHost == "" || s.cfg.From == "" {
		return fmt.Errorf("mail config missing")
	}
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.cfg.From, s.cfg.FromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// Mailer renders the transactional emails of the auth flows.
type Mailer struct {
	sender      Sender
	frontendURL string
	log         zerolog.Logger
}

func NewMailer(sender Sender, frontendURL string, log zerolog.Logger) *Mailer {
	return &Mailer{
		sender:      sender,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		log:         log,
	}
}

func (m *Mailer) SendVerification(ctx context.Context, user models.User, token string) error {
	link := m.link("/verify-email", token)
	body := fmt.Sprintf(`<p>Bonjour %s,</p>
<p>Veuillez confirmer votre email :</p>
<a href="%s">%s</a>`, html.EscapeString(user.FirstName), html.EscapeString(link), html.EscapeString(link))

	return m.send(ctx, KindVerification, Message{
		To:      user.Email,
		Subject: "Confirmez votre email",
		HTML:    body,
	})
}

func (m *Mailer) SendTwoFactorCode(ctx context.Context, user models.User, code string) error {
	body := fmt.Sprintf(`<p>Bonjour %s,</p>
<p>Voici votre code 2FA : <strong>%s</strong></p>
<p>Il expire dans 5 minutes.</p>`, html.EscapeString(user.FirstName), html.EscapeString(code))

	return m.send(ctx, KindTwoFactor, Message{
		To:      user.Email,
		Subject: "Votre code 2FA",
		HTML:    body,
	})
}

func (m *Mailer) SendPasswordReset(ctx context.Context, user models.User, token string) error {
	link := m.link("/reset-password", token)
	body := fmt.Sprintf(`<p>Bonjour %s %s</p>
<p>Voici votre lien de réinitialisation :</p>
<a href="%s">%s</a>
<p>Le lien expire dans 15 minutes.</p>`,
		html.EscapeString(user.FirstName), html.EscapeString(user.LastName),
		html.EscapeString(link), html.EscapeString(link))

	return m.send(ctx, KindPasswordReset, Message{
		To:      user.Email,
		Subject: "Réinitialisation du mot de passe",
		HTML:    body,
	})
}

func (m *Mailer) link(path, token string) string {
	return m.frontendURL + path + "?" + url.Values{"token": {token}}.Encode()
}

func (m *Mailer) send(ctx context.Context, kind string, msg Message) error {
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("%s email: %w", kind, err)
	}
	m.log.Info().Str("kind", kind).Str("to", msg.To).Msg("email sent")
	return nil
}
