package notifications

import (
	"context"
	"fmt"

	"hostly/internal/shared/config"

	"github.com/wneessen/go-mail"
)

type mailClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// MailSender delivers messages over SMTP
type MailSender struct {
	client   mailClient
	from     string
	fromName string
}

func NewMailSender(cfg config.EmailConfig) (*MailSender, error) {
	if cfg.SMTPHost == "" {
		return nil, fmt.Errorf("SMTP host is not configured")
	}
	client, err := mail.NewClient(cfg.SMTPHost,
		mail.WithPort(cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.SMTPUsername),
		mail.WithPassword(cfg.SMTPPassword),
	)
	if err != nil {
		return nil, fmt.Errorf("could not initialize smtp client: %w", err)
	}
	return newMailSender(client, cfg.FromEmail, cfg.FromName), nil
}

func newMailSender(client mailClient, from, fromName string) *MailSender {
	return &MailSender{client: client, from: from, fromName: fromName}
}

func (s *MailSender) Send(ctx context.Context, msg Message) error {
	m, err := s.buildMsg(msg)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp delivery to %s: %w", msg.RecipientEmail, err)
	}
	return nil
}

func (s *MailSender) buildMsg(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(s.fromName, s.from); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if msg.RecipientName != "" {
		if err := m.AddToFormat(msg.RecipientName, msg.RecipientEmail); err != nil {
			return nil, fmt.Errorf("invalid recipient address: %w", err)
		}
	} else if err := m.To(msg.RecipientEmail); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	m.SetGenHeader("X-Notification-Type", string(msg.Type))
	m.SetGenHeader("X-Notification-ID", msg.ID.String())
	return m, nil
}
