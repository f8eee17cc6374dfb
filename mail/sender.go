package mail

import (
	"context"
	"errors"
	"log/slog"

	"gopkg.in/gomail.v2"
)

// ErrNoRecipient is returned for messages without a To address.
var ErrNoRecipient = errors.New("mail recipient is empty")

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPConfig configures [NewSender].
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Sender delivers messages over SMTP.
type Sender struct {
	dialer dialer
	from   string
}

func NewSender(cfg SMTPConfig) *Sender {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &Sender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   from,
	}
}

// Send dials the SMTP server and delivers msg. The context is only checked
// before dialing; gomail has no cancellation hook.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	return s.dialer.DialAndSend(m)
}

// LogSender writes messages to a logger instead of delivering them. It is
// meant for local development where no SMTP relay is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (l LogSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "mail not delivered, no smtp relay configured",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.Int("html_bytes", len(msg.HTML)),
	)
	return nil
}
