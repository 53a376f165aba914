package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Notifier delivers one-time codes to the owner of an email address
type Notifier interface {
	SendCode(ctx context.Context, email, code string) error
}

// LogNotifier only writes the code to the log. Used when no mail server is
// configured.
type LogNotifier struct{}

func (LogNotifier) SendCode(_ context.Context, email, code string) error {
	zap.L().Info("One-time code issued", zap.String("email", email), zap.String("otp", code))
	return nil
}

type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
}

// MailNotifier sends codes over SMTP
type MailNotifier struct {
	cfg  MailConfig
	send func(m ...*gomail.Message) error
}

func NewMailNotifier(cfg MailConfig) (*MailNotifier, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("mail host and sender address are required")
	}

	if cfg.Subject == "" {
		cfg.Subject = "Your password reset code"
	}

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)

	return &MailNotifier{
		cfg:  cfg,
		send: d.DialAndSend,
	}, nil
}

func (n *MailNotifier) SendCode(ctx context.Context, email, code string) error {
	if email == n.cfg.From {
		return errors.New("invalid email address")
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", email)
	m.SetHeader("Subject", n.cfg.Subject)
	m.SetBody("text/plain", fmt.Sprintf("Your one-time code is %s.\n\nIf you didn't ask to reset your password you can ignore this email.", code))

	if err := n.send(m); err != nil {
		return fmt.Errorf("failed to send code email, %w", err)
	}

	return nil
}
