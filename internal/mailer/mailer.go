// Package mailer отправляет письма через SMTP или Resend API.
package mailer

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/chemsus-backend/internal/config"
	"github.com/ignatzorin/chemsus-backend/internal/logger"
)

// ErrNotConfigured канал доставки не настроен.
var ErrNotConfigured = errors.New("mailer: канал доставки не настроен")

// Message письмо без привязки к провайдеру.
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mailer отправляет письмо.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New выбирает провайдера по конфигурации. Без настроек возвращает nil и ErrNotConfigured.
func New(cfg config.MailConfig) (Mailer, error) {
	switch cfg.Provider {
	case "resend":
		if cfg.ResendAPIKey == "" {
			return nil, ErrNotConfigured
		}
		return NewResendMailer(cfg.ResendAPIKey, cfg.From), nil
	case "smtp", "":
		if cfg.SMTPHost == "" {
			return nil, ErrNotConfigured
		}
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.From), nil
	case "log":
		return nil, ErrNotConfigured
	default:
		return nil, errors.New("mailer: неизвестный MAIL_PROVIDER " + cfg.Provider)
	}
}

// LogMailer пишет письмо в лог вместо отправки. Используется как запасной канал.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg Message) error {
	logger.Log.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
		"body":    msg.TextBody,
	}).Warn("mailer: письмо не отправлено, вывод в лог")
	return nil
}
