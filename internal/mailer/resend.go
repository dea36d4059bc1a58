package mailer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/resend/resend-go/v2"
)

// resendHTTPTimeout верхняя граница одного запроса к API, даже если ctx без дедлайна.
const resendHTTPTimeout = 20 * time.Second

// ResendMailer отправляет письма через Resend API.
type ResendMailer struct {
	client *resend.Client
	from   string
}

func NewResendMailer(apiKey, from string) *ResendMailer {
	return &ResendMailer{
		client: resend.NewCustomClient(&http.Client{Timeout: resendHTTPTimeout}, apiKey),
		from:   from,
	}
}

func (s *ResendMailer) Send(ctx context.Context, msg Message) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.TextBody,
		Html:    msg.HTMLBody,
	}

	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("mailer: resend: %w", err)
	}
	return nil
}
