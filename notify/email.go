package notify

import (
	"context"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

// EmailSink sends the document body as a plain-text email with the
// Excel workbook attached.
type EmailSink struct {
	host     string
	port     int
	username string
	password string
	from     string
	log      zerolog.Logger
}

// NewEmailSink builds an SMTP sink. from falls back to username when
// empty.
func NewEmailSink(host string, port int, username, password, from string, log zerolog.Logger) *EmailSink {
	if from == "" {
		from = username
	}
	return &EmailSink{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		log:      log,
	}
}

func (e *EmailSink) Deliver(ctx context.Context, d Delivery) Result {
	msg := gomail.NewMessage()
	msg.SetHeader("From", e.from)
	msg.SetHeader("To", d.Recipient)
	msg.SetHeader("Subject", d.Subject)
	msg.SetBody("text/plain", d.Body)
	if d.AttachmentPath != "" {
		msg.Attach(d.AttachmentPath)
	}

	dialer := gomail.NewDialer(e.host, e.port, e.username, e.password)
	if err := dialer.DialAndSend(msg); err != nil {
		e.log.Warn().Err(err).Str("recipient", d.Recipient).Msg("email delivery failed")
		return Result{Channel: "email", Delivered: false, Detail: err.Error()}
	}

	e.log.Info().Str("recipient", d.Recipient).Str("month", d.Month.String()).Msg("document emailed")
	return Result{Channel: "email", Delivered: true, Detail: "sent to " + d.Recipient}
}
