package auth

import (
	"context"

	"github.com/okian/salle/pkg/logger"
)

// Message is an outgoing email.
type Message struct {
	To      string
	Subject string
	Body    string
	Link    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	log logger.Logger
}

// NewLogMailer returns a Mailer for development setups without SMTP.
func NewLogMailer(log logger.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.log.Info(ctx, "mail",
		logger.String("to", msg.To),
		logger.String("subject", msg.Subject),
		logger.String("link", msg.Link),
	)
	return nil
}
