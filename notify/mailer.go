package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"bamikavision/logging"
	"bamikavision/models"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/rs/zerolog"
)

const sendTimeout = 30 * time.Second

type mailSender interface {
	NewMessage(from, subject, text string, to ...string) *mailgun.Message
	Send(ctx context.Context, m *mailgun.Message) (string, string, error)
}

type MailerConfig struct {
	Domain  string
	APIKey  string
	From    string
	To      string
	AppName string
}

// Mailer relays every new contact message to a fixed inbox through Mailgun.
type Mailer struct {
	mg      mailSender
	from    string
	to      string
	appName string
	timeout time.Duration
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

func NewMailer(cfg MailerConfig) *Mailer {
	return newMailer(mailgun.NewMailgun(cfg.Domain, cfg.APIKey), cfg)
}

func newMailer(mg mailSender, cfg MailerConfig) *Mailer {
	return &Mailer{
		mg:      mg,
		from:    cfg.From,
		to:      cfg.To,
		appName: cfg.AppName,
		timeout: sendTimeout,
		logger:  logging.NewLogger("mailer"),
	}
}

// NotifyNewMessage sends the e-mail in the background and returns at once.
func (m *Mailer) NotifyNewMessage(ctx context.Context, msg models.ContactMessage) error {
	subject, body := m.compose(msg)
	message := m.mg.NewMessage(m.from, subject, body, m.to)
	message.SetReplyTo(msg.Email)

	ctx = context.WithoutCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ctxWithTimeout, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()

		_, id, err := m.mg.Send(ctxWithTimeout, message)
		if err != nil {
			m.logger.Error().Err(err).Int64("message_id", msg.ID).Msg("Failed to relay contact message")
			return
		}
		m.logger.Info().Int64("message_id", msg.ID).Str("mailgun_id", id).Msg("Contact message relayed")
	}()
	return nil
}

// Wait blocks until every pending send has finished.
func (m *Mailer) Wait() {
	m.wg.Wait()
}

func (m *Mailer) compose(msg models.ContactMessage) (subject, body string) {
	subject = fmt.Sprintf("[%s] New message from %s", m.appName, msg.Name)

	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", msg.Name)
	fmt.Fprintf(&b, "Email: %s\n", msg.Email)
	fmt.Fprintf(&b, "Received: %s\n\n", msg.CreatedAt.Format(time.RFC1123))
	b.WriteString(msg.Message)
	b.WriteString("\n")
	return subject, b.String()
}
