package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host     string        // smtp.gmail.com
	Port     int           // 587 (STARTTLS)
	Username string        // account that sends the mail, also the From address
	Password string        // app password
	FromName string        // display name of the From address
	Timeout  time.Duration // dial + send timeout
}

// Mailer sends notifications as email over SMTP.
type Mailer struct {
	mu       sync.Mutex // one SMTP session at a time per client
	client   *mail.Client
	from     string
	fromName string
}

// NewMailer creates a Mailer. It does not connect until the first Send.
func NewMailer(cfg SMTPConfig) (*Mailer, error) {
	if cfg.Username == "" {
		return nil, fmt.Errorf("notify: smtp username is required")
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
	}
	if cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: smtp client: %w", err)
	}

	fromName := cfg.FromName
	if fromName == "" {
		fromName = "Secret Santa"
	}

	return &Mailer{client: client, from: cfg.Username, fromName: fromName}, nil
}

// Send implements Sender.
func (m *Mailer) Send(ctx context.Context, n Notification) error {
	msg, err := m.buildMessage(n)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("notify: send to %s: %w", n.GiverEmail, err)
	}
	return nil
}

func (m *Mailer) buildMessage(n Notification) (*mail.Msg, error) {
	composed, err := Compose(n)
	if err != nil {
		return nil, fmt.Errorf("notify: compose: %w", err)
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(m.fromName, m.from); err != nil {
		return nil, fmt.Errorf("notify: from address: %w", err)
	}
	if err := msg.AddToFormat(n.GiverName, n.GiverEmail); err != nil {
		return nil, fmt.Errorf("notify: to address %q: %w", n.GiverEmail, err)
	}
	msg.Subject(composed.Subject)
	msg.SetBodyString(mail.TypeTextPlain, composed.Text)
	msg.AddAlternativeString(mail.TypeTextHTML, composed.HTML)
	return msg, nil
}
