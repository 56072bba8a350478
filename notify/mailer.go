package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/wneessen/go-mail"

	"checkout-fulfillment/config"
)

// Message is a rendered email ready for the transport.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	// HTML is optional; when set it is attached as the alternative part.
	HTML string
}

// Mailer delivers a message. Implementations report transport errors only;
// there is no delivery confirmation.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer submits messages to an authenticated SMTP relay.
type SMTPMailer struct {
	from     string
	fromName string

	// mail.Client holds one connection at a time
	mu     sync.Mutex
	client *mail.Client
}

func NewSMTPMailer(cfg config.MailConfig) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(tlsPolicy(cfg.TLS)),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client for %s: %w", cfg.Host, err)
	}
	return &SMTPMailer{from: cfg.From, fromName: cfg.FromName, client: c}, nil
}

func tlsPolicy(name string) mail.TLSPolicy {
	switch name {
	case "none":
		return mail.NoTLS
	case "opportunistic":
		return mail.TLSOpportunistic
	default:
		return mail.TLSMandatory
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	em := mail.NewMsg()
	if m.fromName != "" {
		if err := em.FromFormat(m.fromName, m.from); err != nil {
			return fmt.Errorf("from address: %w", err)
		}
	} else if err := em.From(m.from); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := em.AddToFormat(msg.ToName, msg.To); err != nil {
		return fmt.Errorf("to address: %w", err)
	}
	em.Subject(msg.Subject)
	em.SetDate()
	em.SetMessageID()
	em.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		em.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.client.DialAndSendWithContext(ctx, em); err != nil {
		return fmt.Errorf("send to %s: %w", msg.To, err)
	}
	return nil
}
