package email

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Message is one rendered email ready to go out.
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

// Mailer delivers a rendered message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

var ErrNoRecipient = errors.New("message has no recipient")

// Sender delivers over SMTP.
type Sender struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	Retries int

	// transport overrides the SMTP dialer; nil dials Host:Port per message.
	transport gomail.Sender
}

func NewSender(host string, port int, username, password, from string, retries int) *Sender {
	return &Sender{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		Retries:  retries,
	}
}

func (s *Sender) build(msg Message) (*gomail.Message, error) {
	if msg.To == "" {
		return nil, ErrNoRecipient
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	if msg.ToName != "" {
		m.SetAddressHeader("To", msg.To, msg.ToName)
	} else {
		m.SetHeader("To", msg.To)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	return m, nil
}

func (s *Sender) send(m *gomail.Message) error {
	if s.transport != nil {
		return gomail.Send(s.transport, m)
	}
	d := gomail.NewDialer(s.Host, s.Port, s.Username, s.Password)
	return d.DialAndSend(m)
}

// Send delivers msg, retrying transport errors with exponential backoff.
// Retries bounds the number of re-attempts after the first.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	m, err := s.build(msg)
	if err != nil {
		return err
	}

	operation := func() error {
		if err := s.send(m); err != nil {
			return fmt.Errorf("smtp send error: %w", err)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 0

	var policy backoff.BackOff = b
	if s.Retries >= 0 {
		policy = backoff.WithMaxRetries(b, uint64(s.Retries))
	}
	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}

// LogMailer only logs. It stands in when no SMTP host is configured.
type LogMailer struct {
	Log *zap.Logger
}

func (l LogMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	if l.Log != nil {
		l.Log.Info("email (dry run)",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Int("body_bytes", len(msg.Body)))
	}
	return ctx.Err()
}

var (
	_ Mailer = (*Sender)(nil)
	_ Mailer = LogMailer{}
)
