package notify

import (
	"context"
	"crypto/tls"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"

	"github.com/teranos/batchwatch/errors"
	"github.com/teranos/batchwatch/logger"
)

// DefaultDialTimeout bounds connecting to the mail server.
const DefaultDialTimeout = 30 * time.Second

// SMTPConfig locates and authenticates against the mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// TLS dials with implicit TLS (port 465 style). Without it the
	// connection is upgraded with STARTTLS when the server offers it.
	TLS bool
}

func (c SMTPConfig) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SMTPMailer sends reports through an SMTP relay.
type SMTPMailer struct {
	config    SMTPConfig
	tlsConfig *tls.Config
	timeout   time.Duration
	logger    *zap.SugaredLogger
}

// NewSMTPMailer creates a mailer for cfg.
func NewSMTPMailer(cfg SMTPConfig, log *zap.SugaredLogger) *SMTPMailer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &SMTPMailer{
		config:    cfg,
		tlsConfig: &tls.Config{ServerName: cfg.Host},
		timeout:   DefaultDialTimeout,
		logger:    log,
	}
}

// Send composes msg and hands it to the relay. Failures are marked
// errors.ErrDelivery.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	log := logger.FromContext(ctx, m.logger)

	body, err := Compose(msg)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "failed to compose report mail"), errors.ErrDelivery)
	}

	start := time.Now()
	if err := m.deliver(ctx, msg.From, msg.Recipients(), body); err != nil {
		return errors.Mark(errors.Wrapf(err, "failed to send report mail via %s", m.config.addr()), errors.ErrDelivery)
	}

	log.Infow("Report mail sent",
		logger.FieldHost, m.config.Host,
		logger.FieldCount, len(msg.Recipients()),
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return nil
}

func (m *SMTPMailer) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: m.timeout}
	if m.config.TLS {
		td := &tls.Dialer{NetDialer: dialer, Config: m.tlsConfig}
		return td.DialContext(ctx, "tcp", m.config.addr())
	}
	return dialer.DialContext(ctx, "tcp", m.config.addr())
}

func (m *SMTPMailer) deliver(ctx context.Context, from string, to []string, body []byte) error {
	conn, err := m.dial(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to connect to SMTP server")
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.config.Host)
	if err != nil {
		conn.Close()
		return errors.Wrap(err, "failed to create SMTP client")
	}
	defer client.Close()

	if !m.config.TLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(m.tlsConfig); err != nil {
				return errors.Wrap(err, "failed to start TLS")
			}
		}
	}

	if m.config.Username != "" {
		auth := smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
		if err := client.Auth(auth); err != nil {
			return errors.Wrap(err, "SMTP authentication failed")
		}
	}

	if err := client.Mail(envelopeAddress(from)); err != nil {
		return errors.Wrap(err, "failed to set mail from")
	}
	for _, rcpt := range to {
		if err := client.Rcpt(envelopeAddress(rcpt)); err != nil {
			return errors.Wrapf(err, "failed to add recipient %s", rcpt)
		}
	}

	w, err := client.Data()
	if err != nil {
		return errors.Wrap(err, "failed to start data")
	}
	if _, err := w.Write(body); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "failed to close data writer")
	}

	return client.Quit()
}

// envelopeAddress strips a display name: "Ops <ops@example.com>" -> ops@example.com
func envelopeAddress(s string) string {
	if a, err := mail.ParseAddress(s); err == nil {
		return a.Address
	}
	return s
}
