package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	netsmtp "net/smtp"
	"strings"

	"github.com/credit-relay/internal/config"
	"github.com/credit-relay/internal/domain"
	"gopkg.in/gomail.v2"
)

// Transport delivers rendered messages.
type Transport interface {
	// Verify connects and authenticates without sending anything.
	Verify(ctx context.Context) error
	Send(ctx context.Context, msg domain.Message) (domain.Receipt, error)
}

// Relay is the configured SMTP relay.
type Relay struct {
	cfg config.SMTPConfig
}

// NewRelay validates the SMTP settings. A missing host, user or password is
// reported as domain.ErrMissingCredential naming every missing key.
func NewRelay(cfg config.SMTPConfig) (*Relay, error) {
	var missing []string
	if cfg.Host == "" {
		missing = append(missing, "SMTP_HOST")
	}
	if cfg.User == "" {
		missing = append(missing, "SMTP_USER")
	}
	if cfg.Pass == "" {
		missing = append(missing, "SMTP_PASS")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("SMTP env not configured, missing %s: %w", strings.Join(missing, ", "), domain.ErrMissingCredential)
	}
	return &Relay{cfg: cfg}, nil
}

// dialer builds a fresh gomail dialer; gomail caches the negotiated auth on
// the dialer, so one is never shared between connections.
func (r *Relay) dialer() *gomail.Dialer {
	authUser := r.cfg.AuthUser
	if authUser == "" {
		authUser = r.cfg.User
	}
	d := gomail.NewDialer(r.cfg.Host, r.cfg.Port, authUser, r.cfg.Pass)
	d.SSL = r.cfg.Secure
	d.TLSConfig = tlsConfig(r.cfg)
	d.Auth = authFor(r.cfg, authUser)
	return d
}

func tlsConfig(cfg config.SMTPConfig) *tls.Config {
	serverName := cfg.TLSServerName
	if serverName == "" {
		serverName = cfg.Host
	}
	return &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: !cfg.RejectUnauthorized,
	}
}

func (r *Relay) Verify(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sc, err := r.dialer().Dial()
	if err != nil {
		return fmt.Errorf("smtp verify %s:%d: %w", r.cfg.Host, r.cfg.Port, err)
	}
	return sc.Close()
}

func (r *Relay) Send(ctx context.Context, msg domain.Message) (domain.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return domain.Receipt{}, err
	}
	if msg.From == "" {
		msg.From = r.cfg.From
	}
	if err := r.dialer().DialAndSend(newMessage(msg)); err != nil {
		return domain.Receipt{}, fmt.Errorf("smtp send: %w", err)
	}
	return domain.Receipt{}, nil
}

// newMessage renders a multipart/alternative message with the text part first.
func newMessage(msg domain.Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}
	return m
}

// authFor picks the SASL mechanism. An empty method lets gomail negotiate
// unless TLS is required, in which case PLAIN is used behind the TLS guard.
func authFor(cfg config.SMTPConfig, user string) netsmtp.Auth {
	var a netsmtp.Auth
	switch strings.ToUpper(cfg.AuthMethod) {
	case "LOGIN":
		a = &loginAuth{username: user, password: cfg.Pass}
	case "PLAIN":
		a = netsmtp.PlainAuth("", user, cfg.Pass, cfg.Host)
	}
	if cfg.RequireTLS {
		if a == nil {
			a = netsmtp.PlainAuth("", user, cfg.Pass, cfg.Host)
		}
		a = requireTLS{next: a}
	}
	return a
}
