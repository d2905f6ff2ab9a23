package mailrelay

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strings"

	"github.com/credit-relay/internal/domain"
)

// Verifier is the verification store.
type Verifier interface {
	IssueOTP(ctx context.Context, email string) (string, error)
	VerifyOTP(ctx context.Context, email, code string) error
	IssueToken(ctx context.Context, email string) (string, error)
	ValidateToken(ctx context.Context, token, email string) (string, error)
}

// Mailer is the mail dispatcher.
type Mailer interface {
	Send(ctx context.Context, msg domain.Message) (domain.Receipt, error)
	VerifyPrimary(ctx context.Context) error
}

// VerifiedMarker is notified when an address proves ownership.
type VerifiedMarker interface {
	MarkVerified(ctx context.Context, email string) error
}

type Service interface {
	SendOTP(ctx context.Context, email, name string) (domain.Receipt, error)
	VerifyOTP(ctx context.Context, email, code string) error
	// SendVerifyLink mails a one-time link. origin is used as the link base
	// unless a fixed application base URL is configured.
	SendVerifyLink(ctx context.Context, email, name, origin string) (domain.Receipt, error)
	ValidateLink(ctx context.Context, token, email string) (string, error)
	VerifySMTP(ctx context.Context) error
}

type service struct {
	store   Verifier
	mailer  Mailer
	marker  VerifiedMarker
	baseURL string
}

// NewService wires the relay. marker may be nil.
func NewService(store Verifier, mailer Mailer, marker VerifiedMarker, baseURL string) Service {
	return &service{store: store, mailer: mailer, marker: marker, baseURL: strings.TrimRight(baseURL, "/")}
}

func greeting(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return "Hi " + name
	}
	return "Hi"
}

func (s *service) SendOTP(ctx context.Context, email, name string) (domain.Receipt, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.Receipt{}, domain.BadInput("email is required")
	}
	code, err := s.store.IssueOTP(ctx, email)
	if err != nil {
		return domain.Receipt{}, err
	}
	hi := greeting(name)
	return s.mailer.Send(ctx, domain.Message{
		To:      email,
		Subject: "Your verification code",
		Text:    fmt.Sprintf("%s, your verification code is %s. It expires in 10 minutes.", hi, code),
		HTML: fmt.Sprintf(`<p>%s,</p><p>Your verification code is <b style="font-size:18px">%s</b>.</p><p>This code expires in 10 minutes.</p>`,
			html.EscapeString(hi), code),
	})
}

func (s *service) VerifyOTP(ctx context.Context, email, code string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(code) == "" {
		return domain.BadInput("email and code are required")
	}
	if err := s.store.VerifyOTP(ctx, email, code); err != nil {
		return err
	}
	s.markVerified(ctx, email)
	return nil
}

func (s *service) SendVerifyLink(ctx context.Context, email, name, origin string) (domain.Receipt, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.Receipt{}, domain.BadInput("email is required")
	}
	tok, err := s.store.IssueToken(ctx, email)
	if err != nil {
		return domain.Receipt{}, err
	}
	base := s.baseURL
	if base == "" {
		base = strings.TrimRight(origin, "/")
	}
	link := fmt.Sprintf("%s/verify?token=%s&email=%s", base, url.QueryEscape(tok), url.QueryEscape(email))
	hi := greeting(name)
	return s.mailer.Send(ctx, domain.Message{
		To:      email,
		Subject: "Verify your account",
		Text:    fmt.Sprintf("%s, click to verify: %s", hi, link),
		HTML: fmt.Sprintf(`<p>%s,</p><p>Please verify your account by clicking the link below:</p><p><a href="%s">Verify Account</a></p><p>This link expires in 60 minutes.</p>`,
			html.EscapeString(hi), html.EscapeString(link)),
	})
}

func (s *service) ValidateLink(ctx context.Context, token, email string) (string, error) {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(email) == "" {
		return "", domain.BadInput("token and email are required")
	}
	owner, err := s.store.ValidateToken(ctx, token, email)
	if err != nil {
		return "", err
	}
	s.markVerified(ctx, owner)
	return owner, nil
}

func (s *service) VerifySMTP(ctx context.Context) error {
	return s.mailer.VerifyPrimary(ctx)
}

func (s *service) markVerified(ctx context.Context, email string) {
	if s.marker == nil {
		return
	}
	if err := s.marker.MarkVerified(ctx, email); err != nil {
		slog.Warn("failed to mark member verified", "email", email, "err", err)
	}
}
