package smtp

import (
	"bytes"
	netsmtp "net/smtp"
	"testing"

	"github.com/credit-relay/internal/config"
	"github.com/credit-relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSMTPConfig(host string) config.SMTPConfig {
	return config.SMTPConfig{
		Host:               host,
		Port:               465,
		User:               "relay@example.com",
		Pass:               "secret",
		From:               "relay@example.com",
		Secure:             true,
		RejectUnauthorized: true,
	}
}

func TestNewRelay_NamesEveryMissingKey(t *testing.T) {
	_, err := NewRelay(config.SMTPConfig{Port: 465})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
	assert.Contains(t, err.Error(), "SMTP_HOST, SMTP_USER, SMTP_PASS")

	_, err = NewRelay(config.SMTPConfig{Host: "smtp.example.com", User: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing SMTP_PASS")
	assert.NotContains(t, err.Error(), "SMTP_HOST")
}

func TestRelay_DialerSettings(t *testing.T) {
	cfg := testSMTPConfig("smtp.example.com")
	cfg.AuthUser = "login-user"
	cfg.TLSServerName = "mx.example.com"
	cfg.RejectUnauthorized = false
	r, err := NewRelay(cfg)
	require.NoError(t, err)

	d := r.dialer()
	assert.Equal(t, "smtp.example.com", d.Host)
	assert.Equal(t, "login-user", d.Username)
	assert.True(t, d.SSL)
	assert.Equal(t, "mx.example.com", d.TLSConfig.ServerName)
	assert.True(t, d.TLSConfig.InsecureSkipVerify)
	assert.Nil(t, d.Auth)
}

func TestTLSConfig_DefaultsServerNameToHost(t *testing.T) {
	c := tlsConfig(testSMTPConfig("smtp.example.com"))
	assert.Equal(t, "smtp.example.com", c.ServerName)
	assert.False(t, c.InsecureSkipVerify)
}

func TestAuthFor(t *testing.T) {
	cfg := testSMTPConfig("smtp.example.com")

	cfg.AuthMethod = "login"
	_, ok := authFor(cfg, "u").(*loginAuth)
	assert.True(t, ok)

	cfg.AuthMethod = ""
	assert.Nil(t, authFor(cfg, "u"))

	cfg.RequireTLS = true
	_, ok = authFor(cfg, "u").(requireTLS)
	assert.True(t, ok)
}

func TestRequireTLS_RefusesPlaintext(t *testing.T) {
	a := requireTLS{next: &loginAuth{username: "u", password: "p"}}
	_, _, err := a.Start(&netsmtp.ServerInfo{Name: "smtp.example.com", TLS: false})
	assert.ErrorIs(t, err, errTLSRequired)

	mech, _, err := a.Start(&netsmtp.ServerInfo{Name: "smtp.example.com", TLS: true})
	require.NoError(t, err)
	assert.Equal(t, "LOGIN", mech)
}

func TestLoginAuth_AnswersChallenges(t *testing.T) {
	a := &loginAuth{username: "user", password: "pass"}
	out, err := a.Next([]byte("Username:"), true)
	require.NoError(t, err)
	assert.Equal(t, "user", string(out))
	out, err = a.Next([]byte("Password:"), true)
	require.NoError(t, err)
	assert.Equal(t, "pass", string(out))
	out, err = a.Next(nil, false)
	require.NoError(t, err)
	assert.Nil(t, out)
	_, err = a.Next([]byte("Realm:"), true)
	assert.Error(t, err)
}

func TestNewMessage_MultipartAlternative(t *testing.T) {
	m := newMessage(domain.Message{
		From: "relay@example.com", To: "a@b.com", Subject: "Your verification code",
		Text: "code 123456", HTML: "<b>123456</b>",
	})
	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "multipart/alternative")
	assert.Contains(t, out, "Subject: Your verification code")
	assert.Contains(t, out, "code 123456")
	assert.Contains(t, out, "<b>123456</b>")
}
