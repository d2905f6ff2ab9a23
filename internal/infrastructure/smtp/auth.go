package smtp

import (
	"errors"
	netsmtp "net/smtp"
)

var errTLSRequired = errors.New("smtp: TLS required but connection is not encrypted")

// requireTLS refuses to authenticate over a plaintext connection.
type requireTLS struct {
	next netsmtp.Auth
}

func (a requireTLS) Start(server *netsmtp.ServerInfo) (string, []byte, error) {
	if !server.TLS {
		return "", nil, errTLSRequired
	}
	return a.next.Start(server)
}

func (a requireTLS) Next(fromServer []byte, more bool) ([]byte, error) {
	return a.next.Next(fromServer, more)
}

// loginAuth implements the LOGIN mechanism, which net/smtp does not provide.
type loginAuth struct {
	username string
	password string
}

func (a *loginAuth) Start(_ *netsmtp.ServerInfo) (string, []byte, error) {
	return "LOGIN", nil, nil
}

func (a *loginAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if !more {
		return nil, nil
	}
	switch string(fromServer) {
	case "Username:", "username:":
		return []byte(a.username), nil
	case "Password:", "password:":
		return []byte(a.password), nil
	}
	return nil, errors.New("smtp: unexpected LOGIN challenge " + string(fromServer))
}
