// Package editor implements the privileged editing surface. A session is
// either administrative, opened with the master secret, or limited to the
// single entry id sealed in a capability token.
package editor

import (
	"crypto/subtle"
	"fmt"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/capability"
	apperrors "github.com/Adithya-Monish-Kumar-K/club-directory/pkg/errors"
)

type Session struct {
	admin  bool
	target int32
}

func AdminSession() Session {
	return Session{admin: true}
}

func LimitedSession(id int32) Session {
	return Session{target: id}
}

func (s Session) Admin() bool { return s.admin }

// Target returns the only id a limited session may edit.
func (s Session) Target() (int32, bool) {
	return s.target, !s.admin
}

// Restricted reports whether the session is scoped to a single entry.
func (s Session) Restricted() bool { return !s.admin }

func (s Session) allows(id int32) bool {
	return s.admin || s.target == id
}

func (s Session) String() string {
	if s.admin {
		return "admin"
	}
	return "limited:" + strconv.Itoa(int(s.target))
}

// Authenticator resolves presented credentials into sessions.
type Authenticator struct {
	secret []byte
	codec  *capability.Codec
}

func NewAuthenticator(secret string) (*Authenticator, error) {
	if secret == "" {
		return nil, fmt.Errorf("capability secret must be set: %w", apperrors.ErrInvalidInput)
	}
	codec, err := capability.NewCodec([]byte(secret))
	if err != nil {
		return nil, err
	}
	return &Authenticator{secret: []byte(secret), codec: codec}, nil
}

// Authenticate returns an admin session for the master secret and a limited
// session for a valid capability token.
func (a *Authenticator) Authenticate(credential string) (Session, error) {
	if credential == "" {
		return Session{}, apperrors.ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(credential), a.secret) == 1 {
		return AdminSession(), nil
	}
	if id, ok := a.codec.Decrypt(credential); ok {
		return LimitedSession(id), nil
	}
	return Session{}, apperrors.ErrUnauthorized
}

// IssueKey produces a capability token for id.
func (a *Authenticator) IssueKey(id int32) (string, error) {
	return a.codec.Generate(id)
}
