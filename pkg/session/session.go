// Package session keeps per-browser credential state server-side. Handlers
// receive a Session explicitly; nothing in this package is process-global.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL bounds how long an idle session survives. Bearer tokens expire
// well before this; the session also carries the cookie needed to refresh
// them.
const DefaultTTL = 12 * time.Hour

var ErrNotFound = errors.New("session not found")

// Side identifies which account a credential set belongs to within one
// migration session.
type Side string

const (
	SideSource Side = "source"
	SideTarget Side = "target"
)

// Account holds everything needed to act on one helpdesk account: the
// short-lived bearer token, the long-lived identity cookie used to mint
// replacements, and the REST credentials for help-center and ticket calls.
type Account struct {
	Subdomain     string    `json:"subdomain"`
	BearerToken   string    `json:"bearerToken"`
	SessionCookie string    `json:"sessionCookie,omitempty"`
	AccountID     int64     `json:"accountId,omitempty"`
	TokenExpiry   time.Time `json:"tokenExpiry,omitempty"`

	RESTUsername string `json:"restUsername,omitempty"`
	RESTAPIKey   string `json:"restApiKey,omitempty"`
}

// Session is the unit of storage: one opaque ID covering both sides of a
// migration.
type Session struct {
	ID        string            `json:"id"`
	Accounts  map[Side]*Account `json:"accounts"`
	CreatedAt time.Time         `json:"createdAt"`
}

func New() *Session {
	return &Session{
		ID:        uuid.New().String(),
		Accounts:  make(map[Side]*Account),
		CreatedAt: time.Now().UTC(),
	}
}

// Account returns the credential set for one side, or nil when that side has
// not authenticated yet.
func (s *Session) Account(side Side) *Account {
	return s.Accounts[side]
}

func (s *Session) SetAccount(side Side, account *Account) {
	if s.Accounts == nil {
		s.Accounts = make(map[Side]*Account)
	}

	s.Accounts[side] = account
}

// Store persists sessions keyed by their opaque ID.
type Store interface {
	Save(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
