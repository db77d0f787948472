package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/borashehu-gorgias/flows-migrator/pkg/auth"
	"github.com/borashehu-gorgias/flows-migrator/pkg/session"
)

// Accounts runs the login state machine and keeps the session store in sync
// with its outcomes.
type Accounts struct {
	logger *slog.Logger
	broker *auth.Broker
	store  session.Store
}

func NewAccounts(logger *slog.Logger, broker *auth.Broker, store session.Store) *Accounts {
	return &Accounts{
		logger: logger.With("module", "accounts"),
		broker: broker,
		store:  store,
	}
}

// LoginRequest authenticates one side of the migration. REST credentials are
// optional; they only gate help-center and ticket operations.
type LoginRequest struct {
	Side         session.Side
	Credentials  auth.Credentials
	RESTUsername string
	RESTAPIKey   string
}

// Login drives the full browser login handshake. Non-success outcomes
// (two-factor pending, captcha, SSO-only accounts) come back in the result,
// not as errors, and leave the session untouched.
func (a *Accounts) Login(ctx context.Context, sess *session.Session, req LoginRequest) (*auth.LoginResult, error) {
	result, err := a.broker.Login(ctx, req.Credentials)
	if err != nil {
		return nil, err
	}

	if result.Status != auth.LoginSuccess {
		return result, nil
	}

	claims, err := auth.DecodeToken(result.BearerToken)
	if err != nil {
		return nil, fmt.Errorf("acquired token does not decode: %w", err)
	}

	sess.SetAccount(req.Side, &session.Account{
		Subdomain:     req.Credentials.Subdomain,
		BearerToken:   result.BearerToken,
		SessionCookie: result.SessionCookie,
		AccountID:     claims.AccountID,
		TokenExpiry:   claims.ExpiresAt,
		RESTUsername:  req.RESTUsername,
		RESTAPIKey:    req.RESTAPIKey,
	})

	if err := a.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	a.logger.Info("account authenticated",
		"side", req.Side,
		"subdomain", req.Credentials.Subdomain,
		"account_id", claims.AccountID)

	return result, nil
}

// ManualToken accepts a token pasted from browser devtools, for accounts
// where the scripted login cannot finish (email two-factor, captcha, SSO).
// The token is validated for shape, expiry and the admin role; there is no
// session cookie, so it cannot be refreshed when it expires.
func (a *Accounts) ManualToken(ctx context.Context, sess *session.Session, side session.Side, subdomain, token, restUsername, restAPIKey string) error {
	claims, err := auth.ValidateManualToken(token)
	if err != nil {
		return err
	}

	sess.SetAccount(side, &session.Account{
		Subdomain:    subdomain,
		BearerToken:  token,
		AccountID:    claims.AccountID,
		TokenExpiry:  claims.ExpiresAt,
		RESTUsername: restUsername,
		RESTAPIKey:   restAPIKey,
	})

	if err := a.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	a.logger.Info("manual token accepted",
		"side", side,
		"subdomain", subdomain,
		"account_id", claims.AccountID)

	return nil
}

// Refresh mints a replacement bearer token from the stored session cookie.
// Manual-token sides have no cookie and always need a fresh paste.
func (a *Accounts) Refresh(ctx context.Context, sess *session.Session, side session.Side) error {
	account := sess.Account(side)
	if account == nil {
		return ErrNotAuthenticated
	}

	if account.SessionCookie == "" {
		return fmt.Errorf("%w: no session cookie stored for %s", auth.ErrReauthRequired, side)
	}

	token, err := a.broker.Refresh(ctx, account.Subdomain, account.SessionCookie)
	if err != nil {
		return err
	}

	claims, err := auth.DecodeToken(token)
	if err != nil {
		return fmt.Errorf("refreshed token does not decode: %w", err)
	}

	account.BearerToken = token
	account.TokenExpiry = claims.ExpiresAt

	if err := a.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	a.logger.Info("token refreshed", "side", side, "subdomain", account.Subdomain)

	return nil
}

// Logout discards the whole session, both sides at once.
func (a *Accounts) Logout(ctx context.Context, sess *session.Session) error {
	return a.store.Delete(ctx, sess.ID)
}
