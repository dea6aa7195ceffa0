package auth

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"simguard/client/internal/api"
	"simguard/client/internal/models"
	"simguard/client/internal/session"
)

var (
	// ErrNotInitialized means the gateway was built without a session
	// store. The original UI raised for this; here it is a plain result.
	ErrNotInitialized = errors.New("session store not initialized")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrConflict           = errors.New("email already registered")
)

// Gateway orchestrates authentication against the API and is the only
// writer of the session store besides the global 401 handler.
type Gateway struct {
	api   *api.Client
	store *session.Store
	log   zerolog.Logger

	onLoggedOut func()
}

func NewGateway(client *api.Client, store *session.Store, logger zerolog.Logger) *Gateway {
	return &Gateway{
		api:   client,
		store: store,
		log:   logger,
	}
}

// OnLoggedOut installs the hook that returns the UI to its
// unauthenticated entry point after an explicit logout.
func (g *Gateway) OnLoggedOut(fn func()) {
	g.onLoggedOut = fn
}

// Login exchanges credentials for tokens and persists the session. There
// is no client-side retry; a rejected pair maps to ErrInvalidCredentials
// and transport failures pass through as *api.NetworkError.
func (g *Gateway) Login(ctx context.Context, email, password string) (session.Session, error) {
	if g.store == nil {
		return session.Session{}, ErrNotInitialized
	}

	resp, err := g.api.Login(ctx, email, password)
	if err != nil {
		if api.IsUnauthorized(err) {
			return session.Session{}, ErrInvalidCredentials
		}
		return session.Session{}, err
	}

	sess, err := g.store.Persist(resp.AccessToken, resp.RefreshToken, resp.User)
	if err != nil {
		return session.Session{}, err
	}
	g.log.Info().Str("email", resp.User.Email).Msg("logged in")
	return sess, nil
}

// Register creates an account and returns the server's confirmation
// message. It does not authenticate; a separate Login follows.
func (g *Gateway) Register(ctx context.Context, email, fullName, password string) (string, error) {
	resp, err := g.api.RegisterAccount(ctx, email, fullName, password)
	if err != nil {
		if api.IsConflict(err) {
			return "", ErrConflict
		}
		return "", err
	}
	return resp.Message, nil
}

// Logout clears the session and signals the UI. Side effect only.
func (g *Gateway) Logout() {
	if g.store != nil {
		g.store.Clear()
	}
	g.log.Info().Msg("logged out")
	if g.onLoggedOut != nil {
		g.onLoggedOut()
	}
}

// UpdateProfile replaces the stored identity snapshot wholesale with the
// server's updated user, keeping the current tokens.
func (g *Gateway) UpdateProfile(ctx context.Context, fullName string) (models.User, error) {
	if g.store == nil {
		return models.User{}, ErrNotInitialized
	}

	user, err := g.api.UpdateProfile(ctx, fullName)
	if err != nil {
		return models.User{}, err
	}
	if _, err := g.store.ReplaceUser(user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (g *Gateway) ChangePassword(ctx context.Context, currentPassword, newPassword string) (string, error) {
	resp, err := g.api.ChangePassword(ctx, currentPassword, newPassword)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}
