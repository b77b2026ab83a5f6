package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/arklim/chatsync/internal/auth"
	"github.com/arklim/chatsync/internal/config"
	"github.com/arklim/chatsync/internal/core"
	"github.com/arklim/chatsync/internal/rest"
	"github.com/arklim/chatsync/internal/transport/stomp"
)

// App wires together the transport, REST and core layers for one
// authenticated user.
type App struct {
	cfg  config.Config
	log  *zerolog.Logger
	user core.User

	transport *stomp.Client
	api       *rest.Client
	session   *core.Session
}

// New constructs the application from configuration. The token must decode;
// expiry is checked up front so a dead token fails fast instead of looping
// through transport retries.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("no token configured")
	}
	claims, err := auth.InspectToken(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("inspect token: %w", err)
	}
	if auth.Expired(claims, time.Now()) {
		return nil, fmt.Errorf("token expired at %s", claims.ExpiresAt)
	}

	user := core.User{
		ID:       claims.UserID,
		Username: claims.Username,
		FullName: claims.FullName,
	}
	logger.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("identity resolved")

	tp := stomp.New(stomp.Options{
		URL:              cfg.SocketURL,
		Token:            cfg.Token,
		ReconnectMinWait: cfg.ReconnectMinWait,
		ReconnectMaxWait: cfg.ReconnectMaxWait,
	}, logger)

	api := rest.New(cfg.APIBaseURL, cfg.Token, &http.Client{Timeout: cfg.RequestTimeout}, logger)

	return &App{
		cfg:       cfg,
		log:       logger,
		user:      user,
		transport: tp,
		api:       api,
		session:   core.NewSession(user, tp, api, logger),
	}, nil
}

// User returns the authenticated identity.
func (a *App) User() core.User {
	return a.user
}

// Session returns the synchronization session. It does nothing until Run is
// called.
func (a *App) Session() *core.Session {
	return a.session
}

// API returns the REST client for operations outside the session loop, like
// group management and search.
func (a *App) API() *rest.Client {
	return a.api
}

// Run drives the session until ctx is cancelled. The initial connect gets
// its own timeout; once up, reconnection is the transport's business.
func (a *App) Run(ctx context.Context) error {
	connectCtx, cancel := context.WithTimeout(ctx, a.cfg.ConnectTimeout)
	defer cancel()
	if err := a.transport.Connect(connectCtx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	return a.session.Run(ctx)
}
