package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/desertthunder/discog/internal/server"
	"github.com/desertthunder/discog/internal/services"
	"github.com/desertthunder/discog/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// Auth performs the OAuth2 authorization code flow for Spotify and caches the token.
//
// Starts a local HTTP server on the redirect URI, opens the browser for user authorization, and exchanges the code
// for a token.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.newSpotifyService(cmd)
	if err != nil {
		return err
	}

	username, err := r.username()
	if err != nil {
		return err
	}

	token, err := r.authorize(ctx, svc, cmd.Duration("timeout"))
	if err != nil {
		return err
	}

	cache := services.NewTokenCache(r.configDir(), username)
	if err := cache.Save(token); err != nil {
		return err
	}

	if err := svc.Authenticate(ctx, token); err != nil {
		return err
	}

	user, err := svc.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify login: %w", err)
	}
	if user.ID != username {
		r.logger.Warn("logged in as a different account than configured", "configured", username, "account", user.ID)
	}

	r.writePlainln("✓ Logged in as %s", user.DisplayName)
	r.writePlain("✓ Token saved to %s\n", cache.Path())
	return nil
}

// callbackAddr returns the listen address and path of the redirect URI, falling back to the [server] section.
func (r *Runner) callbackAddr(redirect string) (addr, path string) {
	addr = net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
	path = "/callback"

	u, err := url.Parse(redirect)
	if err != nil || u.Host == "" {
		return addr, path
	}
	if u.Port() != "" {
		addr = u.Host
	}
	if u.Path != "" {
		path = u.Path
	}
	return addr, path
}

// authorize runs the browser half of the flow and waits for the callback.
func (r *Runner) authorize(ctx context.Context, svc *services.SpotifyService, timeout time.Duration) (*oauth2.Token, error) {
	state := shared.GenerateID()
	verifier := oauth2.GenerateVerifier()

	addr, path := r.callbackAddr(svc.RedirectURL())
	handler := server.NewOAuthHandler(svc, path, state, verifier)
	router := server.NewCallbackRouter(server.RequestLogger(shared.WithLogger(r.logger, "component", "oauth")))
	router.Mount(handler)

	srv, err := server.Listen(addr, router)
	if err != nil {
		return nil, err
	}

	if timeout <= 0 {
		timeout = authTimeout
	}
	serveCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	serverErrors := make(chan error, 1)
	go func() { serverErrors <- srv.Serve(serveCtx) }()
	r.logger.Info("waiting for OAuth callback", "addr", srv.Addr(), "path", path)

	authURL := svc.AuthURL(state, verifier)
	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		if err != nil {
			return nil, fmt.Errorf("callback server failed: %w", err)
		}
		return nil, waitErr(serveCtx, timeout)
	case <-serveCtx.Done():
		<-serverErrors
		return nil, waitErr(serveCtx, timeout)
	}

	cancel()
	if err := <-serverErrors; err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}

func waitErr(ctx context.Context, timeout time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	}
	return ctx.Err()
}
