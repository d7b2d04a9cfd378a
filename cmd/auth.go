package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/desertthunder/tunesync/internal/server"
	"github.com/desertthunder/tunesync/internal/services"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/urfave/cli/v3"
)

// authTimeout bounds how long the CLI waits for the browser callback.
const authTimeout = 2 * time.Minute

// SpotifyAuth performs the OAuth2 authorization code flow for Spotify.
//
// Starts a local HTTP server on the configured redirect address, opens the
// browser for user authorization, exchanges the code for tokens, and persists
// them to the config file.
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	config := r.loadOrCreateConfig(configPath)

	if config.Credentials.Spotify.ClientID == "" || config.Credentials.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrMissingCredentials, configPath)
	}

	spotifyService, err := services.NewSpotifyService(config.Credentials.Spotify.Map())
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}

	addr, err := callbackAddr(config.Credentials.Spotify.RedirectURI)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}

	authURL := spotifyService.AuthURL(state)
	callback := server.NewCallbackServer(addr, spotifyService.OAuthConfig(), state, r.logger)

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", authTimeout)

	token, err := callback.WaitForToken(ctx, authTimeout)
	if err != nil {
		return err
	}

	spotifyService.SetToken(ctx, token)
	r.spotify = spotifyService

	if err := config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}

	if err := shared.SaveConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	r.config = config

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", configPath)
	r.writePlain("You can now use: tunesync sync\n")

	return nil
}

// AppleMusicAuth runs the MusicKit authorization flow for Apple Music.
//
// Serves a local page that loads MusicKit JS with the configured developer
// token, waits for the browser to post back a Music User Token, and persists
// it to the config file.
func (r *Runner) AppleMusicAuth(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	config := r.loadOrCreateConfig(configPath)

	if config.Credentials.AppleMusic.DeveloperToken == "" {
		return fmt.Errorf("%w: Apple Music developer_token must be set in %s", shared.ErrMissingCredentials, configPath)
	}

	addr := config.Credentials.AppleMusic.AuthAddr
	if addr == "" {
		addr = "localhost:3001"
	}

	mk := server.NewMusicKitServer(addr, config.Credentials.AppleMusic.DeveloperToken, r.logger)

	r.writePlain("→ Opening browser for Apple Music authorization...\n")
	if err := shared.OpenBrowser(mk.URL()); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", mk.URL())
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", authTimeout)

	token, err := mk.WaitForToken(ctx, authTimeout)
	if err != nil {
		return err
	}

	config.Credentials.AppleMusic.MusicUserToken = token
	config.General.Service = "apple_music"

	if err := shared.SaveConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	r.config = config

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Music User Token saved to %s\n\n", configPath)
	r.writePlain("You can now use: tunesync sync\n")

	return nil
}

// ProxyStatus checks the search/download proxy's /health endpoint.
func (r *Runner) ProxyStatus(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("checking proxy health")

	resp, err := r.api.Get(ctx, "/health")
	if err != nil {
		return fmt.Errorf("%w: proxy unavailable: %v", shared.ErrServiceUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	}

	if !resp.IsJSON {
		return r.writePlain("✓ Proxy is healthy\nStatus: %s\n", string(resp.Body))
	}

	healthData, ok := resp.JSONData.(map[string]any)
	if !ok {
		return r.writePlain("✓ Proxy is healthy\n")
	}

	status := "unknown"
	if s, ok := healthData["status"].(string); ok {
		status = s
	}

	r.writePlain("✓ Proxy is healthy\n")
	r.writePlain("Status: %s\n", status)
	if version, ok := healthData["version"].(string); ok {
		r.writePlain("Version: %s\n", version)
	}
	return nil
}

// callbackAddr extracts host:port from the configured redirect URI.
func callbackAddr(redirectURI string) (string, error) {
	if redirectURI == "" {
		return "localhost:3000", nil
	}

	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URI %q: %w", redirectURI, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("redirect URI %q has no host", redirectURI)
	}
	return u.Host, nil
}
