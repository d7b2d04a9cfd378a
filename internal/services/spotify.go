// Spotify API implementation of [Library]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	spotifyPageSize = 50
)

type externalIDs struct {
	ISRC string `json:"isrc"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	DiscNumber  int             `json:"disc_number"`
	TrackNumber int             `json:"track_number"`
	Explicit    bool            `json:"explicit"`
	ExternalIDs externalIDs     `json:"external_ids"`
	URI         string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	Images      []SpotifyImage  `json:"images"`
	URI         string          `json:"uri"`
}

type spotifyOwner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
type SpotifyPlaylistTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifySavedTrack represents a track saved in the user's library.
type SpotifySavedTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Owner       spotifyOwner `json:"owner"`
	Public      bool         `json:"public"`
	Tracks      struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

// spotifyPage is the shape shared by all paginated Spotify responses.
type spotifyPage[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

// SpotifyService implements [Library] for the Spotify Web API.
//
// Uses [oauth2] for authentication; the oauth2 client refreshes expired
// access tokens transparently when a refresh token is present. A
// [rate.Limiter] paces pagination so large libraries don't trip the API's
// rate limits.
type SpotifyService struct {
	config     *oauth2.Config
	token      *oauth2.Token
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret := credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := credentials["redirect_uri"]
	if redirectURI == "" {
		redirectURI = "http://localhost:3000/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"playlist-read-private",
			"playlist-read-collaborative",
			"user-library-read",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	svc := &SpotifyService{
		config:     config,
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(rate.Limit(8), 4),
	}

	if accessToken := credentials["access_token"]; accessToken != "" {
		svc.token = &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
		}
		svc.httpClient = config.Client(context.Background(), svc.token)
	}

	return svc, nil
}

func (s *SpotifyService) Name() string {
	return "spotify"
}

// OAuthConfig exposes the [oauth2.Config] for the CLI's callback server.
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.config
}

// AuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Authenticate establishes a session. Expects either an "access_token" or an
// "auth_code" in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken := credentials["access_token"]; accessToken != "" {
		s.token = &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
		}
		s.httpClient = s.config.Client(ctx, s.token)
		return nil
	}

	if authCode := credentials["auth_code"]; authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("%w: code exchange: %v", shared.ErrAuthFailed, err)
		}
		s.token = token
		s.httpClient = s.config.Client(ctx, s.token)
		return nil
	}

	return fmt.Errorf("%w: need access_token or auth_code", shared.ErrMissingCredentials)
}

// SetToken installs an already-exchanged token (from the OAuth callback flow).
func (s *SpotifyService) SetToken(ctx context.Context, token *oauth2.Token) {
	s.token = token
	s.httpClient = s.config.Client(ctx, token)
}

// RefreshToken forces a token renewal via the stored refresh token.
func (s *SpotifyService) RefreshToken(ctx context.Context) error {
	if s.token == nil {
		return shared.ErrNotAuthenticated
	}
	if s.token.RefreshToken == "" {
		return shared.ErrNoRefreshToken
	}

	// Expire the current token so the token source round-trips to Spotify.
	stale := *s.token
	stale.Expiry = time.Now().Add(-time.Minute)

	fresh, err := s.config.TokenSource(ctx, &stale).Token()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	s.token = fresh
	s.httpClient = s.config.Client(ctx, fresh)
	return nil
}

// Token returns the current token pair for persistence.
func (s *SpotifyService) Token() *oauth2.Token {
	return s.token
}

// FetchLibrary pulls the user's playlists (with tracks) and liked songs into
// a [models.LibrarySnapshot]. Pagination is paced by the service's limiter.
func (s *SpotifyService) FetchLibrary(ctx context.Context, opts LibraryOptions) (*models.LibrarySnapshot, error) {
	if s.token == nil {
		return nil, fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	snapshot := &models.LibrarySnapshot{
		Service:   s.Name(),
		FetchedAt: time.Now().UTC(),
	}

	playlists, err := s.playlists(ctx, opts.PlaylistIDs)
	if err != nil {
		return nil, err
	}

	for _, simple := range playlists {
		tracks, err := s.playlistTracks(ctx, simple.ID)
		if err != nil {
			return nil, err
		}
		snapshot.Playlists = append(snapshot.Playlists, models.Playlist{
			ID:          simple.ID,
			Name:        simple.Name,
			Description: simple.Description,
			Owner:       simple.Owner.DisplayName,
			TrackCount:  simple.Tracks.Total,
			Public:      simple.Public,
			Tracks:      tracks,
		})
	}

	if opts.IncludeLiked {
		liked, err := s.savedTracks(ctx)
		if err != nil {
			return nil, err
		}
		snapshot.LikedTracks = liked
	}

	return snapshot, nil
}

// playlists lists the user's playlists, filtered to ids when provided.
func (s *SpotifyService) playlists(ctx context.Context, ids []string) ([]SpotifySimplePlaylist, error) {
	wanted := map[string]bool{}
	for _, id := range ids {
		wanted[id] = true
	}

	var all []SpotifySimplePlaylist
	offset := 0
	for {
		endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", spotifyPageSize, offset)

		var page spotifyPage[SpotifySimplePlaylist]
		if err := s.doRequest(ctx, http.MethodGet, endpoint, &page); err != nil {
			return nil, err
		}

		for _, pl := range page.Items {
			if len(wanted) == 0 || wanted[pl.ID] {
				all = append(all, pl)
			}
		}

		if page.Next == nil || len(page.Items) == 0 {
			return all, nil
		}
		offset += len(page.Items)
	}
}

// playlistTracks fetches all tracks for one playlist.
func (s *SpotifyService) playlistTracks(ctx context.Context, playlistID string) ([]models.StreamingTrack, error) {
	var tracks []models.StreamingTrack
	offset := 0
	for {
		endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", playlistID, spotifyPageSize, offset)

		var page spotifyPage[SpotifyPlaylistTrack]
		if err := s.doRequest(ctx, http.MethodGet, endpoint, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track.ID == "" {
				continue // local files and removed tracks come back empty
			}
			tracks = append(tracks, s.toStreamingTrack(item.Track))
		}

		if page.Next == nil || len(page.Items) == 0 {
			return tracks, nil
		}
		offset += len(page.Items)
	}
}

// savedTracks fetches the user's liked songs.
func (s *SpotifyService) savedTracks(ctx context.Context) ([]models.StreamingTrack, error) {
	var tracks []models.StreamingTrack
	offset := 0
	for {
		endpoint := fmt.Sprintf("/me/tracks?limit=%d&offset=%d", spotifyPageSize, offset)

		var page spotifyPage[SpotifySavedTrack]
		if err := s.doRequest(ctx, http.MethodGet, endpoint, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track.ID == "" {
				continue
			}
			tracks = append(tracks, s.toStreamingTrack(item.Track))
		}

		if page.Next == nil || len(page.Items) == 0 {
			return tracks, nil
		}
		offset += len(page.Items)
	}
}

// toStreamingTrack converts a Spotify API track to the canonical model.
func (s *SpotifyService) toStreamingTrack(st SpotifyTrack) models.StreamingTrack {
	artists := make([]string, 0, len(st.Artists))
	for _, a := range st.Artists {
		artists = append(artists, a.Name)
	}

	albumArtist := ""
	if len(st.Album.Artists) > 0 {
		albumArtist = st.Album.Artists[0].Name
	}

	artworkURL := ""
	if len(st.Album.Images) > 0 {
		artworkURL = st.Album.Images[0].URL
	}

	return models.StreamingTrack{
		Service:     s.Name(),
		TrackID:     st.ID,
		Title:       st.Name,
		Artists:     artists,
		Album:       st.Album.Name,
		AlbumArtist: albumArtist,
		TrackNumber: st.TrackNumber,
		DiscNumber:  st.DiscNumber,
		Duration:    st.DurationMS / 1000,
		ISRC:        st.ExternalIDs.ISRC,
		ArtworkURL:  artworkURL,
		ReleaseDate: st.Album.ReleaseDate,
	}
}

// doRequest performs a rate-limited, authenticated GET against the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, result any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, spotifyBaseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: status %d", shared.ErrTokenExpired, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
