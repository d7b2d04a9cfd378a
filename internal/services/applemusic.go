// Apple Music API implementation of [Library]
//
// Response types based on https://developer.apple.com/documentation/applemusicapi
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
	"golang.org/x/time/rate"
)

const (
	appleMusicHost    = "https://api.music.apple.com"
	appleMusicAPIRoot = "/v1"

	appleMusicPageSize = 100
	appleArtworkSize   = "512"
)

// appleArtwork carries the templated artwork URL ({w}/{h} placeholders).
type appleArtwork struct {
	URL string `json:"url"`
}

type appleDescription struct {
	Standard string `json:"standard"`
}

// AppleTrackAttributes is the attribute payload of a library song resource.
type AppleTrackAttributes struct {
	Name             string       `json:"name"`
	ArtistName       string       `json:"artistName"`
	AlbumName        string       `json:"albumName"`
	AlbumArtistName  string       `json:"albumArtistName"`
	DurationInMillis int          `json:"durationInMillis"`
	TrackNumber      int          `json:"trackNumber"`
	DiscNumber       int          `json:"discNumber"`
	ReleaseDate      string       `json:"releaseDate"`
	ISRC             string       `json:"isrc"`
	ContentRating    string       `json:"contentRating"`
	Artwork          appleArtwork `json:"artwork"`
}

// AppleTrack represents a library song or playlist track resource.
type AppleTrack struct {
	ID         string               `json:"id"`
	Attributes AppleTrackAttributes `json:"attributes"`
}

// ApplePlaylistAttributes is the attribute payload of a library playlist.
type ApplePlaylistAttributes struct {
	Name        string           `json:"name"`
	CuratorName string           `json:"curatorName"`
	TrackCount  int              `json:"trackCount"`
	Description appleDescription `json:"description"`
}

// ApplePlaylist represents a library playlist resource.
type ApplePlaylist struct {
	ID         string                  `json:"id"`
	Attributes ApplePlaylistAttributes `json:"attributes"`
}

// applePage is the shape shared by all paginated Apple Music responses. Next
// holds a host-relative path when more pages remain.
type applePage[T any] struct {
	Data []T    `json:"data"`
	Next string `json:"next"`
}

// AppleMusicService implements [Library] for the Apple Music API.
//
// Requests carry two tokens: the developer token as a bearer credential and
// the Music User Token issued by MusicKit. User tokens are long-lived and
// have no refresh endpoint, so RefreshToken only verifies one is present.
// A [rate.Limiter] paces pagination like the Spotify implementation.
type AppleMusicService struct {
	developerToken string
	userToken      string
	httpClient     *http.Client
	limiter        *rate.Limiter
}

// NewAppleMusicService creates an Apple Music service. The developer token is
// required; the user token may arrive later via Authenticate or SetUserToken.
func NewAppleMusicService(credentials map[string]string) (*AppleMusicService, error) {
	developerToken := credentials["developer_token"]
	if developerToken == "" {
		return nil, fmt.Errorf("%w: missing developer_token", shared.ErrMissingCredentials)
	}

	return &AppleMusicService{
		developerToken: developerToken,
		userToken:      credentials["music_user_token"],
		httpClient:     http.DefaultClient,
		limiter:        rate.NewLimiter(rate.Limit(8), 4),
	}, nil
}

func (s *AppleMusicService) Name() string {
	return "apple_music"
}

// Authenticate installs a Music User Token. The token comes out of the
// MusicKit browser flow; there is no code exchange on this service.
func (s *AppleMusicService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if token := credentials["music_user_token"]; token != "" {
		s.userToken = token
		return nil
	}
	return fmt.Errorf("%w: need music_user_token", shared.ErrMissingCredentials)
}

// SetUserToken installs a token delivered by the MusicKit authorization page.
func (s *AppleMusicService) SetUserToken(token string) {
	s.userToken = token
}

// UserToken returns the current Music User Token for persistence.
func (s *AppleMusicService) UserToken() string {
	return s.userToken
}

// RefreshToken verifies a user token is present. Music User Tokens cannot be
// refreshed through the API; an expired one surfaces as a 401 on fetch and
// requires re-running the MusicKit flow.
func (s *AppleMusicService) RefreshToken(ctx context.Context) error {
	if s.userToken == "" {
		return fmt.Errorf("%w: no Music User Token", shared.ErrNotAuthenticated)
	}
	return nil
}

// FetchLibrary pulls the user's library playlists (with tracks) and library
// songs into a [models.LibrarySnapshot].
func (s *AppleMusicService) FetchLibrary(ctx context.Context, opts LibraryOptions) (*models.LibrarySnapshot, error) {
	if s.userToken == "" {
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

	for _, pl := range playlists {
		tracks, err := s.playlistTracks(ctx, pl.ID)
		if err != nil {
			return nil, err
		}
		snapshot.Playlists = append(snapshot.Playlists, models.Playlist{
			ID:          pl.ID,
			Name:        pl.Attributes.Name,
			Description: pl.Attributes.Description.Standard,
			Owner:       pl.Attributes.CuratorName,
			TrackCount:  pl.Attributes.TrackCount,
			Tracks:      tracks,
		})
	}

	if opts.IncludeLiked {
		liked, err := s.librarySongs(ctx)
		if err != nil {
			return nil, err
		}
		snapshot.LikedTracks = liked
	}

	return snapshot, nil
}

// playlists lists the user's library playlists, filtered to ids when provided.
func (s *AppleMusicService) playlists(ctx context.Context, ids []string) ([]ApplePlaylist, error) {
	wanted := map[string]bool{}
	for _, id := range ids {
		wanted[id] = true
	}

	var all []ApplePlaylist
	endpoint := fmt.Sprintf("%s/me/library/playlists?limit=%d", appleMusicAPIRoot, appleMusicPageSize)
	for endpoint != "" {
		var page applePage[ApplePlaylist]
		if err := s.doRequest(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		for _, pl := range page.Data {
			if len(wanted) == 0 || wanted[pl.ID] {
				all = append(all, pl)
			}
		}
		endpoint = page.Next
	}
	return all, nil
}

// playlistTracks fetches all tracks for one library playlist.
func (s *AppleMusicService) playlistTracks(ctx context.Context, playlistID string) ([]models.StreamingTrack, error) {
	endpoint := fmt.Sprintf("%s/me/library/playlists/%s/tracks?limit=%d", appleMusicAPIRoot, playlistID, appleMusicPageSize)
	return s.trackPages(ctx, endpoint)
}

// librarySongs fetches every song saved to the user's library.
func (s *AppleMusicService) librarySongs(ctx context.Context) ([]models.StreamingTrack, error) {
	endpoint := fmt.Sprintf("%s/me/library/songs?limit=%d", appleMusicAPIRoot, appleMusicPageSize)
	return s.trackPages(ctx, endpoint)
}

// trackPages walks a paginated track endpoint to exhaustion.
func (s *AppleMusicService) trackPages(ctx context.Context, endpoint string) ([]models.StreamingTrack, error) {
	var tracks []models.StreamingTrack
	for endpoint != "" {
		var page applePage[AppleTrack]
		if err := s.doRequest(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Data {
			if item.ID == "" {
				continue
			}
			tracks = append(tracks, s.toStreamingTrack(item))
		}
		endpoint = page.Next
	}
	return tracks, nil
}

// toStreamingTrack converts an Apple Music resource to the canonical model.
func (s *AppleMusicService) toStreamingTrack(at AppleTrack) models.StreamingTrack {
	attrs := at.Attributes

	var artists []string
	if attrs.ArtistName != "" {
		artists = []string{attrs.ArtistName}
	}

	albumArtist := attrs.AlbumArtistName
	if albumArtist == "" {
		albumArtist = attrs.ArtistName
	}

	return models.StreamingTrack{
		Service:     s.Name(),
		TrackID:     at.ID,
		Title:       attrs.Name,
		Artists:     artists,
		Album:       attrs.AlbumName,
		AlbumArtist: albumArtist,
		TrackNumber: attrs.TrackNumber,
		DiscNumber:  attrs.DiscNumber,
		Duration:    attrs.DurationInMillis / 1000,
		ISRC:        attrs.ISRC,
		ArtworkURL:  artworkURL(attrs.Artwork),
		ReleaseDate: attrs.ReleaseDate,
	}
}

// artworkURL fills the {w}/{h} placeholders in a templated artwork URL.
func artworkURL(a appleArtwork) string {
	if a.URL == "" {
		return ""
	}
	url := strings.ReplaceAll(a.URL, "{w}", appleArtworkSize)
	return strings.ReplaceAll(url, "{h}", appleArtworkSize)
}

// doRequest performs a rate-limited GET against the Apple Music API. The
// endpoint is a host-relative path, the same form the API's next links use.
func (s *AppleMusicService) doRequest(ctx context.Context, endpoint string, result any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, appleMusicHost+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.developerToken)
	req.Header.Set("Music-User-Token", s.userToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", shared.ErrTokenExpired, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: apple music status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
