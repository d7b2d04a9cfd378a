package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	General     GeneralConfig     `toml:"general"`
	Matcher     MatcherConfig     `toml:"matcher"`
	Resolver    ResolverConfig    `toml:"resolver"`
	Queue       QueueConfig       `toml:"queue"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify    SpotifyConfig    `toml:"spotify"`
	AppleMusic AppleMusicConfig `toml:"apple_music"`
	YouTube    YouTubeConfig    `toml:"youtube"`
}

// SpotifyConfig contains Spotify API credentials and the persisted token pair.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	AccessToken  string `toml:"access_token,omitempty"`
	RefreshToken string `toml:"refresh_token,omitempty"`
}

// Map returns the credentials as a string map for service construction.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
		"access_token":  s.AccessToken,
		"refresh_token": s.RefreshToken,
	}
}

// Update stores a fresh [oauth2.Token] pair on the config.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidCredentials)
	}
	s.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.RefreshToken = token.RefreshToken
	}
	return nil
}

// AppleMusicConfig contains the MusicKit developer token and the user token
// captured by `tunesync auth apple`.
type AppleMusicConfig struct {
	DeveloperToken string `toml:"developer_token"`
	MusicUserToken string `toml:"music_user_token,omitempty"`
	AuthAddr       string `toml:"auth_addr,omitempty"` // loopback address for the MusicKit page
}

// Map returns the credentials as a string map for service construction.
func (a AppleMusicConfig) Map() map[string]string {
	return map[string]string{
		"developer_token":  a.DeveloperToken,
		"music_user_token": a.MusicUserToken,
	}
}

// YouTubeConfig contains settings for the YouTube search/download proxy.
type YouTubeConfig struct {
	ProxyURL string `toml:"proxy_url"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// GeneralConfig contains download output settings and service selection.
type GeneralConfig struct {
	Service           string `toml:"service"` // spotify or apple_music
	SaveLocation      string `toml:"save_location"`
	Quality           string `toml:"quality"`            // quality label, see QualityBitrate
	DuplicateHandling string `toml:"duplicate_handling"` // skip, overwrite, rename
}

// MatcherConfig tunes the track/candidate scoring heuristic.
type MatcherConfig struct {
	DurationToleranceSec int     `toml:"duration_tolerance_sec"`
	TitleWeight          float64 `toml:"title_weight"`
	ArtistBonus          float64 `toml:"artist_bonus"`
	OfficialBonus        float64 `toml:"official_bonus"`
	LivePenalty          float64 `toml:"live_penalty"`
}

// ResolverConfig tunes candidate retrieval and classification.
type ResolverConfig struct {
	SearchLimit     int     `toml:"search_limit"`
	AcceptThreshold float64 `toml:"accept_threshold"`
	AmbiguityMargin float64 `toml:"ambiguity_margin"`
	SearchRate      float64 `toml:"search_rate"` // requests per second against the search capability
}

// QueueConfig tunes the download worker pool.
type QueueConfig struct {
	Workers      int    `toml:"workers"`
	Capacity     int    `toml:"capacity"`
	Backpressure string `toml:"backpressure"` // block or reject when the active set is full
	MaxRetries   int    `toml:"max_retries"`
}

// QualityOptions maps quality labels to MP3 bitrates (kbps).
var QualityOptions = map[string]int{
	"Low":    128,
	"Medium": 192,
	"High":   256,
	"Best":   320,
}

// QualityBitrate resolves a quality label to a bitrate, defaulting to 320.
func QualityBitrate(label string) int {
	if kbps, ok := QualityOptions[label]; ok {
		return kbps
	}
	return 320
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// SaveConfig writes the config back to disk as TOML.
func SaveConfig(path string, config *Config) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
