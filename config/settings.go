package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server    ServerSettings    `json:"server"`
	Metadata  MetadataSettings  `json:"metadata"`
	Cache     CacheSettings     `json:"cache"`
	Explore   ExploreSettings   `json:"explore"`
	Search    SearchSettings    `json:"search"`
	Stream    StreamSettings    `json:"stream"`
	Sessions  SessionSettings   `json:"sessions"`
	RateLimit RateLimitSettings `json:"rateLimit"`
	Log       LogConfig         `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type MetadataSettings struct {
	TMDBAPIKey   string `json:"tmdbApiKey"`
	Language     string `json:"language"`
	BaseURL      string `json:"baseUrl"`      // TMDB REST root, overridable for tests and proxies
	ImageBaseURL string `json:"imageBaseUrl"` // TMDB image CDN root
}

type CacheSettings struct {
	Directory        string `json:"directory"`
	MetadataTTLHours int    `json:"metadataTtlHours"`
}

// CategoryConfig describes one explore category. MediaType selects the TMDB
// genre list and discover endpoint; OriginalLanguage narrows discovery (anime).
type CategoryConfig struct {
	Key              string `json:"key"`
	Label            string `json:"label"`
	MediaType        string `json:"mediaType"` // movie | tv
	DefaultGenre     int    `json:"defaultGenre"`
	OriginalLanguage string `json:"originalLanguage,omitempty"`
}

type ExploreSettings struct {
	MaxPages   int              `json:"maxPages"` // TMDB refuses pages beyond 500
	Categories []CategoryConfig `json:"categories"`
}

type SearchSettings struct {
	DebounceMillis int `json:"debounceMillis"`
}

// StreamSettings controls the third-party embed player.
type StreamSettings struct {
	EmbedBaseURL string `json:"embedBaseUrl"`
}

type SessionSettings struct {
	IdleTimeoutMinutes int `json:"idleTimeoutMinutes"`
}

type RateLimitSettings struct {
	RequestsPerSecond float64 `json:"requestsPerSecond"`
	Burst             int     `json:"burst"`
	// TrustProxy keys clients by X-Forwarded-For. Enable only behind a
	// reverse proxy that sets it.
	TrustProxy        bool    `json:"trustProxy"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns sane defaults for a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{Host: "0.0.0.0", Port: 7788},
		Metadata: MetadataSettings{
			TMDBAPIKey:   "",
			Language:     "en",
			BaseURL:      "https://api.themoviedb.org/3",
			ImageBaseURL: "https://image.tmdb.org/t/p",
		},
		Cache: CacheSettings{Directory: "cache", MetadataTTLHours: 24},
		Explore: ExploreSettings{
			MaxPages: 500,
			Categories: []CategoryConfig{
				{Key: "movie", Label: "Movies", MediaType: "movie", DefaultGenre: 28},                     // Action
				{Key: "tv", Label: "TV Shows", MediaType: "tv", DefaultGenre: 10759},                      // Action & Adventure
				{Key: "anime", Label: "Anime", MediaType: "tv", DefaultGenre: 16, OriginalLanguage: "ja"}, // Animation
			},
		},
		Search:    SearchSettings{DebounceMillis: 500},
		Stream:    StreamSettings{EmbedBaseURL: "https://vidsrc.cc/v2/embed"},
		Sessions:  SessionSettings{IdleTimeoutMinutes: 30},
		RateLimit: RateLimitSettings{RequestsPerSecond: 20, Burst: 40},
		Log: LogConfig{
			File:       "cache/logs/cinescope.log",
			Level:      "info",
			MaxSize:    50,   // 50 MB per file
			MaxBackups: 3,    // keep 3 old files
			MaxAge:     7,    // 7 days
			Compress:   true, // compress old files
		},
	}
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// Path returns the settings file location.
func (m *Manager) Path() string {
	return m.path
}

// EnsureDir ensures parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings.json from disk or creates defaults if missing.
// Environment overrides are applied to the returned value but never persisted.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		// create with defaults
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		applyEnv(&defaults)
		return defaults, nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	// Decode over defaults so older files pick up newly added sections
	s := DefaultSettings()
	s.Explore.Categories = nil
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, err
	}
	normalize(&s)
	applyEnv(&s)
	return s, nil
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}

// LoadDotEnv reads KEY=VALUE pairs from the given files into the process
// environment. Missing files are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

func normalize(s *Settings) {
	defaults := DefaultSettings()
	if len(s.Explore.Categories) == 0 {
		s.Explore.Categories = defaults.Explore.Categories
	}
	if s.Explore.MaxPages <= 0 || s.Explore.MaxPages > defaults.Explore.MaxPages {
		s.Explore.MaxPages = defaults.Explore.MaxPages
	}
	if s.Search.DebounceMillis < 0 {
		s.Search.DebounceMillis = 0
	}
	if strings.TrimSpace(s.Metadata.BaseURL) == "" {
		s.Metadata.BaseURL = defaults.Metadata.BaseURL
	}
	if strings.TrimSpace(s.Metadata.ImageBaseURL) == "" {
		s.Metadata.ImageBaseURL = defaults.Metadata.ImageBaseURL
	}
	if strings.TrimSpace(s.Stream.EmbedBaseURL) == "" {
		s.Stream.EmbedBaseURL = defaults.Stream.EmbedBaseURL
	}
	if s.Sessions.IdleTimeoutMinutes <= 0 {
		s.Sessions.IdleTimeoutMinutes = defaults.Sessions.IdleTimeoutMinutes
	}
	if s.Cache.MetadataTTLHours <= 0 {
		s.Cache.MetadataTTLHours = defaults.Cache.MetadataTTLHours
	}
}

func applyEnv(s *Settings) {
	if key := strings.TrimSpace(os.Getenv("TMDB_API_KEY")); key != "" {
		s.Metadata.TMDBAPIKey = key
	}
	if lang := strings.TrimSpace(os.Getenv("CINESCOPE_LANGUAGE")); lang != "" {
		s.Metadata.Language = lang
	}
	if portStr := strings.TrimSpace(os.Getenv("CINESCOPE_PORT")); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			s.Server.Port = port
		}
	}
}
