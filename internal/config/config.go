package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultModel          = "gemini-2.5-flash"
	DefaultMaxTokens      = 4096
	DefaultCutoffHour     = 23
	DefaultCutoffMinute   = 30
	DefaultTimezone       = "UTC"
	DefaultTimelineWindow = 10
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 18890
	DefaultBufSize        = 100
	DefaultMaxTries       = 3
	DefaultCallTimeoutSec = 30
	DefaultTTSVoice       = "alloy"
	DefaultFFmpegPath     = "ffmpeg"
)

type Config struct {
	Report   ReportConfig   `json:"report"`
	Channels ChannelsConfig `json:"channels"`
	Provider ProviderConfig `json:"provider"`
	Store    StoreConfig    `json:"store"`
	Media    MediaConfig    `json:"media"`
	History  HistoryConfig  `json:"history"`
	Gateway  GatewayConfig  `json:"gateway"`
}

type ReportConfig struct {
	Timezone       string `json:"timezone"`
	CutoffHour     int    `json:"cutoffHour"`
	CutoffMinute   int    `json:"cutoffMinute"`
	TimelineWindow int    `json:"timelineWindow"`
	// DeliverChannel/DeliverTo receive the rendered daily report.
	DeliverChannel string `json:"deliverChannel,omitempty"`
	DeliverTo      string `json:"deliverTo,omitempty"`
}

type ProviderConfig struct {
	Type      string `json:"type,omitempty"` // "gemini" (default) or "openai"
	APIKey    string `json:"apiKey"`
	BaseURL   string `json:"baseUrl,omitempty"`
	Model     string `json:"model,omitempty"`
	MaxTokens int    `json:"maxTokens,omitempty"`
	// FallbackModels are tried in order when the primary model is
	// rate-limited or failing.
	FallbackModels []string `json:"fallbackModels,omitempty"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
}

type StoreConfig struct {
	Type string `json:"type,omitempty"` // "drive" or "local" (default)
	// Drive
	CredentialsFile string `json:"credentialsFile,omitempty"`
	RootFolderID    string `json:"rootFolderId,omitempty"`
	// Local
	Path string `json:"path,omitempty"`
}

type MediaConfig struct {
	Enabled    bool   `json:"enabled"`
	TTSBaseURL string `json:"ttsBaseUrl,omitempty"`
	TTSAPIKey  string `json:"ttsApiKey,omitempty"`
	TTSModel   string `json:"ttsModel,omitempty"`
	Voice      string `json:"voice,omitempty"`
	FFmpegPath string `json:"ffmpegPath,omitempty"`
}

type HistoryConfig struct {
	DBPath string `json:"dbPath,omitempty"`
}

type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// JobsPath overrides where scheduled jobs persist. Empty means
	// <config dir>/data/cron/jobs.json.
	JobsPath string `json:"jobsPath,omitempty"`
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Report: ReportConfig{
			Timezone:       DefaultTimezone,
			CutoffHour:     DefaultCutoffHour,
			CutoffMinute:   DefaultCutoffMinute,
			TimelineWindow: DefaultTimelineWindow,
		},
		Provider: ProviderConfig{},
		Channels: ChannelsConfig{},
		Store: StoreConfig{
			Type: "local",
			Path: filepath.Join(home, ".atlasbrief", "archive"),
		},
		Media: MediaConfig{
			Voice:      DefaultTTSVoice,
			FFmpegPath: DefaultFFmpegPath,
		},
		Gateway: GatewayConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".atlasbrief")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if key := os.Getenv("ATLASBRIEF_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
		if cfg.Provider.Type == "" {
			cfg.Provider.Type = "openai"
		}
	}
	if url := os.Getenv("ATLASBRIEF_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if token := os.Getenv("ATLASBRIEF_TELEGRAM_TOKEN"); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if tz := os.Getenv("ATLASBRIEF_TIMEZONE"); tz != "" {
		cfg.Report.Timezone = tz
	}
	if cutoff := os.Getenv("ATLASBRIEF_CUTOFF"); cutoff != "" {
		if t, err := time.Parse("15:04", cutoff); err == nil {
			cfg.Report.CutoffHour = t.Hour()
			cfg.Report.CutoffMinute = t.Minute()
		}
	}
	if path := os.Getenv("ATLASBRIEF_STORE_PATH"); path != "" {
		cfg.Store.Path = path
	}
	if creds := os.Getenv("ATLASBRIEF_DRIVE_CREDENTIALS"); creds != "" {
		cfg.Store.CredentialsFile = creds
		if cfg.Store.Type == "" || cfg.Store.Type == "local" {
			cfg.Store.Type = "drive"
		}
	}
	if folder := os.Getenv("ATLASBRIEF_DRIVE_ROOT"); folder != "" {
		cfg.Store.RootFolderID = folder
	}
	if dbPath := os.Getenv("ATLASBRIEF_HISTORY_DB"); dbPath != "" {
		cfg.History.DBPath = dbPath
	}
	if enabled := os.Getenv("ATLASBRIEF_MEDIA_ENABLED"); enabled != "" {
		if parsed, err := strconv.ParseBool(enabled); err == nil {
			cfg.Media.Enabled = parsed
		}
	}
	if key := os.Getenv("ATLASBRIEF_TTS_API_KEY"); key != "" {
		cfg.Media.TTSAPIKey = key
	}
	if url := os.Getenv("ATLASBRIEF_TTS_BASE_URL"); url != "" {
		cfg.Media.TTSBaseURL = url
	}

	if cfg.Report.Timezone == "" {
		cfg.Report.Timezone = DefaultTimezone
	}
	if cfg.Report.TimelineWindow <= 0 {
		cfg.Report.TimelineWindow = DefaultTimelineWindow
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = "local"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultConfig().Store.Path
	}
	if cfg.Media.Voice == "" {
		cfg.Media.Voice = DefaultTTSVoice
	}
	if cfg.Media.FFmpegPath == "" {
		cfg.Media.FFmpegPath = DefaultFFmpegPath
	}

	return cfg, nil
}

// Validate reports missing credentials and bad values that make the gateway
// unable to start. These are fatal at startup, never at request time.
func (c *Config) Validate() error {
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider API key not set. Run 'atlasbrief onboard' or set ATLASBRIEF_API_KEY")
	}
	if _, err := time.LoadLocation(c.Report.Timezone); err != nil {
		return fmt.Errorf("invalid report timezone %q: %w", c.Report.Timezone, err)
	}
	if c.Report.CutoffHour < 0 || c.Report.CutoffHour > 23 || c.Report.CutoffMinute < 0 || c.Report.CutoffMinute > 59 {
		return fmt.Errorf("invalid report cutoff %02d:%02d", c.Report.CutoffHour, c.Report.CutoffMinute)
	}
	if c.Store.Type == "drive" && c.Store.CredentialsFile == "" {
		return fmt.Errorf("store type is drive but credentialsFile is not set")
	}
	if c.Media.Enabled && c.Media.TTSBaseURL == "" {
		return fmt.Errorf("media enabled but ttsBaseUrl is not set")
	}
	return nil
}

func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Report.Timezone)
}

func (c *Config) Model() string {
	if c.Provider.Model != "" {
		return c.Provider.Model
	}
	return DefaultModel
}

func (c *Config) MaxTokens() int {
	if c.Provider.MaxTokens > 0 {
		return c.Provider.MaxTokens
	}
	return DefaultMaxTokens
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
