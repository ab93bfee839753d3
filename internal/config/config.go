package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	AppName           = "Cookie Player"
	AppTagline        = "Terminal music player"
	AppDescription    = "A terminal music player for local folders and web directory listings"
	AppAuthor         = "Ilya Glebov"
	AppAuthorURL      = "https://ilyaglebov.dev"
	AppAuthorURLShort = "ilyaglebov.dev"
	AppProjectURL     = "https://github.com/glebovdev/cookie-player"
	AppProjectShort   = "github.com/glebovdev/cookie-player"

	ConfigDir      = ".config/cookie"
	ConfigFileName = "config.yml"
	EnvFileName    = ".env"

	EnvUsername = "COOKIE_USERNAME"
	EnvPassword = "COOKIE_PASSWORD"

	DefaultSampleRate = 44100
	MinSampleRate     = 8000
	MaxSampleRate     = 192000
	DefaultBufferMs   = 100
	MinBufferMs       = 10
	MaxBufferMs       = 2000
	DefaultPollMs     = 100
	MinPollMs         = 10
	MaxPollMs         = 1000
)

// AppVersion can be overridden at build time using ldflags:
// go build -ldflags "-X github.com/glebovdev/cookie-player/internal/config.AppVersion=1.0.0"
var AppVersion = "dev"

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type Theme struct {
	Background                string `yaml:"background"`
	Foreground                string `yaml:"foreground"`
	Borders                   string `yaml:"borders"`
	Highlight                 string `yaml:"highlight"`
	HeaderBackground          string `yaml:"header_background"`
	TrackListHeaderBackground string `yaml:"track_list_header_background"`
	TrackListHeaderForeground string `yaml:"track_list_header_foreground"`
	HelpBackground            string `yaml:"help_background"`
	HelpForeground            string `yaml:"help_foreground"`
	HelpHotkey                string `yaml:"help_hotkey"`
	ModalBackground           string `yaml:"modal_background"`
}

type Config struct {
	OutputSampleRate int    `yaml:"output_sample_rate"`
	BufferMs         int    `yaml:"buffer_ms"`
	PollIntervalMs   int    `yaml:"poll_interval_ms"`
	LastLocation     string `yaml:"last_location"`
	LastTrack        string `yaml:"last_track"`
	Username         string `yaml:"username"`
	Autoplay         bool   `yaml:"autoplay"`
	Theme            Theme  `yaml:"theme"`
}

func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configPath := filepath.Join(home, ConfigDir, ConfigFileName)
	return configPath, nil
}

func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return DefaultConfig(), err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.normalize()

	return cfg, nil
}

func (c *Config) normalize() {
	c.OutputSampleRate = clamp(c.OutputSampleRate, MinSampleRate, MaxSampleRate)
	c.BufferMs = clamp(c.BufferMs, MinBufferMs, MaxBufferMs)
	c.PollIntervalMs = clamp(c.PollIntervalMs, MinPollMs, MaxPollMs)
}

// Save writes the configuration to disk atomically using temp file + rename.
func (c *Config) Save() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpFile, err := os.CreateTemp(configDir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, configPath); err != nil {
		return fmt.Errorf("failed to rename config file: %w", err)
	}

	tmpPath = "" // Prevent defer from removing the final file
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		OutputSampleRate: DefaultSampleRate,
		BufferMs:         DefaultBufferMs,
		PollIntervalMs:   DefaultPollMs,
		LastLocation:     "",
		Autoplay:         true,
		Theme: Theme{
			Background:                "#1a1b25",
			Foreground:                "#a3aacb",
			Borders:                   "#40445b",
			Highlight:                 "#ff9d65",
			HeaderBackground:          "#473533",
			TrackListHeaderBackground: "#3a3d4f",
			TrackListHeaderForeground: "#c8d0e8",
			HelpBackground:            "#322f45",
			HelpForeground:            "#9aa3c6",
			HelpHotkey:                "#ff9d65",
			ModalBackground:           "#282a36",
		},
	}
}

func (c *Config) BufferDuration() time.Duration {
	return time.Duration(c.BufferMs) * time.Millisecond
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// LoadEnv reads KEY=value pairs from a .env file in the working directory.
// Variables already set in the environment win. A missing file is not an error.
func LoadEnv() error {
	if err := godotenv.Load(EnvFileName); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", EnvFileName, err)
	}
	return nil
}

// Credentials resolves the basic-auth username and password. A username from
// the command line beats the environment, which beats the config file. The
// password only ever comes from the environment.
func (c *Config) Credentials(flagUser string) (username, password string) {
	username = c.Username
	if env := os.Getenv(EnvUsername); env != "" {
		username = env
	}
	if flagUser != "" {
		username = flagUser
	}
	return username, os.Getenv(EnvPassword)
}

func GetColor(colorStr string) tcell.Color {
	if colorStr == "" || colorStr == "default" {
		return tcell.ColorDefault
	}
	return tcell.GetColor(colorStr)
}
