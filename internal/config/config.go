package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration, loaded from YAML with
// environment overrides applied on top.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Deepgram      DeepgramConfig      `yaml:"deepgram"`
	AudioSocket   AudioSocketConfig   `yaml:"audiosocket"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Redis         RedisConfig         `yaml:"redis"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig contains the HTTP/WebSocket server configuration.
type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

// DeepgramConfig contains the Deepgram live-transcription settings. The API
// key is never read from the YAML file; it comes from the DEEPGRAM_API_KEY
// environment variable and the process refuses to start without it.
type DeepgramConfig struct {
	APIKey         string `yaml:"-"`
	Model          string `yaml:"model"`
	Language       string `yaml:"language"`
	SmartFormat    bool   `yaml:"smart_format"`
	Encoding       string `yaml:"encoding"`
	Channels       int    `yaml:"channels"`
	SampleRate     int    `yaml:"sample_rate"`
	InterimResults bool   `yaml:"interim_results"`
}

// AudioSocketConfig contains the optional Asterisk AudioSocket ingress.
type AudioSocketConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// TranscriptionConfig controls transcript persistence to disk.
type TranscriptionConfig struct {
	OutputDir       string `yaml:"output_dir"`
	SaveTranscripts bool   `yaml:"save_transcripts"`
}

// RedisConfig contains the optional Redis transcript store.
type RedisConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Address    string `yaml:"address"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	KeyPrefix  string `yaml:"key_prefix"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the configuration file, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Default returns a configuration with the fixed transcription options the
// relay always uses: linear16 mono at 16kHz with interim results.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      8000,
			StaticDir: "static",
		},
		Deepgram: DeepgramConfig{
			Model:          "nova-3",
			Language:       "en",
			SmartFormat:    true,
			Encoding:       "linear16",
			Channels:       1,
			SampleRate:     16000,
			InterimResults: true,
		},
		AudioSocket: AudioSocketConfig{
			Host: "0.0.0.0",
			Port: 8090,
		},
		Redis: RedisConfig{
			Address:    "localhost:6379",
			KeyPrefix:  "dgrelay",
			TTLSeconds: 86400,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func (c *Config) applyEnv() {
	if key := os.Getenv("DEEPGRAM_API_KEY"); key != "" {
		c.Deepgram.APIKey = key
	}
	if addr := os.Getenv("REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
	}
}

// Validate performs validation of the configuration.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Deepgram.Validate(); err != nil {
		return fmt.Errorf("deepgram config: %w", err)
	}

	if err := c.AudioSocket.Validate(); err != nil {
		return fmt.Errorf("audiosocket config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration.
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.StaticDir == "" {
		return fmt.Errorf("static_dir cannot be empty")
	}

	return nil
}

// Validate validates the Deepgram configuration. The relay only speaks
// linear16 mono 16kHz to the browser, so those values are pinned.
func (d *DeepgramConfig) Validate() error {
	if d.APIKey == "" {
		return fmt.Errorf("set the environment variable DEEPGRAM_API_KEY before running")
	}

	if d.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	if d.Language == "" {
		return fmt.Errorf("language cannot be empty")
	}

	if d.Encoding != "linear16" {
		return fmt.Errorf("encoding must be linear16, got %q", d.Encoding)
	}

	if d.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", d.Channels)
	}

	if d.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 16000 Hz, got %d", d.SampleRate)
	}

	return nil
}

// Validate validates the AudioSocket ingress configuration.
func (a *AudioSocketConfig) Validate() error {
	if !a.Enabled {
		return nil
	}

	if a.Port < 1 || a.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", a.Port)
	}

	return nil
}

// Validate validates logging configuration.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got %q", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got %q", l.Format)
	}

	return nil
}

// TTL returns the Redis key TTL as a time.Duration.
func (r *RedisConfig) TTL() time.Duration {
	return time.Duration(r.TTLSeconds) * time.Second
}
