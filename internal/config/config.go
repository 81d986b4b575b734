// Package config handles loading and validating the callvoice configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root configuration for the callvoice daemon.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Transports TransportsConfig `mapstructure:"transports"`
	TTS        TTSConfig        `mapstructure:"tts"`
	Artifact   ArtifactConfig   `mapstructure:"artifact"`
	Telephony  TelephonyConfig  `mapstructure:"telephony"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds the public HTTP server and health server settings.
type ServerConfig struct {
	Port       int  `mapstructure:"port"`
	HealthPort int  `mapstructure:"health_port"`
	Debug      bool `mapstructure:"debug"`

	// PublicBaseURL overrides the scheme and host used when building audio
	// URLs (e.g. "https://abc.ngrok.app"). Derived from the request when empty.
	PublicBaseURL string `mapstructure:"public_base_url"`

	// DefaultMessage is spoken when a call event carries no message field.
	DefaultMessage string `mapstructure:"default_message"`
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
}

// GRPCConfig configures the gRPC health transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// TTSConfig selects and configures the text-to-speech backend.
type TTSConfig struct {
	Backend    string           `mapstructure:"backend"` // "elevenlabs"
	ElevenLabs ElevenLabsConfig `mapstructure:"elevenlabs"`
}

// ElevenLabsConfig holds ElevenLabs text-to-speech settings.
type ElevenLabsConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	VoiceID         string        `mapstructure:"voice_id"`
	BaseURL         string        `mapstructure:"base_url"`
	ModelID         string        `mapstructure:"model_id"` // multilingual model for Telugu
	Stability       float64       `mapstructure:"stability"`
	SimilarityBoost float64       `mapstructure:"similarity_boost"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// ArtifactConfig locates the synthesized audio file.
type ArtifactConfig struct {
	Dir      string `mapstructure:"dir"`
	Filename string `mapstructure:"filename"`
}

// TelephonyConfig holds Exotel account credentials. The call flow does not
// use them; they are carried for outbound-call tooling.
type TelephonyConfig struct {
	APIKey    string `mapstructure:"api_key"`
	APIToken  string `mapstructure:"api_token"`
	SID       string `mapstructure:"sid"`
	Subdomain string `mapstructure:"subdomain"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// DefaultMessage is the Telugu prompt ("Tell us who you are, what is your
// problem?") played when the caller supplied no message.
const DefaultMessage = "మీరు ఎవరు చెప్పండి, మీ సమస్య ఏమిటి?"

// Placeholder credentials shipped in sample environments. They count as
// "not configured".
const (
	PlaceholderAPIKey  = "your_elevenlabs_api_key"
	PlaceholderVoiceID = "your_elevenlabs_voice_id"
)

// legacyEnv maps config keys to the plain environment variable names used
// by existing deployments, in addition to the CALLVOICE_ prefixed form.
var legacyEnv = map[string]string{
	"tts.elevenlabs.api_key":  "ELEVENLABS_API_KEY",
	"tts.elevenlabs.voice_id": "ELEVENLABS_VOICE_ID",
	"telephony.api_key":       "EXOTEL_API_KEY",
	"telephony.api_token":     "EXOTEL_API_TOKEN",
	"telephony.sid":           "EXOTEL_SID",
	"telephony.subdomain":     "EXOTEL_SUBDOMAIN",
	"server.port":             "PORT",
	"server.debug":            "DEBUG",
}

// Load reads the configuration from a .env file, config file, environment
// variables, and defaults. If configFile is non-empty it is used directly;
// otherwise the standard search order applies: ./callvoice.yaml,
// ./configs/callvoice.yaml, /etc/callvoice/callvoice.yaml.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.public_base_url", "")
	v.SetDefault("server.default_message", DefaultMessage)
	v.SetDefault("transports.grpc.enabled", true)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("tts.backend", "elevenlabs")
	v.SetDefault("tts.elevenlabs.api_key", PlaceholderAPIKey)
	v.SetDefault("tts.elevenlabs.voice_id", PlaceholderVoiceID)
	v.SetDefault("tts.elevenlabs.base_url", "https://api.elevenlabs.io")
	v.SetDefault("tts.elevenlabs.model_id", "eleven_multilingual_v2")
	v.SetDefault("tts.elevenlabs.stability", 0.5)
	v.SetDefault("tts.elevenlabs.similarity_boost", 0.5)
	v.SetDefault("tts.elevenlabs.timeout", 30*time.Second)
	v.SetDefault("artifact.dir", "static/audio")
	v.SetDefault("artifact.filename", "mla-response.mp3")
	v.SetDefault("telephony.api_key", "")
	v.SetDefault("telephony.api_token", "")
	v.SetDefault("telephony.sid", "")
	v.SetDefault("telephony.subdomain", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("callvoice")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/callvoice")
	}

	// Environment variables: CALLVOICE_SERVER_PORT, CALLVOICE_TTS_ELEVENLABS_API_KEY, etc.
	v.SetEnvPrefix("CALLVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := "CALLVOICE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("binding %s: %w", legacy, err)
		}
	}

	// Read config file (optional; env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${ELEVENLABS_API_KEY}")
	cfg.TTS.ElevenLabs.APIKey = resolveEnvRef(cfg.TTS.ElevenLabs.APIKey)
	cfg.Telephony.APIKey = resolveEnvRef(cfg.Telephony.APIKey)
	cfg.Telephony.APIToken = resolveEnvRef(cfg.Telephony.APIToken)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the daemon cannot start with. Missing
// synthesis credentials are not an error here: calls fail at request time
// and the health report flags them.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Artifact.Filename == "" || strings.ContainsAny(c.Artifact.Filename, `/\`) {
		return fmt.Errorf("invalid artifact.filename %q", c.Artifact.Filename)
	}
	if c.Artifact.Dir == "" {
		return fmt.Errorf("artifact.dir must be set")
	}
	if strings.TrimSpace(c.Server.DefaultMessage) == "" {
		return fmt.Errorf("server.default_message must not be empty")
	}
	if c.TTS.ElevenLabs.Timeout <= 0 {
		return fmt.Errorf("tts.elevenlabs.timeout must be positive")
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var
// value. An unset reference resolves to "" so it reads as not configured.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		return os.Getenv(val[2 : len(val)-1])
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
// debug forces the debug level regardless of cfg.Level.
func SetupLogging(cfg LoggingConfig, debug bool) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
