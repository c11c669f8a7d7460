// Package config provides application-wide configuration loaded from env vars,
// an optional vocalis.yaml and an optional .env file.
// All fields have safe defaults so the binary runs locally without any setup.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key when read from the environment,
// e.g. VOCALIS_PORT.
const EnvPrefix = "VOCALIS"

// Config holds runtime configuration for vocalis.
type Config struct {
	// HTTP
	Host string // VOCALIS_HOST, default "127.0.0.1"
	Port int    // VOCALIS_PORT, default 5000

	// Storage
	DataDir string // VOCALIS_DATA_DIR, default "."

	// Inference daemon
	OllamaHost   string        // OLLAMA_HOST: read verbatim, checked by the localhost guard
	CheckTimeout time.Duration // VOCALIS_CHECK_TIMEOUT, default 3s
	ChatTimeout  time.Duration // VOCALIS_CHAT_TIMEOUT, default 0 (unbounded)

	// Speech engines
	STTBackend   string // VOCALIS_STT_BACKEND: "server" | "whispercpp"; "server" needs whisper-server --convert for non-wav uploads
	STTURL       string // VOCALIS_STT_URL, default "http://127.0.0.1:8178"
	WhisperModel string // VOCALIS_WHISPER_MODEL: ggml model path for the in-process backend
	TTSURL       string // VOCALIS_TTS_URL, default "http://127.0.0.1:8880"

	// Logging
	LogFormat string // VOCALIS_LOG_FORMAT: "text" | "json"
	LogLevel  string // VOCALIS_LOG_LEVEL: "debug" | "info" | "warn" | "error"
	LogDir    string // VOCALIS_LOG_DIR: empty disables the rotating file
}

const (
	keyHost         = "host"
	keyPort         = "port"
	keyDataDir      = "data_dir"
	keyOllamaHost   = "ollama_host"
	keyCheckTimeout = "check_timeout"
	keyChatTimeout  = "chat_timeout"
	keySTTBackend   = "stt_backend"
	keySTTURL       = "stt_url"
	keyWhisperModel = "whisper_model"
	keyTTSURL       = "tts_url"
	keyLogFormat    = "log_format"
	keyLogLevel     = "log_level"
	keyLogDir       = "log_dir"

	envKeyOllamaHost = "OLLAMA_HOST"
)

const (
	SettingsFileName = "user_settings.json"
	HistoryFileName  = "voice_assistant_history.json"
)

// Load reads configuration from the environment and, when configFile is
// non-empty or vocalis.yaml exists in the working directory, from that file.
// Environment variables win over the file.
func Load(configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// The daemon's own variable, not prefixed.
	if err := v.BindEnv(keyOllamaHost, envKeyOllamaHost); err != nil {
		return Config{}, fmt.Errorf("config: bind %s: %w", envKeyOllamaHost, err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("vocalis")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
	}

	cfg := Config{
		Host:         v.GetString(keyHost),
		Port:         v.GetInt(keyPort),
		DataDir:      v.GetString(keyDataDir),
		OllamaHost:   v.GetString(keyOllamaHost),
		CheckTimeout: v.GetDuration(keyCheckTimeout),
		ChatTimeout:  v.GetDuration(keyChatTimeout),
		STTBackend:   strings.ToLower(v.GetString(keySTTBackend)),
		STTURL:       v.GetString(keySTTURL),
		WhisperModel: v.GetString(keyWhisperModel),
		TTSURL:       v.GetString(keyTTSURL),
		LogFormat:    strings.ToLower(v.GetString(keyLogFormat)),
		LogLevel:     strings.ToLower(v.GetString(keyLogLevel)),
		LogDir:       v.GetString(keyLogDir),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyHost, "127.0.0.1")
	v.SetDefault(keyPort, 5000)
	v.SetDefault(keyDataDir, ".")
	v.SetDefault(keyOllamaHost, "")
	v.SetDefault(keyCheckTimeout, 3*time.Second)
	v.SetDefault(keyChatTimeout, time.Duration(0))
	v.SetDefault(keySTTBackend, "server")
	v.SetDefault(keySTTURL, "http://127.0.0.1:8178")
	v.SetDefault(keyWhisperModel, "models/ggml-base.bin")
	v.SetDefault(keyTTSURL, "http://127.0.0.1:8880")
	v.SetDefault(keyLogFormat, "text")
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogDir, "")
}

func (c Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	switch c.STTBackend {
	case "server", "whispercpp":
	default:
		return fmt.Errorf("config: unknown stt backend %q", c.STTBackend)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	if c.CheckTimeout <= 0 {
		return fmt.Errorf("config: check timeout must be positive")
	}
	if c.ChatTimeout < 0 {
		return fmt.Errorf("config: chat timeout must not be negative")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SettingsPath is where the settings record lives.
func (c Config) SettingsPath() string {
	return filepath.Join(c.DataDir, SettingsFileName)
}

// HistoryPath is where the conversation sessions live.
func (c Config) HistoryPath() string {
	return filepath.Join(c.DataDir, HistoryFileName)
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}
