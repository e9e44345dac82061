package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Transcription holds the chunking and recognition parameters.
type Transcription struct {
	ChunkLengthSeconds    int    `toml:"chunk_length_seconds"`
	TargetSampleRateHz    int    `toml:"target_sample_rate_hz"`
	Backend               string `toml:"backend"`
	Language              string `toml:"language"`
	RequestsPerMinute     int    `toml:"requests_per_minute"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Google configures the Google Web Speech backend.
type Google struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// OpenAI configures the OpenAI transcription backend.
type OpenAI struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
}

// ElevenLabs configures the ElevenLabs speech-to-text backend. An empty
// APIKey uses the unauthenticated endpoint.
type ElevenLabs struct {
	APIKey  string `toml:"api_key"`
	ModelID string `toml:"model_id"`
	BaseURL string `toml:"base_url"`
}

// Paths contains directory configuration.
type Paths struct {
	WorkDir string `toml:"work_dir"`
}

// Server configures the browser UI.
type Server struct {
	Bind        string `toml:"bind"`
	MaxUploadMB int    `toml:"max_upload_mb"`
}

// Fetch configures remote video downloads.
type Fetch struct {
	YtDlpBinary    string `toml:"ytdlp_binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config holds the full application configuration.
type Config struct {
	Transcription Transcription `toml:"transcription"`
	Google        Google        `toml:"google"`
	OpenAI        OpenAI        `toml:"openai"`
	ElevenLabs    ElevenLabs    `toml:"elevenlabs"`
	Paths         Paths         `toml:"paths"`
	Server        Server        `toml:"server"`
	Fetch         Fetch         `toml:"fetch"`
	Logging       Logging       `toml:"logging"`
}

// ChunkLength returns the configured segment length.
func (c *Config) ChunkLength() time.Duration {
	return time.Duration(c.Transcription.ChunkLengthSeconds) * time.Second
}

// RequestTimeout returns the per-request recognition timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Transcription.RequestTimeoutSeconds) * time.Second
}

// FetchTimeout returns the remote download timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// MaxUploadBytes returns the upload size limit of the browser UI.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/audio2text/config.toml")
}

// Load locates, parses, and validates a configuration file. A missing file
// is not an error; defaults and environment overrides apply.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return cfg, resolvedPath, exists, nil
}

// Sample renders the default configuration as TOML.
func Sample() (string, error) {
	data, err := toml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encode sample config: %w", err)
	}
	return string(data), nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, !info.IsDir(), nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("audio2text.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// applyEnv lets OPENAI_API_KEY, ELEVENLABS_API_KEY and GOOGLE_SPEECH_API_KEY
// override the keys from the config file when set and non-blank.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY")); v != "" {
		c.ElevenLabs.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_SPEECH_API_KEY")); v != "" {
		c.Google.APIKey = v
	}
}

func (c *Config) normalize() error {
	c.Transcription.Backend = strings.ToLower(strings.TrimSpace(c.Transcription.Backend))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	if lang := strings.TrimSpace(c.Transcription.Language); lang != "" {
		normalized, err := NormalizeLanguage(lang)
		if err != nil {
			return err
		}
		c.Transcription.Language = normalized
	}

	workDir, err := expandPath(c.Paths.WorkDir)
	if err != nil {
		return err
	}
	c.Paths.WorkDir = workDir
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
