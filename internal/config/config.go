package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	// APIKeyEnv holds the upstream Gemini credential.
	APIKeyEnv = "GEMINI_API_KEY"

	DefaultHandlerPath = "/api/gemini-proxy"
	DefaultDraftModel  = "gemini-2.5-flash"
	DefaultFinalModel  = "gemini-2.5-pro"
)

type Config struct {
	Server struct {
		Listen         string `yaml:"listen" toml:"listen"`
		ReadTimeoutMs  int    `yaml:"read_timeout_ms" toml:"read_timeout_ms"`
		WriteTimeoutMs int    `yaml:"write_timeout_ms" toml:"write_timeout_ms"`
		// ShutdownTimeoutMs bounds how long in-flight requests may drain on SIGTERM.
		ShutdownTimeoutMs int `yaml:"shutdown_timeout_ms" toml:"shutdown_timeout_ms"`
		// H2C serves cleartext HTTP/2 alongside HTTP/1.1 (useful behind h2-speaking LBs).
		H2C     bool   `yaml:"h2c" toml:"h2c"`
		PidFile string `yaml:"pid_file" toml:"pid_file"`
	} `yaml:"server" toml:"server"`

	Handler struct {
		Path string `yaml:"path" toml:"path"`
		// EchoMode adds the request's mode to successful responses.
		EchoMode bool `yaml:"echo_mode" toml:"echo_mode"`
		// RequireConfig rejects requests without a config object.
		RequireConfig bool `yaml:"require_config" toml:"require_config"`
	} `yaml:"handler" toml:"handler"`

	CORS struct {
		AllowOrigin string `yaml:"allow_origin" toml:"allow_origin"`
	} `yaml:"cors" toml:"cors"`

	Models struct {
		Draft string `yaml:"draft" toml:"draft"`
		Final string `yaml:"final" toml:"final"`
	} `yaml:"models" toml:"models"`

	Upstream struct {
		// APIKey is only meant for local runs; GEMINI_API_KEY wins when set.
		APIKey     string `yaml:"api_key" toml:"api_key"`
		BaseURL    string `yaml:"base_url" toml:"base_url"`
		APIVersion string `yaml:"api_version" toml:"api_version"`
		// TimeoutMs of 0 leaves the call bounded only by the request context.
		TimeoutMs int `yaml:"timeout_ms" toml:"timeout_ms"`
	} `yaml:"upstream" toml:"upstream"`

	Logging struct {
		Level         string `yaml:"level" toml:"level"`
		AccessLog     bool   `yaml:"access_log" toml:"access_log"`
		AccessLogPath string `yaml:"access_log_path" toml:"access_log_path"`
	} `yaml:"logging" toml:"logging"`
}

// Load reads the config file at path (YAML, or TOML when the extension is .toml),
// applies defaults and environment overrides, and validates the result.
// An empty path yields a config built from defaults and the environment only.
func Load(path string) (*Config, error) {
	var cfg Config
	// access_log defaults to on; a file can still turn it off explicitly.
	cfg.Logging.AccessLog = true

	if p := strings.TrimSpace(path); p != "" {
		// #nosec G304 -- path is provided by trusted config/flag.
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		if err := decode(p, b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", p, err)
		}
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(path string, b []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err := toml.Decode(string(b), cfg)
		return err
	}
	return yaml.Unmarshal(b, cfg)
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Server.Listen) == "" {
		cfg.Server.Listen = ":3000"
	}
	if cfg.Server.ReadTimeoutMs <= 0 {
		cfg.Server.ReadTimeoutMs = 60000
	}
	// Pro generations routinely take longer than a minute.
	if cfg.Server.WriteTimeoutMs <= 0 {
		cfg.Server.WriteTimeoutMs = 300000
	}
	if cfg.Server.ShutdownTimeoutMs <= 0 {
		cfg.Server.ShutdownTimeoutMs = 10000
	}
	if strings.TrimSpace(cfg.Handler.Path) == "" {
		cfg.Handler.Path = DefaultHandlerPath
	}
	if strings.TrimSpace(cfg.CORS.AllowOrigin) == "" {
		cfg.CORS.AllowOrigin = "*"
	}
	if strings.TrimSpace(cfg.Models.Draft) == "" {
		cfg.Models.Draft = DefaultDraftModel
	}
	if strings.TrimSpace(cfg.Models.Final) == "" {
		cfg.Models.Final = DefaultFinalModel
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(APIKeyEnv)); v != "" {
		cfg.Upstream.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("GPROXY_LISTEN")); v != "" {
		cfg.Server.Listen = v
	}
	if n, ok := envPositiveInt("GPROXY_READ_TIMEOUT_MS"); ok {
		cfg.Server.ReadTimeoutMs = n
	}
	if n, ok := envPositiveInt("GPROXY_WRITE_TIMEOUT_MS"); ok {
		cfg.Server.WriteTimeoutMs = n
	}
	cfg.Server.H2C = envBool("GPROXY_H2C", cfg.Server.H2C)
	if v := strings.TrimSpace(os.Getenv("GPROXY_HANDLER_PATH")); v != "" {
		cfg.Handler.Path = v
	}
	cfg.Handler.EchoMode = envBool("GPROXY_ECHO_MODE", cfg.Handler.EchoMode)
	cfg.Handler.RequireConfig = envBool("GPROXY_REQUIRE_CONFIG", cfg.Handler.RequireConfig)
	if v := strings.TrimSpace(os.Getenv("GPROXY_UPSTREAM_BASE_URL")); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if n, ok := envPositiveInt("GPROXY_UPSTREAM_TIMEOUT_MS"); ok {
		cfg.Upstream.TimeoutMs = n
	}
	if v := strings.TrimSpace(os.Getenv("GPROXY_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
	cfg.Logging.AccessLog = envBool("GPROXY_ACCESS_LOG", cfg.Logging.AccessLog)
}

func validate(cfg *Config) error {
	if !strings.HasPrefix(cfg.Handler.Path, "/") {
		return fmt.Errorf("handler.path must start with '/': %q", cfg.Handler.Path)
	}
	if cfg.Upstream.TimeoutMs < 0 {
		return errors.New("upstream.timeout_ms must be non-negative")
	}
	if cfg.Models.Draft == cfg.Models.Final {
		return fmt.Errorf("models.draft and models.final are both %q", cfg.Models.Draft)
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
	default:
		return fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level)
	}
	return nil
}

// HasCredential reports whether an upstream API key is configured.
func (c *Config) HasCredential() bool {
	return c != nil && strings.TrimSpace(c.Upstream.APIKey) != ""
}

func envPositiveInt(name string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
