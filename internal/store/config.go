package store

import (
	"fmt"
	"os"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// Duration accepts str2duration strings such as "3s", "1m30s" or "1d".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := str2duration.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", value.Line, value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Mode    string `yaml:"mode"`    // LIVE or DRY_RUN
	Gateway string `yaml:"gateway"` // REST or KITE
	Backend struct {
		BaseURL         string   `yaml:"base_url"`
		UserIDEnv       string   `yaml:"user_id_env"`
		MarginPath      string   `yaml:"margin_path"`
		DeployPath      string   `yaml:"deploy_path"`
		StatusPath      string   `yaml:"status_path"`
		BatchStatusPath string   `yaml:"batch_status_path"`
		Timeout         Duration `yaml:"timeout"`
		LogRequests     bool     `yaml:"log_requests"`
	} `yaml:"backend"`
	Retry struct {
		MaxAttempts int      `yaml:"max_attempts"`
		InitialWait Duration `yaml:"initial_wait"`
		MaxWait     Duration `yaml:"max_wait"`
	} `yaml:"retry"`
	Tracking struct {
		PollInterval    Duration `yaml:"poll_interval"`
		StopWhenSettled bool     `yaml:"stop_when_settled"`
		OrderFeed       bool     `yaml:"order_feed"`
	} `yaml:"tracking"`
	Kite struct {
		APIKeyEnv      string `yaml:"api_key_env"`
		AccessTokenEnv string `yaml:"access_token_env"`
	} `yaml:"kite"`
	Defaults struct {
		Exchange string `yaml:"exchange"`
		Product  string `yaml:"product"`
		Lots     int    `yaml:"lots"`
	} `yaml:"defaults"`
	Journal struct {
		Path string `yaml:"path"`
	} `yaml:"journal"`
	Redis struct {
		Addr        string `yaml:"addr"`
		PasswordEnv string `yaml:"password_env"`
		DB          int    `yaml:"db"`
		Prefix      string `yaml:"prefix"`
	} `yaml:"redis"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	TradeLog struct {
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"tradelog"`
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	switch c.Gateway {
	case "REST":
		if c.Backend.BaseURL == "" {
			return fmt.Errorf("backend.base_url is required for the REST gateway")
		}
		if c.Mode == "DRY_RUN" {
			return fmt.Errorf("DRY_RUN mode requires the KITE gateway")
		}
	case "KITE":
		if c.Kite.APIKeyEnv == "" || c.Kite.AccessTokenEnv == "" {
			return fmt.Errorf("kite.api_key_env and kite.access_token_env are required for the KITE gateway")
		}
	default:
		return fmt.Errorf("invalid gateway '%s': must be 'REST' or 'KITE'", c.Gateway)
	}
	if c.Tracking.OrderFeed && c.Gateway != "KITE" {
		return fmt.Errorf("tracking.order_feed requires the KITE gateway")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Tracking.PollInterval <= 0 {
		return fmt.Errorf("tracking.poll_interval must be positive")
	}
	if c.Defaults.Lots < 1 {
		return fmt.Errorf("defaults.lots must be at least 1, got %d", c.Defaults.Lots)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = "LIVE"
	}
	if c.Gateway == "" {
		c.Gateway = "REST"
	}
	if c.Backend.UserIDEnv == "" {
		c.Backend.UserIDEnv = "BASKET_USER_ID"
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = Duration(30 * time.Second)
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialWait == 0 {
		c.Retry.InitialWait = Duration(time.Second)
	}
	if c.Retry.MaxWait == 0 {
		c.Retry.MaxWait = Duration(5 * time.Second)
	}
	if c.Tracking.PollInterval == 0 {
		c.Tracking.PollInterval = Duration(3 * time.Second)
	}
	if c.Kite.APIKeyEnv == "" && c.Gateway == "KITE" {
		c.Kite.APIKeyEnv = "KITE_API_KEY"
	}
	if c.Kite.AccessTokenEnv == "" && c.Gateway == "KITE" {
		c.Kite.AccessTokenEnv = "KITE_ACCESS_TOKEN"
	}
	if c.Defaults.Exchange == "" {
		c.Defaults.Exchange = "NFO"
	}
	if c.Defaults.Product == "" {
		c.Defaults.Product = "NRML"
	}
	if c.Defaults.Lots == 0 {
		c.Defaults.Lots = 1
	}
}

// UserID resolves the backend identity from the configured env var.
func (c *Config) UserID() string { return os.Getenv(c.Backend.UserIDEnv) }

func (c *Config) KiteCredentials() (apiKey, accessToken string) {
	return os.Getenv(c.Kite.APIKeyEnv), os.Getenv(c.Kite.AccessTokenEnv)
}

func (c *Config) RedisPassword() string {
	if c.Redis.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.Redis.PasswordEnv)
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

func ParseConfig(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}
