package autoapi

import (
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the production endpoint of the Applause automation API.
const DefaultBaseURL = "https://prod-auto-api.cloud.applause.com:443/"

// Environment variables that override values read from a config file.
const (
	EnvAPIKey    = "APPLAUSE_API_KEY"
	EnvProductID = "APPLAUSE_PRODUCT_ID"
	EnvBaseURL   = "APPLAUSE_BASE_URL"
)

// Config holds the options recognized by Reporter.
type Config struct {
	APIKey    string `yaml:"api_key"`
	ProductID int64  `yaml:"product_id"`
	BaseURL   string `yaml:"base_url,omitempty"`
}

// ConfigError reports an invalid or missing configuration value.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Message)
}

// Validate checks that the config can be used to talk to the API.
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return &ConfigError{Field: "api_key", Message: "must not be empty"}
	}
	if c.ProductID <= 0 {
		return &ConfigError{
			Field:   "product_id",
			Message: fmt.Sprintf("must be positive, got %d", c.ProductID),
		}
	}
	return nil
}

func (c Config) baseURL() string {
	if c.BaseURL == "" {
		return strings.TrimRight(DefaultBaseURL, "/")
	}
	return strings.TrimRight(c.BaseURL, "/")
}

// LoadConfig reads a YAML config file and applies environment overrides.
// An empty path skips the file and only reads the environment.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		buf, err := ioutil.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrap(err, "failed to read config file")
		}
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "failed to parse config file: %s", path)
		}
	}
	return cfg, cfg.applyEnv()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(EnvProductID); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return &ConfigError{
				Field:   "product_id",
				Message: fmt.Sprintf("%s is not an integer: %q", EnvProductID, v),
			}
		}
		c.ProductID = id
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.BaseURL = v
	}
	return nil
}
