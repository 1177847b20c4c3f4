package qsdk

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	BaseURL    string        `mapstructure:"baseUrl"`
	APIVersion string        `mapstructure:"apiVersion"`
	Timeout    time.Duration `mapstructure:"timeout"`

	v *viper.Viper // instance-specific viper
}

const (
	EnvPrefix  = "QTUBE"
	ConfigName = "qtube"
	ConfigRoot = ".qtube"

	BaseUrlKey    = "baseUrl"
	ApiVersionKey = "apiVersion"
	TimeoutKey    = "timeout"
)

// LoadConfig creates a new Config instance with its own viper
// This is the only way to load config (no global state)
func LoadConfig(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only resolves keys viper already knows about.
	_ = v.BindEnv(BaseUrlKey, EnvPrefix+"_BASE_URL")
	_ = v.BindEnv(ApiVersionKey, EnvPrefix+"_API_VERSION")
	_ = v.BindEnv(TimeoutKey, EnvPrefix+"_TIMEOUT")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	} else {
		// Project config (tracked): qtube.yaml in the current directory
		for _, name := range []string{ConfigName + ".yaml", ConfigName + ".yml", "." + ConfigName + ".yaml"} {
			if _, err := os.Stat(name); err == nil {
				v.SetConfigFile(name)
				if err := v.ReadInConfig(); err == nil {
					break
				}
			}
		}

		// Local overrides (untracked): .qtube/config.yaml
		localConfigPath := filepath.Join(ConfigRoot, "config.yaml")
		if _, err := os.Stat(localConfigPath); err == nil {
			v.SetConfigFile(localConfigPath)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("merging local config: %w", err)
			}
		}
	}

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.v = v
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetBaseURL points the client at another server, e.g. from a --base-url
// flag. It applies the same rules as LoadConfig.
func (c *Config) SetBaseURL(raw string) error {
	normalized := strings.TrimRight(strings.TrimSpace(raw), "/")
	if err := validateBaseURL(normalized); err != nil {
		return err
	}
	c.BaseURL = normalized
	if c.v != nil {
		c.v.Set(BaseUrlKey, normalized)
	}
	return nil
}

// Validate reports the first setting the SDK cannot work with.
func (c *Config) Validate() error {
	if err := validateBaseURL(c.BaseURL); err != nil {
		return err
	}
	if c.APIVersion == "" {
		return fmt.Errorf("%s must not be empty", ApiVersionKey)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%s must be positive, got %s", TimeoutKey, c.Timeout)
	}
	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", BaseUrlKey, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s %q: want http(s)://host[:port]", BaseUrlKey, raw)
	}
	return nil
}

// APIBase is the URL every account endpoint hangs off.
func (c *Config) APIBase() string {
	return strings.TrimRight(c.BaseURL, "/") + "/api/" + c.APIVersion + "/users"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(BaseUrlKey, "http://localhost:8000")
	v.SetDefault(ApiVersionKey, "v1")
	v.SetDefault(TimeoutKey, "30s")

	if v.IsSet(BaseUrlKey) {
		v.Set(BaseUrlKey, strings.TrimRight(v.GetString(BaseUrlKey), "/"))
	}
}

// ConfigFileUsed returns the config file that was used (if any)
func (c *Config) ConfigFileUsed() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}
