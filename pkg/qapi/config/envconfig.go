package config

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/quatton/qtube/pkg/db"
	"github.com/quatton/qtube/pkg/kv"
	"github.com/quatton/qtube/pkg/qapi/utils"
	"github.com/quatton/qtube/pkg/qart"
	"github.com/quatton/qtube/pkg/qauth"
	"github.com/quatton/qtube/pkg/session"
)

type EnvConfig struct {
	Port        string `envconfig:"PORT" default:"8000"`
	BaseURL     string `envconfig:"BASE_URL" required:"true"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	AccessTokenSecret  string        `envconfig:"ACCESS_TOKEN_SECRET" required:"true"`
	AccessTokenExpiry  time.Duration `envconfig:"ACCESS_TOKEN_EXPIRY" default:"1h"`
	RefreshTokenSecret string        `envconfig:"REFRESH_TOKEN_SECRET" required:"true"`
	RefreshTokenExpiry time.Duration `envconfig:"REFRESH_TOKEN_EXPIRY" default:"240h"`
	BcryptCost         int           `envconfig:"BCRYPT_COST" default:"12"`

	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"qtube"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"password"`
	DBName     string `envconfig:"DB_NAME" default:"qtube"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBVerbose  bool   `envconfig:"DB_VERBOSE" default:"false"`
	DBMaxConns int    `envconfig:"DB_MAX_OPEN_CONNS" default:"0"`

	// An empty ValkeyAddr keeps the login throttle in process memory.
	ValkeyAddr     string `envconfig:"VALKEY_ADDR"`
	ValkeyPassword string `envconfig:"VALKEY_PASSWORD"`
	ValkeyDB       int    `envconfig:"VALKEY_DB" default:"0"`
	ValkeyPrefix   string `envconfig:"VALKEY_PREFIX" default:"qtube:"`

	// An empty S3Endpoint stores media under UploadDir and serves it from
	// BASE_URL/media.
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"qtube-media"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3UseSSL    bool   `envconfig:"S3_USE_SSL" default:"false"`
	S3PublicURL string `envconfig:"S3_PUBLIC_URL"`

	UploadDir      string   `envconfig:"UPLOAD_DIR" default:"./public/temp"`
	MediaDir       string   `envconfig:"MEDIA_DIR" default:"./public/media"`
	MaxUploadBytes int64    `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`
	CORSOrigins    []string `envconfig:"CORS_ORIGINS"`

	LoginMaxAttempts int           `envconfig:"LOGIN_MAX_ATTEMPTS" default:"5"`
	LoginLockout     time.Duration `envconfig:"LOGIN_LOCKOUT" default:"15m"`
	RateLimitPerMin  int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`
}

func ValidateEnv() (*EnvConfig, error) {
	if utils.IsDev() {
		if err := godotenv.Load(); err != nil {
			log.Println("ℹ No .env file found")
		} else {
			log.Println("✓ Loaded .env file")
		}
	}

	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every problem at once rather than the first one.
func (c *EnvConfig) Validate() error {
	var errors []string

	if len(c.AccessTokenSecret) < 32 {
		errors = append(errors, "  ❌ ACCESS_TOKEN_SECRET must be at least 32 characters")
	}
	if len(c.RefreshTokenSecret) < 32 {
		errors = append(errors, "  ❌ REFRESH_TOKEN_SECRET must be at least 32 characters")
	}
	if c.AccessTokenSecret != "" && c.AccessTokenSecret == c.RefreshTokenSecret {
		errors = append(errors, "  ❌ ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	if c.AccessTokenExpiry <= 0 {
		errors = append(errors, "  ❌ ACCESS_TOKEN_EXPIRY must be positive")
	}
	if c.RefreshTokenExpiry <= c.AccessTokenExpiry {
		errors = append(errors, "  ❌ REFRESH_TOKEN_EXPIRY must be longer than ACCESS_TOKEN_EXPIRY")
	}

	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		errors = append(errors, "  ❌ BASE_URL must be a valid URL")
	}

	if c.S3Endpoint != "" && (c.S3AccessKey == "" || c.S3SecretKey == "") {
		errors = append(errors, "  ❌ S3_ACCESS_KEY and S3_SECRET_KEY are required when S3_ENDPOINT is set")
	}
	if c.S3PublicURL != "" {
		if _, err := url.ParseRequestURI(c.S3PublicURL); err != nil {
			errors = append(errors, "  ❌ S3_PUBLIC_URL must be a valid URL")
		}
	}

	if c.MaxUploadBytes <= 0 {
		errors = append(errors, "  ❌ MAX_UPLOAD_BYTES must be positive")
	}
	if c.LoginMaxAttempts < 0 {
		errors = append(errors, "  ❌ LOGIN_MAX_ATTEMPTS must not be negative")
	}

	if len(errors) > 0 {
		return fmt.Errorf("environment validation failed:\n%s", strings.Join(errors, "\n"))
	}
	return nil
}

func (c *EnvConfig) TokenConfig() qauth.TokenConfig {
	return qauth.TokenConfig{
		AccessSecret:  c.AccessTokenSecret,
		AccessTTL:     c.AccessTokenExpiry,
		RefreshSecret: c.RefreshTokenSecret,
		RefreshTTL:    c.RefreshTokenExpiry,
		Issuer:        qauth.DefaultIssuer,
	}
}

func (c *EnvConfig) DBConfig() db.Config {
	return db.Config{
		Host:     c.DBHost,
		Port:     c.DBPort,
		User:     c.DBUser,
		Password: c.DBPassword,
		Database: c.DBName,
		SSLMode:  c.DBSSLMode,
		Verbose:  c.DBVerbose,

		MaxOpenConns: c.DBMaxConns,
	}
}

func (c *EnvConfig) ValkeyConfig() kv.ValkeyConfig {
	return kv.ValkeyConfig{Addr: c.ValkeyAddr, Password: c.ValkeyPassword, DB: c.ValkeyDB, KeyPrefix: c.ValkeyPrefix}
}

func (c *EnvConfig) S3Config() qart.S3Config {
	return qart.S3Config{
		Endpoint:  c.S3Endpoint,
		AccessKey: c.S3AccessKey,
		SecretKey: c.S3SecretKey,
		Bucket:    c.S3Bucket,
		Region:    c.S3Region,
		UseSSL:    c.S3UseSSL,
		PublicURL: c.S3PublicURL,
	}
}

func (c *EnvConfig) ThrottleConfig() session.ThrottleConfig {
	return session.ThrottleConfig{
		MaxAttempts: c.LoginMaxAttempts,
		Window:      c.LoginLockout,
		Lockout:     c.LoginLockout,
	}
}

func MaskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

func (c *EnvConfig) Print(fmtr func(string, ...interface{})) {
	fmtr("📋 Configuration:\n")
	fmtr("  Environment: %s\n", c.Environment)
	fmtr("  Port: %s\n", c.Port)
	fmtr("  Base URL: %s\n", c.BaseURL)
	fmtr("  Access Token Secret: %s (expiry %s)\n", MaskSecret(c.AccessTokenSecret), c.AccessTokenExpiry)
	fmtr("  Refresh Token Secret: %s (expiry %s)\n", MaskSecret(c.RefreshTokenSecret), c.RefreshTokenExpiry)
	fmtr("  Database: %s@%s:%d/%s (sslmode=%s)\n", c.DBUser, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)

	if c.ValkeyAddr != "" {
		fmtr("  Valkey: ✓ %s (db %d)\n", c.ValkeyAddr, c.ValkeyDB)
	} else {
		fmtr("  Valkey: ✗ Disabled (in-memory throttle)\n")
	}

	if c.S3Endpoint != "" {
		fmtr("  S3: ✓ %s/%s\n", c.S3Endpoint, c.S3Bucket)
		fmtr("    Access Key: %s\n", MaskSecret(c.S3AccessKey))
		fmtr("    Secret Key: %s\n", MaskSecret(c.S3SecretKey))
	} else {
		fmtr("  S3: ✗ Disabled (disk store at %s)\n", c.MediaDir)
	}

	fmtr("  Upload Dir: %s (max %d bytes)\n", c.UploadDir, c.MaxUploadBytes)
	fmtr("  Login Throttle: %d attempts / %s\n", c.LoginMaxAttempts, c.LoginLockout)
}
