package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"runtime"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

// Config is filled from DB_* variables (envconfig prefix "DB").
type Config struct {
	Host     string `default:"localhost"`
	Port     int    `default:"5432"`
	User     string `default:"qtube"`
	Password string `default:"password"`
	Database string `envconfig:"NAME" default:"qtube"`
	SSLMode  string `envconfig:"SSLMODE" default:"disable"`
	Verbose  bool   `default:"false"`
	// MaxOpenConns caps the pool. Zero sizes it from GOMAXPROCS.
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"0"`
	ConnMaxIdleTime time.Duration `envconfig:"CONN_MAX_IDLE_TIME" default:"5m"`
}

const applicationName = "qtube"

func (c Config) poolSize() int {
	if c.MaxOpenConns > 0 {
		return c.MaxOpenConns
	}
	return 4 * runtime.GOMAXPROCS(0)
}

// DSN renders the postgres connection string. The password is escaped so
// secrets containing URL metacharacters survive.
func (c Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

// New opens the accounts database and verifies the connection.
func New(ctx context.Context, cfg Config) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN()),
		pgdriver.WithApplicationName(applicationName),
	))

	db := bun.NewDB(sqldb, pgdialect.New())

	// BUNDEBUG=1 logs failed queries, BUNDEBUG=2 logs everything.
	db.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithVerbose(cfg.Verbose),
		bundebug.FromEnv("BUNDEBUG"),
	))

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	size := cfg.poolSize()
	db.SetMaxOpenConns(size)
	db.SetMaxIdleConns(size)
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	return db, nil
}
