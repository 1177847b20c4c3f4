package services

import (
	"github.com/quatton/qtube/pkg/credstore"
	"github.com/quatton/qtube/pkg/kv"
	"github.com/quatton/qtube/pkg/media"
	"github.com/quatton/qtube/pkg/metrics"
	"github.com/quatton/qtube/pkg/qapi/config"
	"github.com/quatton/qtube/pkg/qapi/services/iam"
	"github.com/quatton/qtube/pkg/qapi/utils"
	"github.com/quatton/qtube/pkg/qart"
	"github.com/quatton/qtube/pkg/qauth"
	"github.com/quatton/qtube/pkg/qlog"
	"github.com/quatton/qtube/pkg/session"
)

// Backends are the stateful dependencies the services sit on. The run
// command picks real or in-memory implementations for each.
type Backends struct {
	Store   credstore.Store
	KV      kv.Store
	Objects qart.Store
	Metrics metrics.Recorder
}

// Settings are the transport knobs the routes read.
type Settings struct {
	UploadDir      string
	MaxUploadBytes int64
	SecureCookies  bool
}

type Services struct {
	Sessions *session.Service
	IAM      *iam.IAMService
	Logger   *qlog.Logger
	Settings Settings
}

func NewServices(cfg *config.EnvConfig, b Backends, logger *qlog.Logger) *Services {
	if logger == nil {
		logger = qlog.NewDefault()
	}

	sessions := session.NewService(session.Deps{
		Store:    b.Store,
		Tokens:   qauth.NewTokenService(cfg.TokenConfig()),
		Hasher:   qauth.NewBcryptHasher(cfg.BcryptCost),
		Media:    media.NewService(b.Objects, logger.With("component", "media")),
		Throttle: session.NewKVThrottle(b.KV, cfg.ThrottleConfig()),
		Metrics:  b.Metrics,
		Logger:   logger.With("component", "session"),
	})

	return &Services{
		Sessions: sessions,
		IAM:      iam.NewIAMService(sessions, logger.With("component", "iam")),
		Logger:   logger,
		Settings: Settings{
			UploadDir:      cfg.UploadDir,
			MaxUploadBytes: cfg.MaxUploadBytes,
			SecureCookies:  utils.SecureCookies(cfg.Environment),
		},
	}
}
