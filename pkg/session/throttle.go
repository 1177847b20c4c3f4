package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quatton/qtube/pkg/kv"
)

// Throttle tracks failed logins per account and locks the account out
// once too many have piled up.
type Throttle interface {
	Locked(ctx context.Context, identity string) (bool, error)
	Failure(ctx context.Context, identity string) error
	Reset(ctx context.Context, identity string) error
}

type ThrottleConfig struct {
	// MaxAttempts is the number of failures allowed inside Window before the
	// identity is locked. Zero disables throttling.
	MaxAttempts int
	Window      time.Duration
	Lockout     time.Duration
}

// KVThrottle keeps its counters in a kv.Store so every API replica sees
// the same state when the store is Valkey.
type KVThrottle struct {
	store kv.Store
	cfg   ThrottleConfig
}

func NewKVThrottle(store kv.Store, cfg ThrottleConfig) *KVThrottle {
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.Lockout <= 0 {
		cfg.Lockout = cfg.Window
	}
	return &KVThrottle{store: store, cfg: cfg}
}

func failKey(identity string) string { return "login:fail:" + identity }
func lockKey(identity string) string { return "login:lock:" + identity }

func (t *KVThrottle) Locked(ctx context.Context, identity string) (bool, error) {
	if t.cfg.MaxAttempts <= 0 {
		return false, nil
	}
	_, err := t.store.Get(ctx, lockKey(identity))
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read lock: %w", err)
	}
	return true, nil
}

func (t *KVThrottle) Failure(ctx context.Context, identity string) error {
	if t.cfg.MaxAttempts <= 0 {
		return nil
	}
	n, err := t.store.Incr(ctx, failKey(identity), t.cfg.Window)
	if err != nil {
		return fmt.Errorf("count failure: %w", err)
	}
	if n < int64(t.cfg.MaxAttempts) {
		return nil
	}
	if _, err := t.store.SetNX(ctx, lockKey(identity), []byte("1"), t.cfg.Lockout); err != nil {
		return fmt.Errorf("set lock: %w", err)
	}
	return t.store.Delete(ctx, failKey(identity))
}

func (t *KVThrottle) Reset(ctx context.Context, identity string) error {
	if t.cfg.MaxAttempts <= 0 {
		return nil
	}
	return t.store.Delete(ctx, failKey(identity), lockKey(identity))
}

type nopThrottle struct{}

func (nopThrottle) Locked(context.Context, string) (bool, error) { return false, nil }
func (nopThrottle) Failure(context.Context, string) error        { return nil }
func (nopThrottle) Reset(context.Context, string) error          { return nil }

// throttleKey names the account a login attempt targets.
func throttleKey(userID string) string {
	return "user:" + userID
}
