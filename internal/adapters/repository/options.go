package repository

import "time"

type options struct {
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
	pingTimeout     time.Duration
	now             func() time.Time
}

func defaultOptions() options {
	return options{
		maxOpenConns:    25,
		maxIdleConns:    25,
		connMaxLifetime: 5 * time.Minute,
		pingTimeout:     5 * time.Second,
		now:             time.Now,
	}
}

// Option configures a store.
type Option func(*options)

// WithPool sets connection pool limits. Non-positive values keep the defaults.
func WithPool(maxOpen, maxIdle int, lifetime time.Duration) Option {
	return func(o *options) {
		if maxOpen > 0 {
			o.maxOpenConns = maxOpen
		}
		if maxIdle > 0 {
			o.maxIdleConns = maxIdle
		}
		if lifetime > 0 {
			o.connMaxLifetime = lifetime
		}
	}
}

// WithPingTimeout bounds the connectivity check done on open.
func WithPingTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pingTimeout = d
		}
	}
}

// WithClock sets the clock used for created_at columns.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
