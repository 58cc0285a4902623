// Package repository owns the Item and Attempt collections on top of a
// storage.Store. Reads reconcile duplicate ids without touching the files;
// every write is a read-modify-write of the whole collection committed by a
// single atomic replace.
package repository

import (
	"time"

	"go.uber.org/zap"
)

// Timestamps are stored with microsecond precision.
const timePrecision = time.Microsecond

type options struct {
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a repository.
type Option func(*options)

// WithLogger sets the logger used for write tracing.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the time source used to stamp new records.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
