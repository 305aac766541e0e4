package entstore

import (
	"github.com/hupe1980/entstore/codec"
)

type options struct {
	logger  *Logger
	metrics MetricsCollector
	codec   codec.Codec
}

func defaultOptions() options {
	return options{
		logger:  NoopLogger(),
		metrics: NoopMetricsCollector{},
		codec:   codec.Default,
	}
}

// Option configures a Store.
type Option func(*options)

// WithLogger configures the logger. If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetrics configures the metrics collector.
// If nil is passed, metrics collection is disabled.
func WithMetrics(m MetricsCollector) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsCollector{}
		}
		o.metrics = m
	}
}

// WithCodec configures the row codec used when building patches from this
// store. Patches carry the codec along, so the applying side decodes with
// whatever the preparing side encoded with.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}
