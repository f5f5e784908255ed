package lifecycle

import (
	"time"

	"github.com/vitwit/usdcpay/logger"
	"github.com/vitwit/usdcpay/metrics"
)

type Option func(*Machine)

func WithSink(s Sink) Option {
	return func(m *Machine) {
		m.sink = s
	}
}

func WithLogger(l logger.Logger) Option {
	return func(m *Machine) {
		m.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(m *Machine) {
		m.metrics = r
	}
}

// WithNetwork sets the network label used in logs and metrics.
func WithNetwork(name string) Option {
	return func(m *Machine) {
		m.network = name
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// WithIDGenerator replaces the uuid attempt id source.
func WithIDGenerator(next func() string) Option {
	return func(m *Machine) {
		m.newID = next
	}
}
