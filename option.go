package usdcpay

import (
	"github.com/vitwit/usdcpay/clients"
	"github.com/vitwit/usdcpay/lifecycle"
	"github.com/vitwit/usdcpay/logger"
	"github.com/vitwit/usdcpay/metrics"
)

type Option func(*Client)

func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = r
	}
}

// WithSink registers lifecycle notifications. The sink carries over to
// attempts started with NewAttempt.
func WithSink(s lifecycle.Sink) Option {
	return func(c *Client) {
		c.sink = s
	}
}

// WithApprover sets the confirmation step of the key wallet built by
// NewFromConfig.
func WithApprover(a clients.Approver) Option {
	return func(c *Client) {
		c.approver = a
	}
}
