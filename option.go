package x402client

import (
	"github.com/vitwit/x402-client/chain"
	"github.com/vitwit/x402-client/custodial"
	"github.com/vitwit/x402-client/logger"
	"github.com/vitwit/x402-client/metrics"
	"github.com/vitwit/x402-client/sponsor"
)

type Option func(*Client)

func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(c *Client) {
		c.rec = r
	}
}

// WithChainClient injects a pre-built chain client, bypassing the RPC dial.
func WithChainClient(cc *chain.Client) Option {
	return func(c *Client) {
		c.chainClient = cc
	}
}

// WithCustodialProvider overrides the credential-based provider selection.
func WithCustodialProvider(p custodial.Provider) Option {
	return func(c *Client) {
		c.provider = p
	}
}

// WithSponsorshipResolver overrides the credential-based resolver selection.
func WithSponsorshipResolver(r sponsor.Resolver) Option {
	return func(c *Client) {
		c.resolver = r
	}
}
