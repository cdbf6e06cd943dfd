// Package x402client implements the client half of the x402 payment flow:
// detecting a 402 Payment Required failure, executing the demanded
// stablecoin transfer through one of several wallet backends, and retrying
// the original caller action exactly once after the payment confirms.
package x402client

import (
	"context"
	"fmt"

	"github.com/vitwit/x402-client/chain"
	"github.com/vitwit/x402-client/coordinator"
	"github.com/vitwit/x402-client/custodial"
	"github.com/vitwit/x402-client/logger"
	"github.com/vitwit/x402-client/metrics"
	"github.com/vitwit/x402-client/orchestrator"
	"github.com/vitwit/x402-client/sponsor"
	"github.com/vitwit/x402-client/types"
	"github.com/vitwit/x402-client/wallet"
)

// Client is the facade over the payment pipeline. It owns the wallet
// session, the payment orchestrator, and the retry coordinator.
type Client struct {
	cfg *types.Config

	session *wallet.Session
	orch    *orchestrator.Orchestrator
	coord   *coordinator.Coordinator

	chainClient *chain.Client
	provider    custodial.Provider
	resolver    sponsor.Resolver

	log logger.Logger
	rec metrics.Recorder
}

// New builds a client from cfg. External collaborators (chain RPC,
// custodial provider, sponsorship resolver) are selected at construction
// time based on configured credentials, and may be replaced via options.
func New(cfg *types.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Network == "" {
		cfg.Network = types.DefaultNetwork
	}
	if cfg.Network.ChainID() == 0 {
		return nil, fmt.Errorf("unsupported network %q", cfg.Network)
	}

	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if c.log == nil {
		c.log = logger.NewZapLogger(cfg.LogLevel)
	}
	if c.rec == nil {
		if cfg.EnableMetrics {
			c.rec = metrics.NewPrometheusRecorder()
		} else {
			c.rec = metrics.NoopRecorder{}
		}
	}
	if c.provider == nil {
		c.provider = custodial.FromConfig(cfg)
	}
	if c.resolver == nil {
		c.resolver = sponsor.FromConfig(cfg)
	}
	if c.chainClient == nil && cfg.RPCURL != "" {
		chainClient, err := chain.Dial(cfg.RPCURL, cfg.Network, c.log)
		if err != nil {
			return nil, err
		}
		chainClient.SetPollInterval(cfg.PollInterval)
		c.chainClient = chainClient
	}

	c.session = wallet.NewSession(c.log)
	c.orch = orchestrator.New(c.session, cfg.ConfirmTimeout, c.log, c.rec)
	c.coord = coordinator.New(c.orch, c.log, c.rec)
	return c, nil
}

// Connect activates a wallet backend of the given kind, tearing down any
// previously active one. The signer is required for the extension and
// smart kinds and ignored for custodial.
func (c *Client) Connect(kind types.WalletKind, signer chain.Signer) (types.WalletIdentity, error) {
	if !kind.Valid() {
		return types.WalletIdentity{}, fmt.Errorf("unknown wallet kind %q", kind)
	}

	var backend wallet.Backend
	switch kind {
	case types.WalletExtension, types.WalletSmart:
		if signer == nil {
			return types.WalletIdentity{}, fmt.Errorf("%s wallet requires a signer", kind)
		}
		if c.chainClient == nil {
			return types.WalletIdentity{}, fmt.Errorf("%s wallet requires an RPC endpoint", kind)
		}
		if kind == types.WalletExtension {
			backend = wallet.NewExtensionWallet(signer, c.chainClient)
		} else {
			backend = wallet.NewSmartWallet(signer, c.chainClient, c.resolver, c.log)
		}
	case types.WalletCustodial:
		if c.cfg.CustodialAddress == "" {
			return types.WalletIdentity{}, fmt.Errorf("custodial wallet requires a configured address")
		}
		backend = wallet.NewCustodialWallet(c.provider, c.cfg.CustodialAddress, c.cfg.Network, c.log)
	}

	c.session.Activate(backend)
	identity := backend.Identity()
	c.log.Info("wallet connected", map[string]any{
		"kind":    identity.Kind.String(),
		"address": identity.Address,
		"chainId": identity.ChainID,
	})
	return identity, nil
}

// Identity reports the active wallet, if any.
func (c *Client) Identity() (types.WalletIdentity, bool) {
	return c.session.Identity()
}

// Guard runs action under the payment-required retry protocol.
func (c *Client) Guard(ctx context.Context, action coordinator.Action, approve coordinator.Approver) (any, error) {
	return c.coord.Guard(ctx, action, approve)
}

// Pay drives a single payment attempt directly, for hosts that already
// hold a parsed requirement. The observer may be nil.
func (c *Client) Pay(ctx context.Context, req *types.PaymentRequirement, observe orchestrator.Observer) (*orchestrator.Outcome, error) {
	return c.orch.Pay(ctx, req, observe)
}

// RequestFunds asks the custodial faucet to top up the active wallet.
// Top-up is a caller decision made after an insufficient_funds outcome,
// before re-entering Pay with the same requirement.
func (c *Client) RequestFunds(ctx context.Context) (*custodial.FundResult, error) {
	backend := c.session.Active()
	if backend == nil {
		return nil, fmt.Errorf("no wallet connected")
	}
	cw, ok := backend.(*wallet.CustodialWallet)
	if !ok {
		return nil, fmt.Errorf("faucet funding requires the custodial wallet, active kind is %s", backend.Kind())
	}
	return cw.RequestFunds(ctx, "eth")
}

// Close tears down the active wallet backend.
func (c *Client) Close() error {
	return c.session.Close()
}
