// Package custodial talks to the server-managed wallet provider. The
// provider may be unavailable; the placeholder implementation substitutes
// fixed-shape results so callers are exercised identically either way.
package custodial

import (
	"context"

	"github.com/vitwit/x402-client/types"
)

// TokenBalance is one entry of a provider balance listing.
type TokenBalance struct {
	ContractAddress string `json:"contractAddress"`
	Amount          string `json:"amount"`
}

// FundResult reports a faucet top-up.
type FundResult struct {
	TransactionHash string        `json:"transactionHash"`
	Message         string        `json:"message,omitempty"`
	Network         types.Network `json:"network,omitempty"`
}

// TransferResponse reports a provider-side transfer. Confirmation is
// implied by success, but callers must still verify a hash is present.
type TransferResponse struct {
	Success         bool          `json:"success"`
	TransactionHash string        `json:"transactionHash"`
	Network         types.Network `json:"network,omitempty"`
	Error           string        `json:"error,omitempty"`
}

// Provider is the narrow custodial wallet surface the client consumes.
type Provider interface {
	ListBalances(ctx context.Context, address string, network types.Network) ([]TokenBalance, error)
	RequestFaucetFunds(ctx context.Context, address string, network types.Network, token string) (*FundResult, error)
	Transfer(ctx context.Context, walletID, recipient, amount string, network types.Network) (*TransferResponse, error)
}

// placeholderBalance is the fixed balance reported without credentials.
const placeholderBalance = "100.0"

// PlaceholderProvider substitutes deterministic fixed-shape results when
// provider credentials are absent. Funding and transfer results carry the
// explicit unconfirmed marker hash rather than a fabricated value
// indistinguishable from a real one.
type PlaceholderProvider struct{}

func NewPlaceholderProvider() *PlaceholderProvider { return &PlaceholderProvider{} }

func (*PlaceholderProvider) ListBalances(_ context.Context, _ string, network types.Network) ([]TokenBalance, error) {
	token, err := types.TokenForCurrency(types.DefaultCurrency, network)
	if err != nil {
		return nil, err
	}
	return []TokenBalance{{ContractAddress: token.Address, Amount: placeholderBalance}}, nil
}

func (*PlaceholderProvider) RequestFaucetFunds(_ context.Context, _ string, network types.Network, _ string) (*FundResult, error) {
	return &FundResult{
		TransactionHash: types.UnconfirmedTxHash,
		Message:         "wallet funded (placeholder)",
		Network:         network,
	}, nil
}

func (*PlaceholderProvider) Transfer(_ context.Context, _, _, _ string, network types.Network) (*TransferResponse, error) {
	return &TransferResponse{
		Success:         true,
		TransactionHash: types.UnconfirmedTxHash,
		Network:         network,
	}, nil
}

// FromConfig selects the provider implementation once, at construction
// time: the live HTTP provider with full credentials, the placeholder
// otherwise.
func FromConfig(cfg *types.Config) Provider {
	if cfg.HasCustodialCredentials() && cfg.CustodialAPIURL != "" {
		return NewHTTPProvider(cfg.CustodialAPIURL, cfg.CDPAPIKeyName, cfg.CDPAPIKeySecret, cfg.CDPWalletSecret)
	}
	return NewPlaceholderProvider()
}
