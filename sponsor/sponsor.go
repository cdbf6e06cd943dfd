// Package sponsor asks an external paymaster to cover the gas fees of a
// transfer. Sponsorship is a best-effort optimization: it is attempted at
// most once per transfer, and on denial or any transport error the caller
// falls back to an unsponsored submission instead of retrying the sponsor.
package sponsor

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/vitwit/x402-client/types"
)

// UserOperation is the partial description of the intended transfer
// submitted to the sponsor: sender, a nonce placeholder, and the encoded
// call data.
type UserOperation struct {
	Sender   string `json:"sender"`
	Nonce    string `json:"nonce"`
	CallData string `json:"callData"`
}

// GasLimits carries the sponsor-supplied gas fields as hex quantities.
type GasLimits struct {
	CallGasLimit         string `json:"callGasLimit"`
	VerificationGasLimit string `json:"verificationGasLimit"`
	PreVerificationGas   string `json:"preVerificationGas"`
	MaxFeePerGas         string `json:"maxFeePerGas"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas"`
}

// Grant is the sponsor's response. Sponsored false means the shape is valid
// but no real gas coverage was granted (the deterministic credential-less
// response has this form).
type Grant struct {
	GasLimits        GasLimits `json:"gasLimits"`
	PaymasterAndData string    `json:"paymasterAndData"`
	Sponsored        bool      `json:"sponsored"`
}

// CallGas decodes the granted call gas limit, or 0 if absent/invalid.
func (g *Grant) CallGas() uint64 {
	v, err := hexutil.DecodeUint64(g.GasLimits.CallGasLimit)
	if err != nil {
		return 0
	}
	return v
}

// MaxFee decodes the granted max fee per gas, or nil if absent/invalid.
func (g *Grant) MaxFee() *big.Int {
	v, err := hexutil.DecodeBig(g.GasLimits.MaxFeePerGas)
	if err != nil {
		return nil
	}
	return v
}

// Resolver requests gas sponsorship for one transfer. Implementations hold
// no state between calls; the grant is consumed immediately by the single
// transfer attempt that requested it.
type Resolver interface {
	RequestSponsorship(ctx context.Context, op UserOperation) (*Grant, error)
}

// Denied builds the typed denial error.
func Denied(reason string) error {
	return types.NewPaymentError(types.ErrSponsorshipDenied, reason, "")
}

// mock grant constants matching the credential-less sponsor response:
// 21000 gas everywhere, 1.5 gwei fees, zeroed paymaster data.
const (
	mockGas = "0x5208"
	mockFee = "0x59682f00"
)

var mockPaymasterAndData = "0x" + strings.Repeat("0", 168)

// StaticResolver returns the deterministic mock-shaped grant used when
// sponsor credentials are absent, so the rest of the pipeline is exercised
// identically with or without live credentials. The grant carries zero real
// sponsorship, which callers treat as a fallback to self-paid submission.
type StaticResolver struct{}

func NewStaticResolver() *StaticResolver { return &StaticResolver{} }

func (*StaticResolver) RequestSponsorship(_ context.Context, _ UserOperation) (*Grant, error) {
	return &Grant{
		GasLimits: GasLimits{
			CallGasLimit:         mockGas,
			VerificationGasLimit: mockGas,
			PreVerificationGas:   mockGas,
			MaxFeePerGas:         mockFee,
			MaxPriorityFeePerGas: mockFee,
		},
		PaymasterAndData: mockPaymasterAndData,
		Sponsored:        false,
	}, nil
}

// FromConfig selects the resolver implementation once, at construction
// time: a live HTTP resolver when paymaster credentials are present, the
// static mock otherwise.
func FromConfig(cfg *types.Config) Resolver {
	if cfg.HasPaymasterCredentials() {
		return NewHTTPResolver(cfg.PaymasterURL, cfg.CDPAPIKeyName, cfg.CDPAPIKeySecret)
	}
	return NewStaticResolver()
}
