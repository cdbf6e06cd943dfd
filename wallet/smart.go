package wallet

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"github.com/vitwit/x402-client/chain"
	"github.com/vitwit/x402-client/logger"
	"github.com/vitwit/x402-client/sponsor"
	"github.com/vitwit/x402-client/types"
)

// SmartWallet is the contract-wallet variant with optional gas sponsorship.
// Each transfer asks the sponsorship resolver exactly once; a denied or
// unsponsored grant falls back to the self-paid path shared with the
// extension variant.
type SmartWallet struct {
	signer   chain.Signer
	chain    *chain.Client
	resolver sponsor.Resolver
	log      logger.Logger
}

var _ Backend = (*SmartWallet)(nil)

func NewSmartWallet(signer chain.Signer, chainClient *chain.Client, resolver sponsor.Resolver, log logger.Logger) *SmartWallet {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &SmartWallet{signer: signer, chain: chainClient, resolver: resolver, log: log}
}

func (w *SmartWallet) Kind() types.WalletKind { return types.WalletSmart }

func (w *SmartWallet) Identity() types.WalletIdentity {
	return types.WalletIdentity{
		Kind:    types.WalletSmart,
		Address: w.signer.Address().Hex(),
		ChainID: w.chain.Network().ChainID(),
	}
}

func (w *SmartWallet) Balance(ctx context.Context, token types.Token) (decimal.Decimal, error) {
	return w.chain.TokenBalance(ctx, token, w.signer.Address())
}

func (w *SmartWallet) Transfer(ctx context.Context, recipient string, amount decimal.Decimal, token types.Token) (*types.TransferResult, error) {
	overrides, sponsored := w.requestSponsorship(ctx, recipient, amount, token)

	result, err := w.chain.SubmitTransfer(ctx, w.signer, token, common.HexToAddress(recipient), amount, overrides)
	if err != nil {
		return nil, err
	}
	result.GasSponsored = sponsored
	return result, nil
}

// requestSponsorship builds the partial operation and asks the resolver
// once. Any denial, transport error, or unsponsored grant selects the
// self-paid path; sponsorship is never a blocking dependency.
func (w *SmartWallet) requestSponsorship(ctx context.Context, recipient string, amount decimal.Decimal, token types.Token) (*chain.GasOverrides, bool) {
	units, err := chain.ToSmallestUnits(amount, token.Decimals)
	if err != nil {
		return nil, false
	}
	callData, err := chain.PackTransfer(common.HexToAddress(recipient), units)
	if err != nil {
		return nil, false
	}

	op := sponsor.UserOperation{
		Sender:   w.signer.Address().Hex(),
		Nonce:    "0x0",
		CallData: hexutil.Encode(callData),
	}

	grant, err := w.resolver.RequestSponsorship(ctx, op)
	if err != nil {
		w.log.Warn("sponsorship denied, falling back to self-paid", map[string]any{
			"sender": op.Sender,
			"error":  err.Error(),
		})
		return nil, false
	}
	if !grant.Sponsored {
		w.log.Debug("sponsor granted no coverage, using self-paid path", map[string]any{
			"sender": op.Sender,
		})
		return nil, false
	}

	return &chain.GasOverrides{
		GasLimit: grant.CallGas(),
		GasPrice: grant.MaxFee(),
	}, true
}

func (w *SmartWallet) AwaitConfirmation(ctx context.Context, result *types.TransferResult, timeout time.Duration) (*types.TransferResult, error) {
	if result.Status.Terminal() {
		return result, nil
	}
	final, err := w.chain.WaitForConfirmation(ctx, result.TxHash, timeout)
	if err != nil {
		return final, err
	}
	final.GasSponsored = result.GasSponsored
	return final, nil
}

func (w *SmartWallet) Close() error { return nil }
