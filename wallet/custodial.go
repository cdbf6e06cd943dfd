package wallet

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vitwit/x402-client/custodial"
	"github.com/vitwit/x402-client/logger"
	"github.com/vitwit/x402-client/types"
)

// CustodialWallet is the server-managed variant. Transfers are a single
// opaque provider call; a success response implies confirmation, but a
// transaction hash must still be present before the result is trusted.
type CustodialWallet struct {
	provider custodial.Provider
	address  string
	network  types.Network
	log      logger.Logger
}

var _ Backend = (*CustodialWallet)(nil)

func NewCustodialWallet(provider custodial.Provider, address string, network types.Network, log logger.Logger) *CustodialWallet {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &CustodialWallet{provider: provider, address: address, network: network, log: log}
}

func (w *CustodialWallet) Kind() types.WalletKind { return types.WalletCustodial }

func (w *CustodialWallet) Identity() types.WalletIdentity {
	return types.WalletIdentity{
		Kind:    types.WalletCustodial,
		Address: w.address,
		ChainID: w.network.ChainID(),
	}
}

// Balance lists provider balances and picks out the requested token by
// contract address. A missing entry is a zero balance, not an error.
func (w *CustodialWallet) Balance(ctx context.Context, token types.Token) (decimal.Decimal, error) {
	balances, err := w.provider.ListBalances(ctx, w.address, w.network)
	if err != nil {
		return decimal.Zero, err
	}
	for _, b := range balances {
		if strings.EqualFold(b.ContractAddress, token.Address) {
			return decimal.NewFromString(b.Amount)
		}
	}
	return decimal.Zero, nil
}

func (w *CustodialWallet) Transfer(ctx context.Context, recipient string, amount decimal.Decimal, token types.Token) (*types.TransferResult, error) {
	resp, err := w.provider.Transfer(ctx, w.address, recipient, amount.String(), w.network)
	if err != nil {
		return nil, types.NewPaymentError(types.ErrSubmissionFailed, err.Error(), "")
	}
	if !resp.Success {
		reason := resp.Error
		if reason == "" {
			reason = "custodial transfer rejected"
		}
		return nil, types.NewPaymentError(types.ErrSubmissionFailed, reason, resp.TransactionHash)
	}
	if resp.TransactionHash == "" {
		return nil, types.NewPaymentError(types.ErrSubmissionFailed, "custodial transfer returned no transaction hash", "")
	}
	return &types.TransferResult{
		TxHash:  resp.TransactionHash,
		Status:  types.TransferConfirmed,
		Network: w.network,
	}, nil
}

// AwaitConfirmation is immediate for the custodial variant: the provider
// response already implied confirmation.
func (w *CustodialWallet) AwaitConfirmation(_ context.Context, result *types.TransferResult, _ time.Duration) (*types.TransferResult, error) {
	if result.TxHash == "" {
		failed := *result
		failed.Status = types.TransferFailed
		return &failed, types.NewPaymentError(types.ErrSubmissionFailed, "missing transaction hash", "")
	}
	confirmed := *result
	confirmed.Status = types.TransferConfirmed
	return &confirmed, nil
}

// RequestFunds asks the provider faucet to top up the wallet. Top-up is a
// caller-driven action taken before re-entering the payment flow; it is
// never triggered automatically.
func (w *CustodialWallet) RequestFunds(ctx context.Context, token string) (*custodial.FundResult, error) {
	result, err := w.provider.RequestFaucetFunds(ctx, w.address, w.network, token)
	if err != nil {
		return nil, err
	}
	w.log.Info("faucet funds requested", map[string]any{
		"address": w.address,
		"network": w.network.String(),
		"tx":      result.TransactionHash,
	})
	return result, nil
}

func (w *CustodialWallet) Close() error { return nil }
