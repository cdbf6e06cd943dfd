package wallet

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/vitwit/x402-client/chain"
	"github.com/vitwit/x402-client/types"
)

// ExtensionWallet is the user-signed variant: the key holder authorizes
// each transfer and the transaction is submitted directly to the chain.
// Confirmation is an explicit separate step.
type ExtensionWallet struct {
	signer chain.Signer
	chain  *chain.Client
}

var _ Backend = (*ExtensionWallet)(nil)

func NewExtensionWallet(signer chain.Signer, chainClient *chain.Client) *ExtensionWallet {
	return &ExtensionWallet{signer: signer, chain: chainClient}
}

func (w *ExtensionWallet) Kind() types.WalletKind { return types.WalletExtension }

func (w *ExtensionWallet) Identity() types.WalletIdentity {
	return types.WalletIdentity{
		Kind:    types.WalletExtension,
		Address: w.signer.Address().Hex(),
		ChainID: w.chain.Network().ChainID(),
	}
}

func (w *ExtensionWallet) Balance(ctx context.Context, token types.Token) (decimal.Decimal, error) {
	return w.chain.TokenBalance(ctx, token, w.signer.Address())
}

func (w *ExtensionWallet) Transfer(ctx context.Context, recipient string, amount decimal.Decimal, token types.Token) (*types.TransferResult, error) {
	return w.chain.SubmitTransfer(ctx, w.signer, token, common.HexToAddress(recipient), amount, nil)
}

func (w *ExtensionWallet) AwaitConfirmation(ctx context.Context, result *types.TransferResult, timeout time.Duration) (*types.TransferResult, error) {
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

func (w *ExtensionWallet) Close() error { return nil }
