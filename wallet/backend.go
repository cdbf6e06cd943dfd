// Package wallet abstracts the backends that can satisfy a payment
// requirement. Each backend exposes the same capability set; the variants
// differ only in signing and sponsorship mechanics, so callers hold a
// single indirection point instead of branching on kind.
package wallet

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vitwit/x402-client/types"
)

// Backend is the common capability set of every wallet variant.
type Backend interface {
	Kind() types.WalletKind
	Identity() types.WalletIdentity

	// Balance reports the spendable balance in token units.
	Balance(ctx context.Context, token types.Token) (decimal.Decimal, error)

	// Transfer moves amount of token to recipient. The result may still be
	// pending; AwaitConfirmation advances it to a terminal status.
	Transfer(ctx context.Context, recipient string, amount decimal.Decimal, token types.Token) (*types.TransferResult, error)

	// AwaitConfirmation blocks until the transfer reaches a terminal
	// status or the timeout expires.
	AwaitConfirmation(ctx context.Context, result *types.TransferResult, timeout time.Duration) (*types.TransferResult, error)

	Close() error
}
