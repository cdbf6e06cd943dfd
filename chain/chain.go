// Package chain provides the EVM access layer shared by the self-signed
// wallet backends: ERC20 transfer submission and receipt-based confirmation.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/vitwit/x402-client/logger"
	"github.com/vitwit/x402-client/types"
)

const erc20ABI = `[
  {
    "name": "transfer",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "to", "type": "address"},
      {"name": "amount", "type": "uint256"}
    ],
    "outputs": [{"name": "", "type": "bool"}]
  },
  {
    "name": "balanceOf",
    "type": "function",
    "stateMutability": "view",
    "inputs": [{"name": "owner", "type": "address"}],
    "outputs": [{"name": "", "type": "uint256"}]
  }
]`

var tokenABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		panic(fmt.Sprintf("bad erc20 abi: %v", err))
	}
	tokenABI = parsed
}

// fallbackGasLimit covers a plain ERC20 transfer when no sponsorship grant
// supplies a limit.
const fallbackGasLimit = 100_000

const defaultPollInterval = 2 * time.Second

// RPC is the subset of the ethclient surface the chain layer needs.
type RPC interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

var _ RPC = (*ethclient.Client)(nil)

// GasOverrides carries gas parameters supplied by a sponsorship grant.
type GasOverrides struct {
	GasLimit uint64
	GasPrice *big.Int
}

// Client submits token transfers and waits for their confirmation on a
// single EVM network.
type Client struct {
	rpc          RPC
	network      types.Network
	chainID      *big.Int
	pollInterval time.Duration
	log          logger.Logger
}

// Dial connects to an EVM RPC endpoint for the given network.
func Dial(rpcURL string, network types.Network, log logger.Logger) (*Client, error) {
	if network.ChainID() == 0 {
		return nil, fmt.Errorf("unsupported network: %s", network)
	}
	rpc, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EVM RPC: %w", err)
	}
	return NewClient(rpc, network, log), nil
}

// NewClient wraps an existing RPC backend.
func NewClient(rpc RPC, network types.Network, log logger.Logger) *Client {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Client{
		rpc:          rpc,
		network:      network,
		chainID:      big.NewInt(network.ChainID()),
		pollInterval: defaultPollInterval,
		log:          log,
	}
}

// SetPollInterval overrides the receipt polling cadence.
func (c *Client) SetPollInterval(d time.Duration) {
	if d > 0 {
		c.pollInterval = d
	}
}

func (c *Client) Network() types.Network { return c.network }

func (c *Client) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

// TokenBalance reads the ERC20 balance of owner, in token units.
func (c *Client) TokenBalance(ctx context.Context, token types.Token, owner common.Address) (decimal.Decimal, error) {
	data, err := tokenABI.Pack("balanceOf", owner)
	if err != nil {
		return decimal.Zero, err
	}
	contract := common.HexToAddress(token.Address)
	out, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance query failed: %w", err)
	}
	results, err := tokenABI.Unpack("balanceOf", out)
	if err != nil || len(results) != 1 {
		return decimal.Zero, fmt.Errorf("bad balanceOf result: %w", err)
	}
	raw, ok := results[0].(*big.Int)
	if !ok {
		return decimal.Zero, fmt.Errorf("bad balanceOf result type %T", results[0])
	}
	return FromSmallestUnits(raw, token.Decimals), nil
}

// SubmitTransfer signs and broadcasts an ERC20 transfer. The returned
// result is pending; confirmation is a separate, explicit step.
func (c *Client) SubmitTransfer(
	ctx context.Context,
	signer Signer,
	token types.Token,
	recipient common.Address,
	amount decimal.Decimal,
	overrides *GasOverrides,
) (*types.TransferResult, error) {
	units, err := ToSmallestUnits(amount, token.Decimals)
	if err != nil {
		return nil, types.NewPaymentError(types.ErrSubmissionFailed, err.Error(), "")
	}

	data, err := PackTransfer(recipient, units)
	if err != nil {
		return nil, types.NewPaymentError(types.ErrSubmissionFailed, err.Error(), "")
	}

	from := signer.Address()
	nonce, err := c.rpc.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, types.NewPaymentError(types.ErrSubmissionFailed, fmt.Sprintf("nonce query failed: %v", err), "")
	}

	gasLimit := uint64(fallbackGasLimit)
	var gasPrice *big.Int
	if overrides != nil {
		if overrides.GasLimit > 0 {
			gasLimit = overrides.GasLimit
		}
		gasPrice = overrides.GasPrice
	}
	if gasPrice == nil {
		gasPrice, err = c.rpc.SuggestGasPrice(ctx)
		if err != nil {
			return nil, types.NewPaymentError(types.ErrSubmissionFailed, fmt.Sprintf("gas price query failed: %v", err), "")
		}
	}

	tx := ethtypes.NewTransaction(nonce, common.HexToAddress(token.Address), big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := signer.SignTx(tx, c.chainID)
	if err != nil {
		return nil, types.NewPaymentError(types.ErrSubmissionFailed, fmt.Sprintf("signing failed: %v", err), "")
	}

	if err := c.rpc.SendTransaction(ctx, signed); err != nil {
		return nil, types.NewPaymentError(types.ErrSubmissionFailed, fmt.Sprintf("broadcast failed: %v", err), "")
	}

	hash := signed.Hash().Hex()
	c.log.Info("transfer submitted", map[string]any{
		"tx":        hash,
		"network":   c.network.String(),
		"recipient": recipient.Hex(),
		"amount":    amount.String(),
	})

	return &types.TransferResult{
		TxHash:  hash,
		Status:  types.TransferPending,
		Network: c.network,
	}, nil
}

// WaitForConfirmation polls for the receipt of txHash until it lands or the
// timeout expires. Expiry is a confirmation_timeout failure: the transfer
// may still land later, so it is reported distinctly from a rejected
// submission.
func (c *Client) WaitForConfirmation(ctx context.Context, txHash string, timeout time.Duration) (*types.TransferResult, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	hash := common.HexToHash(txHash)
	for {
		receipt, err := c.rpc.TransactionReceipt(waitCtx, hash)
		switch {
		case err == nil:
			if receipt.Status == ethtypes.ReceiptStatusSuccessful {
				return &types.TransferResult{TxHash: txHash, Status: types.TransferConfirmed, Network: c.network}, nil
			}
			return &types.TransferResult{TxHash: txHash, Status: types.TransferFailed, Network: c.network},
				types.NewPaymentError(types.ErrSubmissionFailed, "transaction reverted on chain", txHash)
		case errors.Is(err, ethereum.NotFound):
			// not mined yet
		case waitCtx.Err() != nil:
			// fall through to the select below
		default:
			c.log.Warn("receipt query failed", map[string]any{"tx": txHash, "error": err.Error()})
		}

		select {
		case <-waitCtx.Done():
			return &types.TransferResult{TxHash: txHash, Status: types.TransferFailed, Network: c.network},
				types.NewPaymentError(types.ErrConfirmationTimeout,
					fmt.Sprintf("no confirmation within %s", timeout), txHash)
		case <-ticker.C:
		}
	}
}

// PackTransfer encodes transfer(to, amount) calldata.
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return tokenABI.Pack("transfer", to, amount)
}

// ToSmallestUnits converts a token-unit amount to its smallest-unit integer
// at the token's fixed decimal precision.
func ToSmallestUnits(amount decimal.Decimal, decimals int) (*big.Int, error) {
	shifted := amount.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %s exceeds %d decimal places", amount, decimals)
	}
	if shifted.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %s", amount)
	}
	return shifted.BigInt(), nil
}

// FromSmallestUnits formats a smallest-unit integer as a token-unit decimal.
func FromSmallestUnits(units *big.Int, decimals int) decimal.Decimal {
	return decimal.NewFromBigInt(units, -int32(decimals))
}
