package wallet

import (
	"context"
	"math/big"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/x402-client/chain"
	"github.com/vitwit/x402-client/custodial"
	"github.com/vitwit/x402-client/sponsor"
	"github.com/vitwit/x402-client/types"
)

const testKey = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

var testToken = types.Token{
	Symbol:   "USDC",
	Address:  "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
	Decimals: 6,
}

type fakeRPC struct {
	sent    []*ethtypes.Transaction
	balance *big.Int
}

func (f *fakeRPC) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, nil
}

func (f *fakeRPC) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeRPC) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeRPC) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	return &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful}, nil
}

func (f *fakeRPC) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return common.LeftPadBytes(f.balance.Bytes(), 32), nil
}

func newChainClient(t *testing.T, rpc *fakeRPC) *chain.Client {
	t.Helper()
	c := chain.NewClient(rpc, types.NetworkBaseSepolia, nil)
	c.SetPollInterval(time.Millisecond)
	return c
}

func newSigner(t *testing.T) *chain.LocalSigner {
	t.Helper()
	s, err := chain.NewLocalSigner(testKey)
	require.NoError(t, err)
	return s
}

type fakeResolver struct {
	grant *sponsor.Grant
	err   error
	calls int
}

func (r *fakeResolver) RequestSponsorship(ctx context.Context, op sponsor.UserOperation) (*sponsor.Grant, error) {
	r.calls++
	return r.grant, r.err
}

type fakeProvider struct {
	balances    []custodial.TokenBalance
	transferRes *custodial.TransferResponse
	transferErr error
}

func (p *fakeProvider) ListBalances(ctx context.Context, address string, network types.Network) ([]custodial.TokenBalance, error) {
	return p.balances, nil
}

func (p *fakeProvider) RequestFaucetFunds(ctx context.Context, address string, network types.Network, token string) (*custodial.FundResult, error) {
	return &custodial.FundResult{TransactionHash: types.UnconfirmedTxHash, Network: network}, nil
}

func (p *fakeProvider) Transfer(ctx context.Context, walletID, recipient, amount string, network types.Network) (*custodial.TransferResponse, error) {
	return p.transferRes, p.transferErr
}

func TestExtensionWalletTransferAndConfirm(t *testing.T) {
	rpc := &fakeRPC{}
	w := NewExtensionWallet(newSigner(t), newChainClient(t, rpc))

	require.Equal(t, types.WalletExtension, w.Kind())
	id := w.Identity()
	require.Equal(t, int64(84532), id.ChainID)

	res, err := w.Transfer(context.Background(), "0x742d35Cc6634C0532925a3b8D4C9db96C4b4d8b6",
		decimal.RequireFromString("0.1"), testToken)
	require.NoError(t, err)
	require.Equal(t, types.TransferPending, res.Status)
	require.Len(t, rpc.sent, 1)

	final, err := w.AwaitConfirmation(context.Background(), res, time.Second)
	require.NoError(t, err)
	require.Equal(t, types.TransferConfirmed, final.Status)
	require.Equal(t, res.TxHash, final.TxHash)
}

func TestSmartWalletSponsoredTransfer(t *testing.T) {
	rpc := &fakeRPC{}
	resolver := &fakeResolver{grant: &sponsor.Grant{
		GasLimits: sponsor.GasLimits{CallGasLimit: "0x7530", MaxFeePerGas: "0x3b9aca00"},
		Sponsored: true,
	}}
	w := NewSmartWallet(newSigner(t), newChainClient(t, rpc), resolver, nil)

	res, err := w.Transfer(context.Background(), "0x742d35Cc6634C0532925a3b8D4C9db96C4b4d8b6",
		decimal.RequireFromString("0.1"), testToken)
	require.NoError(t, err)
	require.True(t, res.GasSponsored)
	require.Equal(t, 1, resolver.calls)

	require.Len(t, rpc.sent, 1)
	require.Equal(t, uint64(30_000), rpc.sent[0].Gas())
	require.Equal(t, big.NewInt(1_000_000_000), rpc.sent[0].GasPrice())
}

func TestSmartWalletSponsorshipDenialFallsBack(t *testing.T) {
	rpc := &fakeRPC{}
	resolver := &fakeResolver{err: sponsor.Denied("policy violation")}
	w := NewSmartWallet(newSigner(t), newChainClient(t, rpc), resolver, nil)

	res, err := w.Transfer(context.Background(), "0x742d35Cc6634C0532925a3b8D4C9db96C4b4d8b6",
		decimal.RequireFromString("0.1"), testToken)
	require.NoError(t, err)
	require.False(t, res.GasSponsored)

	// Denied sponsorship falls back to exactly one self-paid submission;
	// the sponsor is never asked twice for the same transfer.
	require.Equal(t, 1, resolver.calls)
	require.Len(t, rpc.sent, 1)
}

func TestSmartWalletUnsponsoredGrantFallsBack(t *testing.T) {
	rpc := &fakeRPC{}
	resolver := &fakeResolver{grant: &sponsor.Grant{Sponsored: false}}
	w := NewSmartWallet(newSigner(t), newChainClient(t, rpc), resolver, nil)

	res, err := w.Transfer(context.Background(), "0x742d35Cc6634C0532925a3b8D4C9db96C4b4d8b6",
		decimal.RequireFromString("0.1"), testToken)
	require.NoError(t, err)
	require.False(t, res.GasSponsored)
	require.Len(t, rpc.sent, 1)
}

func TestCustodialWalletBalanceFilter(t *testing.T) {
	p := &fakeProvider{balances: []custodial.TokenBalance{
		{ContractAddress: "0xdeadbeef00000000000000000000000000000000", Amount: "5"},
		{ContractAddress: "0x036cbd53842c5426634e7929541ec2318f3dcf7e", Amount: "42.5"}, // lowercase
	}}
	w := NewCustodialWallet(p, "wallet-1", types.NetworkBaseSepolia, nil)

	bal, err := w.Balance(context.Background(), testToken)
	require.NoError(t, err)
	require.True(t, bal.Equal(decimal.RequireFromString("42.5")))

	// A listing without the token is a zero balance, not an error.
	p.balances = nil
	bal, err = w.Balance(context.Background(), testToken)
	require.NoError(t, err)
	require.True(t, bal.IsZero())
}

func TestCustodialWalletTransfer(t *testing.T) {
	p := &fakeProvider{transferRes: &custodial.TransferResponse{
		Success:         true,
		TransactionHash: "0xabc",
		Network:         types.NetworkBaseSepolia,
	}}
	w := NewCustodialWallet(p, "wallet-1", types.NetworkBaseSepolia, nil)

	res, err := w.Transfer(context.Background(), "0x2", decimal.RequireFromString("0.1"), testToken)
	require.NoError(t, err)
	require.Equal(t, types.TransferConfirmed, res.Status)

	final, err := w.AwaitConfirmation(context.Background(), res, time.Second)
	require.NoError(t, err)
	require.Equal(t, types.TransferConfirmed, final.Status)
}

func TestCustodialWalletTransferRejected(t *testing.T) {
	p := &fakeProvider{transferRes: &custodial.TransferResponse{Success: false, Error: "limit exceeded"}}
	w := NewCustodialWallet(p, "wallet-1", types.NetworkBaseSepolia, nil)

	_, err := w.Transfer(context.Background(), "0x2", decimal.RequireFromString("0.1"), testToken)
	require.True(t, types.IsCode(err, types.ErrSubmissionFailed))
	require.ErrorContains(t, err, "limit exceeded")
}

func TestCustodialWalletTransferMissingHash(t *testing.T) {
	p := &fakeProvider{transferRes: &custodial.TransferResponse{Success: true}}
	w := NewCustodialWallet(p, "wallet-1", types.NetworkBaseSepolia, nil)

	_, err := w.Transfer(context.Background(), "0x2", decimal.RequireFromString("0.1"), testToken)
	require.True(t, types.IsCode(err, types.ErrSubmissionFailed))
}

type countingBackend struct {
	kind         types.WalletKind
	balance      decimal.Decimal
	balanceCalls int
	closed       bool
}

func (b *countingBackend) Kind() types.WalletKind { return b.kind }

func (b *countingBackend) Identity() types.WalletIdentity {
	return types.WalletIdentity{Kind: b.kind, Address: "0x1", ChainID: 84532}
}

func (b *countingBackend) Balance(ctx context.Context, token types.Token) (decimal.Decimal, error) {
	b.balanceCalls++
	return b.balance, nil
}

func (b *countingBackend) Transfer(ctx context.Context, recipient string, amount decimal.Decimal, token types.Token) (*types.TransferResult, error) {
	return &types.TransferResult{TxHash: "0xabc", Status: types.TransferConfirmed}, nil
}

func (b *countingBackend) AwaitConfirmation(ctx context.Context, result *types.TransferResult, timeout time.Duration) (*types.TransferResult, error) {
	return result, nil
}

func (b *countingBackend) Close() error {
	b.closed = true
	return nil
}

func TestSessionBalanceCaching(t *testing.T) {
	s := NewSession(nil)
	b := &countingBackend{kind: types.WalletExtension, balance: decimal.RequireFromString("1")}
	s.Activate(b)

	for i := 0; i < 3; i++ {
		bal, err := s.Balance(context.Background(), testToken)
		require.NoError(t, err)
		require.True(t, bal.Equal(decimal.RequireFromString("1")))
	}
	require.Equal(t, 1, b.balanceCalls)
}

func TestSessionSubmissionInvalidatesCache(t *testing.T) {
	s := NewSession(nil)
	b := &countingBackend{kind: types.WalletExtension, balance: decimal.RequireFromString("1")}
	s.Activate(b)

	_, err := s.Balance(context.Background(), testToken)
	require.NoError(t, err)

	release := s.AcquireSubmission()
	_, err = b.Transfer(context.Background(), "0x2", decimal.RequireFromString("0.1"), testToken)
	require.NoError(t, err)
	release()

	_, err = s.Balance(context.Background(), testToken)
	require.NoError(t, err)
	require.Equal(t, 2, b.balanceCalls)
}

func TestSessionSwitchTearsDownPrevious(t *testing.T) {
	s := NewSession(nil)
	first := &countingBackend{kind: types.WalletExtension, balance: decimal.RequireFromString("1")}
	second := &countingBackend{kind: types.WalletSmart, balance: decimal.RequireFromString("2")}

	s.Activate(first)
	_, err := s.Balance(context.Background(), testToken)
	require.NoError(t, err)

	s.Activate(second)
	require.True(t, first.closed, "previous backend must be closed on switch")

	// The cache never carries balances across backends.
	bal, err := s.Balance(context.Background(), testToken)
	require.NoError(t, err)
	require.True(t, bal.Equal(decimal.RequireFromString("2")))
	require.Equal(t, 1, second.balanceCalls)

	id, ok := s.Identity()
	require.True(t, ok)
	require.Equal(t, types.WalletSmart, id.Kind)
}

func TestSessionNoBackend(t *testing.T) {
	s := NewSession(nil)
	_, err := s.Balance(context.Background(), testToken)
	require.Error(t, err)
	_, ok := s.Identity()
	require.False(t, ok)
	require.NoError(t, s.Close())
}

// blockingBackend parks inside Balance until released, so a fetch can be
// held in flight across a backend switch.
type blockingBackend struct {
	countingBackend
	entered chan struct{}
	release chan struct{}
}

func (b *blockingBackend) Balance(ctx context.Context, token types.Token) (decimal.Decimal, error) {
	close(b.entered)
	<-b.release
	return b.countingBackend.Balance(ctx, token)
}

func TestSessionBalanceNotSharedAcrossSwitch(t *testing.T) {
	s := NewSession(nil)
	first := &blockingBackend{
		countingBackend: countingBackend{kind: types.WalletExtension, balance: decimal.RequireFromString("1")},
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
	}
	second := &countingBackend{kind: types.WalletSmart, balance: decimal.RequireFromString("2")}

	s.Activate(first)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Balance(context.Background(), testToken)
	}()
	<-first.entered

	// Switch while the first backend's fetch is still in flight.
	s.Activate(second)

	bal, err := s.Balance(context.Background(), testToken)
	require.NoError(t, err)
	require.True(t, bal.Equal(decimal.RequireFromString("2")),
		"balance after switch must come from the new backend, got %s", bal)
	require.Equal(t, 1, second.balanceCalls)

	// Letting the stale fetch finish must not repopulate the cache.
	close(first.release)
	<-done
	bal, err = s.Balance(context.Background(), testToken)
	require.NoError(t, err)
	require.True(t, bal.Equal(decimal.RequireFromString("2")))
}

func TestSessionAcquireSubmissionReleaseIdempotent(t *testing.T) {
	s := NewSession(nil)
	s.Activate(&countingBackend{kind: types.WalletExtension})

	release := s.AcquireSubmission()
	release()
	release() // second call is a no-op

	// Lock must be free again.
	done := make(chan struct{})
	go func() {
		r := s.AcquireSubmission()
		r()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("submission lock not released")
	}
}
