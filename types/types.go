package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// WalletKind identifies which wallet backend satisfies a payment.
type WalletKind string

const (
	// WalletExtension is a user-signed, browser-mediated wallet. Transfers
	// are submitted directly to the chain and must be explicitly confirmed.
	WalletExtension WalletKind = "extension"

	// WalletCustodial is a server-managed wallet. A transfer is a single
	// opaque provider call; confirmation is implied by a success response.
	WalletCustodial WalletKind = "custodial"

	// WalletSmart is a contract wallet with optional gas sponsorship.
	WalletSmart WalletKind = "smart"
)

func (k WalletKind) String() string { return string(k) }

// Valid reports whether k is one of the known backend kinds.
func (k WalletKind) Valid() bool {
	switch k {
	case WalletExtension, WalletCustodial, WalletSmart:
		return true
	}
	return false
}

// WalletIdentity describes the single active wallet of a session.
// Exactly one identity is active at a time; switching kinds tears down
// the previous backend and establishes a new one.
type WalletIdentity struct {
	Kind    WalletKind `json:"kind"`
	Address string     `json:"address"`
	ChainID int64      `json:"chainId"`
}

// PaymentRequirement is the typed form of a 402 response. It is immutable
// once parsed.
type PaymentRequirement struct {
	// Amount is the exact decimal amount string from the 402 payload,
	// preserved literally so no precision is lost.
	Amount string `json:"amount" validate:"required"`

	// Currency is the token identifier, e.g. "USDC".
	Currency string `json:"currency" validate:"required"`

	// Recipient is the address the payment must be sent to.
	Recipient string `json:"recipient" validate:"required"`

	// Network is the chain the payment must be made on.
	Network Network `json:"network" validate:"required"`

	// Description of what is being paid for.
	Description string `json:"description,omitempty"`
}

// AmountDecimal returns the parsed amount. Validate must have succeeded.
func (r *PaymentRequirement) AmountDecimal() decimal.Decimal {
	d, _ := decimal.NewFromString(r.Amount)
	return d
}

// Validate checks the requirement invariants: a positive amount parseable
// at the token's decimal precision, and non-empty recipient and network.
func (r *PaymentRequirement) Validate() error {
	if r.Recipient == "" {
		return fmt.Errorf("requirement recipient is required")
	}
	if r.Network == "" {
		return fmt.Errorf("requirement network is required")
	}
	token, err := TokenForCurrency(r.Currency, r.Network)
	if err != nil {
		return err
	}
	d, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", r.Amount, err)
	}
	if !d.IsPositive() {
		return fmt.Errorf("amount must be positive, got %q", r.Amount)
	}
	if int(-d.Exponent()) > token.Decimals {
		return fmt.Errorf("amount %q exceeds %d decimal places of %s", r.Amount, token.Decimals, token.Symbol)
	}
	return nil
}

// TransferStatus is the lifecycle of a submitted transfer.
type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferConfirmed TransferStatus = "confirmed"
	TransferFailed    TransferStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s TransferStatus) Terminal() bool {
	return s == TransferConfirmed || s == TransferFailed
}

// TransferResult is created by a wallet backend on submission and advanced
// by the confirmation wait. Once Terminal, it is never mutated again.
type TransferResult struct {
	TxHash       string         `json:"transactionHash"`
	Status       TransferStatus `json:"status"`
	Network      Network        `json:"network,omitempty"`
	GasSponsored bool           `json:"gasSponsored,omitempty"`
}

// UnconfirmedTxHash is the explicit marker used where an external
// collaborator is unavailable and a fixed-shape placeholder result is
// substituted. It is deliberately distinguishable from a real hash;
// a real failure never carries a fabricated hash.
const UnconfirmedTxHash = "0x0000000000000000000000000000000000000000000000000000000000000000"

// Config carries the client configuration.
type Config struct {
	Network Network `mapstructure:"network"`
	RPCURL  string  `mapstructure:"rpc_url"`

	// Paymaster sponsorship endpoint plus the credential pair that gates
	// live sponsorship. Without all three, a deterministic mock-shaped
	// grant with zero real sponsorship is used instead.
	PaymasterURL    string `mapstructure:"paymaster_url"`
	CDPAPIKeyName   string `mapstructure:"cdp_api_key_name"`
	CDPAPIKeySecret string `mapstructure:"cdp_api_key_secret"`

	// Custodial provider endpoint and wallet secret. Without the full
	// credential set, fixed-shape placeholder balances and funding
	// results are substituted.
	CustodialAPIURL  string `mapstructure:"custodial_api_url"`
	CDPWalletSecret  string `mapstructure:"cdp_wallet_secret"`
	CustodialAddress string `mapstructure:"custodial_address"`

	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`

	LogLevel      string `mapstructure:"log_level"`
	EnableMetrics bool   `mapstructure:"enable_metrics"`
}

// HasPaymasterCredentials reports whether live gas sponsorship can be
// requested. Checked once at construction time; the implementation is
// selected up front rather than falling back on call-time errors.
func (c *Config) HasPaymasterCredentials() bool {
	return c.CDPAPIKeyName != "" && c.CDPAPIKeySecret != "" && c.PaymasterURL != ""
}

// HasCustodialCredentials reports whether the custodial provider is
// reachable with real credentials.
func (c *Config) HasCustodialCredentials() bool {
	return c.CDPAPIKeyName != "" && c.CDPAPIKeySecret != "" && c.CDPWalletSecret != ""
}
