package types

import (
	"fmt"
	"strings"
)

// Network represents supported blockchain networks.
type Network string

const (
	NetworkBase        Network = "base"
	NetworkBaseSepolia Network = "base-sepolia" // testnet

	// DefaultNetwork is assumed when a 402 payload omits the network.
	DefaultNetwork = NetworkBaseSepolia
)

func (n Network) String() string { return string(n) }

func (n Network) IsTestnet() bool { return n == NetworkBaseSepolia }

var evmChainIDs = map[Network]int64{
	NetworkBase:        8453,
	NetworkBaseSepolia: 84532,
}

// ChainID returns the EVM chain id for the network, or 0 if unknown.
func (n Network) ChainID() int64 {
	return evmChainIDs[n]
}

// Token describes an ERC20 payment token on a specific network.
type Token struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
}

// DefaultCurrency is assumed when a 402 payload omits the currency.
const DefaultCurrency = "USDC"

// USDC contract addresses per network. USDC carries 6 decimals everywhere.
var tokens = map[Network]map[string]Token{
	NetworkBase: {
		"USDC": {Symbol: "USDC", Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6},
	},
	NetworkBaseSepolia: {
		"USDC": {Symbol: "USDC", Address: "0x036CbD53842c5426634e7929541eC2318f3dCF7e", Decimals: 6},
	},
}

// TokenForCurrency resolves a token identifier on a network.
func TokenForCurrency(currency string, network Network) (Token, error) {
	byNetwork, ok := tokens[network]
	if !ok {
		return Token{}, fmt.Errorf("unsupported network: %s", network)
	}
	token, ok := byNetwork[strings.ToUpper(currency)]
	if !ok {
		return Token{}, fmt.Errorf("unsupported currency %q on network %s", currency, network)
	}
	return token, nil
}
