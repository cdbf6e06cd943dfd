package custodial

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vitwit/x402-client/types"
)

const requestTimeout = 15 * time.Second

// HTTPProvider is the live custodial wallet client.
type HTTPProvider struct {
	baseURL      string
	keyName      string
	keySecret    string
	walletSecret string
	hc           *http.Client
}

func NewHTTPProvider(baseURL, keyName, keySecret, walletSecret string) *HTTPProvider {
	return &HTTPProvider{
		baseURL:      baseURL,
		keyName:      keyName,
		keySecret:    keySecret,
		walletSecret: walletSecret,
		hc:           &http.Client{Timeout: requestTimeout},
	}
}

// SetHTTPClient replaces the underlying HTTP client.
func (p *HTTPProvider) SetHTTPClient(hc *http.Client) {
	if hc != nil {
		p.hc = hc
	}
}

func (p *HTTPProvider) post(ctx context.Context, path string, payload, out any, idempotencyKey string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Wallet-Secret", p.walletSecret)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	req.SetBasicAuth(p.keyName, p.keySecret)

	resp, err := p.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("custodial provider returned %d: %s", resp.StatusCode, msg)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type balancesRequest struct {
	Address string `json:"address"`
	Network string `json:"network"`
}

type balancesResponse struct {
	Balances []TokenBalance `json:"balances"`
}

func (p *HTTPProvider) ListBalances(ctx context.Context, address string, network types.Network) ([]TokenBalance, error) {
	var out balancesResponse
	err := p.post(ctx, "/balances", balancesRequest{Address: address, Network: network.String()}, &out, "")
	if err != nil {
		return nil, err
	}
	return out.Balances, nil
}

type faucetRequest struct {
	Address string `json:"address"`
	Network string `json:"network"`
	Token   string `json:"token"`
}

func (p *HTTPProvider) RequestFaucetFunds(ctx context.Context, address string, network types.Network, token string) (*FundResult, error) {
	var out FundResult
	err := p.post(ctx, "/faucet", faucetRequest{Address: address, Network: network.String(), Token: token}, &out, "")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type transferRequest struct {
	WalletID  string `json:"walletId"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Network   string `json:"network"`
}

// Transfer submits a provider-side transfer. An idempotency key guards
// against double spends on retried requests.
func (p *HTTPProvider) Transfer(ctx context.Context, walletID, recipient, amount string, network types.Network) (*TransferResponse, error) {
	var out TransferResponse
	err := p.post(ctx, "/transfer",
		transferRequest{WalletID: walletID, Recipient: recipient, Amount: amount, Network: network.String()},
		&out, uuid.NewString())
	if err != nil {
		return nil, err
	}
	return &out, nil
}
