package sponsor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const requestTimeout = 10 * time.Second

// HTTPResolver submits partial user operations to a paymaster endpoint.
type HTTPResolver struct {
	url       string
	keyName   string
	keySecret string
	hc        *http.Client
}

func NewHTTPResolver(url, keyName, keySecret string) *HTTPResolver {
	return &HTTPResolver{
		url:       url,
		keyName:   keyName,
		keySecret: keySecret,
		hc:        &http.Client{Timeout: requestTimeout},
	}
}

// SetHTTPClient replaces the underlying HTTP client.
func (r *HTTPResolver) SetHTTPClient(hc *http.Client) {
	if hc != nil {
		r.hc = hc
	}
}

type sponsorRequest struct {
	PartialUserOp UserOperation `json:"partialUserOp"`
}

// RequestSponsorship posts the partial operation once. Any non-2xx response
// or transport failure is a denial; the caller falls back to self-paid
// submission and never retries the sponsor.
func (r *HTTPResolver) RequestSponsorship(ctx context.Context, op UserOperation) (*Grant, error) {
	body, err := json.Marshal(sponsorRequest{PartialUserOp: op})
	if err != nil {
		return nil, Denied(fmt.Sprintf("encode request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, Denied(fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if r.keyName != "" {
		req.SetBasicAuth(r.keyName, r.keySecret)
	}

	resp, err := r.hc.Do(req)
	if err != nil {
		return nil, Denied(fmt.Sprintf("sponsor unreachable: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, Denied(fmt.Sprintf("sponsor returned %d: %s", resp.StatusCode, msg))
	}

	var grant Grant
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return nil, Denied(fmt.Sprintf("decode grant: %v", err))
	}
	return &grant, nil
}
