package sponsor

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vitwit/x402-client/types"
)

var testOp = UserOperation{
	Sender:   "0x742d35Cc6634C0532925a3b8D4C9db96C4b4d8b6",
	Nonce:    "0x0",
	CallData: "0xa9059cbb",
}

func TestStaticResolverDeterministic(t *testing.T) {
	r := NewStaticResolver()

	first, err := r.RequestSponsorship(context.Background(), testOp)
	require.NoError(t, err)
	second, err := r.RequestSponsorship(context.Background(), UserOperation{})
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.False(t, first.Sponsored)
	require.Equal(t, "0x5208", first.GasLimits.CallGasLimit)
	require.Equal(t, "0x59682f00", first.GasLimits.MaxFeePerGas)
	require.Len(t, first.PaymasterAndData, 2+168)
	require.EqualValues(t, 21_000, first.CallGas())
	require.Equal(t, big.NewInt(1_500_000_000), first.MaxFee())
}

func TestGrantDecodeInvalidHex(t *testing.T) {
	g := &Grant{GasLimits: GasLimits{CallGasLimit: "nope", MaxFeePerGas: ""}}
	require.EqualValues(t, 0, g.CallGas())
	require.Nil(t, g.MaxFee())
}

func TestHTTPResolverGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		user, secret, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "key-name", user)
		require.Equal(t, "key-secret", secret)

		var body sponsorRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, testOp, body.PartialUserOp)

		json.NewEncoder(w).Encode(Grant{
			GasLimits: GasLimits{CallGasLimit: "0x7530", MaxFeePerGas: "0x3b9aca00"},
			Sponsored: true,
		})
	}))
	defer srv.Close()

	r := NewHTTPResolver(srv.URL, "key-name", "key-secret")
	grant, err := r.RequestSponsorship(context.Background(), testOp)
	require.NoError(t, err)
	require.True(t, grant.Sponsored)
	require.EqualValues(t, 30_000, grant.CallGas())
	require.Equal(t, big.NewInt(1_000_000_000), grant.MaxFee())
}

func TestHTTPResolverDenial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "policy violation", http.StatusForbidden)
	}))
	defer srv.Close()

	r := NewHTTPResolver(srv.URL, "key-name", "key-secret")
	grant, err := r.RequestSponsorship(context.Background(), testOp)
	require.Nil(t, grant)
	require.True(t, types.IsCode(err, types.ErrSponsorshipDenied))
}

func TestHTTPResolverUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	r := NewHTTPResolver(srv.URL, "key-name", "key-secret")
	_, err := r.RequestSponsorship(context.Background(), testOp)
	require.True(t, types.IsCode(err, types.ErrSponsorshipDenied))
}

func TestFromConfig(t *testing.T) {
	var cfg types.Config
	_, ok := FromConfig(&cfg).(*StaticResolver)
	require.True(t, ok)

	cfg.PaymasterURL = "https://paymaster.example"
	cfg.CDPAPIKeyName = "key"
	cfg.CDPAPIKeySecret = "secret"
	_, ok = FromConfig(&cfg).(*HTTPResolver)
	require.True(t, ok)
}
