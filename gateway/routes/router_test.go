package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"reflectledger/core/events"
	"reflectledger/crypto"
	"reflectledger/gateway/middleware"
	"reflectledger/integrations/asset"
	"reflectledger/integrations/indexer"
	"reflectledger/native/token"
)

var (
	owner    = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	contract = common.HexToAddress("0x000000000000000000000000000000000000c0de")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

const adminSecret = "gateway-test-secret"

type fixture struct {
	handler http.Handler
	host    *token.Host
	commits int
}

func newFixture(t *testing.T, withIndexer bool) *fixture {
	t.Helper()
	params := token.DefaultParams(owner, contract)
	engine, err := token.NewEngine(params, nil, asset.NewLedger("USDT"))
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0).UTC()
	engine.SetNowFunc(func() time.Time { return now })

	var ix *indexer.Indexer
	if withIndexer {
		ix, err = indexer.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
		require.NoError(t, err)
		t.Cleanup(func() { _ = ix.Close() })
		engine.SetEmitter(ix)
	}

	ctx := context.Background()
	require.NoError(t, engine.CompletePresale(owner))
	require.NoError(t, engine.Transfer(ctx, owner, alice, token.Units(1_000, token.DefaultDecimals)))
	require.NoError(t, engine.Approve(alice, bob, token.Units(25, token.DefaultDecimals)))

	f := &fixture{host: token.NewHost(engine)}
	f.handler, err = New(Config{
		Host:          f.host,
		Indexer:       ix,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{HMACSecret: adminSecret}, nil),
		OnCommit: func(*token.Engine) error {
			f.commits++
			return nil
		},
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)
	return res
}

func decode[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, false)
	res := f.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "ok", res.Body.String())

	f.do(t, http.MethodGet, "/v1/token", "", "")
	res = f.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "reflect_gateway_requests_total")
}

func TestTokenEndpoint(t *testing.T) {
	f := newFixture(t, false)
	res := f.do(t, http.MethodGet, "/v1/token", "", "")
	require.Equal(t, http.StatusOK, res.Code)
	out := decode[tokenResponse](t, res)
	require.Equal(t, token.DefaultSymbol, out.Symbol)
	require.Equal(t, crypto.FromCommon(owner).String(), out.Owner)
	require.True(t, out.PresaleCompleted)
	require.Equal(t, uint32(200), out.FeesBps["dividend"])
	require.Equal(t, token.Units(1_000_000_000_000_000, 18).String(), out.TotalSupply)
	require.Equal(t, "0", out.PendingSwap)
}

func TestAccountEndpoints(t *testing.T) {
	f := newFixture(t, false)
	aliceBech := crypto.FromCommon(alice).String()

	res := f.do(t, http.MethodGet, "/v1/accounts/"+aliceBech, "", "")
	require.Equal(t, http.StatusOK, res.Code)
	account := decode[accountResponse](t, res)
	require.Equal(t, aliceBech, account.Address)
	require.Equal(t, alice.Hex(), account.Hex)
	require.Equal(t, token.Units(1_000, 18).String(), account.Balance)
	require.False(t, account.ExcludedFromFee)
	require.Nil(t, account.Vesting)

	res = f.do(t, http.MethodGet, "/v1/accounts/"+alice.Hex()+"/allowances/"+bob.Hex(), "", "")
	require.Equal(t, http.StatusOK, res.Code)
	allowance := decode[allowanceResponse](t, res)
	require.Equal(t, token.Units(25, 18).String(), allowance.Amount)

	res = f.do(t, http.MethodGet, "/v1/accounts/not-an-address", "", "")
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.NotEmpty(t, decode[errorResponse](t, res).Error)
}

func TestDividendsEndpoint(t *testing.T) {
	f := newFixture(t, false)
	res := f.do(t, http.MethodGet, "/v1/dividends", "", "")
	require.Equal(t, http.StatusOK, res.Code)
	out := decode[dividendsResponse](t, res)
	require.Equal(t, "0", out.TotalDistributed)
	require.Equal(t, int64(3600), out.ClaimWaitSeconds)
	require.GreaterOrEqual(t, out.Holders, 2)
}

func TestEventsEndpoint(t *testing.T) {
	f := newFixture(t, true)
	path := "/v1/events?type=" + events.TypeTransfer + "&account=" + crypto.FromCommon(alice).String()
	res := f.do(t, http.MethodGet, path, "", "")
	require.Equal(t, http.StatusOK, res.Code)
	out := decode[[]eventResponse](t, res)
	require.Len(t, out, 1)
	require.Equal(t, crypto.FromCommon(alice).String(), out[0].Attributes["to"])

	require.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/v1/events?limit=-1", "", "").Code)
	require.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/v1/events?after=x", "", "").Code)

	withoutIndexer := newFixture(t, false)
	require.Equal(t, http.StatusNotFound, withoutIndexer.do(t, http.MethodGet, "/v1/events", "", "").Code)
}

func TestAdminRoutes(t *testing.T) {
	f := newFixture(t, false)
	require.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPut, "/v1/admin/half-tax", `{"enabled":true}`, "").Code)

	bearer, err := middleware.IssueToken(middleware.AuthConfig{HMACSecret: adminSecret}, "operator", []string{middleware.ScopeAdmin}, time.Minute)
	require.NoError(t, err)

	res := f.do(t, http.MethodPut, "/v1/admin/half-tax", `{"enabled":true}`, bearer)
	require.Equal(t, http.StatusOK, res.Code)
	require.True(t, decode[halfTaxResponse](t, res).HalfTax)
	require.Equal(t, 1, f.commits)
	_ = f.host.View(func(e *token.Engine) error {
		require.Equal(t, uint32(100), e.TaxDividend())
		return nil
	})

	require.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/v1/admin/half-tax", `{}`, bearer).Code)
	require.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/v1/admin/half-tax", `{"enabled":true,"extra":1}`, bearer).Code)

	res = f.do(t, http.MethodPost, "/v1/admin/dividends/process", `{"iterations":5}`, bearer)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, 2, f.commits)

	res = f.do(t, http.MethodPost, "/v1/admin/swap", "", bearer)
	require.Equal(t, http.StatusInternalServerError, res.Code)
	require.Equal(t, 2, f.commits)
}
