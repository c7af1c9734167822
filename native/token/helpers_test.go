package token

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"reflectledger/core/events"
	"reflectledger/integrations/amm"
	"reflectledger/integrations/asset"
)

var (
	ownerAddr    = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	contractAddr = common.HexToAddress("0x000000000000000000000000000000000000c0de")
	routerAddr   = common.HexToAddress("0x0000000000000000000000000000000000007e70")
	nativeID     = common.HexToAddress("0x000000000000000000000000000000000000ee01")
	usdtID       = common.HexToAddress("0x000000000000000000000000000000000000ee02")
	holderAddr   = common.HexToAddress("0x000000000000000000000000000000000000d1d1")
	alice        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob          = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	carol        = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	lpAddr       = common.HexToAddress("0x00000000000000000000000000000000000001f0")
	genesisTime  = time.Unix(1_700_000_000, 0).UTC()
)

func whole(n int64) *big.Int { return Units(n, DefaultDecimals) }

type harness struct {
	t        *testing.T
	ctx      context.Context
	engine   *Engine
	router   *amm.Router
	native   *asset.Ledger
	usdt     *asset.Ledger
	recorder *events.Recorder
	now      time.Time
	pair     common.Address
}

func testParams(mutate func(*Params)) Params {
	params := DefaultParams(ownerAddr, contractAddr)
	params.Router = routerAddr
	params.Native = nativeID
	params.DividendAsset = usdtID
	params.DividendHolder = holderAddr
	if mutate != nil {
		mutate(&params)
	}
	return params
}

// newBareEngine returns an engine without an AMM: fees accumulate and never
// swap.
func newBareEngine(t *testing.T, mutate func(*Params)) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		ctx:      context.Background(),
		usdt:     asset.NewLedger("USDT"),
		native:   asset.NewLedger("NATIVE"),
		recorder: &events.Recorder{},
		now:      genesisTime,
	}
	e, err := NewEngine(testParams(mutate), nil, h.usdt)
	require.NoError(t, err)
	e.SetEmitter(h.recorder)
	e.SetNowFunc(func() time.Time { return h.now })
	h.engine = e
	return h
}

// newMarket wires the engine to a simulated AMM with a token/native pool
// seeded at 1,000 native to 10,000,000,000,000 tokens and a native/USDT pool
// used for dividend swaps.
func newMarket(t *testing.T, mutate func(*Params)) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		ctx:      context.Background(),
		usdt:     asset.NewLedger("USDT"),
		native:   asset.NewLedger("NATIVE"),
		recorder: &events.Recorder{},
		now:      genesisTime,
	}
	h.router = amm.NewRouter(routerAddr, contractAddr, nativeID)
	h.router.SetNowFunc(func() time.Time { return h.now })
	e, err := NewEngine(testParams(mutate), h.router, h.usdt)
	require.NoError(t, err)
	e.SetEmitter(h.recorder)
	e.SetNowFunc(func() time.Time { return h.now })
	h.engine = e

	h.router.RegisterAsset(contractAddr, amm.TokenAsset(e))
	h.router.RegisterAsset(nativeID, amm.LedgerAsset(h.native))
	h.router.RegisterAsset(usdtID, amm.LedgerAsset(h.usdt))

	pair, err := h.router.CreatePair(contractAddr, nativeID)
	require.NoError(t, err)
	h.pair = pair
	require.NoError(t, e.SetAutomatedMarketMakerPair(ownerAddr, pair, true))

	require.NoError(t, h.native.Mint(ownerAddr, whole(1_000)))
	require.NoError(t, e.Approve(ownerAddr, routerAddr, MaxAllowance))
	_, err = h.router.AddLiquidity(h.ctx, ownerAddr, whole(10_000_000_000_000), whole(1_000), ownerAddr, time.Time{})
	require.NoError(t, err)

	_, err = h.router.CreatePair(nativeID, usdtID)
	require.NoError(t, err)
	require.NoError(t, h.native.Mint(lpAddr, whole(1_000)))
	require.NoError(t, h.usdt.Mint(lpAddr, whole(1_000_000)))
	_, err = h.router.AddLiquidityPair(h.ctx, lpAddr, nativeID, usdtID, whole(1_000), whole(1_000_000), lpAddr, time.Time{})
	require.NoError(t, err)

	h.recorder.Reset()
	return h
}

func (h *harness) fund(to common.Address, amount *big.Int) {
	h.t.Helper()
	require.NoError(h.t, h.engine.Transfer(h.ctx, ownerAddr, to, amount))
}

func (h *harness) buy(buyer common.Address, nativeIn *big.Int) {
	h.t.Helper()
	require.NoError(h.t, h.native.Mint(buyer, nativeIn))
	_, err := h.router.SwapExactInputForOutput(h.ctx, buyer, nativeIn, []common.Address{nativeID, contractAddr}, buyer, h.now.Add(time.Minute))
	require.NoError(h.t, err)
}

func (h *harness) sell(seller common.Address, tokens *big.Int) error {
	h.t.Helper()
	require.NoError(h.t, h.engine.Approve(seller, routerAddr, MaxAllowance))
	_, err := h.router.SwapExactInputForOutput(h.ctx, seller, tokens, []common.Address{contractAddr, nativeID}, seller, h.now.Add(time.Minute))
	return err
}

// taxed returns the net amount of a transfer taxed at the default rates.
func taxed(gross *big.Int) *big.Int {
	net := new(big.Int).Set(gross)
	for _, bps := range []int64{200, 100, 100, 100, 100, 100} {
		fee := new(big.Int).Mul(gross, big.NewInt(bps))
		net.Sub(net, fee.Quo(fee, big.NewInt(10_000)))
	}
	return net
}

func requireBig(t *testing.T, want, got *big.Int, msgAndArgs ...interface{}) {
	t.Helper()
	require.Equal(t, want.String(), got.String(), msgAndArgs...)
}

// requireWithin checks want-slack <= got <= want. Dividend shares are
// floor-divided, so payouts may fall a few base units short.
func requireWithin(t *testing.T, want, got *big.Int, slack int64) {
	t.Helper()
	low := new(big.Int).Sub(want, big.NewInt(slack))
	if got.Cmp(low) < 0 || got.Cmp(want) > 0 {
		t.Fatalf("got %s, want within [%s, %s]", got, low, want)
	}
}
