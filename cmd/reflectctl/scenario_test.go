package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reflectledger/config"
	"reflectledger/core/events"
	"reflectledger/integrations/indexer"
)

const walletScenario = `
start: "2024-01-01T00:00:00Z"
steps:
  - {action: transfer, from: owner, to: alice, amount: "1000"}
  - {action: transfer, from: alice, to: bob, amount: "1", expectError: "trading locked"}
  - {action: completePresale}
  - {action: transfer, from: alice, to: bob, amount: "100"}
  - {action: approve, account: alice, spender: carol, amount: "50"}
  - {action: transferFrom, spender: carol, from: alice, to: dave, amount: "20"}
  - {action: advance, duration: "1h"}
  - {action: expectBalance, account: alice, amount: "880"}
  - {action: expectBalance, account: bob, amount: "100"}
  - {action: expectBalance, account: dave, amount: "20"}
  - {action: expectBalance, account: bob, amount: "1", expectError: "balance of"}
`

const marketScenario = `
start: "2024-01-01T00:00:00Z"
market:
  tokens: "10000000000000"
  native: "1000"
  dividendNative: "1000"
  dividendAsset: "1000000"
steps:
  - {action: completePresale}
  - {action: buy, account: trader, native: "60"}
  - {action: sell, account: trader, amount: "500000000000"}
  - {action: process, iterations: 10}
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "reflect.toml"))
	require.NoError(t, err)
	cfg.DataDir = filepath.Join(dir, "data")
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseScenarioValidation(t *testing.T) {
	_, err := ParseScenario([]byte("steps: []"))
	require.ErrorContains(t, err, "no steps")

	_, err = ParseScenario([]byte("steps:\n  - {action: teleport}"))
	require.ErrorContains(t, err, "unknown action")

	_, err = ParseScenario([]byte("steps: [unterminated"))
	require.Error(t, err)

	sc, err := ParseScenario([]byte(walletScenario))
	require.NoError(t, err)
	require.Len(t, sc.Steps, 11)
	start, err := sc.startTime()
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), start)
}

func TestScenarioRunStopsOnUnexpectedError(t *testing.T) {
	cfg := testConfig(t)
	w, err := newWorld(cfg, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	sc, err := ParseScenario([]byte(`
steps:
  - {action: transfer, from: owner, to: alice, amount: "10"}
  - {action: transfer, from: alice, to: bob, amount: "1"}
  - {action: completePresale}
`))
	require.NoError(t, err)
	outcomes, err := sc.Run(context.Background(), w, quietLogger())
	require.ErrorContains(t, err, "step 1")
	require.Len(t, outcomes, 2)
	require.False(t, w.engine.PresaleCompleted())
}

func TestScenarioRejectsMissingExpectedError(t *testing.T) {
	cfg := testConfig(t)
	w, err := newWorld(cfg, time.Now())
	require.NoError(t, err)

	sc, err := ParseScenario([]byte(`
steps:
  - {action: completePresale, expectError: "presale"}
`))
	require.NoError(t, err)
	_, err = sc.Run(context.Background(), w, quietLogger())
	require.ErrorContains(t, err, "expected error")
}

func TestResolveLabels(t *testing.T) {
	cfg := testConfig(t)
	w, err := newWorld(cfg, time.Now())
	require.NoError(t, err)

	owner, err := w.resolve("OWNER")
	require.NoError(t, err)
	require.Equal(t, w.params.Owner, owner)

	alice, err := w.resolve("alice")
	require.NoError(t, err)
	again, err := w.resolve(" Alice ")
	require.NoError(t, err)
	require.Equal(t, alice, again)
	require.Equal(t, config.DeriveAccount(w.params.Contract, "account/alice"), alice)

	_, err = w.resolve("pair")
	require.ErrorContains(t, err, "market not seeded")
	_, err = w.resolve("")
	require.Error(t, err)
}

func TestSimulatePersistsSnapshotAndEvents(t *testing.T) {
	cfg := testConfig(t)
	sc, err := ParseScenario([]byte(walletScenario))
	require.NoError(t, err)
	ctx := context.Background()

	w, err := simulate(ctx, cfg, sc, false, quietLogger())
	require.NoError(t, err)
	alice, err := w.resolve("alice")
	require.NoError(t, err)

	store, closeStore, err := openStore(cfg)
	require.NoError(t, err)
	engine, ok, err := loadEngine(cfg, store)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, engine.PresaleCompleted())
	require.Zero(t, w.engine.BalanceOf(alice).Cmp(engine.BalanceOf(alice)))
	require.Zero(t, w.engine.TotalSupply().Cmp(engine.TotalSupply()))
	report, err := buildReport(engine, alice.Hex())
	require.NoError(t, err)
	require.Equal(t, "880", report.Account.Balance)
	closeStore()

	ix, err := indexer.Open(cfg.EventsDSN())
	require.NoError(t, err)
	transfers, err := ix.Count(ctx, indexer.Filter{Type: events.TypeTransfer})
	require.NoError(t, err)
	require.EqualValues(t, 3, transfers)
	fromAlice, err := ix.Query(ctx, indexer.Filter{Account: alice})
	require.NoError(t, err)
	require.NotEmpty(t, fromAlice)
	require.NoError(t, ix.Close())

	_, err = simulate(ctx, cfg, sc, false, quietLogger())
	require.ErrorContains(t, err, "already exists")
	_, err = simulate(ctx, cfg, sc, true, quietLogger())
	require.NoError(t, err)
}

func TestSimulateMarketScenario(t *testing.T) {
	cfg := testConfig(t)
	sc, err := ParseScenario([]byte(marketScenario))
	require.NoError(t, err)
	ctx := context.Background()

	w, err := simulate(ctx, cfg, sc, false, quietLogger())
	require.NoError(t, err)
	trader, err := w.resolve("trader")
	require.NoError(t, err)
	require.Positive(t, w.engine.BalanceOf(trader).Sign())
	require.Positive(t, w.native.BalanceOf(trader).Sign())

	ix, err := indexer.Open(cfg.EventsDSN())
	require.NoError(t, err)
	defer ix.Close()
	swaps, err := ix.Count(ctx, indexer.Filter{Type: events.TypeSwapAndLiquify})
	require.NoError(t, err)
	failed, err := ix.Count(ctx, indexer.Filter{Type: events.TypeSwapFailed})
	require.NoError(t, err)
	require.Positive(t, swaps+failed)
}
