package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"reflectledger/config"
	"reflectledger/core/state"
	"reflectledger/crypto"
	"reflectledger/integrations/amm"
	"reflectledger/integrations/asset"
	"reflectledger/native/token"
	"reflectledger/storage"
)

// world is a ledger wired to a simulated AMM and in-memory native and
// dividend assets. The router and the engine share one clock.
type world struct {
	cfg      *config.Config
	params   token.Params
	engine   *token.Engine
	router   *amm.Router
	native   *asset.Ledger
	dividend *asset.Ledger
	now      time.Time
	pair     common.Address
	labels   map[string]common.Address
}

func newWorld(cfg *config.Config, start time.Time) (*world, error) {
	params, err := cfg.EngineParams()
	if err != nil {
		return nil, err
	}
	w := &world{
		cfg:      cfg,
		params:   params,
		native:   asset.NewLedger("NATIVE"),
		dividend: asset.NewLedger("DIVIDEND"),
		now:      start.UTC(),
		labels:   make(map[string]common.Address),
	}
	w.router = amm.NewRouter(params.Router, params.Contract, params.Native)
	w.router.SetNowFunc(w.clock)

	engine, err := token.NewEngine(params, w.router, w.dividend)
	if err != nil {
		return nil, err
	}
	engine.SetNowFunc(w.clock)
	engine.SetPauses(cfg.PauseView())
	w.engine = engine

	w.router.RegisterAsset(params.Contract, amm.TokenAsset(engine))
	w.router.RegisterAsset(params.Native, amm.LedgerAsset(w.native))
	w.router.RegisterAsset(params.DividendAsset, amm.LedgerAsset(w.dividend))
	return w, nil
}

func (w *world) clock() time.Time { return w.now }

// resolve maps a scenario label to an account. Unknown labels derive a
// stable address from the contract.
func (w *world) resolve(label string) (common.Address, error) {
	key := strings.ToLower(strings.TrimSpace(label))
	switch key {
	case "":
		return common.Address{}, fmt.Errorf("account label required")
	case "owner":
		return w.params.Owner, nil
	case "contract":
		return w.params.Contract, nil
	case "router":
		return w.params.Router, nil
	case "pair":
		if w.pair == (common.Address{}) {
			return common.Address{}, fmt.Errorf("market not seeded")
		}
		return w.pair, nil
	case "dead":
		return token.DeadAddress, nil
	}
	if addr, ok := w.labels[key]; ok {
		return addr, nil
	}
	if addr, err := crypto.ParseAccount(label); err == nil {
		return addr, nil
	}
	addr := config.DeriveAccount(w.params.Contract, "account/"+key)
	w.labels[key] = addr
	return addr, nil
}

func (w *world) amount(raw string) (*big.Int, error) {
	return config.ParseAmount(raw, w.params.Decimals)
}

// seedMarket opens the token/native pool from the owner's balance and a
// native/dividend pool from a separate provider account.
func (w *world) seedMarket(ctx context.Context, spec MarketSpec) error {
	tokens, err := w.amount(spec.Tokens)
	if err != nil {
		return fmt.Errorf("market.tokens: %w", err)
	}
	nativeAmount, err := w.amount(spec.Native)
	if err != nil {
		return fmt.Errorf("market.native: %w", err)
	}
	owner := w.params.Owner

	pair, err := w.router.CreatePair(w.params.Contract, w.params.Native)
	if err != nil {
		return err
	}
	w.pair = pair
	if err := w.engine.SetAutomatedMarketMakerPair(owner, pair, true); err != nil {
		return err
	}
	if err := w.native.Mint(owner, nativeAmount); err != nil {
		return err
	}
	if err := w.engine.Approve(owner, w.params.Router, token.MaxAllowance); err != nil {
		return err
	}
	if _, err := w.router.AddLiquidity(ctx, owner, tokens, nativeAmount, w.params.LiquidityRecipient, time.Time{}); err != nil {
		return fmt.Errorf("seed token pool: %w", err)
	}

	if strings.TrimSpace(spec.DividendNative) == "" {
		return nil
	}
	divNative, err := w.amount(spec.DividendNative)
	if err != nil {
		return fmt.Errorf("market.dividendNative: %w", err)
	}
	divAsset, err := w.amount(spec.DividendAsset)
	if err != nil {
		return fmt.Errorf("market.dividendAsset: %w", err)
	}
	provider, err := w.resolve("liquidity-provider")
	if err != nil {
		return err
	}
	if _, err := w.router.CreatePair(w.params.Native, w.params.DividendAsset); err != nil {
		return err
	}
	if err := w.native.Mint(provider, divNative); err != nil {
		return err
	}
	if err := w.dividend.Mint(provider, divAsset); err != nil {
		return err
	}
	if _, err := w.router.AddLiquidityPair(ctx, provider, w.params.Native, w.params.DividendAsset, divNative, divAsset, provider, time.Time{}); err != nil {
		return fmt.Errorf("seed dividend pool: %w", err)
	}
	return nil
}

// openStore opens the LevelDB snapshot store under the data directory.
func openStore(cfg *config.Config) (*state.Store, func(), error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, nil, err
	}
	db, err := storage.NewLevelDB(cfg.SnapshotPath())
	if err != nil {
		return nil, nil, fmt.Errorf("open snapshot store: %w", err)
	}
	return state.NewStore(db), db.Close, nil
}

// loadEngine builds an engine from the configuration and restores the
// persisted snapshot when one exists. The engine has no router attached.
func loadEngine(cfg *config.Config, store *state.Store) (*token.Engine, bool, error) {
	params, err := cfg.EngineParams()
	if err != nil {
		return nil, false, err
	}
	engine, err := token.NewEngine(params, nil, asset.NewLedger("DIVIDEND"))
	if err != nil {
		return nil, false, err
	}
	engine.SetPauses(cfg.PauseView())
	snap, ok, err := token.LoadSnapshot(store)
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot: %w", err)
	}
	if ok {
		if err := engine.Restore(snap); err != nil {
			return nil, false, err
		}
	}
	return engine, ok, nil
}
