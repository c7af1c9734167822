package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"reflectledger/native/fees"
	"reflectledger/native/token"
)

// Scenario is a scripted run against a fresh ledger and simulated market.
type Scenario struct {
	Start    string            `yaml:"start"`
	Accounts map[string]string `yaml:"accounts"`
	Market   *MarketSpec       `yaml:"market"`
	Steps    []Step            `yaml:"steps"`
}

// MarketSpec seeds the AMM pools. Amounts are whole units.
type MarketSpec struct {
	Tokens         string `yaml:"tokens"`
	Native         string `yaml:"native"`
	DividendNative string `yaml:"dividendNative"`
	DividendAsset  string `yaml:"dividendAsset"`
}

// Step is one scenario action. Only the fields the action reads are set.
type Step struct {
	Action      string `yaml:"action"`
	From        string `yaml:"from"`
	To          string `yaml:"to"`
	Account     string `yaml:"account"`
	Spender     string `yaml:"spender"`
	Amount      string `yaml:"amount"`
	Native      string `yaml:"native"`
	Duration    string `yaml:"duration"`
	Iterations  int    `yaml:"iterations"`
	Component   string `yaml:"component"`
	Bps         uint32 `yaml:"bps"`
	Enabled     *bool  `yaml:"enabled"`
	ExpectError string `yaml:"expectError"`
}

// LoadScenario reads a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(raw)
}

func ParseScenario(raw []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("scenario: no steps")
	}
	for i, step := range sc.Steps {
		if _, ok := stepActions[strings.ToLower(step.Action)]; !ok {
			return nil, fmt.Errorf("scenario: step %d: unknown action %q", i, step.Action)
		}
	}
	return &sc, nil
}

func (sc *Scenario) startTime() (time.Time, error) {
	if strings.TrimSpace(sc.Start) == "" {
		return time.Now().UTC().Truncate(time.Second), nil
	}
	return time.Parse(time.RFC3339, sc.Start)
}

// StepOutcome records what a step did.
type StepOutcome struct {
	Index  int
	Action string
	Err    error
}

type stepFunc func(ctx context.Context, w *world, s Step) error

var stepActions map[string]stepFunc

func init() {
	stepActions = map[string]stepFunc{
		"transfer":        runTransfer,
		"transferfrom":    runTransferFrom,
		"approve":         runApprove,
		"buy":             runBuy,
		"sell":            runSell,
		"advance":         runAdvance,
		"claim":           runClaim,
		"process":         runProcess,
		"swap":            runSwap,
		"completepresale": func(_ context.Context, w *world, _ Step) error { return w.engine.CompletePresale(w.params.Owner) },
		"vest":            func(_ context.Context, w *world, _ Step) error { return w.engine.VestPrivateSaleWallets(w.params.Owner) },
		"halftax":         runHalfTax,
		"autoswap":        runAutoSwap,
		"settax":          runSetTax,
		"exclude":         runExclude,
		"mintnative":      runMintNative,
		"expectbalance":   runExpectBalance,
	}
}

// Run executes the scenario. Steps failing without a matching ExpectError
// stop the run.
func (sc *Scenario) Run(ctx context.Context, w *world, logger *slog.Logger) ([]StepOutcome, error) {
	for label, raw := range sc.Accounts {
		addr, err := w.resolve(raw)
		if err != nil {
			return nil, fmt.Errorf("scenario: account %s: %w", label, err)
		}
		w.labels[strings.ToLower(label)] = addr
	}
	if sc.Market != nil {
		if err := w.seedMarket(ctx, *sc.Market); err != nil {
			return nil, fmt.Errorf("scenario: market: %w", err)
		}
	}

	outcomes := make([]StepOutcome, 0, len(sc.Steps))
	for i, step := range sc.Steps {
		action := strings.ToLower(step.Action)
		err := stepActions[action](ctx, w, step)
		outcome := StepOutcome{Index: i, Action: step.Action, Err: err}
		outcomes = append(outcomes, outcome)

		switch {
		case step.ExpectError != "" && err == nil:
			return outcomes, fmt.Errorf("scenario: step %d (%s): expected error containing %q", i, step.Action, step.ExpectError)
		case step.ExpectError != "" && !strings.Contains(err.Error(), step.ExpectError):
			return outcomes, fmt.Errorf("scenario: step %d (%s): %w", i, step.Action, err)
		case step.ExpectError == "" && err != nil:
			return outcomes, fmt.Errorf("scenario: step %d (%s): %w", i, step.Action, err)
		}
		logger.Debug("scenario step", slog.Int("step", i), slog.String("action", step.Action), slog.Bool("rejected", err != nil))
	}
	return outcomes, nil
}

func (w *world) accounts(labels ...string) ([]common.Address, error) {
	out := make([]common.Address, len(labels))
	for i, label := range labels {
		addr, err := w.resolve(label)
		if err != nil {
			return nil, err
		}
		out[i] = addr
	}
	return out, nil
}

func runTransfer(ctx context.Context, w *world, s Step) error {
	accts, err := w.accounts(s.From, s.To)
	if err != nil {
		return err
	}
	amount, err := w.amount(s.Amount)
	if err != nil {
		return err
	}
	return w.engine.Transfer(ctx, accts[0], accts[1], amount)
}

func runTransferFrom(ctx context.Context, w *world, s Step) error {
	accts, err := w.accounts(s.Spender, s.From, s.To)
	if err != nil {
		return err
	}
	amount, err := w.amount(s.Amount)
	if err != nil {
		return err
	}
	return w.engine.TransferFrom(ctx, accts[0], accts[1], accts[2], amount)
}

func runApprove(_ context.Context, w *world, s Step) error {
	accts, err := w.accounts(s.Account, s.Spender)
	if err != nil {
		return err
	}
	amount, err := w.amount(s.Amount)
	if err != nil {
		return err
	}
	return w.engine.Approve(accts[0], accts[1], amount)
}

func runBuy(ctx context.Context, w *world, s Step) error {
	buyer, err := w.resolve(s.Account)
	if err != nil {
		return err
	}
	nativeIn, err := w.amount(s.Native)
	if err != nil {
		return err
	}
	if err := w.native.Mint(buyer, nativeIn); err != nil {
		return err
	}
	path := []common.Address{w.params.Native, w.params.Contract}
	_, err = w.router.SwapExactInputForOutput(ctx, buyer, nativeIn, path, buyer, w.now.Add(time.Minute))
	return err
}

func runSell(ctx context.Context, w *world, s Step) error {
	seller, err := w.resolve(s.Account)
	if err != nil {
		return err
	}
	amount, err := w.amount(s.Amount)
	if err != nil {
		return err
	}
	if err := w.engine.Approve(seller, w.params.Router, token.MaxAllowance); err != nil {
		return err
	}
	path := []common.Address{w.params.Contract, w.params.Native}
	_, err = w.router.SwapExactInputForOutput(ctx, seller, amount, path, seller, w.now.Add(time.Minute))
	return err
}

func runAdvance(_ context.Context, w *world, s Step) error {
	d, err := time.ParseDuration(s.Duration)
	if err != nil {
		return err
	}
	if d < 0 {
		return fmt.Errorf("cannot move the clock backwards")
	}
	w.now = w.now.Add(d)
	return nil
}

func runClaim(ctx context.Context, w *world, s Step) error {
	account, err := w.resolve(s.Account)
	if err != nil {
		return err
	}
	_, err = w.engine.ClaimDividends(ctx, account)
	return err
}

func runProcess(ctx context.Context, w *world, s Step) error {
	_, err := w.engine.ProcessDividendTracker(ctx, s.Iterations)
	return err
}

func runSwap(ctx context.Context, w *world, _ Step) error {
	return w.engine.SwapAndLiquify(ctx, w.params.Owner)
}

func enabled(s Step) (bool, error) {
	if s.Enabled == nil {
		return false, fmt.Errorf("%s: enabled required", s.Action)
	}
	return *s.Enabled, nil
}

func runHalfTax(_ context.Context, w *world, s Step) error {
	on, err := enabled(s)
	if err != nil {
		return err
	}
	return w.engine.SwitchHalfTax(w.params.Owner, on)
}

func runAutoSwap(_ context.Context, w *world, s Step) error {
	on, err := enabled(s)
	if err != nil {
		return err
	}
	return w.engine.SwitchAutoSwap(w.params.Owner, on)
}

func runSetTax(_ context.Context, w *world, s Step) error {
	component, err := fees.ParseComponent(s.Component)
	if err != nil {
		return err
	}
	return w.engine.SetTax(w.params.Owner, component, s.Bps)
}

func runExclude(_ context.Context, w *world, s Step) error {
	account, err := w.resolve(s.Account)
	if err != nil {
		return err
	}
	on, err := enabled(s)
	if err != nil {
		return err
	}
	return w.engine.ExcludeAccountFromFeesAndDividends(w.params.Owner, account, on)
}

func runMintNative(_ context.Context, w *world, s Step) error {
	account, err := w.resolve(s.Account)
	if err != nil {
		return err
	}
	amount, err := w.amount(s.Amount)
	if err != nil {
		return err
	}
	return w.native.Mint(account, amount)
}

func runExpectBalance(_ context.Context, w *world, s Step) error {
	account, err := w.resolve(s.Account)
	if err != nil {
		return err
	}
	want, err := w.amount(s.Amount)
	if err != nil {
		return err
	}
	if got := w.engine.BalanceOf(account); got.Cmp(want) != 0 {
		return fmt.Errorf("balance of %s is %s, want %s", s.Account, got, want)
	}
	return nil
}
