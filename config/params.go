package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"reflectledger/crypto"
	nativecommon "reflectledger/native/common"
	"reflectledger/native/fees"
	"reflectledger/native/restrictions"
	"reflectledger/native/token"
)

// EngineParams converts the token and fee sections into genesis parameters.
// Unset collaborator accounts are derived from the contract address so the
// same configuration always yields the same ledger.
func (c *Config) EngineParams() (token.Params, error) {
	tc := c.Token
	owner, err := crypto.ParseAccount(tc.Owner)
	if err != nil {
		return token.Params{}, fmt.Errorf("config: token.Owner: %w", err)
	}
	contract, err := crypto.ParseAccount(tc.Contract)
	if err != nil {
		return token.Params{}, fmt.Errorf("config: token.Contract: %w", err)
	}

	params := token.DefaultParams(owner, contract)
	params.Name = tc.Name
	params.Symbol = tc.Symbol
	params.Decimals = tc.Decimals

	if params.TotalSupply, err = ParseAmount(tc.TotalSupply, tc.Decimals); err != nil {
		return token.Params{}, fmt.Errorf("config: token.TotalSupply: %w", err)
	}
	if params.SwapThreshold, err = ParseAmount(tc.SwapThreshold, tc.Decimals); err != nil {
		return token.Params{}, fmt.Errorf("config: token.SwapThreshold: %w", err)
	}
	if params.MaxWallet, err = ParseAmount(tc.MaxWallet, tc.Decimals); err != nil {
		return token.Params{}, fmt.Errorf("config: token.MaxWallet: %w", err)
	}

	derived := map[string]*common.Address{
		"DividendHolder":     &params.DividendHolder,
		"Router":             &params.Router,
		"Native":             &params.Native,
		"DividendAsset":      &params.DividendAsset,
		"LiquidityRecipient": &params.LiquidityRecipient,
	}
	raw := map[string]string{
		"DividendHolder":     tc.DividendHolder,
		"Router":             tc.Router,
		"Native":             tc.Native,
		"DividendAsset":      tc.DividendAsset,
		"LiquidityRecipient": tc.LiquidityRecipient,
	}
	for field, dst := range derived {
		value := strings.TrimSpace(raw[field])
		if value == "" {
			if field == "LiquidityRecipient" {
				*dst = owner
			} else {
				*dst = DeriveAccount(contract, field)
			}
			continue
		}
		addr, err := crypto.ParseAccount(value)
		if err != nil {
			return token.Params{}, fmt.Errorf("config: token.%s: %w", field, err)
		}
		*dst = addr
	}

	params.PrivateSaleWallets = make([]common.Address, 0, len(tc.PrivateSaleWallets))
	for i, rawWallet := range tc.PrivateSaleWallets {
		addr, err := crypto.ParseAccount(rawWallet)
		if err != nil {
			return token.Params{}, fmt.Errorf("config: token.PrivateSaleWallets[%d]: %w", i, err)
		}
		params.PrivateSaleWallets = append(params.PrivateSaleWallets, addr)
	}

	params.ClaimWait = time.Duration(tc.ClaimWaitSeconds) * time.Second
	params.SweepIterations = tc.SweepIterations
	params.SwapDeadline = time.Duration(tc.SwapDeadlineSeconds) * time.Second
	params.AutoSwap = tc.AutoSwap
	params.AutoDividendProcessing = tc.AutoDividendProcessing
	params.TaxWalletTransfers = tc.TaxWalletTransfers

	params.Rates = c.Fees.Rates.rates()
	params.Minimums = c.Fees.Minimums.rates()
	params.CapBps = c.Fees.CapBps
	params.Treasury = make(map[fees.Component]common.Address, len(c.Fees.Treasury))
	params.Payouts = make(map[fees.Component]fees.PayoutMode, len(c.Fees.Treasury))
	for i, entry := range c.Fees.Treasury {
		component, err := fees.ParseComponent(entry.Component)
		if err != nil {
			return token.Params{}, fmt.Errorf("config: fees.treasury[%d]: %w", i, err)
		}
		wallet, err := crypto.ParseAccount(entry.Wallet)
		if err != nil {
			return token.Params{}, fmt.Errorf("config: fees.treasury[%d].Wallet: %w", i, err)
		}
		params.Treasury[component] = wallet
		params.Payouts[component] = fees.PayoutMode(strings.ToLower(strings.TrimSpace(entry.Payout)))
	}

	if params.Vesting, err = c.schedule(); err != nil {
		return token.Params{}, err
	}
	if err := params.Validate(); err != nil {
		return token.Params{}, err
	}
	return params, nil
}

func (c *Config) schedule() ([]restrictions.Step, error) {
	steps := make([]restrictions.Step, 0, len(c.Vesting))
	for i, step := range c.Vesting {
		after, err := time.ParseDuration(strings.TrimSpace(step.After))
		if err != nil {
			return nil, fmt.Errorf("config: vesting[%d].After: %w", i, err)
		}
		steps = append(steps, restrictions.Step{After: after, Bps: step.Bps})
	}
	return steps, nil
}

// PauseView returns the configured module pause list.
func (c *Config) PauseView() nativecommon.StaticPauses {
	return nativecommon.NewStaticPauses(c.Pauses)
}

// DeriveAccount returns the protocol account labelled role under contract.
func DeriveAccount(contract common.Address, role string) common.Address {
	return crypto.DeriveAddress(contract.Bytes(), []byte(strings.ToLower(role)))
}

// ParseAmount scales a whole-token decimal string such as "1.5" by decimals.
// Empty input is zero.
func ParseAmount(raw string, decimals uint8) (*big.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(raw), "_", "")
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	whole, frac, _ := strings.Cut(trimmed, ".")
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("amount %q has more than %d decimals", raw, decimals)
	}
	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	amount, ok := new(big.Int).SetString(digits, 10)
	if !ok || amount.Sign() < 0 || strings.ContainsAny(whole+frac, "+-") {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

// FormatAmount renders base units as a whole-token decimal string.
func FormatAmount(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(amount, scale, new(big.Int))
	if frac.Sign() == 0 {
		return whole.String()
	}
	fracStr := fmt.Sprintf("%0*s", int(decimals), frac.String())
	return whole.String() + "." + strings.TrimRight(fracStr, "0")
}
