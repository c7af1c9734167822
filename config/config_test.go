package config

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"reflectledger/crypto"
	nativecommon "reflectledger/native/common"
	"reflectledger/native/fees"
	"reflectledger/native/token"
)

const (
	testOwner    = "0x00000000000000000000000000000000000000a1"
	testContract = "0x00000000000000000000000000000000000000c0"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reflect.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "reflect.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)

	owner, err := crypto.ParseAccount(cfg.Token.Owner)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(cfg.Token.Owner, string(crypto.LedgerPrefix)+"1"))

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Token.Owner, reloaded.Token.Owner)
	require.Equal(t, cfg.Vesting, reloaded.Vesting)

	params, err := reloaded.EngineParams()
	require.NoError(t, err)
	require.Equal(t, owner, params.Owner)
	require.Equal(t, owner, params.Treasury[fees.ComponentDonation])
	require.Equal(t, token.Units(1_000_000_000_000_000, 18), params.TotalSupply)
	require.Equal(t, token.Units(10_000_000_000, 18), params.SwapThreshold)
	require.Equal(t, fees.DefaultRates(), params.Rates)
	require.Len(t, params.Vesting, 4)
	require.Equal(t, 14*24*time.Hour, params.Vesting[1].After)
}

func TestLoadParsesSections(t *testing.T) {
	path := writeConfig(t, `DataDir = "/var/lib/reflect"
ListenAddress = "127.0.0.1:9000"
Pauses = [" Token.Swap "]

[token]
Name = "Test Token"
Symbol = "TT"
Decimals = 6
TotalSupply = "1000000"
Owner = "`+testOwner+`"
Contract = "`+testContract+`"
SwapThreshold = "2.5"
MaxWallet = "0"
PrivateSaleWallets = ["0x00000000000000000000000000000000000000b1"]
ClaimWaitSeconds = 7200
SweepIterations = 4
SwapDeadlineSeconds = 60
AutoSwap = false
AutoDividendProcessing = true
TaxWalletTransfers = true

[fees]
CapBps = 1000

[fees.rates]
Dividend = 400
Burn = 50
Marketing = 100
Donation = 150
Development = 100
Liquidity = 100

[fees.minimums]
Donation = 150

[[fees.treasury]]
Component = "marketing"
Wallet = "0x00000000000000000000000000000000000000d1"
Payout = "Token"

[[vesting]]
After = "0s"
Bps = 5000

[[vesting]]
After = "72h"
Bps = 10000

[logging]
Level = "debug"

[webhook]
URL = "https://hooks.example.com/reflect"
Secret = "s3cr3t"
Types = ["token.transfer"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/var/lib/reflect", "snapshot"), cfg.SnapshotPath())
	require.Equal(t, filepath.Join("/var/lib/reflect", "events.db"), cfg.EventsDSN())
	require.True(t, cfg.PauseView().IsPaused(nativecommon.ModuleSwap))
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, []string{"token.transfer"}, cfg.Webhook.Types)

	params, err := cfg.EngineParams()
	require.NoError(t, err)
	require.Equal(t, uint8(6), params.Decimals)
	require.Equal(t, big.NewInt(1_000_000_000_000), params.TotalSupply)
	require.Equal(t, big.NewInt(2_500_000), params.SwapThreshold)
	require.Zero(t, params.MaxWallet.Sign())
	require.Equal(t, 2*time.Hour, params.ClaimWait)
	require.Equal(t, time.Minute, params.SwapDeadline)
	require.False(t, params.AutoSwap)
	require.True(t, params.TaxWalletTransfers)
	require.Equal(t, uint32(400), params.Rates.Dividend)
	require.Equal(t, uint32(1000), params.CapBps)
	require.Equal(t, fees.PayoutToken, params.Payouts[fees.ComponentMarketing])
	require.Equal(t, common.HexToAddress("0xd1"), params.Treasury[fees.ComponentMarketing])
	require.Equal(t, []common.Address{common.HexToAddress("0xb1")}, params.PrivateSaleWallets)
	require.Len(t, params.Vesting, 2)
	require.Equal(t, 72*time.Hour, params.Vesting[1].After)

	contract := common.HexToAddress(testContract)
	require.Equal(t, DeriveAccount(contract, "Router"), params.Router)
	require.Equal(t, DeriveAccount(contract, "DividendHolder"), params.DividendHolder)
	require.NotEqual(t, params.Router, params.Native)
	require.Equal(t, common.HexToAddress(testOwner), params.LiquidityRecipient)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `Owner = "`+testOwner+`"
[token]
Owner = "`+testOwner+`"
Contract = "`+testContract+`"
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "unknown keys")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Token.Owner = testOwner
		cfg.Token.Contract = testContract
		for i := range cfg.Fees.Treasury {
			cfg.Fees.Treasury[i].Wallet = testOwner
		}
		return cfg
	}
	require.NoError(t, base().Validate())

	cases := map[string]func(*Config){
		"missing owner":       func(c *Config) { c.Token.Owner = "" },
		"bad supply":          func(c *Config) { c.Token.TotalSupply = "lots" },
		"too many decimals":   func(c *Config) { c.Token.SwapThreshold = "0.0000000000000000001" },
		"rates above cap":     func(c *Config) { c.Fees.Rates.Burn = 301 },
		"donation below min":  func(c *Config) { c.Fees.Rates.Donation = 50 },
		"unknown component":   func(c *Config) { c.Fees.Treasury[0].Component = "charity" },
		"unknown payout":      func(c *Config) { c.Fees.Treasury[0].Payout = "cash" },
		"bad vesting":         func(c *Config) { c.Vesting[0].After = "soon" },
		"webhook scheme":      func(c *Config) { c.Webhook.URL = "ftp://example.com"; c.Webhook.Secret = "x" },
		"webhook secret":      func(c *Config) { c.Webhook.URL = "https://example.com" },
		"negative rate limit": func(c *Config) { c.Gateway.RateLimitPerSecond = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestParseAmount(t *testing.T) {
	got, err := ParseAmount("1_000.25", 4)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(10_002_500), got)

	got, err = ParseAmount("", 18)
	require.NoError(t, err)
	require.Zero(t, got.Sign())

	for _, raw := range []string{"-1", "1.2.3", "abc", "0.12345"} {
		_, err := ParseAmount(raw, 4)
		require.Error(t, err, raw)
	}

	require.Equal(t, "1000.25", FormatAmount(big.NewInt(10_002_500), 4))
	require.Equal(t, "3", FormatAmount(big.NewInt(30_000), 4))
	require.Equal(t, "0.0001", FormatAmount(big.NewInt(1), 4))
}
