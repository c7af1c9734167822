package config

import (
	"reflectledger/native/dividends"
	"reflectledger/native/fees"
	"reflectledger/native/restrictions"
	"reflectledger/native/token"
)

const defaultDataDir = "./reflect-data"

// TokenConfig holds genesis parameters. Amounts are whole-token decimal
// strings scaled by Decimals; addresses are hex or bech32.
type TokenConfig struct {
	Name               string   `toml:"Name"`
	Symbol             string   `toml:"Symbol"`
	Decimals           uint8    `toml:"Decimals"`
	TotalSupply        string   `toml:"TotalSupply"`
	Owner              string   `toml:"Owner"`
	Contract           string   `toml:"Contract"`
	DividendHolder     string   `toml:"DividendHolder,omitempty"`
	Router             string   `toml:"Router,omitempty"`
	Native             string   `toml:"Native,omitempty"`
	DividendAsset      string   `toml:"DividendAsset,omitempty"`
	LiquidityRecipient string   `toml:"LiquidityRecipient,omitempty"`
	SwapThreshold      string   `toml:"SwapThreshold"`
	MaxWallet          string   `toml:"MaxWallet"`
	PrivateSaleWallets []string `toml:"PrivateSaleWallets"`

	ClaimWaitSeconds       uint64 `toml:"ClaimWaitSeconds"`
	SweepIterations        int    `toml:"SweepIterations"`
	SwapDeadlineSeconds    uint64 `toml:"SwapDeadlineSeconds"`
	AutoSwap               bool   `toml:"AutoSwap"`
	AutoDividendProcessing bool   `toml:"AutoDividendProcessing"`
	TaxWalletTransfers     bool   `toml:"TaxWalletTransfers"`
}

// RatesConfig lists one rate per fee component in basis points.
type RatesConfig struct {
	Dividend    uint32 `toml:"Dividend"`
	Burn        uint32 `toml:"Burn"`
	Marketing   uint32 `toml:"Marketing"`
	Donation    uint32 `toml:"Donation"`
	Development uint32 `toml:"Development"`
	Liquidity   uint32 `toml:"Liquidity"`
}

func (r RatesConfig) rates() fees.Rates {
	return fees.Rates{
		Dividend:    r.Dividend,
		Burn:        r.Burn,
		Marketing:   r.Marketing,
		Donation:    r.Donation,
		Development: r.Development,
		Liquidity:   r.Liquidity,
	}
}

func ratesConfig(r fees.Rates) RatesConfig {
	return RatesConfig{
		Dividend:    r.Dividend,
		Burn:        r.Burn,
		Marketing:   r.Marketing,
		Donation:    r.Donation,
		Development: r.Development,
		Liquidity:   r.Liquidity,
	}
}

// TreasuryConfig binds a treasury component to its wallet and payout mode.
type TreasuryConfig struct {
	Component string `toml:"Component"`
	Wallet    string `toml:"Wallet"`
	Payout    string `toml:"Payout"`
}

type FeesConfig struct {
	CapBps   uint32           `toml:"CapBps"`
	Rates    RatesConfig      `toml:"rates"`
	Minimums RatesConfig      `toml:"minimums"`
	Treasury []TreasuryConfig `toml:"treasury"`
}

// VestingStep unlocks Bps of a private-sale grant After the vesting start.
// After is a Go duration string such as "336h".
type VestingStep struct {
	After string `toml:"After"`
	Bps   uint32 `toml:"Bps"`
}

type LoggingConfig struct {
	Env   string `toml:"Env"`
	Level string `toml:"Level"`
	File  string `toml:"File,omitempty"`
}

type TelemetryConfig struct {
	Endpoint string `toml:"Endpoint,omitempty"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers,omitempty"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
}

// GatewayConfig throttles the read API per client address and signs admin
// tokens. Admin routes stay closed while AdminSecret is empty.
type GatewayConfig struct {
	RateLimitPerSecond float64  `toml:"RateLimitPerSecond"`
	Burst              int      `toml:"Burst"`
	LogRequests        bool     `toml:"LogRequests"`
	AllowedOrigins     []string `toml:"AllowedOrigins,omitempty"`
	AdminSecret        string   `toml:"AdminSecret,omitempty"`
	Issuer             string   `toml:"Issuer,omitempty"`
	Audience           string   `toml:"Audience,omitempty"`
}

// WebhookConfig enables event delivery to an external endpoint when URL is set.
type WebhookConfig struct {
	URL    string   `toml:"URL,omitempty"`
	Secret string   `toml:"Secret,omitempty"`
	Types  []string `toml:"Types,omitempty"`
}

// Default returns the launch configuration without any accounts filled in.
func Default() *Config {
	schedule := restrictions.DefaultSchedule()
	vesting := make([]VestingStep, 0, len(schedule))
	for _, step := range schedule {
		vesting = append(vesting, VestingStep{After: step.After.String(), Bps: step.Bps})
	}
	return &Config{
		DataDir:       defaultDataDir,
		ListenAddress: ":8090",
		Pauses:        []string{},
		Token: TokenConfig{
			Name:                   token.DefaultName,
			Symbol:                 token.DefaultSymbol,
			Decimals:               token.DefaultDecimals,
			TotalSupply:            "1000000000000000",
			SwapThreshold:          "10000000000",
			MaxWallet:              "10000000000000",
			PrivateSaleWallets:     []string{},
			ClaimWaitSeconds:       uint64(dividends.DefaultClaimWait.Seconds()),
			SweepIterations:        token.DefaultSweepIterations,
			SwapDeadlineSeconds:    uint64(token.DefaultSwapDeadline.Seconds()),
			AutoSwap:               true,
			AutoDividendProcessing: true,
		},
		Fees: FeesConfig{
			CapBps:   fees.DefaultCapBps,
			Rates:    ratesConfig(fees.DefaultRates()),
			Minimums: ratesConfig(fees.DefaultMinimums()),
			Treasury: []TreasuryConfig{
				{Component: string(fees.ComponentMarketing), Payout: string(fees.PayoutNative)},
				{Component: string(fees.ComponentDonation), Payout: string(fees.PayoutNative)},
				{Component: string(fees.ComponentDevelopment), Payout: string(fees.PayoutNative)},
			},
		},
		Vesting: vesting,
		Logging: LoggingConfig{Env: "local", Level: "info"},
		Gateway: GatewayConfig{RateLimitPerSecond: 20, Burst: 40, Issuer: "reflectctl", Audience: "reflect-gateway"},
	}
}
