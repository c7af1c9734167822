package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"reflectledger/crypto"
)

// Config is the on-disk configuration of a ledger deployment.
type Config struct {
	DataDir       string   `toml:"DataDir"`
	ListenAddress string   `toml:"ListenAddress"`
	IndexerDSN    string   `toml:"IndexerDSN"`
	Pauses        []string `toml:"Pauses"`

	Token     TokenConfig     `toml:"token"`
	Fees      FeesConfig      `toml:"fees"`
	Vesting   []VestingStep   `toml:"vesting"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Gateway   GatewayConfig   `toml:"gateway"`
	Webhook   WebhookConfig   `toml:"webhook"`
}

// Load reads the configuration at path. A default file is written, with a
// freshly generated owner account, when none exists yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	cfg.Vesting = nil
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	if !meta.IsDefined("vesting") {
		cfg.Vesting = Default().Vesting
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaultDataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createDefault writes a default configuration owned by a new account.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	owner := key.PubKey().Account()

	cfg := Default()
	cfg.Token.Owner = crypto.FromCommon(owner).String()
	cfg.Token.Contract = crypto.FromCommon(crypto.DeriveAddress([]byte("contract"), owner.Bytes())).String()
	cfg.Token.LiquidityRecipient = cfg.Token.Owner
	for i := range cfg.Fees.Treasury {
		cfg.Fees.Treasury[i].Wallet = cfg.Token.Owner
	}

	if err := Save(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as TOML, creating parent directories.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// SnapshotPath is the LevelDB directory holding the engine snapshot.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.DataDir, "snapshot")
}

// EventsDSN returns the indexer DSN, defaulting to a sqlite file in DataDir.
func (c *Config) EventsDSN() string {
	if dsn := strings.TrimSpace(c.IndexerDSN); dsn != "" {
		return dsn
	}
	return filepath.Join(c.DataDir, "events.db")
}
