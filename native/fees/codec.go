package fees

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PayoutMode selects how a treasury component reaches its wallet.
type PayoutMode string

const (
	// PayoutNative holds the tokens in the contract and swaps them to the
	// native asset for the wallet during swap-and-liquify.
	PayoutNative PayoutMode = "native"
	// PayoutToken credits the wallet with tokens at transfer time.
	PayoutToken PayoutMode = "token"
)

// UnmarshalText normalises the payout mode and rejects unknown values.
func (m *PayoutMode) UnmarshalText(text []byte) error {
	normalized := PayoutMode(strings.ToLower(strings.TrimSpace(string(text))))
	switch normalized {
	case "":
		*m = PayoutNative
	case PayoutNative, PayoutToken:
		*m = normalized
	default:
		return fmt.Errorf("fees: unknown payout mode %q", string(text))
	}
	return nil
}

// UnmarshalTOML performs a best-effort conversion from snake_case TOML keys
// into the camelCase JSON structure used by the fee schedule, so both
// `dividend_bps` and `dividendBps` (or just `dividend`) are accepted.
func (r *Rates) UnmarshalTOML(data interface{}) error {
	table, ok := data.(map[string]interface{})
	if !ok {
		return fmt.Errorf("fees: rates must decode from a table")
	}
	normalized := normalizeRatesTable(table)

	type alias Rates
	var decoded alias
	blob, err := json.Marshal(normalized)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(blob, &decoded); err != nil {
		return fmt.Errorf("fees: decode rates: %w", err)
	}
	*r = Rates(decoded)
	return nil
}

func normalizeRatesTable(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for key, value := range in {
		if component, ok := componentForKey(key); ok {
			out[string(component)+"Bps"] = value
			continue
		}
		out[key] = value
	}
	return out
}

func componentForKey(key string) (Component, bool) {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.ReplaceAll(normalized, "_", "")
	normalized = strings.TrimSuffix(normalized, "bps")
	normalized = strings.TrimSuffix(normalized, "fee")
	for _, c := range Components {
		if normalized == string(c) {
			return c, true
		}
	}
	return "", false
}

// ParseComponent resolves a component from user input.
func ParseComponent(raw string) (Component, error) {
	if c, ok := componentForKey(raw); ok {
		return c, nil
	}
	return "", fmt.Errorf("fees: unknown component %q", raw)
}
