package fees

import (
	"fmt"
	"math/big"

	coreerrors "reflectledger/core/errors"
)

// Component identifies one of the fee buckets carved out of a taxed transfer.
type Component string

const (
	ComponentDividend    Component = "dividend"
	ComponentBurn        Component = "burn"
	ComponentMarketing   Component = "marketing"
	ComponentDonation    Component = "donation"
	ComponentDevelopment Component = "development"
	ComponentLiquidity   Component = "liquidity"
)

// Components lists every fee component in settlement order.
var Components = []Component{
	ComponentDividend,
	ComponentBurn,
	ComponentMarketing,
	ComponentDonation,
	ComponentDevelopment,
	ComponentLiquidity,
}

// BasisPoints is the denominator for fee rates: 100 bps is one percent.
const BasisPoints = 10_000

const (
	// DefaultCapBps bounds the sum of every configured rate.
	DefaultCapBps uint32 = 900
)

var basisPointsBig = big.NewInt(BasisPoints)

// Rates holds one rate per component, in basis points.
type Rates struct {
	Dividend    uint32 `json:"dividendBps"`
	Burn        uint32 `json:"burnBps"`
	Marketing   uint32 `json:"marketingBps"`
	Donation    uint32 `json:"donationBps"`
	Development uint32 `json:"developmentBps"`
	Liquidity   uint32 `json:"liquidityBps"`
}

// DefaultRates mirrors the launch configuration: 2% dividend and 1% for each
// other bucket.
func DefaultRates() Rates {
	return Rates{Dividend: 200, Burn: 100, Marketing: 100, Donation: 100, Development: 100, Liquidity: 100}
}

// DefaultMinimums keeps the donation fee at one percent or more.
func DefaultMinimums() Rates {
	return Rates{Donation: 100}
}

// Get returns the rate configured for the component.
func (r Rates) Get(c Component) uint32 {
	switch c {
	case ComponentDividend:
		return r.Dividend
	case ComponentBurn:
		return r.Burn
	case ComponentMarketing:
		return r.Marketing
	case ComponentDonation:
		return r.Donation
	case ComponentDevelopment:
		return r.Development
	case ComponentLiquidity:
		return r.Liquidity
	}
	return 0
}

func (r Rates) with(c Component, bps uint32) (Rates, bool) {
	switch c {
	case ComponentDividend:
		r.Dividend = bps
	case ComponentBurn:
		r.Burn = bps
	case ComponentMarketing:
		r.Marketing = bps
	case ComponentDonation:
		r.Donation = bps
	case ComponentDevelopment:
		r.Development = bps
	case ComponentLiquidity:
		r.Liquidity = bps
	default:
		return r, false
	}
	return r, true
}

// Total returns the sum of every rate.
func (r Rates) Total() uint64 {
	var total uint64
	for _, c := range Components {
		total += uint64(r.Get(c))
	}
	return total
}

// Halved floor-divides every rate by two.
func (r Rates) Halved() Rates {
	return Rates{
		Dividend:    r.Dividend / 2,
		Burn:        r.Burn / 2,
		Marketing:   r.Marketing / 2,
		Donation:    r.Donation / 2,
		Development: r.Development / 2,
		Liquidity:   r.Liquidity / 2,
	}
}

// Schedule is the mutable fee configuration owned by the token engine.
type Schedule struct {
	rates    Rates
	minimums Rates
	capBps   uint32
	halfTax  bool
}

// NewSchedule validates the configured rates against the cap and the
// per-component minimums.
func NewSchedule(rates, minimums Rates, capBps uint32) (*Schedule, error) {
	if capBps == 0 {
		capBps = DefaultCapBps
	}
	if capBps > BasisPoints {
		return nil, fmt.Errorf("fees: cap %d exceeds %d bps", capBps, BasisPoints)
	}
	if rates.Total() > uint64(capBps) {
		return nil, fmt.Errorf("%w: %d > %d", coreerrors.ErrFeeCapExceeded, rates.Total(), capBps)
	}
	for _, c := range Components {
		if rates.Get(c) < minimums.Get(c) {
			return nil, fmt.Errorf("%w: %s %d < %d", coreerrors.ErrBelowMinimumFee, c, rates.Get(c), minimums.Get(c))
		}
	}
	return &Schedule{rates: rates, minimums: minimums, capBps: capBps}, nil
}

// Rates returns the configured (undiscounted) rates.
func (s *Schedule) Rates() Rates { return s.rates }

// Minimums returns the per-component floors.
func (s *Schedule) Minimums() Rates { return s.minimums }

// Cap returns the global cap in basis points.
func (s *Schedule) Cap() uint32 { return s.capBps }

// HalfTax reports whether the half-tax discount is active.
func (s *Schedule) HalfTax() bool { return s.halfTax }

// Effective returns the rates applied to transfers right now.
func (s *Schedule) Effective() Rates {
	if s.halfTax {
		return s.rates.Halved()
	}
	return s.rates
}

// Rate returns the effective rate of a single component.
func (s *Schedule) Rate(c Component) uint32 {
	return s.Effective().Get(c)
}

// SetHalfTax toggles the discount and returns the undo operation.
func (s *Schedule) SetHalfTax(enabled bool) func() {
	previous := s.halfTax
	s.halfTax = enabled
	return func() { s.halfTax = previous }
}

// SetRate updates a single component. The schedule is left untouched when the
// component floor or the global cap would be violated.
func (s *Schedule) SetRate(c Component, bps uint32) (func(), error) {
	next, ok := s.rates.with(c, bps)
	if !ok {
		return nil, fmt.Errorf("%w: %q", coreerrors.ErrUnknownFee, c)
	}
	if minimum := s.minimums.Get(c); bps < minimum {
		return nil, fmt.Errorf("%w: %s %d < %d", coreerrors.ErrBelowMinimumFee, c, bps, minimum)
	}
	if total := next.Total(); total > uint64(s.capBps) {
		return nil, fmt.Errorf("%w: %d > %d", coreerrors.ErrFeeCapExceeded, total, s.capBps)
	}
	previous := s.rates
	s.rates = next
	return func() { s.rates = previous }, nil
}

// ApplyInput captures the context required to split a transfer.
type ApplyInput struct {
	Gross  *big.Int
	Exempt bool
	Rates  Rates
}

// ApplyResult is the computed split. Every amount is non-nil.
type ApplyResult struct {
	Gross       *big.Int
	Net         *big.Int
	Dividend    *big.Int
	Burn        *big.Int
	Marketing   *big.Int
	Donation    *big.Int
	Development *big.Int
	Liquidity   *big.Int
	Applied     bool
}

// Component returns the amount carved out for c.
func (r ApplyResult) Component(c Component) *big.Int {
	switch c {
	case ComponentDividend:
		return r.Dividend
	case ComponentBurn:
		return r.Burn
	case ComponentMarketing:
		return r.Marketing
	case ComponentDonation:
		return r.Donation
	case ComponentDevelopment:
		return r.Development
	case ComponentLiquidity:
		return r.Liquidity
	}
	return big.NewInt(0)
}

// Total returns the sum of every fee component.
func (r ApplyResult) Total() *big.Int {
	total := big.NewInt(0)
	for _, c := range Components {
		total.Add(total, r.Component(c))
	}
	return total
}

// Apply splits the gross amount. Each component is floor(gross*rate/10000)
// and the receiver gets whatever is left.
func Apply(input ApplyInput) ApplyResult {
	gross := big.NewInt(0)
	if input.Gross != nil && input.Gross.Sign() > 0 {
		gross.Set(input.Gross)
	}
	result := ApplyResult{
		Gross:       gross,
		Net:         new(big.Int).Set(gross),
		Dividend:    big.NewInt(0),
		Burn:        big.NewInt(0),
		Marketing:   big.NewInt(0),
		Donation:    big.NewInt(0),
		Development: big.NewInt(0),
		Liquidity:   big.NewInt(0),
	}
	if input.Exempt || gross.Sign() == 0 || input.Rates.Total() == 0 {
		return result
	}
	result.Applied = true
	result.Dividend = portion(gross, input.Rates.Dividend)
	result.Burn = portion(gross, input.Rates.Burn)
	result.Marketing = portion(gross, input.Rates.Marketing)
	result.Donation = portion(gross, input.Rates.Donation)
	result.Development = portion(gross, input.Rates.Development)
	result.Liquidity = portion(gross, input.Rates.Liquidity)
	result.Net.Sub(result.Net, result.Total())
	return result
}

func portion(gross *big.Int, bps uint32) *big.Int {
	if bps == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(gross, big.NewInt(int64(bps)))
	return out.Quo(out, basisPointsBig)
}
