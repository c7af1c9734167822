package amm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"reflectledger/crypto"
)

var (
	ErrExpired               = errors.New("amm: deadline expired")
	ErrUnknownAsset          = errors.New("amm: unknown asset")
	ErrPairNotFound          = errors.New("amm: pair not found")
	ErrPairExists            = errors.New("amm: pair exists")
	ErrInvalidPath           = errors.New("amm: invalid path")
	ErrInsufficientInput     = errors.New("amm: insufficient input amount")
	ErrInsufficientOutput    = errors.New("amm: insufficient output amount")
	ErrInsufficientLiquidity = errors.New("amm: insufficient liquidity")
)

// MinimumLiquidity is locked forever on the first deposit of every pool.
var MinimumLiquidity = big.NewInt(1_000)

const (
	feeNumerator   = 997
	feeDenominator = 1_000
)

var deadShares = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

// Pool is a constant-product pair. Token0 sorts before Token1.
type Pool struct {
	Address  common.Address
	Token0   common.Address
	Token1   common.Address
	Reserve0 *big.Int
	Reserve1 *big.Int
	Shares   *big.Int
	holders  map[common.Address]*big.Int
}

func (p *Pool) reserveOf(asset common.Address) (in *big.Int, out *big.Int) {
	if asset == p.Token0 {
		return p.Reserve0, p.Reserve1
	}
	return p.Reserve1, p.Reserve0
}

// SharesOf returns the pool shares held by the account.
func (p *Pool) SharesOf(addr common.Address) *big.Int {
	if v, ok := p.holders[addr]; ok {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

// Router simulates a constant-product AMM with a 0.3% swap fee. Swaps
// support fee-on-transfer tokens: the input is measured from the pool's
// balance rather than the requested amount. The router is re-entered by the
// token ledger during swaps and is not safe for concurrent use.
type Router struct {
	addr   common.Address
	token  common.Address
	native common.Address
	assets map[common.Address]Asset
	pools  map[common.Address]*Pool
	nowFn  func() time.Time
}

// NewRouter returns a router whose AddLiquidity pairs token with native.
func NewRouter(addr, token, native common.Address) *Router {
	return &Router{
		addr:   addr,
		token:  token,
		native: native,
		assets: make(map[common.Address]Asset),
		pools:  make(map[common.Address]*Pool),
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *Router) Address() common.Address { return r.addr }

// SetNowFunc overrides the clock used for deadlines.
func (r *Router) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	r.nowFn = now
}

// RegisterAsset binds an asset id used in paths to its ledger.
func (r *Router) RegisterAsset(id common.Address, asset Asset) {
	r.assets[id] = asset
}

func sortPair(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a[:], b[:]) < 0 {
		return a, b
	}
	return b, a
}

// PairAddress derives the deterministic pool address of two assets.
func PairAddress(a, b common.Address) common.Address {
	t0, t1 := sortPair(a, b)
	return crypto.DeriveAddress([]byte("reflectledger/amm/pair"), t0.Bytes(), t1.Bytes())
}

// CreatePair opens an empty pool.
func (r *Router) CreatePair(a, b common.Address) (common.Address, error) {
	if a == b {
		return common.Address{}, fmt.Errorf("%w: identical assets", ErrInvalidPath)
	}
	for _, id := range []common.Address{a, b} {
		if _, ok := r.assets[id]; !ok {
			return common.Address{}, fmt.Errorf("%w: %s", ErrUnknownAsset, id.Hex())
		}
	}
	addr := PairAddress(a, b)
	if _, ok := r.pools[addr]; ok {
		return common.Address{}, ErrPairExists
	}
	t0, t1 := sortPair(a, b)
	r.pools[addr] = &Pool{
		Address:  addr,
		Token0:   t0,
		Token1:   t1,
		Reserve0: big.NewInt(0),
		Reserve1: big.NewInt(0),
		Shares:   big.NewInt(0),
		holders:  make(map[common.Address]*big.Int),
	}
	return addr, nil
}

// Pool returns the pool of two assets.
func (r *Router) Pool(a, b common.Address) (*Pool, bool) {
	p, ok := r.pools[PairAddress(a, b)]
	return p, ok
}

// Reserves returns the reserves of a and b in their pool, in that order.
func (r *Router) Reserves(a, b common.Address) (*big.Int, *big.Int, error) {
	p, ok := r.Pool(a, b)
	if !ok {
		return nil, nil, ErrPairNotFound
	}
	ra, rb := p.reserveOf(a)
	return new(big.Int).Set(ra), new(big.Int).Set(rb), nil
}

// AmountOut applies the constant-product formula with the 0.3% fee.
func AmountOut(amountIn, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInsufficientInput
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}
	withFee := new(big.Int).Mul(amountIn, big.NewInt(feeNumerator))
	numerator := new(big.Int).Mul(withFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(feeDenominator))
	denominator.Add(denominator, withFee)
	return numerator.Quo(numerator, denominator), nil
}

func (r *Router) hops(path []common.Address) ([]*Pool, error) {
	if len(path) < 2 {
		return nil, ErrInvalidPath
	}
	pools := make([]*Pool, 0, len(path)-1)
	for i := 0; i+1 < len(path); i++ {
		for _, id := range path[i : i+2] {
			if _, ok := r.assets[id]; !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, id.Hex())
			}
		}
		p, ok := r.Pool(path[i], path[i+1])
		if !ok {
			return nil, fmt.Errorf("%w: %s/%s", ErrPairNotFound, path[i].Hex(), path[i+1].Hex())
		}
		pools = append(pools, p)
	}
	return pools, nil
}

func (r *Router) quote(amountIn *big.Int, path []common.Address, pools []*Pool) ([]*big.Int, error) {
	amounts := make([]*big.Int, len(path))
	amounts[0] = new(big.Int).Set(amountIn)
	for i, p := range pools {
		reserveIn, reserveOut := p.reserveOf(path[i])
		out, err := AmountOut(amounts[i], reserveIn, reserveOut)
		if err != nil {
			return nil, err
		}
		if out.Sign() == 0 {
			return nil, ErrInsufficientOutput
		}
		amounts[i+1] = out
	}
	return amounts, nil
}

// GetAmountsOut quotes a swap along path.
func (r *Router) GetAmountsOut(_ context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	pools, err := r.hops(path)
	if err != nil {
		return nil, err
	}
	return r.quote(amountIn, path, pools)
}

func (r *Router) checkDeadline(deadline time.Time) error {
	if !deadline.IsZero() && r.nowFn().After(deadline) {
		return ErrExpired
	}
	return nil
}

// SwapExactInputForOutput sells amountIn of path[0] for path[len-1], paid to
// recipient. The returned amounts start with the amount the first pool
// actually received.
func (r *Router) SwapExactInputForOutput(ctx context.Context, sender common.Address, amountIn *big.Int, path []common.Address, recipient common.Address, deadline time.Time) ([]*big.Int, error) {
	if err := r.checkDeadline(deadline); err != nil {
		return nil, err
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInsufficientInput
	}
	pools, err := r.hops(path)
	if err != nil {
		return nil, err
	}
	if _, err := r.quote(amountIn, path, pools); err != nil {
		return nil, err
	}

	first := pools[0]
	in := r.assets[path[0]]
	if err := in.Pull(ctx, r.addr, sender, first.Address, amountIn, false); err != nil {
		return nil, err
	}
	// The pull may have re-entered the router and moved reserves; read them
	// only now.
	reserveIn, _ := first.reserveOf(path[0])
	received := new(big.Int).Sub(in.BalanceOf(first.Address), reserveIn)
	amounts, err := r.quote(received, path, pools)
	if err != nil {
		if received.Sign() > 0 {
			_ = in.Push(ctx, first.Address, sender, received)
		}
		return nil, err
	}
	for i, p := range pools {
		to := recipient
		if i+1 < len(pools) {
			to = pools[i+1].Address
		}
		if err := r.assets[path[i+1]].Push(ctx, p.Address, to, amounts[i+1]); err != nil {
			if i == 0 {
				_ = in.Push(ctx, first.Address, sender, received)
			}
			return nil, err
		}
	}
	for _, p := range pools {
		r.sync(p)
	}
	return amounts, nil
}

func (r *Router) sync(p *Pool) {
	p.Reserve0 = r.assets[p.Token0].BalanceOf(p.Address)
	p.Reserve1 = r.assets[p.Token1].BalanceOf(p.Address)
}

// AddLiquidity deposits token and native into their pool at the current
// price, minting pool shares to recipient.
func (r *Router) AddLiquidity(ctx context.Context, sender common.Address, tokenAmount, nativeAmount *big.Int, recipient common.Address, deadline time.Time) (*big.Int, error) {
	return r.AddLiquidityPair(ctx, sender, r.token, r.native, tokenAmount, nativeAmount, recipient, deadline)
}

// AddLiquidityPair deposits into the pool of a and b. Only the amounts that
// match the pool price are taken.
func (r *Router) AddLiquidityPair(ctx context.Context, sender, a, b common.Address, amountA, amountB *big.Int, recipient common.Address, deadline time.Time) (*big.Int, error) {
	if err := r.checkDeadline(deadline); err != nil {
		return nil, err
	}
	if amountA == nil || amountB == nil || amountA.Sign() <= 0 || amountB.Sign() <= 0 {
		return nil, ErrInsufficientInput
	}
	p, ok := r.Pool(a, b)
	if !ok {
		return nil, ErrPairNotFound
	}
	reserveA, reserveB := p.reserveOf(a)
	useA, useB := new(big.Int).Set(amountA), new(big.Int).Set(amountB)
	if reserveA.Sign() > 0 && reserveB.Sign() > 0 {
		optimalB := new(big.Int).Mul(amountA, reserveB)
		optimalB.Quo(optimalB, reserveA)
		if optimalB.Cmp(amountB) <= 0 {
			useB = optimalB
		} else {
			optimalA := new(big.Int).Mul(amountB, reserveA)
			optimalA.Quo(optimalA, reserveB)
			useA = optimalA
		}
	}
	if useA.Sign() == 0 || useB.Sign() == 0 {
		return nil, ErrInsufficientInput
	}

	minted := new(big.Int)
	if p.Shares.Sign() == 0 {
		minted.Mul(useA, useB)
		minted.Sqrt(minted)
		minted.Sub(minted, MinimumLiquidity)
	} else {
		byA := new(big.Int).Mul(useA, p.Shares)
		byA.Quo(byA, reserveA)
		byB := new(big.Int).Mul(useB, p.Shares)
		byB.Quo(byB, reserveB)
		minted = byA
		if byB.Cmp(byA) < 0 {
			minted = byB
		}
	}
	if minted.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}

	assetA, assetB := r.assets[a], r.assets[b]
	if err := assetA.Pull(ctx, r.addr, sender, p.Address, useA, true); err != nil {
		return nil, err
	}
	if err := assetB.Pull(ctx, r.addr, sender, p.Address, useB, true); err != nil {
		_ = assetA.Push(ctx, p.Address, sender, useA)
		return nil, err
	}
	if p.Shares.Sign() == 0 {
		p.mint(deadShares, MinimumLiquidity)
	}
	p.mint(recipient, minted)
	r.sync(p)
	return minted, nil
}

func (p *Pool) mint(to common.Address, amount *big.Int) {
	current := p.holders[to]
	if current == nil {
		current = big.NewInt(0)
	}
	p.holders[to] = new(big.Int).Add(current, amount)
	p.Shares = new(big.Int).Add(p.Shares, amount)
}
