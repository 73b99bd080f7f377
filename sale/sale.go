// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package sale implements the SDT crowdsale.
//
// Initialize splits the minted supply between the reserve, the
// distribution pool and the engine's own sale pool. Purchases price a
// USD contribution through the bonding curve and turn the granted
// tokens into vesting schedules; fiat enters directly, ether and
// bitcoin enter through owner-set exchange rates. Finalize converts
// the configured team pools into vesting grants proportional to the
// amount sold and drains what is left back to the reserve.
package sale

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/vechain/sdt/ledger"
	"github.com/vechain/sdt/metrics"
	"github.com/vechain/sdt/pricing"
	"github.com/vechain/sdt/sdt"
	"github.com/vechain/sdt/state"
	"github.com/vechain/sdt/vesting"
)

var (
	ErrNotInitialized     = errors.New("not initialized")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrSaleClosed         = errors.New("sale closed")
	ErrNotWhitelisted     = errors.New("beneficiary not whitelisted")
	ErrBelowMinimum       = errors.New("contribution below minimum")
	ErrRateNotSet         = errors.New("exchange rate not set")
	ErrNotStopped         = errors.New("not stopped")
	ErrAlreadyFinalized   = errors.New("already finalized")
)

var (
	statusKey  = sdt.Bytes32(crypto.Keccak256Hash([]byte("status")))
	raisedKey  = sdt.Bytes32(crypto.Keccak256Hash([]byte("raised-usd")))
	soldKey    = sdt.Bytes32(crypto.Keccak256Hash([]byte("sold-tokens")))
	weiRateKey = sdt.Bytes32(crypto.Keccak256Hash([]byte("rate-wei")))
	btcRateKey = sdt.Bytes32(crypto.Keccak256Hash([]byte("rate-btc")))

	metricPurchases = metrics.LazyLoadCounter("sale_purchase_count")
	metricRaisedUSD = metrics.LazyLoadGauge("sale_raised_usd")
)

var (
	weiPerEther = big.NewInt(1e18)
	satPerBTC   = big.NewInt(1e8)
)

func allowKey(addr sdt.Address) sdt.Bytes32 {
	return sdt.BytesToBytes32(append([]byte("w"), addr.Bytes()...))
}

// Config fixes the sale parameters at construction.
type Config struct {
	// Reserve receives 1% of supply at initialization and the unsold
	// remainder at finalization.
	Reserve sdt.Address
	// DistributionPool receives DistributionAmount at initialization.
	DistributionPool   sdt.Address
	DistributionAmount *big.Int

	// OpenTime/CloseTime bound the purchase window.
	OpenTime  uint64
	CloseTime uint64

	// MinPurchaseUSD smallest accepted contribution.
	MinPurchaseUSD *big.Int

	// VestingStart/VestingEnd window applied to purchase and pool grants.
	VestingStart uint64
	VestingEnd   uint64

	// PoolAMax/PoolBMax/PoolCMax team pool maxima, scaled at finalization
	// by the fraction of sale capacity actually sold. PoolD is granted
	// in full.
	PoolAMax *big.Int
	PoolBMax *big.Int
	PoolCMax *big.Int
	PoolD    *big.Int

	Pricing pricing.Params
}

// Engine runs the crowdsale over the token ledger.
type Engine struct {
	addr    sdt.Address
	owner   sdt.Address
	ledger  *ledger.Ledger
	vesting *vesting.Engine
	pricing *pricing.Engine
	state   *state.State
	config  Config
}

// New creates a sale engine. addr is both the storage namespace and the
// sale pool account holding the unsold tokens.
func New(addr sdt.Address, owner sdt.Address, l *ledger.Ledger, v *vesting.Engine, st *state.State, config Config) *Engine {
	return &Engine{addr, owner, l, v, pricing.New(config.Pricing), st, config}
}

// Address returns the engine's sale pool account.
func (e *Engine) Address() sdt.Address {
	return e.addr
}

func (e *Engine) getStatus() (*saleStatus, error) {
	var s saleStatus
	if err := e.state.GetStorage(e.addr, statusKey, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (e *Engine) setStatus(s *saleStatus) error {
	return e.state.SetStorage(e.addr, statusKey, s)
}

// Initialize splits the supply held by the owner: 1% to the reserve,
// the configured amount to the distribution pool, the remainder to the
// sale pool. One-time, owner only.
func (e *Engine) Initialize(caller sdt.Address) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	s, err := e.getStatus()
	if err != nil {
		return err
	}
	if s.Initialized {
		return ErrAlreadyInitialized
	}
	supply, err := e.ledger.TotalSupply()
	if err != nil {
		return err
	}
	reserve := new(big.Int).Div(supply, big.NewInt(100))
	remainder := new(big.Int).Sub(supply, reserve)
	remainder.Sub(remainder, e.config.DistributionAmount)

	if err := e.ledger.Transfer(e.owner, e.config.Reserve, reserve); err != nil {
		return err
	}
	if err := e.ledger.Transfer(e.owner, e.config.DistributionPool, e.config.DistributionAmount); err != nil {
		return err
	}
	if err := e.ledger.Transfer(e.owner, e.addr, remainder); err != nil {
		return err
	}
	s.Initialized = true
	return e.setStatus(s)
}

// IsActive reports whether purchases are accepted at ts.
func (e *Engine) IsActive(ts uint64) (bool, error) {
	s, err := e.getStatus()
	if err != nil {
		return false, err
	}
	if !s.Initialized || s.Stopped || s.Finalized {
		return false, nil
	}
	return ts >= e.config.OpenTime && ts < e.config.CloseTime, nil
}

// Purchase records a fiat contribution for the beneficiary. The
// referenceID tags the off-ledger payment. Owner only.
func (e *Engine) Purchase(caller sdt.Address, beneficiary sdt.Address, fiatUSD *big.Int, ts uint64, referenceID uint64) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	return e.purchase(beneficiary, fiatUSD, ts, referenceID)
}

// PurchaseWei prices a contribution in wei through the owner-set ether
// rate and records it for the beneficiary.
func (e *Engine) PurchaseWei(beneficiary sdt.Address, weiAmount *big.Int, ts uint64, referenceID uint64) error {
	return e.purchaseVia(weiRateKey, weiPerEther, beneficiary, weiAmount, ts, referenceID)
}

// PurchaseBTC prices a contribution in satoshi through the owner-set
// bitcoin rate and records it for the beneficiary.
func (e *Engine) PurchaseBTC(beneficiary sdt.Address, satAmount *big.Int, ts uint64, referenceID uint64) error {
	return e.purchaseVia(btcRateKey, satPerBTC, beneficiary, satAmount, ts, referenceID)
}

func (e *Engine) purchaseVia(rateKey sdt.Bytes32, unit *big.Int, beneficiary sdt.Address, amount *big.Int, ts uint64, referenceID uint64) error {
	rate, err := e.state.GetBigInt(e.addr, rateKey)
	if err != nil {
		return err
	}
	if rate.Sign() == 0 {
		return ErrRateNotSet
	}
	fiatUSD := new(big.Int).Mul(amount, rate)
	fiatUSD.Div(fiatUSD, unit)
	return e.purchase(beneficiary, fiatUSD, ts, referenceID)
}

func (e *Engine) purchase(beneficiary sdt.Address, fiatUSD *big.Int, ts uint64, referenceID uint64) error {
	s, err := e.getStatus()
	if err != nil {
		return err
	}
	if !s.Initialized {
		return ErrNotInitialized
	}
	if s.Stopped || s.Finalized || ts < e.config.OpenTime || ts >= e.config.CloseTime {
		return ErrSaleClosed
	}
	var a allowed
	if err := e.state.GetStorage(e.addr, allowKey(beneficiary), &a); err != nil {
		return err
	}
	if !a.Allowed {
		return ErrNotWhitelisted
	}
	if fiatUSD.Cmp(e.config.MinPurchaseUSD) < 0 {
		return ErrBelowMinimum
	}

	raised, err := e.state.GetBigInt(e.addr, raisedKey)
	if err != nil {
		return err
	}
	tokens, err := e.pricing.ComputeTokens(raised, fiatUSD)
	if err != nil {
		return err
	}

	// grant before moving tokens: the grant validates the vesting
	// engine's state, the transfer cannot fail once the balance holds
	balance, err := e.ledger.BalanceOf(e.addr)
	if err != nil {
		return err
	}
	if balance.Cmp(tokens) < 0 {
		return ledger.ErrInsufficientBalance
	}
	if err := e.vesting.Grant(e.addr, beneficiary, tokens, e.config.VestingStart, e.config.VestingEnd); err != nil {
		return err
	}
	if err := e.ledger.Transfer(e.addr, e.vesting.Address(), tokens); err != nil {
		return err
	}

	raised.Add(raised, fiatUSD)
	if err := e.state.SetBigInt(e.addr, raisedKey, raised); err != nil {
		return err
	}
	sold, err := e.state.GetBigInt(e.addr, soldKey)
	if err != nil {
		return err
	}
	if err := e.state.SetBigInt(e.addr, soldKey, sold.Add(sold, tokens)); err != nil {
		return err
	}

	log.Debug("sale: purchase",
		"beneficiary", beneficiary,
		"usd", fiatUSD,
		"tokens", tokens,
		"ref", referenceID)
	metricPurchases().Add(1)
	metricRaisedUSD().Set(raised.Int64())
	return nil
}

// SetWeiRate sets the ether channel rate in whole USD per ether. Owner
// only.
func (e *Engine) SetWeiRate(caller sdt.Address, rate *big.Int) error {
	return e.setRate(caller, weiRateKey, rate)
}

// SetBTCRate sets the bitcoin channel rate in whole USD per bitcoin.
// Owner only.
func (e *Engine) SetBTCRate(caller sdt.Address, rate *big.Int) error {
	return e.setRate(caller, btcRateKey, rate)
}

func (e *Engine) setRate(caller sdt.Address, key sdt.Bytes32, rate *big.Int) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	return e.state.SetBigInt(e.addr, key, rate)
}

// Allow whitelists a beneficiary for purchases. Owner only.
func (e *Engine) Allow(caller sdt.Address, addr sdt.Address) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	return e.state.SetStorage(e.addr, allowKey(addr), &allowed{true})
}

// IsAllowed reports whether addr may receive purchases.
func (e *Engine) IsAllowed(addr sdt.Address) (bool, error) {
	var a allowed
	if err := e.state.GetStorage(e.addr, allowKey(addr), &a); err != nil {
		return false, err
	}
	return a.Allowed, nil
}

// Stop suspends purchases. Owner only.
func (e *Engine) Stop(caller sdt.Address) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	s, err := e.getStatus()
	if err != nil {
		return err
	}
	if !s.Initialized {
		return ErrNotInitialized
	}
	s.Stopped = true
	return e.setStatus(s)
}

// Resume lifts a previous Stop. Owner only.
func (e *Engine) Resume(caller sdt.Address) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	s, err := e.getStatus()
	if err != nil {
		return err
	}
	if !s.Initialized {
		return ErrNotInitialized
	}
	if !s.Stopped {
		return ErrNotStopped
	}
	s.Stopped = false
	return e.setStatus(s)
}

// poolAmount scales a pool maximum by the fraction of sale capacity
// actually sold.
func (e *Engine) poolAmount(maximum *big.Int, sold *big.Int) *big.Int {
	amount := new(big.Int).Mul(maximum, sold)
	return amount.Div(amount, e.config.Pricing.Capacity())
}

// Finalize closes the sale for good: team pools A to C are granted in
// proportion to the amount sold, pool D in full, and the unsold
// remainder returns to the reserve. One-time, owner only.
func (e *Engine) Finalize(caller sdt.Address, poolA, poolB, poolC, poolD sdt.Address) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	s, err := e.getStatus()
	if err != nil {
		return err
	}
	if !s.Initialized {
		return ErrNotInitialized
	}
	if s.Finalized {
		return ErrAlreadyFinalized
	}
	sold, err := e.state.GetBigInt(e.addr, soldKey)
	if err != nil {
		return err
	}

	grants := []struct {
		beneficiary sdt.Address
		amount      *big.Int
	}{
		{poolA, e.poolAmount(e.config.PoolAMax, sold)},
		{poolB, e.poolAmount(e.config.PoolBMax, sold)},
		{poolC, e.poolAmount(e.config.PoolCMax, sold)},
		{poolD, e.config.PoolD},
	}

	total := new(big.Int)
	for _, g := range grants {
		total.Add(total, g.amount)
	}
	balance, err := e.ledger.BalanceOf(e.addr)
	if err != nil {
		return err
	}
	if balance.Cmp(total) < 0 {
		return ledger.ErrInsufficientBalance
	}

	for _, g := range grants {
		if g.amount.Sign() == 0 {
			continue
		}
		if err := e.vesting.Grant(e.addr, g.beneficiary, g.amount, e.config.VestingStart, e.config.VestingEnd); err != nil {
			return err
		}
		if err := e.ledger.Transfer(e.addr, e.vesting.Address(), g.amount); err != nil {
			return err
		}
	}

	remainder := new(big.Int).Sub(balance, total)
	if err := e.ledger.Transfer(e.addr, e.config.Reserve, remainder); err != nil {
		return err
	}

	s.Finalized = true
	if err := e.setStatus(s); err != nil {
		return err
	}
	log.Info("sale: finalized", "sold", sold, "returned", remainder)
	return nil
}

// Raised returns the cumulative USD raised.
func (e *Engine) Raised() (*big.Int, error) {
	return e.state.GetBigInt(e.addr, raisedKey)
}

// SoldTokens returns the cumulative tokens sold, in accounting units.
func (e *Engine) SoldTokens() (*big.Int, error) {
	return e.state.GetBigInt(e.addr, soldKey)
}

// ComputeTokens previews the token grant a USD contribution would earn
// at the current raised total, without mutating anything.
func (e *Engine) ComputeTokens(fiatUSD *big.Int) (*big.Int, error) {
	raised, err := e.state.GetBigInt(e.addr, raisedKey)
	if err != nil {
		return nil, err
	}
	return e.pricing.ComputeTokens(raised, fiatUSD)
}
