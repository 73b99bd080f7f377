// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package distribution implements the staged follow-up sale.
//
// Time slices the sale into fixed-duration stages of equal token
// capacity. Within a stage the price grows linearly with the amount
// sold. Every stage earmarks a bonus reserve that shrinks as the stage
// sells out; once a stage's window has elapsed, its buyers claim the
// remaining reserve pro rata and the shrunk part is burned.
package distribution

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/vechain/sdt/ledger"
	"github.com/vechain/sdt/metrics"
	"github.com/vechain/sdt/sdt"
	"github.com/vechain/sdt/state"
)

var (
	ErrNotStarted            = errors.New("distribution not started")
	ErrRateNotSet            = errors.New("exchange rate not set")
	ErrStageCapacityExceeded = errors.New("stage capacity exceeded")
	ErrStageNotFinished      = errors.New("stage not finished")
	ErrAlreadyClaimed        = errors.New("bonus already claimed")
	ErrUnauthorized          = errors.New("unauthorized")
)

var (
	rateKey      = sdt.Bytes32(crypto.Keccak256Hash([]byte("rate-wei")))
	collectedKey = sdt.Bytes32(crypto.Keccak256Hash([]byte("collected-wei")))

	metricSold = metrics.LazyLoadGauge("distribution_sold")
)

func stageKey(prefix byte, stage uint64) sdt.Bytes32 {
	var b [9]byte
	b[0] = prefix
	binary.BigEndian.PutUint64(b[1:], stage)
	return sdt.BytesToBytes32(b[:])
}

func stageAddrKey(prefix byte, stage uint64, addr sdt.Address) sdt.Bytes32 {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], stage)
	return sdt.Bytes32(crypto.Keccak256Hash([]byte{prefix}, b[:], addr.Bytes()))
}

func soldKey(stage uint64) sdt.Bytes32 {
	return stageKey('s', stage)
}

func burnedKey(stage uint64) sdt.Bytes32 {
	return stageKey('b', stage)
}

func boughtKey(stage uint64, buyer sdt.Address) sdt.Bytes32 {
	return stageAddrKey('c', stage, buyer)
}

func claimedKey(stage uint64, buyer sdt.Address) sdt.Bytes32 {
	return stageAddrKey('x', stage, buyer)
}

// Config fixes the stage schedule at construction. Prices are USD per
// token scaled by 1e18.
type Config struct {
	Start         uint64
	StageDuration uint64
	// StageCapacity sellable tokens per stage, in accounting units.
	StageCapacity *big.Int
	// PriceFloor opening price of every stage; PriceSlope the increase
	// over a fully sold stage.
	PriceFloor *big.Int
	PriceSlope *big.Int
	// BonusRates percent of stage capacity reserved as bonus, per
	// stage index. Stages beyond the list carry no bonus.
	BonusRates []int64
}

func (c *Config) bonusRate(stage uint64) int64 {
	if stage >= uint64(len(c.BonusRates)) {
		return 0
	}
	return c.BonusRates[stage]
}

// bonusReserve tokens earmarked for the stage bonus.
func (c *Config) bonusReserve(stage uint64) *big.Int {
	reserve := new(big.Int).Mul(c.StageCapacity, big.NewInt(c.bonusRate(stage)))
	return reserve.Div(reserve, big.NewInt(100))
}

// Engine runs the staged sale over the token ledger.
type Engine struct {
	addr   sdt.Address
	owner  sdt.Address
	ledger *ledger.Ledger
	state  *state.State
	config Config
}

// New creates a distribution engine. addr is both the storage
// namespace and the pool account holding the distributable tokens.
func New(addr sdt.Address, owner sdt.Address, l *ledger.Ledger, st *state.State, config Config) *Engine {
	return &Engine{addr, owner, l, st, config}
}

// Address returns the engine's pool account.
func (e *Engine) Address() sdt.Address {
	return e.addr
}

// StageAt returns the stage index active at ts.
func (e *Engine) StageAt(ts uint64) (uint64, error) {
	if ts < e.config.Start {
		return 0, ErrNotStarted
	}
	return (ts - e.config.Start) / e.config.StageDuration, nil
}

// stageEnd first timestamp past the stage's window.
func (e *Engine) stageEnd(stage uint64) uint64 {
	return e.config.Start + (stage+1)*e.config.StageDuration
}

// PriceAt returns the token price at ts given the current stage sales,
// in 1e18-scaled USD per token.
func (e *Engine) PriceAt(ts uint64) (*big.Int, error) {
	stage, err := e.StageAt(ts)
	if err != nil {
		return nil, err
	}
	sold, err := e.state.GetBigInt(e.addr, soldKey(stage))
	if err != nil {
		return nil, err
	}
	return e.price(sold), nil
}

func (e *Engine) price(soldInStage *big.Int) *big.Int {
	grown := new(big.Int).Mul(e.config.PriceSlope, soldInStage)
	grown.Div(grown, e.config.StageCapacity)
	return grown.Add(grown, e.config.PriceFloor)
}

// SetWeiRate sets the ether rate in whole USD per ether. Owner only.
func (e *Engine) SetWeiRate(caller sdt.Address, rate *big.Int) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	return e.state.SetBigInt(e.addr, rateKey, rate)
}

// Buy sells tokens to the buyer for a wei payment at the stage price.
// The bonus reserve of the stage stays in the pool and cannot be
// bought.
func (e *Engine) Buy(buyer sdt.Address, weiAmount *big.Int, ts uint64) error {
	stage, err := e.StageAt(ts)
	if err != nil {
		return err
	}
	rate, err := e.state.GetBigInt(e.addr, rateKey)
	if err != nil {
		return err
	}
	if rate.Sign() == 0 {
		return ErrRateNotSet
	}

	sold, err := e.state.GetBigInt(e.addr, soldKey(stage))
	if err != nil {
		return err
	}
	// wei * rate is USD scaled by 1e18, the same fixed point as the
	// price, so tokens = usd * 1e18 / price lands in accounting units
	usd := new(big.Int).Mul(weiAmount, rate)
	tokens := usd.Mul(usd, sdt.DecimalUnit)
	tokens.Div(tokens, e.price(sold))

	sellable := new(big.Int).Sub(e.config.StageCapacity, e.config.bonusReserve(stage))
	if new(big.Int).Add(sold, tokens).Cmp(sellable) > 0 {
		return ErrStageCapacityExceeded
	}
	if err := e.ledger.Transfer(e.addr, buyer, tokens); err != nil {
		return err
	}

	if err := e.state.SetBigInt(e.addr, soldKey(stage), sold.Add(sold, tokens)); err != nil {
		return err
	}
	bought, err := e.state.GetBigInt(e.addr, boughtKey(stage, buyer))
	if err != nil {
		return err
	}
	if err := e.state.SetBigInt(e.addr, boughtKey(stage, buyer), bought.Add(bought, tokens)); err != nil {
		return err
	}
	collected, err := e.state.GetBigInt(e.addr, collectedKey)
	if err != nil {
		return err
	}
	if err := e.state.SetBigInt(e.addr, collectedKey, collected.Add(collected, weiAmount)); err != nil {
		return err
	}
	metricSold().Add(new(big.Int).Div(tokens, sdt.DecimalUnit).Int64())
	return nil
}

// SoldInStage returns the tokens sold during the stage so far.
func (e *Engine) SoldInStage(stage uint64) (*big.Int, error) {
	return e.state.GetBigInt(e.addr, soldKey(stage))
}

// BoughtInStage returns the buyer's purchases during the stage.
func (e *Engine) BoughtInStage(stage uint64, buyer sdt.Address) (*big.Int, error) {
	return e.state.GetBigInt(e.addr, boughtKey(stage, buyer))
}

// BonusPayable returns what is left of the stage's bonus reserve given
// its sales. The reserve shrinks linearly as the stage sells out.
func (e *Engine) BonusPayable(stage uint64) (*big.Int, error) {
	sold, err := e.state.GetBigInt(e.addr, soldKey(stage))
	if err != nil {
		return nil, err
	}
	reserve := e.config.bonusReserve(stage)
	left := new(big.Int).Sub(e.config.StageCapacity, sold)
	payable := reserve.Mul(reserve, left)
	return payable.Div(payable, e.config.StageCapacity), nil
}

// ClaimBonus pays the buyer their share of the stage's remaining bonus
// reserve, proportional to their share of the stage's sales. Only
// after the stage window has fully elapsed. The shrunk part of the
// reserve is burned when the stage's first claim lands.
func (e *Engine) ClaimBonus(stage uint64, buyer sdt.Address, ts uint64) error {
	if ts < e.stageEnd(stage) {
		return ErrStageNotFinished
	}
	var c flag
	if err := e.state.GetStorage(e.addr, claimedKey(stage, buyer), &c); err != nil {
		return err
	}
	if c.Set {
		return ErrAlreadyClaimed
	}

	sold, err := e.state.GetBigInt(e.addr, soldKey(stage))
	if err != nil {
		return err
	}
	bought, err := e.state.GetBigInt(e.addr, boughtKey(stage, buyer))
	if err != nil {
		return err
	}
	payable, err := e.BonusPayable(stage)
	if err != nil {
		return err
	}

	if err := e.burnShrunkReserve(stage, payable); err != nil {
		return err
	}

	if bought.Sign() == 0 || sold.Sign() == 0 {
		return e.state.SetStorage(e.addr, claimedKey(stage, buyer), &flag{true})
	}
	bonus := new(big.Int).Mul(payable, bought)
	bonus.Div(bonus, sold)
	if err := e.ledger.Transfer(e.addr, buyer, bonus); err != nil {
		return err
	}
	return e.state.SetStorage(e.addr, claimedKey(stage, buyer), &flag{true})
}

func (e *Engine) burnShrunkReserve(stage uint64, payable *big.Int) error {
	var b flag
	if err := e.state.GetStorage(e.addr, burnedKey(stage), &b); err != nil {
		return err
	}
	if b.Set {
		return nil
	}
	burn := new(big.Int).Sub(e.config.bonusReserve(stage), payable)
	if burn.Sign() > 0 {
		if err := e.ledger.Burn(e.addr, burn); err != nil {
			return err
		}
		log.Info("dist: bonus reserve burned", "stage", stage, "amount", burn)
	}
	return e.state.SetStorage(e.addr, burnedKey(stage), &flag{true})
}

// CollectedWei returns the wei collected by Buy and not yet forwarded.
func (e *Engine) CollectedWei() (*big.Int, error) {
	return e.state.GetBigInt(e.addr, collectedKey)
}

// ForwardFunds withdraws collected wei to the recipient. Owner only.
func (e *Engine) ForwardFunds(caller sdt.Address, amount *big.Int, recipient sdt.Address) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	collected, err := e.state.GetBigInt(e.addr, collectedKey)
	if err != nil {
		return err
	}
	if collected.Cmp(amount) < 0 {
		return ledger.ErrInsufficientBalance
	}
	if err := e.state.SetBigInt(e.addr, collectedKey, collected.Sub(collected, amount)); err != nil {
		return err
	}
	log.Info("dist: funds forwarded", "amount", amount, "recipient", recipient)
	return nil
}
