// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package distribution

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/sdt/ledger"
	"github.com/vechain/sdt/lvldb"
	"github.com/vechain/sdt/sdt"
	"github.com/vechain/sdt/state"
)

const (
	distStart = uint64(1000)
	stageLen  = uint64(1000)

	stage0Time = distStart + 10
	stage1Time = distStart + stageLen + 10
)

var (
	poolAddr = sdt.BytesToAddress([]byte("distribution-pool"))
	owner    = sdt.BytesToAddress([]byte("owner"))
	buyerA   = sdt.BytesToAddress([]byte("buyer-a"))
	buyerB   = sdt.BytesToAddress([]byte("buyer-b"))
	sink     = sdt.BytesToAddress([]byte("sink"))

	oneEther = big.NewInt(1e18)

	poolSupply = sdt.ToUnits(big.NewInt(1000000))
)

// price floor 0.5 USD, 1e18 scaled
var priceFloor = big.NewInt(5e17)

func flatConfig() Config {
	return Config{
		Start:         distStart,
		StageDuration: stageLen,
		StageCapacity: sdt.ToUnits(big.NewInt(1000)),
		PriceFloor:    priceFloor,
		PriceSlope:    new(big.Int),
		BonusRates:    []int64{20, 10},
	}
}

func slopeConfig() Config {
	cfg := flatConfig()
	// price doubles over a fully sold stage
	cfg.PriceSlope = big.NewInt(5e17)
	return cfg
}

type testEnv struct {
	ledger *ledger.Ledger
	eng    *Engine
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	db, err := lvldb.NewMem()
	require.Nil(t, err)
	st := state.New(db)

	l := ledger.New(sdt.BytesToAddress([]byte("sdt-token")), owner, st)
	require.Nil(t, l.Mint(poolAddr, poolSupply))

	eng := New(poolAddr, owner, l, st, cfg)
	require.Nil(t, eng.SetWeiRate(owner, big.NewInt(100)))
	return &testEnv{l, eng}
}

func TestStageAt(t *testing.T) {
	env := newTestEnv(t, flatConfig())

	_, err := env.eng.StageAt(distStart - 1)
	assert.Equal(t, ErrNotStarted, err)

	stage, err := env.eng.StageAt(distStart)
	require.Nil(t, err)
	assert.Equal(t, uint64(0), stage)

	stage, _ = env.eng.StageAt(distStart + stageLen - 1)
	assert.Equal(t, uint64(0), stage)
	stage, _ = env.eng.StageAt(distStart + stageLen)
	assert.Equal(t, uint64(1), stage)
	stage, _ = env.eng.StageAt(distStart + 5*stageLen)
	assert.Equal(t, uint64(5), stage)
}

func TestBuyAtFloorPrice(t *testing.T) {
	env := newTestEnv(t, flatConfig())

	// 1 ether at 100 USD/ether buys 200 tokens at 0.50 USD
	require.Nil(t, env.eng.Buy(buyerA, oneEther, stage0Time))
	balance, _ := env.ledger.BalanceOf(buyerA)
	assert.Equal(t, sdt.ToUnits(big.NewInt(200)), balance)

	sold, _ := env.eng.SoldInStage(0)
	assert.Equal(t, sdt.ToUnits(big.NewInt(200)), sold)
	bought, _ := env.eng.BoughtInStage(0, buyerA)
	assert.Equal(t, sdt.ToUnits(big.NewInt(200)), bought)

	collected, _ := env.eng.CollectedWei()
	assert.Equal(t, oneEther, collected)
}

func TestBuyGuards(t *testing.T) {
	env := newTestEnv(t, flatConfig())

	assert.Equal(t, ErrNotStarted, env.eng.Buy(buyerA, oneEther, distStart-1))

	require.Nil(t, env.eng.SetWeiRate(owner, new(big.Int)))
	assert.Equal(t, ErrRateNotSet, env.eng.Buy(buyerA, oneEther, stage0Time))
	assert.Equal(t, ErrUnauthorized, env.eng.SetWeiRate(buyerA, big.NewInt(100)))
}

func TestPriceGrowsWithinStage(t *testing.T) {
	env := newTestEnv(t, slopeConfig())

	price, err := env.eng.PriceAt(stage0Time)
	require.Nil(t, err)
	assert.Equal(t, priceFloor, price)

	// 200 of 1000 sold lifts the price by a fifth of the slope
	require.Nil(t, env.eng.Buy(buyerA, oneEther, stage0Time))
	price, _ = env.eng.PriceAt(stage0Time)
	assert.Equal(t, big.NewInt(6e17), price)

	// the next ether buys fewer tokens
	require.Nil(t, env.eng.Buy(buyerB, oneEther, stage0Time))
	balance, _ := env.ledger.BalanceOf(buyerB)
	usd := new(big.Int).Mul(oneEther, big.NewInt(100))
	expected := new(big.Int).Mul(usd, sdt.DecimalUnit)
	expected.Div(expected, big.NewInt(6e17))
	assert.Equal(t, expected, balance)
}

func TestStageCapacity(t *testing.T) {
	env := newTestEnv(t, flatConfig())

	// the 20% bonus reserve is not sellable: 800 of 1000 tokens are
	three := new(big.Int).Mul(oneEther, big.NewInt(3))
	require.Nil(t, env.eng.Buy(buyerA, three, stage0Time))

	two := new(big.Int).Mul(oneEther, big.NewInt(2))
	assert.Equal(t, ErrStageCapacityExceeded, env.eng.Buy(buyerA, two, stage0Time))

	require.Nil(t, env.eng.Buy(buyerA, oneEther, stage0Time))
	sold, _ := env.eng.SoldInStage(0)
	assert.Equal(t, sdt.ToUnits(big.NewInt(800)), sold)

	// a new stage starts with a clean slate
	require.Nil(t, env.eng.Buy(buyerA, oneEther, stage1Time))
	sold, _ = env.eng.SoldInStage(1)
	assert.Equal(t, sdt.ToUnits(big.NewInt(200)), sold)
}

func TestBonusClaim(t *testing.T) {
	env := newTestEnv(t, flatConfig())

	// stage 0: A buys 200, B buys 400 of the 1000 capacity
	require.Nil(t, env.eng.Buy(buyerA, oneEther, stage0Time))
	require.Nil(t, env.eng.Buy(buyerB, new(big.Int).Mul(oneEther, big.NewInt(2)), stage0Time))

	assert.Equal(t, ErrStageNotFinished, env.eng.ClaimBonus(0, buyerA, stage0Time))

	// reserve 200, shrunk to 200 * (1000-600)/1000 = 80 payable
	payable, err := env.eng.BonusPayable(0)
	require.Nil(t, err)
	assert.Equal(t, sdt.ToUnits(big.NewInt(80)), payable)

	supplyBefore, _ := env.ledger.TotalSupply()
	balanceBefore, _ := env.ledger.BalanceOf(buyerA)
	require.Nil(t, env.eng.ClaimBonus(0, buyerA, stage1Time))

	// first claim burns the shrunk 120 tokens of the reserve
	supplyAfter, _ := env.ledger.TotalSupply()
	assert.Equal(t, sdt.ToUnits(big.NewInt(120)), new(big.Int).Sub(supplyBefore, supplyAfter))

	// A's share: 80 * 200/600
	expectedA := new(big.Int).Mul(sdt.ToUnits(big.NewInt(80)), sdt.ToUnits(big.NewInt(200)))
	expectedA.Div(expectedA, sdt.ToUnits(big.NewInt(600)))
	balanceAfter, _ := env.ledger.BalanceOf(buyerA)
	assert.Equal(t, expectedA, new(big.Int).Sub(balanceAfter, balanceBefore))

	assert.Equal(t, ErrAlreadyClaimed, env.eng.ClaimBonus(0, buyerA, stage1Time))

	// B's claim burns nothing further
	require.Nil(t, env.eng.ClaimBonus(0, buyerB, stage1Time))
	supplyFinal, _ := env.ledger.TotalSupply()
	assert.Equal(t, supplyAfter, supplyFinal)

	expectedB := new(big.Int).Mul(sdt.ToUnits(big.NewInt(80)), sdt.ToUnits(big.NewInt(400)))
	expectedB.Div(expectedB, sdt.ToUnits(big.NewInt(600)))
	balanceB, _ := env.ledger.BalanceOf(buyerB)
	buyerBBought := sdt.ToUnits(big.NewInt(400))
	assert.Equal(t, expectedB, new(big.Int).Sub(balanceB, buyerBBought))
}

func TestBonusClaimWithoutPurchase(t *testing.T) {
	env := newTestEnv(t, flatConfig())
	require.Nil(t, env.eng.Buy(buyerA, oneEther, stage0Time))

	// a non-buyer claim pays nothing but still triggers the burn
	supplyBefore, _ := env.ledger.TotalSupply()
	require.Nil(t, env.eng.ClaimBonus(0, sink, stage1Time))
	supplyAfter, _ := env.ledger.TotalSupply()
	assert.True(t, supplyAfter.Cmp(supplyBefore) < 0)

	balance, _ := env.ledger.BalanceOf(sink)
	assert.Equal(t, new(big.Int), balance)
	assert.Equal(t, ErrAlreadyClaimed, env.eng.ClaimBonus(0, sink, stage1Time))
}

func TestForwardFunds(t *testing.T) {
	env := newTestEnv(t, flatConfig())
	three := new(big.Int).Mul(oneEther, big.NewInt(3))
	require.Nil(t, env.eng.Buy(buyerA, three, stage0Time))

	assert.Equal(t, ErrUnauthorized, env.eng.ForwardFunds(buyerA, oneEther, sink))

	four := new(big.Int).Mul(oneEther, big.NewInt(4))
	assert.Equal(t, ledger.ErrInsufficientBalance, env.eng.ForwardFunds(owner, four, sink))

	two := new(big.Int).Mul(oneEther, big.NewInt(2))
	require.Nil(t, env.eng.ForwardFunds(owner, two, sink))
	collected, _ := env.eng.CollectedWei()
	assert.Equal(t, oneEther, collected)
}
