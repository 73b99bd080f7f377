// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package pricing implements the crowdsale token pricing formula.
//
// Contributions are priced in two regions keyed on cumulative USD
// raised. Below the flat cap the price is constant. Beyond it the price
// follows a logarithmic bonding curve over a fixed token pool: a
// contribution moving the cumulative raised from x1 to x2 beyond the cap
// grants
//
//	pool * ln((base + x2) / (base + x1))
//
// tokens, so the marginal price (base + x) / pool rises continuously as
// the pool depletes.
package pricing

import (
	"errors"
	"math/big"

	"github.com/vechain/sdt/sdt"
)

var (
	ErrCapacityExceeded = errors.New("curve pool capacity exceeded")

	errNegativeAmount = errors.New("negative amount")
)

// Params defines the pricing curve constants.
type Params struct {
	// FlatPriceNum/FlatPriceDen flat region price in USD per token.
	FlatPriceNum int64
	FlatPriceDen int64
	// FlatCapUSD cumulative raised USD where the curve region begins.
	FlatCapUSD *big.Int
	// CurvePool token capacity of the curve region, in accounting units.
	CurvePool *big.Int
	// CurveBaseUSD price divisor of the curve: opening curve price times
	// the pool size, in USD.
	CurveBaseUSD *big.Int
}

// DefaultParams returns the mainnet sale constants: 0.14 USD/token up
// to 7M USD raised, then a 70M token curve opening at 0.20 USD/token.
func DefaultParams() Params {
	return Params{
		FlatPriceNum: 14,
		FlatPriceDen: 100,
		FlatCapUSD:   big.NewInt(7000000),
		CurvePool:    sdt.ToUnits(big.NewInt(70000000)),
		CurveBaseUSD: big.NewInt(14000000),
	}
}

// FlatPoolTokens returns the token amount sold by the flat region when
// it closes, in accounting units.
func (p *Params) FlatPoolTokens() *big.Int {
	tokens := new(big.Int).Mul(p.FlatCapUSD, sdt.DecimalUnit)
	tokens.Mul(tokens, big.NewInt(p.FlatPriceDen))
	return tokens.Div(tokens, big.NewInt(p.FlatPriceNum))
}

// Capacity returns the total sellable token amount, flat region plus
// curve pool, in accounting units.
func (p *Params) Capacity() *big.Int {
	return new(big.Int).Add(p.FlatPoolTokens(), p.CurvePool)
}

// Engine computes token grants for fiat contributions.
type Engine struct {
	params Params
}

// New creates a pricing engine.
func New(params Params) *Engine {
	return &Engine{params}
}

// ComputeTokens returns the token amount granted for a USD contribution
// given the cumulative USD raised by all preceding purchases. Pure and
// deterministic; the caller owns cumulative state.
func (e *Engine) ComputeTokens(raisedBefore *big.Int, contribution *big.Int) (*big.Int, error) {
	if raisedBefore.Sign() < 0 || contribution.Sign() < 0 {
		return nil, errNegativeAmount
	}
	if contribution.Sign() == 0 {
		return new(big.Int), nil
	}

	flatUSD := new(big.Int)
	if remaining := new(big.Int).Sub(e.params.FlatCapUSD, raisedBefore); remaining.Sign() > 0 {
		if remaining.Cmp(contribution) > 0 {
			flatUSD.Set(contribution)
		} else {
			flatUSD.Set(remaining)
		}
	}
	curveUSD := new(big.Int).Sub(contribution, flatUSD)

	tokens := new(big.Int).Mul(flatUSD, sdt.DecimalUnit)
	tokens.Mul(tokens, big.NewInt(e.params.FlatPriceDen))
	tokens.Div(tokens, big.NewInt(e.params.FlatPriceNum))

	if curveUSD.Sign() == 0 {
		return tokens, nil
	}

	// x1, x2: cumulative USD raised beyond the flat cap.
	x1 := new(big.Int).Sub(raisedBefore, e.params.FlatCapUSD)
	if x1.Sign() < 0 {
		x1.SetInt64(0)
	}
	x2 := new(big.Int).Add(x1, curveUSD)

	// The pool is exhausted when pool*ln((base+x2)/base) reaches pool,
	// i.e. when the cumulative curve ratio reaches e.
	total := lnRatio(new(big.Int).Add(e.params.CurveBaseUSD, x2), e.params.CurveBaseUSD)
	if total.Cmp(oneFloat) >= 0 {
		return nil, ErrCapacityExceeded
	}

	ln := lnRatio(
		new(big.Int).Add(e.params.CurveBaseUSD, x2),
		new(big.Int).Add(e.params.CurveBaseUSD, x1),
	)
	curveTokens, _ := ln.Mul(ln, new(big.Float).SetPrec(lnPrec).SetInt(e.params.CurvePool)).Int(nil)
	return tokens.Add(tokens, curveTokens), nil
}
