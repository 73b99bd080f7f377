// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package vesting implements linearly accruing token grants.
//
// Tokens backing a grant are held by the engine's pool account until
// claimed. Claims are gated by a whitelist; the claimed amount of every
// grant only ever grows towards the grant total.
package vesting

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/vechain/sdt/ledger"
	"github.com/vechain/sdt/metrics"
	"github.com/vechain/sdt/sdt"
	"github.com/vechain/sdt/state"
)

var (
	ErrNotInitialized     = errors.New("not initialized")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrNotActive          = errors.New("engine stopped")
	ErrNotStopped         = errors.New("not stopped")
	ErrNotAllowed         = errors.New("beneficiary not allowed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidWindow      = errors.New("invalid vesting window")
)

var (
	statusKey      = sdt.Bytes32(crypto.Keccak256Hash([]byte("status")))
	circulatingKey = sdt.Bytes32(crypto.Keccak256Hash([]byte("circulating-supply")))

	metricClaims = metrics.LazyLoadCounter("vesting_claims_count")
)

func grantsKey(beneficiary sdt.Address) sdt.Bytes32 {
	return sdt.BytesToBytes32(append([]byte("g"), beneficiary.Bytes()...))
}

func allowKey(beneficiary sdt.Address) sdt.Bytes32 {
	return sdt.BytesToBytes32(append([]byte("w"), beneficiary.Bytes()...))
}

// Options tunes engine policy.
type Options struct {
	// BlockClaimsWhenStopped extends Stop to claims. By default Stop
	// only blocks new grants and claims stay available.
	BlockClaimsWhenStopped bool
}

// Engine manages vesting grants over the token ledger.
type Engine struct {
	addr   sdt.Address
	owner  sdt.Address
	ledger *ledger.Ledger
	state  *state.State
	opts   Options
}

// New creates a vesting engine. addr is both the storage namespace and
// the pool account holding unclaimed tokens.
func New(addr sdt.Address, owner sdt.Address, l *ledger.Ledger, st *state.State, opts Options) *Engine {
	return &Engine{addr, owner, l, st, opts}
}

// Address returns the engine's pool account.
func (e *Engine) Address() sdt.Address {
	return e.addr
}

func (e *Engine) getStatus() (*status, error) {
	var s status
	if err := e.state.GetStorage(e.addr, statusKey, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (e *Engine) setStatus(s *status) error {
	return e.state.SetStorage(e.addr, statusKey, s)
}

// Init activates the engine and registers the sale account allowed to
// create grants next to the owner. One-time, owner only.
func (e *Engine) Init(caller sdt.Address, sale sdt.Address) error {
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
	return e.setStatus(&status{Initialized: true, Sale: sale})
}

// Initialized reports whether Init has been called.
func (e *Engine) Initialized() (bool, error) {
	s, err := e.getStatus()
	if err != nil {
		return false, err
	}
	return s.Initialized, nil
}

// Grant appends a vesting schedule for the beneficiary. Owner or the
// registered sale account only, and only while the engine is active.
// The granted tokens must be moved to the pool account by the caller.
func (e *Engine) Grant(caller sdt.Address, beneficiary sdt.Address, amt *big.Int, start uint64, end uint64) error {
	s, err := e.getStatus()
	if err != nil {
		return err
	}
	if !s.Initialized {
		return ErrNotInitialized
	}
	if caller != e.owner && caller != s.Sale {
		return ErrUnauthorized
	}
	if s.Stopped {
		return ErrNotActive
	}
	if start >= end {
		return ErrInvalidWindow
	}
	var book grantBook
	if err := e.state.GetStorage(e.addr, grantsKey(beneficiary), &book); err != nil {
		return err
	}
	book.Grants = append(book.Grants, grant{
		Amount:  amt,
		Start:   start,
		End:     end,
		Claimed: new(big.Int),
	})
	return e.state.SetStorage(e.addr, grantsKey(beneficiary), &book)
}

// TotalVestedTokens returns the sum of all grant totals of the
// beneficiary, claimed or not.
func (e *Engine) TotalVestedTokens(beneficiary sdt.Address) (*big.Int, error) {
	var book grantBook
	if err := e.state.GetStorage(e.addr, grantsKey(beneficiary), &book); err != nil {
		return nil, err
	}
	total := new(big.Int)
	for i := range book.Grants {
		total.Add(total, book.Grants[i].Amount)
	}
	return total, nil
}

// ClaimableTokens returns the amount the beneficiary could claim at ts.
func (e *Engine) ClaimableTokens(beneficiary sdt.Address, ts uint64) (*big.Int, error) {
	var book grantBook
	if err := e.state.GetStorage(e.addr, grantsKey(beneficiary), &book); err != nil {
		return nil, err
	}
	claimable := new(big.Int)
	for i := range book.Grants {
		g := &book.Grants[i]
		claimable.Add(claimable, new(big.Int).Sub(g.accrued(ts), g.Claimed))
	}
	return claimable, nil
}

// ClaimTokens pays the beneficiary everything accrued and unclaimed at
// ts. The beneficiary must be whitelisted. Claiming with nothing
// accrued is a no-op.
func (e *Engine) ClaimTokens(beneficiary sdt.Address, ts uint64) error {
	return e.claim(beneficiary, ts)
}

// ClaimTokensFor claims on behalf of the beneficiary. Owner only.
func (e *Engine) ClaimTokensFor(caller sdt.Address, beneficiary sdt.Address, ts uint64) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	return e.claim(beneficiary, ts)
}

func (e *Engine) claim(beneficiary sdt.Address, ts uint64) error {
	s, err := e.getStatus()
	if err != nil {
		return err
	}
	if !s.Initialized {
		return ErrNotInitialized
	}
	if s.Stopped && e.opts.BlockClaimsWhenStopped {
		return ErrNotActive
	}
	var a allowed
	if err := e.state.GetStorage(e.addr, allowKey(beneficiary), &a); err != nil {
		return err
	}
	if !a.Allowed {
		return ErrNotAllowed
	}

	var book grantBook
	if err := e.state.GetStorage(e.addr, grantsKey(beneficiary), &book); err != nil {
		return err
	}
	claimable := new(big.Int)
	for i := range book.Grants {
		g := &book.Grants[i]
		accrued := g.accrued(ts)
		claimable.Add(claimable, new(big.Int).Sub(accrued, g.Claimed))
		g.Claimed = accrued
	}
	if claimable.Sign() == 0 {
		return nil
	}

	if err := e.ledger.Transfer(e.addr, beneficiary, claimable); err != nil {
		return err
	}
	if err := e.state.SetStorage(e.addr, grantsKey(beneficiary), &book); err != nil {
		return err
	}
	circulating, err := e.state.GetBigInt(e.addr, circulatingKey)
	if err != nil {
		return err
	}
	if err := e.state.SetBigInt(e.addr, circulatingKey, circulating.Add(circulating, claimable)); err != nil {
		return err
	}
	metricClaims().Add(1)
	return nil
}

// CirculatingSupply returns the total amount released by claims.
func (e *Engine) CirculatingSupply() (*big.Int, error) {
	return e.state.GetBigInt(e.addr, circulatingKey)
}

// Allow whitelists a beneficiary for claiming. Owner only.
func (e *Engine) Allow(caller sdt.Address, beneficiary sdt.Address) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	return e.state.SetStorage(e.addr, allowKey(beneficiary), &allowed{true})
}

// Revoke removes a beneficiary from the claim whitelist. Owner only.
func (e *Engine) Revoke(caller sdt.Address, beneficiary sdt.Address) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	return e.state.SetStorage(e.addr, allowKey(beneficiary), &allowed{false})
}

// Stop blocks new grants. Owner only.
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
