// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package escrow implements reference-keyed locked transfers.
//
// A lock earmarks amount+fee from its owner into the engine's hold
// account. The designated authority releases the amount to a recipient
// and collects the fee, or the owner claims the full lock back after
// expiration. Mediation freezes the expiration path while a dispute is
// resolved off-ledger.
package escrow

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/vechain/sdt/ledger"
	"github.com/vechain/sdt/metrics"
	"github.com/vechain/sdt/sdt"
	"github.com/vechain/sdt/state"
)

var (
	ErrDuplicateReference   = errors.New("reference already in use")
	ErrNotFound             = errors.New("no such lock")
	ErrAmountMismatch       = errors.New("amounts do not match lock")
	ErrAlreadyFunded        = errors.New("lock already funded")
	ErrNotFunded            = errors.New("lock not funded")
	ErrAlreadyResolved      = errors.New("lock already resolved")
	ErrNotExpired           = errors.New("lock not expired")
	ErrInvalidated          = errors.New("lock expiration invalidated")
	ErrExchangeRateRequired = errors.New("exchange rate required for unverified recipient")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrWrongToken           = errors.New("cannot sweep the native token")
)

var (
	heldKey = sdt.Bytes32(crypto.Keccak256Hash([]byte("held-total")))

	metricActiveLocks = metrics.LazyLoadGauge("escrow_active_locks")
)

func recordKey(owner sdt.Address, referenceID uint64) sdt.Bytes32 {
	var ref [8]byte
	binary.BigEndian.PutUint64(ref[:], referenceID)
	return sdt.Bytes32(crypto.Keccak256Hash(owner.Bytes(), ref[:]))
}

// Token is the sweepable surface of a non-native token mistakenly sent
// to the hold account.
type Token interface {
	Address() sdt.Address
	Transfer(from sdt.Address, to sdt.Address, amount *big.Int) error
}

// Engine manages escrow locks over the token ledger.
type Engine struct {
	addr   sdt.Address
	owner  sdt.Address
	ledger *ledger.Ledger
	state  *state.State
}

// New creates an escrow engine. addr is both the storage namespace and
// the hold account.
func New(addr sdt.Address, owner sdt.Address, l *ledger.Ledger, st *state.State) *Engine {
	return &Engine{addr, owner, l, st}
}

// Address returns the engine's hold account.
func (e *Engine) Address() sdt.Address {
	return e.addr
}

func (e *Engine) getRecord(owner sdt.Address, referenceID uint64) (*record, error) {
	var r record
	if err := e.state.GetStorage(e.addr, recordKey(owner, referenceID), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (e *Engine) setRecord(owner sdt.Address, referenceID uint64, r *record) error {
	return e.state.SetStorage(e.addr, recordKey(owner, referenceID), r)
}

func (e *Engine) addHeld(delta *big.Int) error {
	held, err := e.state.GetBigInt(e.addr, heldKey)
	if err != nil {
		return err
	}
	return e.state.SetBigInt(e.addr, heldKey, held.Add(held, delta))
}

// Create registers a lock without funding it. The (owner, referenceID)
// pair is unique for the lifetime of the engine.
func (e *Engine) Create(
	owner sdt.Address,
	authority sdt.Address,
	recipient sdt.Address,
	referenceID uint64,
	amount *big.Int,
	fee *big.Int,
	expiration uint64,
) error {
	has, err := e.state.HasStorage(e.addr, recordKey(owner, referenceID))
	if err != nil {
		return err
	}
	if has {
		return ErrDuplicateReference
	}
	return e.setRecord(owner, referenceID, &record{
		Authority:  authority,
		Recipient:  recipient,
		Amount:     amount,
		Fee:        fee,
		Expiration: expiration,
	})
}

// Fund moves amount+fee from the owner into the hold account. The
// amounts must match the ones given at Create exactly.
func (e *Engine) Fund(owner sdt.Address, referenceID uint64, amount *big.Int, fee *big.Int) error {
	r, err := e.getRecord(owner, referenceID)
	if err != nil {
		return err
	}
	if !r.exists() {
		return ErrNotFound
	}
	if r.Funded {
		return ErrAlreadyFunded
	}
	if r.Amount.Cmp(amount) != 0 || r.Fee.Cmp(fee) != 0 {
		return ErrAmountMismatch
	}
	total := new(big.Int).Add(amount, fee)
	if err := e.ledger.Transfer(owner, e.addr, total); err != nil {
		return err
	}
	r.Funded = true
	if err := e.setRecord(owner, referenceID, r); err != nil {
		return err
	}
	if err := e.addHeld(total); err != nil {
		return err
	}
	metricActiveLocks().Add(1)
	return nil
}

// EscrowTransfer creates and funds a lock in one step.
func (e *Engine) EscrowTransfer(
	owner sdt.Address,
	authority sdt.Address,
	recipient sdt.Address,
	referenceID uint64,
	amount *big.Int,
	fee *big.Int,
	expiration uint64,
) error {
	// funding must not fail after the record is written
	balance, err := e.ledger.BalanceOf(owner)
	if err != nil {
		return err
	}
	if balance.Cmp(new(big.Int).Add(amount, fee)) < 0 {
		return ledger.ErrInsufficientBalance
	}
	if err := e.Create(owner, authority, recipient, referenceID, amount, fee, expiration); err != nil {
		return err
	}
	return e.Fund(owner, referenceID, amount, fee)
}

// Release settles a funded lock: amount to the recipient, fee to the
// authority. Only the lock's authority may release. A zero exchange
// rate means on-ledger settlement and requires a verified recipient;
// a non-zero rate records an external conversion.
func (e *Engine) Release(
	caller sdt.Address,
	owner sdt.Address,
	recipient sdt.Address,
	referenceID uint64,
	exchangeRate *big.Int,
) error {
	r, err := e.getRecord(owner, referenceID)
	if err != nil {
		return err
	}
	if !r.exists() {
		return ErrNotFound
	}
	if caller != r.Authority {
		return ErrUnauthorized
	}
	if r.Resolved {
		return ErrAlreadyResolved
	}
	if !r.Funded {
		return ErrNotFunded
	}
	if exchangeRate.Sign() == 0 {
		verified, err := e.ledger.IsVerified(recipient)
		if err != nil {
			return err
		}
		if !verified {
			return ErrExchangeRateRequired
		}
	}

	if err := e.ledger.Transfer(e.addr, recipient, r.Amount); err != nil {
		return err
	}
	if err := e.ledger.Transfer(e.addr, r.Authority, r.Fee); err != nil {
		return err
	}
	r.Resolved = true
	if err := e.setRecord(owner, referenceID, r); err != nil {
		return err
	}
	if err := e.addHeld(new(big.Int).Neg(new(big.Int).Add(r.Amount, r.Fee))); err != nil {
		return err
	}
	metricActiveLocks().Add(-1)
	return nil
}

// Claim refunds an expired lock to its owner, fee included. Blocked
// while the lock is mediated.
func (e *Engine) Claim(owner sdt.Address, referenceID uint64, ts uint64) error {
	r, err := e.getRecord(owner, referenceID)
	if err != nil {
		return err
	}
	if !r.exists() {
		return ErrNotFound
	}
	if r.Resolved {
		return ErrAlreadyResolved
	}
	if !r.Funded {
		return ErrNotFunded
	}
	if r.Invalidated {
		return ErrInvalidated
	}
	if ts <= r.Expiration {
		return ErrNotExpired
	}

	total := new(big.Int).Add(r.Amount, r.Fee)
	if err := e.ledger.Transfer(e.addr, owner, total); err != nil {
		return err
	}
	r.Resolved = true
	if err := e.setRecord(owner, referenceID, r); err != nil {
		return err
	}
	if err := e.addHeld(new(big.Int).Neg(total)); err != nil {
		return err
	}
	metricActiveLocks().Add(-1)
	return nil
}

// Mediate invalidates the expiration of a lock, permanently blocking
// Claim while leaving Release possible. Authority only.
func (e *Engine) Mediate(caller sdt.Address, owner sdt.Address, referenceID uint64) error {
	r, err := e.getRecord(owner, referenceID)
	if err != nil {
		return err
	}
	if !r.exists() {
		return ErrNotFound
	}
	if caller != r.Authority {
		return ErrUnauthorized
	}
	if r.Resolved {
		return ErrAlreadyResolved
	}
	r.Invalidated = true
	return e.setRecord(owner, referenceID, r)
}

// TransferToken sweeps a non-native token mistakenly sent to the hold
// account. Owner only. The native ledger cannot be swept, locked
// balances stay locked.
func (e *Engine) TransferToken(caller sdt.Address, token Token, recipient sdt.Address, amount *big.Int) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	if token.Address() == e.ledger.Address() {
		return ErrWrongToken
	}
	return token.Transfer(e.addr, recipient, amount)
}

// HeldTotal returns the sum of amount+fee over all funded, unresolved
// locks. Matches the hold account balance at all times.
func (e *Engine) HeldTotal() (*big.Int, error) {
	return e.state.GetBigInt(e.addr, heldKey)
}
