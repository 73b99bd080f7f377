// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package ledger implements the SDT token: a fixed supply balance book
// with allowance approvals and a consensus-network verified account set.
package ledger

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/vechain/sdt/sdt"
	"github.com/vechain/sdt/state"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrZeroAddress           = errors.New("zero address")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNotVerified           = errors.New("account not verified")
	ErrRateNotSet            = errors.New("exchange rate not set")
)

var totalSupplyKey = sdt.Bytes32(crypto.Keccak256Hash([]byte("total-supply")))

func accountKey(addr sdt.Address) sdt.Bytes32 {
	return sdt.BytesToBytes32(append([]byte("a"), addr.Bytes()...))
}

func allowanceKey(owner sdt.Address, spender sdt.Address) sdt.Bytes32 {
	return sdt.Bytes32(crypto.Keccak256Hash(owner.Bytes(), spender.Bytes()))
}

// Ledger provides access to SDT balances, allowances and the verified
// account set.
type Ledger struct {
	addr  sdt.Address
	owner sdt.Address
	state *state.State
}

// New creates a ledger bound to its storage namespace addr. The owner
// account administers the verified set and is verified itself.
func New(addr sdt.Address, owner sdt.Address, st *state.State) *Ledger {
	return &Ledger{addr, owner, st}
}

// Address returns the ledger's storage namespace, which doubles as the
// token identity.
func (l *Ledger) Address() sdt.Address {
	return l.addr
}

// Owner returns the administering account.
func (l *Ledger) Owner() sdt.Address {
	return l.owner
}

func (l *Ledger) getAccount(addr sdt.Address) (*account, error) {
	var acc account
	if err := l.state.GetStorage(l.addr, accountKey(addr), &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (l *Ledger) setAccount(addr sdt.Address, acc *account) error {
	return l.state.SetStorage(l.addr, accountKey(addr), acc)
}

// Mint credits amount to addr and grows total supply. Only the genesis
// build may mint; the supply is fixed afterwards.
func (l *Ledger) Mint(addr sdt.Address, amount *big.Int) error {
	acc, err := l.getAccount(addr)
	if err != nil {
		return err
	}
	acc.Balance.Add(acc.Balance, amount)
	if err := l.setAccount(addr, acc); err != nil {
		return err
	}
	supply, err := l.state.GetBigInt(l.addr, totalSupplyKey)
	if err != nil {
		return err
	}
	return l.state.SetBigInt(l.addr, totalSupplyKey, supply.Add(supply, amount))
}

// Burn destroys amount from addr and shrinks total supply.
func (l *Ledger) Burn(addr sdt.Address, amount *big.Int) error {
	acc, err := l.getAccount(addr)
	if err != nil {
		return err
	}
	if acc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	acc.Balance.Sub(acc.Balance, amount)
	if err := l.setAccount(addr, acc); err != nil {
		return err
	}
	supply, err := l.state.GetBigInt(l.addr, totalSupplyKey)
	if err != nil {
		return err
	}
	return l.state.SetBigInt(l.addr, totalSupplyKey, supply.Sub(supply, amount))
}

// TotalSupply returns the token total supply.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	return l.state.GetBigInt(l.addr, totalSupplyKey)
}

// BalanceOf returns the balance of an account.
func (l *Ledger) BalanceOf(addr sdt.Address) (*big.Int, error) {
	acc, err := l.getAccount(addr)
	if err != nil {
		return nil, err
	}
	return acc.Balance, nil
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(from sdt.Address, to sdt.Address, amount *big.Int) error {
	if to.IsZero() {
		return ErrZeroAddress
	}
	if amount.Sign() < 0 {
		return ErrInsufficientBalance
	}
	fromAcc, err := l.getAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if from == to || amount.Sign() == 0 {
		return nil
	}
	toAcc, err := l.getAccount(to)
	if err != nil {
		return err
	}
	fromAcc.Balance.Sub(fromAcc.Balance, amount)
	toAcc.Balance.Add(toAcc.Balance, amount)
	if err := l.setAccount(from, fromAcc); err != nil {
		return err
	}
	return l.setAccount(to, toAcc)
}

// Approve sets the allowance of spender over owner's tokens.
func (l *Ledger) Approve(owner sdt.Address, spender sdt.Address, amount *big.Int) error {
	return l.state.SetBigInt(l.addr, allowanceKey(owner, spender), amount)
}

// Allowance returns the remaining allowance of spender over owner's tokens.
func (l *Ledger) Allowance(owner sdt.Address, spender sdt.Address) (*big.Int, error) {
	return l.state.GetBigInt(l.addr, allowanceKey(owner, spender))
}

// IncreaseApproval raises spender's allowance by delta.
func (l *Ledger) IncreaseApproval(owner sdt.Address, spender sdt.Address, delta *big.Int) error {
	allowance, err := l.Allowance(owner, spender)
	if err != nil {
		return err
	}
	return l.Approve(owner, spender, allowance.Add(allowance, delta))
}

// DecreaseApproval lowers spender's allowance by delta, clamping at zero.
func (l *Ledger) DecreaseApproval(owner sdt.Address, spender sdt.Address, delta *big.Int) error {
	allowance, err := l.Allowance(owner, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(delta) <= 0 {
		allowance.SetInt64(0)
	} else {
		allowance.Sub(allowance, delta)
	}
	return l.Approve(owner, spender, allowance)
}

func (l *Ledger) spendAllowance(owner sdt.Address, spender sdt.Address, amount *big.Int) error {
	allowance, err := l.Allowance(owner, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	return l.Approve(owner, spender, allowance.Sub(allowance, amount))
}

// TransferFrom moves amount from one account to another on behalf of
// spender, within spender's approved allowance.
func (l *Ledger) TransferFrom(spender sdt.Address, from sdt.Address, to sdt.Address, amount *big.Int) error {
	if to.IsZero() {
		return ErrZeroAddress
	}
	fromAcc, err := l.getAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if err := l.spendAllowance(from, spender, amount); err != nil {
		return err
	}
	return l.Transfer(from, to, amount)
}

// VerifiedTransferFrom moves value from one account to another on behalf
// of a verified caller, paying the caller a fee out of the same
// allowance. The exchange rate tags the external settlement and must be
// set.
func (l *Ledger) VerifiedTransferFrom(
	caller sdt.Address,
	from sdt.Address,
	to sdt.Address,
	value *big.Int,
	referenceID uint64,
	exchangeRate *big.Int,
	fee *big.Int,
) error {
	if exchangeRate.Sign() == 0 {
		return ErrRateNotSet
	}
	verified, err := l.IsVerified(caller)
	if err != nil {
		return err
	}
	if !verified {
		return ErrNotVerified
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	total := new(big.Int).Add(value, fee)
	fromAcc, err := l.getAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance.Cmp(total) < 0 {
		return ErrInsufficientBalance
	}
	if err := l.spendAllowance(from, caller, total); err != nil {
		return err
	}
	if err := l.Transfer(from, to, value); err != nil {
		return err
	}
	return l.Transfer(from, caller, fee)
}

// Verify marks addr as a verified account. Owner only.
func (l *Ledger) Verify(caller sdt.Address, addr sdt.Address) error {
	return l.setVerified(caller, addr, true)
}

// Unverify removes addr from the verified set. Owner only.
func (l *Ledger) Unverify(caller sdt.Address, addr sdt.Address) error {
	return l.setVerified(caller, addr, false)
}

func (l *Ledger) setVerified(caller sdt.Address, addr sdt.Address, verified bool) error {
	if caller != l.owner {
		return ErrUnauthorized
	}
	acc, err := l.getAccount(addr)
	if err != nil {
		return err
	}
	acc.Verified = verified
	return l.setAccount(addr, acc)
}

// IsVerified reports whether addr belongs to the verified set. The
// owner account is always verified.
func (l *Ledger) IsVerified(addr sdt.Address) (bool, error) {
	if addr == l.owner {
		return true, nil
	}
	acc, err := l.getAccount(addr)
	if err != nil {
		return false, err
	}
	return acc.Verified, nil
}
