// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/sdt/lvldb"
	"github.com/vechain/sdt/sdt"
	"github.com/vechain/sdt/state"
)

var (
	ledgerAddr = sdt.BytesToAddress([]byte("sdt-token"))
	owner      = sdt.BytesToAddress([]byte("owner"))
	spender    = sdt.BytesToAddress([]byte("spender"))
	recipient  = sdt.BytesToAddress([]byte("recipient"))
)

func newTestLedger(t *testing.T) *Ledger {
	db, err := lvldb.NewMem()
	require.Nil(t, err)
	l := New(ledgerAddr, owner, state.New(db))
	require.Nil(t, l.Mint(owner, sdt.InitialSupply))
	return l
}

func amount(a int64) *big.Int {
	return sdt.ToUnits(big.NewInt(a))
}

func TestGenesisSupply(t *testing.T) {
	l := newTestLedger(t)

	supply, err := l.TotalSupply()
	assert.Nil(t, err)
	assert.Equal(t, amount(700000000), supply)

	bal, _ := l.BalanceOf(owner)
	assert.Equal(t, amount(700000000), bal)
}

func TestTransfer(t *testing.T) {
	l := newTestLedger(t)

	assert.Nil(t, l.Transfer(owner, recipient, amount(350000000)))

	bal, _ := l.BalanceOf(owner)
	assert.Equal(t, amount(350000000), bal)
	bal, _ = l.BalanceOf(recipient)
	assert.Equal(t, amount(350000000), bal)

	assert.Equal(t, ErrInsufficientBalance, l.Transfer(owner, recipient, amount(700000001)))
	assert.Equal(t, ErrZeroAddress, l.Transfer(owner, sdt.Address{}, amount(1)))
}

func TestBurn(t *testing.T) {
	l := newTestLedger(t)

	assert.Nil(t, l.Burn(owner, amount(100000000)))
	supply, _ := l.TotalSupply()
	assert.Equal(t, amount(600000000), supply)
	bal, _ := l.BalanceOf(owner)
	assert.Equal(t, amount(600000000), bal)

	assert.Equal(t, ErrInsufficientBalance, l.Burn(owner, amount(600000001)))
}

func TestAllowance(t *testing.T) {
	l := newTestLedger(t)

	assert.Nil(t, l.Approve(owner, spender, amount(1)))
	allowance, _ := l.Allowance(owner, spender)
	assert.Equal(t, amount(1), allowance)

	assert.Nil(t, l.Approve(owner, spender, amount(700000000)))
	assert.Nil(t, l.TransferFrom(spender, owner, recipient, amount(700000000)))

	bal, _ := l.BalanceOf(owner)
	assert.Equal(t, new(big.Int), bal)
	bal, _ = l.BalanceOf(spender)
	assert.Equal(t, new(big.Int), bal)
	bal, _ = l.BalanceOf(recipient)
	assert.Equal(t, amount(700000000), bal)
}

func TestTransferFromLimits(t *testing.T) {
	l := newTestLedger(t)

	assert.Nil(t, l.Approve(owner, spender, amount(99)))
	assert.Equal(t, ErrInsufficientAllowance, l.TransferFrom(spender, owner, recipient, amount(100)))

	assert.Nil(t, l.Approve(owner, spender, amount(700000001)))
	assert.Equal(t, ErrInsufficientBalance, l.TransferFrom(spender, owner, recipient, amount(700000001)))
}

func TestApprovalAdjustments(t *testing.T) {
	l := newTestLedger(t)

	assert.Nil(t, l.IncreaseApproval(owner, spender, big.NewInt(50)))
	allowance, _ := l.Allowance(owner, spender)
	assert.Equal(t, big.NewInt(50), allowance)

	assert.Nil(t, l.DecreaseApproval(owner, spender, big.NewInt(10)))
	allowance, _ = l.Allowance(owner, spender)
	assert.Equal(t, big.NewInt(40), allowance)

	// decreasing past zero clamps
	assert.Nil(t, l.DecreaseApproval(owner, spender, big.NewInt(60)))
	allowance, _ = l.Allowance(owner, spender)
	assert.Equal(t, new(big.Int), allowance)
}

func TestVerifiedSet(t *testing.T) {
	l := newTestLedger(t)

	verified, _ := l.IsVerified(owner)
	assert.True(t, verified)
	verified, _ = l.IsVerified(spender)
	assert.False(t, verified)

	assert.Nil(t, l.Verify(owner, spender))
	verified, _ = l.IsVerified(spender)
	assert.True(t, verified)

	assert.Equal(t, ErrUnauthorized, l.Verify(spender, recipient))

	assert.Nil(t, l.Unverify(owner, spender))
	verified, _ = l.IsVerified(spender)
	assert.False(t, verified)
}

func TestVerifiedTransferFrom(t *testing.T) {
	l := newTestLedger(t)

	assert.Nil(t, l.Verify(owner, spender))
	assert.Nil(t, l.Approve(owner, spender, amount(700000000)))
	assert.Nil(t, l.VerifiedTransferFrom(
		spender, owner, recipient, amount(699999999), 1, big.NewInt(1), amount(1)))

	bal, _ := l.BalanceOf(owner)
	assert.Equal(t, new(big.Int), bal)
	bal, _ = l.BalanceOf(recipient)
	assert.Equal(t, amount(699999999), bal)
	bal, _ = l.BalanceOf(spender)
	assert.Equal(t, amount(1), bal)
}

func TestVerifiedTransferFromGuards(t *testing.T) {
	l := newTestLedger(t)
	assert.Nil(t, l.Approve(owner, spender, amount(100)))

	// unverified caller
	err := l.VerifiedTransferFrom(spender, owner, recipient, amount(99), 1, big.NewInt(1), amount(1))
	assert.Equal(t, ErrNotVerified, err)

	// unverified after revocation
	assert.Nil(t, l.Verify(owner, spender))
	assert.Nil(t, l.Unverify(owner, spender))
	err = l.VerifiedTransferFrom(spender, owner, recipient, amount(99), 1, big.NewInt(1), amount(1))
	assert.Equal(t, ErrNotVerified, err)

	// zero exchange rate
	assert.Nil(t, l.Verify(owner, spender))
	err = l.VerifiedTransferFrom(spender, owner, recipient, amount(99), 1, new(big.Int), amount(1))
	assert.Equal(t, ErrRateNotSet, err)
}
