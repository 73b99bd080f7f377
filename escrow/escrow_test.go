// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package escrow

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
	futureDate = uint64(2000000000)
	pastDate   = uint64(1)
	now        = uint64(1000000000)

	reference    = uint64(1)
	referenceTwo = uint64(2)
)

var (
	holdAddr  = sdt.BytesToAddress([]byte("escrow-hold"))
	owner     = sdt.BytesToAddress([]byte("owner"))
	authority = sdt.BytesToAddress([]byte("authority"))
	dest      = sdt.BytesToAddress([]byte("dest"))

	lockAmount = big.NewInt(100)
	lockFee    = big.NewInt(1)
)

type testEnv struct {
	st     *state.State
	ledger *ledger.Ledger
	eng    *Engine
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := lvldb.NewMem()
	require.Nil(t, err)
	st := state.New(db)

	l := ledger.New(sdt.BytesToAddress([]byte("sdt-token")), owner, st)
	require.Nil(t, l.Mint(owner, sdt.ToUnits(big.NewInt(1))))

	return &testEnv{st, l, New(holdAddr, owner, l, st)}
}

// assertConservation checks held == hold account balance.
func (env *testEnv) assertConservation(t *testing.T) {
	held, err := env.eng.HeldTotal()
	require.Nil(t, err)
	balance, err := env.ledger.BalanceOf(holdAddr)
	require.Nil(t, err)
	assert.Equal(t, balance, held)
}

func TestLockMovesAmountPlusFee(t *testing.T) {
	env := newTestEnv(t)

	before, _ := env.ledger.BalanceOf(owner)
	require.Nil(t, env.eng.EscrowTransfer(owner, authority, dest, reference, lockAmount, lockFee, futureDate))
	after, _ := env.ledger.BalanceOf(owner)

	holdBalance, _ := env.ledger.BalanceOf(holdAddr)
	assert.Equal(t, big.NewInt(101), holdBalance)
	assert.Equal(t, new(big.Int).Sub(before, big.NewInt(101)), after)
	env.assertConservation(t)
}

func TestDuplicateReference(t *testing.T) {
	env := newTestEnv(t)
	require.Nil(t, env.eng.EscrowTransfer(owner, authority, dest, reference, lockAmount, lockFee, futureDate))
	err := env.eng.EscrowTransfer(owner, authority, dest, reference, lockAmount, lockFee, futureDate)
	assert.Equal(t, ErrDuplicateReference, err)
}

func TestLockBeyondBalance(t *testing.T) {
	env := newTestEnv(t)

	tooMuch := sdt.ToUnits(big.NewInt(2))
	err := env.eng.EscrowTransfer(owner, authority, dest, referenceTwo, tooMuch, lockFee, futureDate)
	assert.Equal(t, ledger.ErrInsufficientBalance, err)

	// not enough left over to cover the fee either
	almostAll := new(big.Int).Sub(sdt.ToUnits(big.NewInt(1)), big.NewInt(1))
	err = env.eng.EscrowTransfer(owner, authority, dest, referenceTwo, almostAll, big.NewInt(2), futureDate)
	assert.Equal(t, ledger.ErrInsufficientBalance, err)

	env.assertConservation(t)
}

func TestCreateThenFund(t *testing.T) {
	env := newTestEnv(t)

	require.Nil(t, env.eng.Create(owner, authority, dest, reference, lockAmount, lockFee, futureDate))
	assert.Equal(t, ErrNotFound, env.eng.Fund(owner, referenceTwo, lockAmount, lockFee))
	assert.Equal(t, ErrAmountMismatch, env.eng.Fund(owner, reference, lockAmount, big.NewInt(5)))
	assert.Equal(t, ErrAmountMismatch, env.eng.Fund(owner, reference, big.NewInt(7), lockFee))

	// release before funding settles nothing
	assert.Equal(t, ErrNotFunded, env.eng.Release(authority, owner, dest, reference, big.NewInt(1)))

	require.Nil(t, env.eng.Fund(owner, reference, lockAmount, lockFee))
	assert.Equal(t, ErrAlreadyFunded, env.eng.Fund(owner, reference, lockAmount, lockFee))
	env.assertConservation(t)
}

func TestReleaseRequiresVerifiedRecipient(t *testing.T) {
	env := newTestEnv(t)
	require.Nil(t, env.eng.EscrowTransfer(owner, authority, dest, reference, lockAmount, lockFee, futureDate))

	// zero exchange rate settles on ledger, so the recipient must be verified
	err := env.eng.Release(authority, owner, dest, reference, new(big.Int))
	assert.Equal(t, ErrExchangeRateRequired, err)

	require.Nil(t, env.ledger.Verify(owner, dest))

	ownerBefore, _ := env.ledger.BalanceOf(owner)
	require.Nil(t, env.eng.Release(authority, owner, dest, reference, new(big.Int)))
	ownerAfter, _ := env.ledger.BalanceOf(owner)

	destBalance, _ := env.ledger.BalanceOf(dest)
	authBalance, _ := env.ledger.BalanceOf(authority)
	holdBalance, _ := env.ledger.BalanceOf(holdAddr)

	assert.Equal(t, ownerBefore, ownerAfter)
	assert.Equal(t, lockAmount, destBalance)
	assert.Equal(t, lockFee, authBalance)
	assert.Equal(t, new(big.Int), holdBalance)
	env.assertConservation(t)
}

func TestReleaseWithExchangeRate(t *testing.T) {
	env := newTestEnv(t)
	require.Nil(t, env.eng.EscrowTransfer(owner, authority, dest, reference, lockAmount, lockFee, futureDate))

	// a non-zero rate records external settlement, no verification needed
	require.Nil(t, env.eng.Release(authority, owner, dest, reference, big.NewInt(1)))

	destBalance, _ := env.ledger.BalanceOf(dest)
	assert.Equal(t, lockAmount, destBalance)
	env.assertConservation(t)
}

func TestReleaseIdempotence(t *testing.T) {
	env := newTestEnv(t)
	require.Nil(t, env.eng.EscrowTransfer(owner, authority, dest, reference, lockAmount, lockFee, futureDate))
	require.Nil(t, env.eng.Release(authority, owner, dest, reference, big.NewInt(1)))

	destBefore, _ := env.ledger.BalanceOf(dest)
	err := env.eng.Release(authority, owner, dest, reference, big.NewInt(1))
	assert.Equal(t, ErrAlreadyResolved, err)
	destAfter, _ := env.ledger.BalanceOf(dest)
	assert.Equal(t, destBefore, destAfter)
}

func TestReleaseAuthorityOnly(t *testing.T) {
	env := newTestEnv(t)
	require.Nil(t, env.eng.EscrowTransfer(owner, authority, dest, reference, lockAmount, lockFee, futureDate))
	assert.Equal(t, ErrUnauthorized, env.eng.Release(dest, owner, dest, reference, big.NewInt(1)))
	assert.Equal(t, ErrNotFound, env.eng.Release(authority, owner, dest, referenceTwo, big.NewInt(1)))
}

func TestRollbackToOwner(t *testing.T) {
	env := newTestEnv(t)
	require.Nil(t, env.eng.EscrowTransfer(owner, authority, dest, reference, lockAmount, lockFee, futureDate))

	// releasing back to the owner returns the amount but not the fee
	ownerBefore, _ := env.ledger.BalanceOf(owner)
	require.Nil(t, env.eng.Release(authority, owner, owner, reference, big.NewInt(1)))
	ownerAfter, _ := env.ledger.BalanceOf(owner)

	assert.Equal(t, new(big.Int).Add(ownerBefore, lockAmount), ownerAfter)
	authBalance, _ := env.ledger.BalanceOf(authority)
	assert.Equal(t, lockFee, authBalance)
	destBalance, _ := env.ledger.BalanceOf(dest)
	assert.Equal(t, new(big.Int), destBalance)
	env.assertConservation(t)
}

func TestClaimExpiredLock(t *testing.T) {
	env := newTestEnv(t)
	require.Nil(t, env.eng.EscrowTransfer(owner, authority, dest, reference, lockAmount, lockFee, pastDate))

	ownerBefore, _ := env.ledger.BalanceOf(owner)
	require.Nil(t, env.eng.Claim(owner, reference, now))
	ownerAfter, _ := env.ledger.BalanceOf(owner)

	// claim refunds the fee as well, unlike release
	assert.Equal(t, new(big.Int).Add(ownerBefore, big.NewInt(101)), ownerAfter)
	holdBalance, _ := env.ledger.BalanceOf(holdAddr)
	assert.Equal(t, new(big.Int), holdBalance)
	env.assertConservation(t)

	assert.Equal(t, ErrAlreadyResolved, env.eng.Claim(owner, reference, now))
}

func TestClaimBeforeExpiration(t *testing.T) {
	env := newTestEnv(t)
	require.Nil(t, env.eng.EscrowTransfer(owner, authority, dest, reference, lockAmount, lockFee, futureDate))
	assert.Equal(t, ErrNotExpired, env.eng.Claim(owner, reference, now))
}

func TestMediateBlocksClaim(t *testing.T) {
	env := newTestEnv(t)
	require.Nil(t, env.eng.EscrowTransfer(owner, authority, dest, reference, lockAmount, lockFee, pastDate))

	assert.Equal(t, ErrUnauthorized, env.eng.Mediate(dest, owner, reference))
	require.Nil(t, env.eng.Mediate(authority, owner, reference))

	assert.Equal(t, ErrInvalidated, env.eng.Claim(owner, reference, now))

	// mediation leaves release possible
	require.Nil(t, env.eng.Release(authority, owner, dest, reference, big.NewInt(1)))
	destBalance, _ := env.ledger.BalanceOf(dest)
	assert.Equal(t, lockAmount, destBalance)
	authBalance, _ := env.ledger.BalanceOf(authority)
	assert.Equal(t, lockFee, authBalance)
	env.assertConservation(t)
}

func TestTransferToken(t *testing.T) {
	env := newTestEnv(t)

	// the native token cannot be swept out of the hold account
	err := env.eng.TransferToken(owner, env.ledger, dest, big.NewInt(1))
	assert.Equal(t, ErrWrongToken, err)

	// another token sent to the hold account by mistake can
	other := ledger.New(sdt.BytesToAddress([]byte("other-token")), owner, env.st)
	require.Nil(t, other.Mint(holdAddr, big.NewInt(42)))

	assert.Equal(t, ErrUnauthorized, env.eng.TransferToken(dest, other, dest, big.NewInt(42)))
	require.Nil(t, env.eng.TransferToken(owner, other, dest, big.NewInt(42)))

	balance, _ := other.BalanceOf(dest)
	assert.Equal(t, big.NewInt(42), balance)
}

func TestHeldAccumulates(t *testing.T) {
	env := newTestEnv(t)
	require.Nil(t, env.eng.EscrowTransfer(owner, authority, dest, reference, lockAmount, lockFee, futureDate))
	require.Nil(t, env.eng.EscrowTransfer(owner, authority, dest, referenceTwo, big.NewInt(200), big.NewInt(2), futureDate))

	held, _ := env.eng.HeldTotal()
	assert.Equal(t, big.NewInt(303), held)
	env.assertConservation(t)

	require.Nil(t, env.eng.Release(authority, owner, dest, reference, big.NewInt(1)))
	held, _ = env.eng.HeldTotal()
	assert.Equal(t, big.NewInt(202), held)
	env.assertConservation(t)
}
