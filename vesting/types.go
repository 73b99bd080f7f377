// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vesting

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/vechain/sdt/sdt"
	"github.com/vechain/sdt/state"
)

type (
	// grant a single vesting schedule. Claimed only ever grows, and
	// never beyond Amount.
	grant struct {
		Amount  *big.Int
		Start   uint64
		End     uint64
		Claimed *big.Int
	}

	// grantBook all grants of one beneficiary, in grant order.
	grantBook struct {
		Grants []grant
	}

	status struct {
		Initialized bool
		Stopped     bool
		Sale        sdt.Address
	}

	allowed struct {
		Allowed bool
	}
)

var (
	_ state.StorageEncoder = (*grantBook)(nil)
	_ state.StorageDecoder = (*grantBook)(nil)

	_ state.StorageEncoder = (*status)(nil)
	_ state.StorageDecoder = (*status)(nil)

	_ state.StorageEncoder = (*allowed)(nil)
	_ state.StorageDecoder = (*allowed)(nil)
)

// accrued returns the time-proportional unlocked amount at ts,
// independent of what has been claimed.
func (g *grant) accrued(ts uint64) *big.Int {
	if ts <= g.Start {
		return new(big.Int)
	}
	if ts >= g.End {
		return new(big.Int).Set(g.Amount)
	}
	// multiply before divide to keep integer precision
	x := new(big.Int).SetUint64(ts - g.Start)
	x.Mul(x, g.Amount)
	return x.Div(x, new(big.Int).SetUint64(g.End-g.Start))
}

func (b *grantBook) Encode() ([]byte, error) {
	if len(b.Grants) == 0 {
		return nil, nil
	}
	return rlp.EncodeToBytes(b)
}

func (b *grantBook) Decode(data []byte) error {
	if len(data) == 0 {
		*b = grantBook{}
		return nil
	}
	return rlp.DecodeBytes(data, b)
}

func (s *status) Encode() ([]byte, error) {
	if !s.Initialized {
		return nil, nil
	}
	return rlp.EncodeToBytes(s)
}

func (s *status) Decode(data []byte) error {
	if len(data) == 0 {
		*s = status{}
		return nil
	}
	return rlp.DecodeBytes(data, s)
}

func (a *allowed) Encode() ([]byte, error) {
	if !a.Allowed {
		return nil, nil
	}
	return rlp.EncodeToBytes(a)
}

func (a *allowed) Decode(data []byte) error {
	if len(data) == 0 {
		*a = allowed{}
		return nil
	}
	return rlp.DecodeBytes(data, a)
}
