// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package escrow

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/vechain/sdt/sdt"
	"github.com/vechain/sdt/state"
)

// record a reference-keyed lock. Exactly one of release or claim
// terminally resolves it; Invalidated orthogonally blocks claim only.
type record struct {
	Authority   sdt.Address
	Recipient   sdt.Address
	Amount      *big.Int
	Fee         *big.Int
	Expiration  uint64
	Funded      bool
	Resolved    bool
	Invalidated bool
}

var (
	_ state.StorageEncoder = (*record)(nil)
	_ state.StorageDecoder = (*record)(nil)
)

func (r *record) exists() bool {
	return !r.Authority.IsZero() || r.Amount.Sign() != 0
}

func (r *record) Encode() ([]byte, error) {
	if !r.exists() {
		return nil, nil
	}
	return rlp.EncodeToBytes(r)
}

func (r *record) Decode(data []byte) error {
	if len(data) == 0 {
		*r = record{Amount: &big.Int{}, Fee: &big.Int{}}
		return nil
	}
	return rlp.DecodeBytes(data, r)
}
