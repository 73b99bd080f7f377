// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/vechain/sdt/state"
)

type account struct {
	Balance  *big.Int
	Verified bool
}

var (
	_ state.StorageEncoder = (*account)(nil)
	_ state.StorageDecoder = (*account)(nil)
)

func (a *account) Encode() ([]byte, error) {
	if a.Balance.Sign() == 0 && !a.Verified {
		return nil, nil
	}
	return rlp.EncodeToBytes(a)
}

func (a *account) Decode(data []byte) error {
	if len(data) == 0 {
		*a = account{&big.Int{}, false}
		return nil
	}
	return rlp.DecodeBytes(data, a)
}
