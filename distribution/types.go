// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package distribution

import (
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/vechain/sdt/state"
)

// flag a stored boolean. Absent encodes as unset.
type flag struct {
	Set bool
}

var (
	_ state.StorageEncoder = (*flag)(nil)
	_ state.StorageDecoder = (*flag)(nil)
)

func (f *flag) Encode() ([]byte, error) {
	if !f.Set {
		return nil, nil
	}
	return rlp.EncodeToBytes(f)
}

func (f *flag) Decode(data []byte) error {
	if len(data) == 0 {
		*f = flag{}
		return nil
	}
	return rlp.DecodeBytes(data, f)
}
