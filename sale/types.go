// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package sale

import (
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/vechain/sdt/state"
)

// saleStatus tracks the engine state machine. Finalized is terminal.
type saleStatus struct {
	Initialized bool
	Stopped     bool
	Finalized   bool
}

var (
	_ state.StorageEncoder = (*saleStatus)(nil)
	_ state.StorageDecoder = (*saleStatus)(nil)
)

func (s *saleStatus) Encode() ([]byte, error) {
	if !s.Initialized && !s.Stopped && !s.Finalized {
		return nil, nil
	}
	return rlp.EncodeToBytes(s)
}

func (s *saleStatus) Decode(data []byte) error {
	if len(data) == 0 {
		*s = saleStatus{}
		return nil
	}
	return rlp.DecodeBytes(data, s)
}

type allowed struct {
	Allowed bool
}

var (
	_ state.StorageEncoder = (*allowed)(nil)
	_ state.StorageDecoder = (*allowed)(nil)
)

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
