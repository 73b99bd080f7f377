// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package state provides structured storage for engine records.
//
// Records are rlp encoded and stored in a key/value store, keyed by the
// hash of (owning account address, storage key). Every engine owns its
// records exclusively; cross-engine access goes through engine methods,
// never through shared storage keys.
package state

import (
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/vechain/sdt/kv"
	"github.com/vechain/sdt/sdt"
)

// StorageEncoder defines the interface of custom storage encoding.
type StorageEncoder interface {
	Encode() ([]byte, error)
}

// StorageDecoder defines the interface of custom storage decoding.
type StorageDecoder interface {
	Decode([]byte) error
}

// State manages structured storage over a kv store.
type State struct {
	kv kv.GetPutter
}

// New creates a state object backed by the given kv store.
func New(kv kv.GetPutter) *State {
	return &State{kv}
}

func storageKey(addr sdt.Address, key sdt.Bytes32) []byte {
	return crypto.Keccak256(addr.Bytes(), key.Bytes())
}

// GetStorage loads the record stored under (addr, key) into dec.
// A missing record decodes from nil, which by convention yields the
// record's zero value.
func (s *State) GetStorage(addr sdt.Address, key sdt.Bytes32, dec StorageDecoder) error {
	data, err := s.kv.Get(storageKey(addr, key))
	if err != nil {
		if s.kv.IsNotFound(err) {
			return dec.Decode(nil)
		}
		return errors.Wrap(err, "get storage")
	}
	return dec.Decode(data)
}

// SetStorage stores enc under (addr, key). An empty encoding deletes
// the record.
func (s *State) SetStorage(addr sdt.Address, key sdt.Bytes32, enc StorageEncoder) error {
	data, err := enc.Encode()
	if err != nil {
		return errors.Wrap(err, "encode storage")
	}
	k := storageKey(addr, key)
	if len(data) == 0 {
		return s.kv.Delete(k)
	}
	return s.kv.Put(k, data)
}

// HasStorage returns whether a record exists under (addr, key).
func (s *State) HasStorage(addr sdt.Address, key sdt.Bytes32) (bool, error) {
	return s.kv.Has(storageKey(addr, key))
}

// GetBigInt loads a big.Int stored under (addr, key). Missing values
// load as zero.
func (s *State) GetBigInt(addr sdt.Address, key sdt.Bytes32) (*big.Int, error) {
	data, err := s.kv.Get(storageKey(addr, key))
	if err != nil {
		if s.kv.IsNotFound(err) {
			return new(big.Int), nil
		}
		return nil, errors.Wrap(err, "get storage")
	}
	var v big.Int
	if err := rlp.DecodeBytes(data, &v); err != nil {
		return nil, errors.Wrap(err, "decode storage")
	}
	return &v, nil
}

// SetBigInt stores a big.Int under (addr, key). Zero deletes the slot.
func (s *State) SetBigInt(addr sdt.Address, key sdt.Bytes32, v *big.Int) error {
	k := storageKey(addr, key)
	if v.Sign() == 0 {
		return s.kv.Delete(k)
	}
	data, err := rlp.EncodeToBytes(v)
	if err != nil {
		return errors.Wrap(err, "encode storage")
	}
	return s.kv.Put(k, data)
}
