// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package sdt

import "math/big"

// Constants of the SDT token.
const (
	// Decimals display decimals of the token.
	Decimals = 18

	// InitialSupplyTokens whole tokens minted at genesis.
	InitialSupplyTokens = 700 * 1000 * 1000
)

var (
	// DecimalUnit 10^18, the smallest accounting unit per whole token.
	DecimalUnit = big.NewInt(1e18)

	// InitialSupply total supply at genesis, in accounting units.
	InitialSupply = ToUnits(big.NewInt(InitialSupplyTokens))
)

// ToUnits scales an amount of whole tokens to accounting units.
func ToUnits(tokens *big.Int) *big.Int {
	return new(big.Int).Mul(tokens, DecimalUnit)
}
