// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pricing

import "math/big"

// lnPrec working precision in bits. Far beyond the 1e-5 relative
// tolerance the sale formula tolerates.
const lnPrec = 256

var (
	oneFloat = newFloat().SetInt64(1)
	twoFloat = newFloat().SetInt64(2)

	// ln(2) to well over lnPrec bits.
	ln2 = mustParseFloat("0.6931471805599453094172321214581765680755001343602552541206800094933936219696947")
)

func newFloat() *big.Float {
	return new(big.Float).SetPrec(lnPrec)
}

func mustParseFloat(s string) *big.Float {
	f, _, err := big.ParseFloat(s, 10, lnPrec, big.ToNearestEven)
	if err != nil {
		panic(err)
	}
	return f
}

// lnRatio returns ln(num/den) for positive integers num >= den > 0.
func lnRatio(num *big.Int, den *big.Int) *big.Float {
	x := newFloat().Quo(newFloat().SetInt(num), newFloat().SetInt(den))
	return lnFloat(x)
}

// lnFloat computes the natural logarithm of a positive big.Float.
//
// The argument is split into mantissa and exponent, x = m * 2^e with
// m in [0.5, 1), so ln(x) = e*ln2 + ln(m). ln(m) is evaluated with the
// atanh series ln(m) = 2*(z + z^3/3 + z^5/5 + ...), z = (m-1)/(m+1),
// which converges geometrically since |z| <= 1/3.
func lnFloat(x *big.Float) *big.Float {
	mant := newFloat()
	exp := x.MantExp(mant)

	z := newFloat().Quo(
		newFloat().Sub(mant, oneFloat),
		newFloat().Add(mant, oneFloat),
	)
	zz := newFloat().Mul(z, z)

	sum := newFloat().Set(z)
	term := newFloat().Set(z)
	for i := int64(3); ; i += 2 {
		term.Mul(term, zz)
		delta := newFloat().Quo(term, newFloat().SetInt64(i))
		sum.Add(sum, delta)
		if delta.MantExp(nil)-sum.MantExp(nil) < -lnPrec {
			break
		}
	}
	sum.Mul(sum, twoFloat)

	return sum.Add(sum, newFloat().Mul(ln2, newFloat().SetInt64(int64(exp))))
}
