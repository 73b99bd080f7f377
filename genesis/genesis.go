// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package genesis builds the initial system state from a YAML
// deployment configuration.
package genesis

import (
	"math/big"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vechain/sdt/distribution"
	"github.com/vechain/sdt/escrow"
	"github.com/vechain/sdt/ledger"
	"github.com/vechain/sdt/pricing"
	"github.com/vechain/sdt/sale"
	"github.com/vechain/sdt/sdt"
	"github.com/vechain/sdt/state"
	"github.com/vechain/sdt/vesting"
)

// Storage namespace accounts of the system, derived from names the way
// builtin contract addresses are.
var (
	TokenAddress        = sdt.BytesToAddress([]byte("sdt-token"))
	SaleAddress         = sdt.BytesToAddress([]byte("sdt-sale"))
	EscrowAddress       = sdt.BytesToAddress([]byte("sdt-escrow"))
	VestingAddress      = sdt.BytesToAddress([]byte("sdt-vesting"))
	DistributionAddress = sdt.BytesToAddress([]byte("sdt-distribution"))
)

// Config is the YAML deployment schema. Token amounts are whole
// tokens, prices milli-USD, times unix seconds.
type Config struct {
	Owner   string `yaml:"owner"`
	Reserve string `yaml:"reserve"`

	SupplyTokens int64 `yaml:"supplyTokens"`

	Sale struct {
		OpenTime                uint64 `yaml:"openTime"`
		CloseTime               uint64 `yaml:"closeTime"`
		MinPurchaseUSD          int64  `yaml:"minPurchaseUSD"`
		DistributionShareTokens int64  `yaml:"distributionShareTokens"`
		PoolAMaxTokens          int64  `yaml:"poolAMaxTokens"`
		PoolBMaxTokens          int64  `yaml:"poolBMaxTokens"`
		PoolCMaxTokens          int64  `yaml:"poolCMaxTokens"`
		PoolDTokens             int64  `yaml:"poolDTokens"`
	} `yaml:"sale"`

	Vesting struct {
		Start                  uint64 `yaml:"start"`
		End                    uint64 `yaml:"end"`
		BlockClaimsWhenStopped bool   `yaml:"blockClaimsWhenStopped"`
	} `yaml:"vesting"`

	Distribution struct {
		Start               uint64  `yaml:"start"`
		StageDuration       uint64  `yaml:"stageDuration"`
		StageCapacityTokens int64   `yaml:"stageCapacityTokens"`
		PriceFloorMilliUSD  int64   `yaml:"priceFloorMilliUSD"`
		PriceSlopeMilliUSD  int64   `yaml:"priceSlopeMilliUSD"`
		BonusRates          []int64 `yaml:"bonusRates"`
	} `yaml:"distribution"`
}

func (c *Config) validate() error {
	if _, err := sdt.ParseAddress(c.Owner); err != nil {
		return errors.Wrap(err, "owner")
	}
	if _, err := sdt.ParseAddress(c.Reserve); err != nil {
		return errors.Wrap(err, "reserve")
	}
	if c.SupplyTokens <= 0 {
		return errors.New("supplyTokens must be positive")
	}
	if c.Sale.CloseTime <= c.Sale.OpenTime {
		return errors.New("sale window must not be empty")
	}
	if c.Vesting.End <= c.Vesting.Start {
		return errors.New("vesting window must not be empty")
	}
	if c.Distribution.StageDuration == 0 {
		return errors.New("distribution stageDuration must be positive")
	}
	if c.Distribution.StageCapacityTokens <= 0 {
		return errors.New("distribution stageCapacityTokens must be positive")
	}
	return nil
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read genesis config")
	}
	return Parse(data)
}

// Parse decodes and validates YAML config bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse genesis config")
	}
	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid genesis config")
	}
	return &cfg, nil
}

// milliUSD 1e18-scaled USD from a milli-USD amount.
func milliUSD(m int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(m), big.NewInt(1e15))
}

// System bundles the engines built at genesis.
type System struct {
	Owner        sdt.Address
	Reserve      sdt.Address
	Ledger       *ledger.Ledger
	Sale         *sale.Engine
	Escrow       *escrow.Engine
	Vesting      *vesting.Engine
	Distribution *distribution.Engine
}

// Build mints the supply and wires the engines over st. The sale comes
// out initialized: the supply split between reserve, distribution pool
// and sale pool has already happened.
func Build(st *state.State, cfg *Config) (*System, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	owner := sdt.MustParseAddress(cfg.Owner)
	reserve := sdt.MustParseAddress(cfg.Reserve)

	l := ledger.New(TokenAddress, owner, st)
	if err := l.Mint(owner, sdt.ToUnits(big.NewInt(cfg.SupplyTokens))); err != nil {
		return nil, errors.Wrap(err, "mint supply")
	}

	v := vesting.New(VestingAddress, owner, l, st, vesting.Options{
		BlockClaimsWhenStopped: cfg.Vesting.BlockClaimsWhenStopped,
	})
	if err := v.Init(owner, SaleAddress); err != nil {
		return nil, errors.Wrap(err, "init vesting")
	}

	s := sale.New(SaleAddress, owner, l, v, st, sale.Config{
		Reserve:            reserve,
		DistributionPool:   DistributionAddress,
		DistributionAmount: sdt.ToUnits(big.NewInt(cfg.Sale.DistributionShareTokens)),
		OpenTime:           cfg.Sale.OpenTime,
		CloseTime:          cfg.Sale.CloseTime,
		MinPurchaseUSD:     big.NewInt(cfg.Sale.MinPurchaseUSD),
		VestingStart:       cfg.Vesting.Start,
		VestingEnd:         cfg.Vesting.End,
		PoolAMax:           sdt.ToUnits(big.NewInt(cfg.Sale.PoolAMaxTokens)),
		PoolBMax:           sdt.ToUnits(big.NewInt(cfg.Sale.PoolBMaxTokens)),
		PoolCMax:           sdt.ToUnits(big.NewInt(cfg.Sale.PoolCMaxTokens)),
		PoolD:              sdt.ToUnits(big.NewInt(cfg.Sale.PoolDTokens)),
		Pricing:            pricing.DefaultParams(),
	})
	if err := s.Initialize(owner); err != nil {
		return nil, errors.Wrap(err, "initialize sale")
	}

	d := distribution.New(DistributionAddress, owner, l, st, distribution.Config{
		Start:         cfg.Distribution.Start,
		StageDuration: cfg.Distribution.StageDuration,
		StageCapacity: sdt.ToUnits(big.NewInt(cfg.Distribution.StageCapacityTokens)),
		PriceFloor:    milliUSD(cfg.Distribution.PriceFloorMilliUSD),
		PriceSlope:    milliUSD(cfg.Distribution.PriceSlopeMilliUSD),
		BonusRates:    cfg.Distribution.BonusRates,
	})

	e := escrow.New(EscrowAddress, owner, l, st)

	return &System{
		Owner:        owner,
		Reserve:      reserve,
		Ledger:       l,
		Sale:         s,
		Escrow:       e,
		Vesting:      v,
		Distribution: d,
	}, nil
}

// Devnet returns a config mirroring the mainnet sale constants with a
// wide-open sale window, for local runs and tests.
func Devnet() *Config {
	var cfg Config
	cfg.Owner = sdt.BytesToAddress([]byte("devnet-owner")).String()
	cfg.Reserve = sdt.BytesToAddress([]byte("devnet-reserve")).String()
	cfg.SupplyTokens = sdt.InitialSupplyTokens

	cfg.Sale.OpenTime = 0
	cfg.Sale.CloseTime = 1<<63 - 1
	cfg.Sale.MinPurchaseUSD = 10
	cfg.Sale.DistributionShareTokens = 100000000
	cfg.Sale.PoolAMaxTokens = 30000000
	cfg.Sale.PoolBMaxTokens = 24000000
	cfg.Sale.PoolCMaxTokens = 6000000
	cfg.Sale.PoolDTokens = 10000000

	cfg.Vesting.Start = 0
	cfg.Vesting.End = 365 * 24 * 3600

	cfg.Distribution.Start = 0
	cfg.Distribution.StageDuration = 24 * 3600
	cfg.Distribution.StageCapacityTokens = 1000000
	cfg.Distribution.PriceFloorMilliUSD = 500
	cfg.Distribution.PriceSlopeMilliUSD = 500
	cfg.Distribution.BonusRates = []int64{20, 15, 10, 5}
	return &cfg
}
