// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"math/big"

	"github.com/ethereum/go-ethereum/log"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/sdt/genesis"
	"github.com/vechain/sdt/lvldb"
	"github.com/vechain/sdt/sdt"
	"github.com/vechain/sdt/state"
)

var (
	alice = sdt.BytesToAddress([]byte("alice"))
	bob   = sdt.BytesToAddress([]byte("bob"))

	poolA = sdt.BytesToAddress([]byte("pool-a"))
	poolB = sdt.BytesToAddress([]byte("pool-b"))
	poolC = sdt.BytesToAddress([]byte("pool-c"))
	poolD = sdt.BytesToAddress([]byte("pool-d"))
)

func simulateAction(ctx *cli.Context) error {
	initLogger(ctx)
	startMetrics(ctx)

	cfg := genesis.Devnet()
	if path := ctx.String(genesisFlag.Name); path != "" {
		loaded, err := genesis.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	db, err := lvldb.NewMem()
	if err != nil {
		return err
	}
	defer db.Close()

	sys, err := genesis.Build(state.New(db), cfg)
	if err != nil {
		return err
	}
	log.Info("genesis built", "owner", sys.Owner, "supply", cfg.SupplyTokens)

	if err := runSale(sys, cfg); err != nil {
		return err
	}
	if err := runVestingAndEscrow(sys, cfg); err != nil {
		return err
	}
	if err := runDistribution(sys, cfg); err != nil {
		return err
	}

	raised, err := sys.Sale.Raised()
	if err != nil {
		return err
	}
	sold, err := sys.Sale.SoldTokens()
	if err != nil {
		return err
	}
	circulating, err := sys.Vesting.CirculatingSupply()
	if err != nil {
		return err
	}
	supply, err := sys.Ledger.TotalSupply()
	if err != nil {
		return err
	}
	log.Info("simulation finished",
		"raisedUSD", raised,
		"soldTokens", sold,
		"circulating", circulating,
		"totalSupply", supply)
	return nil
}

func runSale(sys *genesis.System, cfg *genesis.Config) error {
	ts := cfg.Sale.OpenTime + 1

	for _, buyer := range []sdt.Address{alice, bob} {
		if err := sys.Sale.Allow(sys.Owner, buyer); err != nil {
			return err
		}
	}
	if err := sys.Sale.SetWeiRate(sys.Owner, big.NewInt(400)); err != nil {
		return err
	}
	if err := sys.Sale.SetBTCRate(sys.Owner, big.NewInt(10000)); err != nil {
		return err
	}

	// a fiat purchase deep into the flat region
	if err := sys.Sale.Purchase(sys.Owner, alice, big.NewInt(6000000), ts, 1); err != nil {
		return err
	}
	// channel purchases crossing into the curve region
	tenEther := new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18))
	if err := sys.Sale.PurchaseWei(bob, tenEther, ts, 2); err != nil {
		return err
	}
	halfBTC := big.NewInt(5e7)
	if err := sys.Sale.PurchaseBTC(bob, halfBTC, ts, 3); err != nil {
		return err
	}
	if err := sys.Sale.Purchase(sys.Owner, alice, big.NewInt(2000000), ts, 4); err != nil {
		return err
	}

	raised, err := sys.Sale.Raised()
	if err != nil {
		return err
	}
	log.Info("sale complete", "raisedUSD", raised)

	return sys.Sale.Finalize(sys.Owner, poolA, poolB, poolC, poolD)
}

func runVestingAndEscrow(sys *genesis.System, cfg *genesis.Config) error {
	afterVesting := cfg.Vesting.End + 1

	if err := sys.Vesting.Allow(sys.Owner, alice); err != nil {
		return err
	}
	if err := sys.Vesting.ClaimTokens(alice, afterVesting); err != nil {
		return err
	}
	balance, err := sys.Ledger.BalanceOf(alice)
	if err != nil {
		return err
	}
	log.Info("vesting claimed", "beneficiary", alice, "balance", balance)

	// alice escrows part of her claim to bob, the owner mediates
	amount := sdt.ToUnits(big.NewInt(100))
	fee := sdt.ToUnits(big.NewInt(1))
	if err := sys.Escrow.EscrowTransfer(alice, sys.Owner, bob, 1, amount, fee, afterVesting+3600); err != nil {
		return err
	}
	if err := sys.Escrow.Release(sys.Owner, alice, bob, 1, big.NewInt(1)); err != nil {
		return err
	}
	held, err := sys.Escrow.HeldTotal()
	if err != nil {
		return err
	}
	log.Info("escrow settled", "held", held)
	return nil
}

func runDistribution(sys *genesis.System, cfg *genesis.Config) error {
	inStage := cfg.Distribution.Start + cfg.Distribution.StageDuration/2
	afterStage := cfg.Distribution.Start + cfg.Distribution.StageDuration + 1

	if err := sys.Distribution.SetWeiRate(sys.Owner, big.NewInt(400)); err != nil {
		return err
	}
	oneEther := big.NewInt(1e18)
	if err := sys.Distribution.Buy(alice, oneEther, inStage); err != nil {
		return err
	}
	if err := sys.Distribution.ClaimBonus(0, alice, afterStage); err != nil {
		return err
	}
	sold, err := sys.Distribution.SoldInStage(0)
	if err != nil {
		return err
	}
	collected, err := sys.Distribution.CollectedWei()
	if err != nil {
		return err
	}
	log.Info("distribution stage 0", "sold", sold, "collectedWei", collected)
	return sys.Distribution.ForwardFunds(sys.Owner, collected, sys.Reserve)
}
