// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/sdt/metrics"
)

var (
	version   string
	gitCommit string
	gitTag    string
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "SDT",
		Usage:     "SDT token sale toolkit",
		Copyright: "2018 The VeChainThor developers",
		Flags: []cli.Flag{
			verbosityFlag,
		},
		Commands: []cli.Command{
			{
				Name:  "simulate",
				Usage: "replay a deterministic sale scenario over a fresh genesis state",
				Flags: []cli.Flag{
					genesisFlag,
					metricsAddrFlag,
					verbosityFlag,
				},
				Action: simulateAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogger(ctx *cli.Context) {
	useColor := isatty.IsTerminal(os.Stderr.Fd())
	handler := log.NewGlogHandler(log.NewTerminalHandler(os.Stderr, useColor))
	handler.Verbosity(log.FromLegacyLevel(ctx.Int(verbosityFlag.Name)))
	log.SetDefault(log.NewLogger(handler))
}

func startMetrics(ctx *cli.Context) {
	addr := ctx.String(metricsAddrFlag.Name)
	if addr == "" {
		return
	}
	metrics.InitializePrometheusMetrics()
	go func() {
		if err := http.ListenAndServe(addr, metrics.HTTPHandler()); err != nil {
			log.Warn("metrics server stopped", "err", err)
		}
	}()
	log.Info("serving metrics", "addr", addr)
}
