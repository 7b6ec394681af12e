// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/inconshreveable/log15"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/quarrylabs/quarry/block"
	"github.com/quarrylabs/quarry/quarry"
	"github.com/quarrylabs/quarry/tx"
)

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".quarry")
	}
	return ""
}

func initLogger(ctx *cli.Context) {
	logLevel := ctx.Int(verbosityFlag.Name)
	log15.Root().SetHandler(log15.LvlFilterHandler(log15.Lvl(logLevel), log15.StderrHandler))
}

// mainnetGenesis builds the well-known first block.
func mainnetGenesis() *block.Block {
	return new(block.Builder).
		Timestamp(1561392000).
		TotalWork(1).
		Kernel(&tx.TransactionKernel{
			Features: tx.KernelCoinbase,
			Excess:   quarry.Blake2b([]byte("quarry mainnet genesis")),
		}).
		Build()
}

func handleExitSignal() <-chan os.Signal {
	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	return exit
}
