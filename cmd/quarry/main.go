// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/inconshreveable/log15"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/quarrylabs/quarry/chain"
	"github.com/quarrylabs/quarry/lvldb"
	"github.com/quarrylabs/quarry/metrics"
)

var (
	version   string
	gitCommit string
	log       = log15.New()
)

func fullVersion() string {
	if gitCommit == "" {
		return version + "-dev"
	}
	return fmt.Sprintf("%s-%s", version, gitCommit)
}

func main() {
	app := cli.App{
		Version: fullVersion(),
		Name:    "Quarry",
		Usage:   "Merkleized ledger storage node",
		Flags: []cli.Flag{
			dataDirFlag,
			metricsAddrFlag,
			verbosityFlag,
			pruningHorizonFlag,
			trackReorgsFlag,
		},
		Action: defaultAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	initLogger(ctx)

	if addr := ctx.String(metricsAddrFlag.Name); addr != "" {
		metrics.InitializePrometheusMetrics()
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		go func() {
			if err := http.Serve(listener, metrics.HTTPHandler()); err != nil {
				log.Warn("metrics service stopped", "err", err)
			}
		}()
		log.Info("metrics service started", "addr", addr)
	}

	dataDir := ctx.String(dataDirFlag.Name)
	if dataDir == "" {
		return fmt.Errorf("no usable data directory, set --%s", dataDirFlag.Name)
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return err
	}
	db, err := lvldb.New(filepath.Join(dataDir, "chain.db"), lvldb.Options{})
	if err != nil {
		return err
	}
	defer db.Close()

	repo, err := chain.NewRepository(db, mainnetGenesis(), chain.Options{
		TrackReorgs: ctx.Bool(trackReorgsFlag.Name),
	})
	if err != nil {
		return err
	}
	if horizon := ctx.Uint64(pruningHorizonFlag.Name); horizon > 0 {
		if err := repo.SetPruningHorizon(horizon); err != nil {
			return err
		}
		if err := repo.PruneToHorizon(); err != nil {
			return err
		}
	}

	meta := repo.Metadata()
	log.Info("chain state opened",
		"height", meta.HeightOfLongestChain,
		"best", meta.BestBlock,
		"difficulty", meta.AccumulatedDifficulty)

	exit := handleExitSignal()
	ticker := repo.NewTicker()
	for {
		select {
		case <-ticker.C():
			best := repo.BestHeader()
			log.Info("best chain changed", "height", best.Height(), "hash", best.Hash())
		case <-exit:
			log.Info("shutting down")
			return nil
		}
	}
}
