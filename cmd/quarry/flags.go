// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	cli "gopkg.in/urfave/cli.v1"
)

var (
	dataDirFlag = cli.StringFlag{
		Name:  "data-dir",
		Value: defaultDataDir(),
		Usage: "directory for chain databases",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "metrics service listening address, disabled when empty",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Value: 3,
		Usage: "log verbosity (0-9)",
	}
	pruningHorizonFlag = cli.Uint64Flag{
		Name:  "pruning-horizon",
		Usage: "height below which chain state may be pruned",
	}
	trackReorgsFlag = cli.BoolFlag{
		Name:  "track-reorgs",
		Usage: "keep a persistent audit log of chain reorgs",
	}
)
