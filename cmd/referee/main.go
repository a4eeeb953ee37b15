// The referee runs one match of Hex between two agent executables under
// per-agent time, memory, and process budgets, and prints a CSV result
// record on stdout.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/hexmatch"
)

func main() {
	cfg := hexmatch.DefaultConfig()

	var blackUID, whiteUID uint
	flag.StringVar(&cfg.BlackAgent, "a", "", "command to execute for the first agent (black)")
	flag.StringVar(&cfg.WhiteAgent, "b", "", "command to execute for the second agent (white)")
	flag.UintVar(&blackUID, "ua", 0, "user id to set for the first agent (black)")
	flag.UintVar(&whiteUID, "ub", 0, "user id to set for the second agent (white)")
	flag.IntVar(&cfg.BoardSize, "d", cfg.BoardSize, "dimensions for the game board")
	gameSecs := flag.Uint("s", uint(cfg.GameSecs), "per-agent game timer, in seconds")
	threads := flag.Uint("t", uint(cfg.ThreadLimit), "per-agent thread hard-limit")
	memMiB := flag.Uint("m", uint(cfg.MemLimitMiB), "per-agent memory hard-limit, in MiB")
	flag.BoolVar(&cfg.Verbose, "v", false, "enable verbose logging")
	flag.Parse()

	cfg.BlackUID = uint32(blackUID)
	cfg.WhiteUID = uint32(whiteUID)
	cfg.GameSecs = uint32(*gameSecs)
	cfg.ThreadLimit = uint32(*threads)
	cfg.MemLimitMiB = uint32(*memMiB)

	logrus.SetOutput(os.Stderr)
	if cfg.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	match, err := hexmatch.NewMatch(cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise match")
		os.Exit(1)
	}

	stats, err := match.Run()
	if err != nil {
		logrus.WithError(err).Error("match setup failed")
		os.Exit(1)
	}

	if err := stats.WriteCSV(os.Stdout); err != nil {
		logrus.WithError(err).Error("writing result record")
		os.Exit(1)
	}
}
