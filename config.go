// Package hexmatch is the referee: it spawns two sandboxed agent
// processes, mediates a full game of Hex between them over a small binary
// protocol, enforces per-agent time and resource budgets, and emits a
// machine-readable result record.
package hexmatch

import (
	"github.com/pkg/errors"

	"github.com/hexmatch/game"
)

// Config carries every parameter of a match.
type Config struct {
	// BlackAgent and WhiteAgent are the executables to spawn.
	BlackAgent string
	WhiteAgent string

	// BlackUID and WhiteUID are the unprivileged user ids the agent
	// processes run as. Zero (root) is rejected.
	BlackUID uint32
	WhiteUID uint32

	// BoardSize is the board dimension.
	BoardSize int

	// GameSecs is each agent's total wall-clock budget in seconds.
	GameSecs uint32

	// ThreadLimit caps each agent's process count (RLIMIT_NPROC).
	ThreadLimit uint32

	// MemLimitMiB caps each agent's data segment (RLIMIT_DATA), in MiB.
	MemLimitMiB uint32

	// Verbose enables debug logging on the referee.
	Verbose bool
}

// DefaultConfig returns the standard tournament parameters.
func DefaultConfig() Config {
	return Config{
		BoardSize:   11,
		GameSecs:    300,
		ThreadLimit: 4,
		MemLimitMiB: 1024,
	}
}

// Validate rejects configurations a match cannot be run with.
func (c Config) Validate() error {
	if c.BlackAgent == "" || c.WhiteAgent == "" {
		return errors.New("execution targets are required for both agents")
	}
	if c.BlackUID == 0 || c.WhiteUID == 0 {
		return errors.New("non-root user ids are required for both agents")
	}
	if c.BoardSize < 1 || c.BoardSize > game.MaxSize {
		return errors.Errorf("board size %d outside [1,%d]", c.BoardSize, game.MaxSize)
	}
	if c.GameSecs == 0 {
		return errors.New("game timer must be positive")
	}
	return nil
}
