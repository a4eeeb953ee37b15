// Package agent implements the client side of a match: the runtime state
// machine that talks to the referee, and the pluggable search strategies
// that pick its moves.
package agent

import (
	"time"

	"github.com/pkg/errors"

	"github.com/hexmatch/game"
	"github.com/hexmatch/mcts"
)

// Strategy is the capability set every search backend provides. Play and
// Swap keep the backend's view of the game current (the runtime has
// already applied the same mutation to the shared board); Next produces
// this agent's move within the given time budget.
type Strategy interface {
	Play(player game.Player, x, y uint8)
	Swap()
	Next(timeout time.Duration) (game.Move, error)
}

// StrategyKind selects a Strategy backend.
type StrategyKind int

// The available backends.
const (
	StrategyRandom StrategyKind = iota
	StrategyMCTS
)

// String returns the backend name.
func (k StrategyKind) String() string {
	switch k {
	case StrategyRandom:
		return "random"
	case StrategyMCTS:
		return "mcts"
	}
	return "UNKNOWN STRATEGY"
}

// ParseStrategyKind maps a backend name to its kind.
func ParseStrategyKind(s string) (StrategyKind, error) {
	switch s {
	case "random":
		return StrategyRandom, nil
	case "mcts":
		return StrategyMCTS, nil
	}
	return 0, errors.Errorf("agent: unknown strategy %q", s)
}

// newStrategy constructs the backend for kind against the given board and
// game parameters.
func newStrategy(kind StrategyKind, board *game.Board, threads int, memLimitMiB uint32, player game.Player) (Strategy, error) {
	switch kind {
	case StrategyRandom:
		return NewRandom(board), nil
	case StrategyMCTS:
		return mcts.New(board, threads, memLimitMiB, player)
	}
	return nil, errors.Errorf("agent: unknown strategy kind %d", kind)
}
