package agent

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"

	"github.com/hexmatch/game"
)

// Random plays a uniformly random legal move each turn. It keeps a
// shuffled list of every cell and strikes moves as either side occupies
// them, so Next is a pop from the tail.
type Random struct {
	moves []game.Move
}

// NewRandom builds the strategy for an empty board.
func NewRandom(board *game.Board) *Random {
	size := board.Size()
	moves := make([]game.Move, 0, size*size)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			moves = append(moves, game.Move{X: uint8(x), Y: uint8(y)})
		}
	}

	rng := rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	rng.Shuffle(len(moves), func(i, j int) {
		moves[i], moves[j] = moves[j], moves[i]
	})

	return &Random{moves: moves}
}

// Play strikes (x, y) from the candidate list, whoever played it.
func (r *Random) Play(player game.Player, x, y uint8) {
	for i := range r.moves {
		if r.moves[i].X == x && r.moves[i].Y == y {
			last := len(r.moves) - 1
			r.moves[i] = r.moves[last]
			r.moves = r.moves[:last]
			return
		}
	}
}

// Swap is a no-op: moves are struck for both players, so a colour
// exchange changes nothing here.
func (r *Random) Swap() {}

// Next pops the next shuffled move.
func (r *Random) Next(time.Duration) (game.Move, error) {
	if len(r.moves) == 0 {
		return game.Move{}, errors.New("agent: no moves remain")
	}

	last := len(r.moves) - 1
	mv := r.moves[last]
	r.moves = r.moves[:last]
	return mv, nil
}
