package mcts

import (
	"time"

	units "github.com/docker/go-units"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"

	"github.com/hexmatch/game"
)

// ReservedMem is held back from the per-agent memory budget before sizing
// the node pool, leaving headroom for the runtime itself.
const ReservedMem = 1 << 20

// errPoolSaturated reports that the node pool cannot fit another node; the
// tree is as large as the memory budget allows for this search.
var errPoolSaturated = errors.New("mcts: node pool saturated")

// MCTS is a single-threaded Monte-Carlo Tree Search player with RAVE
// scoring. It mirrors the authoritative board into a shadow copy for
// playouts and grows its tree inside a fixed-capacity pool sized from the
// agent's memory budget. The tree is discarded (pool reset) whenever a
// real move is applied; there is no reuse of subtrees between moves.
type MCTS struct {
	board  *game.Board // authoritative mirror, owned by the caller
	shadow *game.Board

	pool *Pool
	root *Node

	moves []game.Move
	rng   *rand.Rand

	threads int // reserved for parallel playouts; the search runs on the calling thread
}

// New sizes the node pool from memLimitMiB, prepares the shadow board, and
// roots a fresh tree. The root is tagged with player's opponent so its
// children, the moves this agent may make, carry player.
func New(board *game.Board, threads int, memLimitMiB uint32, player game.Player) (*MCTS, error) {
	budget := uintptr(memLimitMiB) << 20
	if budget <= ReservedMem {
		return nil, errors.Errorf("mcts: memory budget %dMiB cannot cover the %s reservation",
			memLimitMiB, units.BytesSize(ReservedMem))
	}
	capacity := (budget - ReservedMem) &^ (nodeAlign - 1)

	pool, err := NewPool(capacity)
	if err != nil {
		return nil, err
	}

	shadow, err := game.NewBoard(board.Size())
	if err != nil {
		return nil, err
	}

	m := &MCTS{
		board:   board,
		shadow:  shadow,
		pool:    pool,
		moves:   make([]game.Move, board.Size()*board.Size()),
		rng:     rand.New(rand.NewSource(uint64(time.Now().UnixNano()))),
		threads: threads,
	}

	if m.reroot(player.Opponent(), 0, 0) == nil {
		return nil, errors.New("mcts: pool too small for the root node")
	}
	return m, nil
}

// reroot resets the pool and allocates a fresh root for the current board
// position. The root's child capacity is the number of empty cells.
func (m *MCTS) reroot(player game.Player, x, y uint8) *Node {
	m.pool.Reset()

	moves := m.board.AvailableMoves(nil)
	root := (*Node)(m.pool.Alloc(nodeAlign, nodeSize(moves)))
	if root == nil {
		return nil
	}

	root.init(nil, player, x, y, moves)
	m.root = root
	return root
}

// Play records that player has occupied (x, y) on the authoritative board
// (the board itself is updated by the caller beforehand). The search tree
// is discarded and re-rooted at the new position.
func (m *MCTS) Play(player game.Player, x, y uint8) {
	m.reroot(player, x, y)
}

// Swap re-roots the tree after a swap: the occupied cell stays where it
// is but now belongs to the other player.
func (m *MCTS) Swap() {
	old := *m.root
	m.reroot(old.player.Opponent(), old.x, old.y)
}

// Next searches until timeout elapses and returns the root child with the
// most playouts, breaking ties with a fair coin per comparison.
func (m *MCTS) Next(timeout time.Duration) (game.Move, error) {
	m.search(timeout)

	root := m.root
	var best *Node
	var max uint32

	for i := 0; i < int(root.childrenLen); i++ {
		child := root.child(i)
		if child == nil {
			continue
		}

		switch {
		case best == nil, child.plays > max:
			best = child
			max = child.plays
		case child.plays == max && m.rng.Intn(2) == 1:
			best = child
		}
	}

	if best == nil {
		return game.Move{}, errors.New("mcts: no move candidates; pool never fit a child")
	}
	return best.Move(), nil
}

// search runs rounds of select/expand/simulate/backpropagate until the
// timeout elapses or the pool saturates.
func (m *MCTS) search(timeout time.Duration) {
	deadline := time.Now().Add(timeout)

	rounds := 0
	for {
		if !time.Now().Before(deadline) {
			break
		}

		if err := m.round(); err != nil {
			if errors.Is(err, errPoolSaturated) {
				logrus.WithField("rounds", rounds).Warn("node pool saturated, ending search early")
				break
			}
			// a failed playout indicates an internal inconsistency;
			// drop the round and carry on
			logrus.WithError(err).Warn("aborted search round")
			continue
		}

		rounds++
	}

	logrus.WithFields(logrus.Fields{
		"rounds": rounds,
		"pool":   units.BytesSize(float64(m.pool.Len())) + "/" + units.BytesSize(float64(m.pool.Cap())),
	}).Debug("search complete")
}

// round performs one MCTS iteration against the shadow board.
func (m *MCTS) round() error {
	m.board.CopyTo(m.shadow)

	// selection: descend while fully expanded, replaying each chosen
	// child's move
	node := m.root
	for node.childrenLen == node.childrenCap {
		child := node.bestChild()
		if child == nil {
			break
		}

		if err := m.shadow.Play(child.player, int(child.x), int(child.y)); err != nil {
			return errors.Wrapf(err, "replaying (%d,%d) during selection", child.x, child.y)
		}
		node = child
	}

	moves := m.moves[:m.shadow.AvailableMoves(m.moves)]
	m.shuffle(moves)

	// expansion: one shuffled move becomes a new child of the selected
	// node, unless the position is already decided
	winner, won := m.shadow.Winner()
	if !won {
		mv := moves[len(moves)-1]
		moves = moves[:len(moves)-1]

		child := node.expand(m.pool, mv.X, mv.Y)
		if child == nil {
			return errPoolSaturated
		}

		if err := m.shadow.Play(child.player, int(child.x), int(child.y)); err != nil {
			return errors.Wrapf(err, "playing expansion move (%d,%d)", child.x, child.y)
		}
	}

	// simulation: alternate the remaining shuffled moves until the board
	// has a winner
	player := node.player
	for {
		if winner, won = m.shadow.Winner(); won {
			break
		}

		mv := moves[len(moves)-1]
		moves = moves[:len(moves)-1]

		if err := m.shadow.Play(player, int(mv.X), int(mv.Y)); err != nil {
			return errors.Wrapf(err, "playing simulation move (%d,%d)", mv.X, mv.Y)
		}
		player = player.Opponent()
	}

	// backpropagation: from the selected node up to the root. RAVE
	// credit flows to every sibling whose move the simulation played for
	// its player, with the sign flipped to the child's perspective.
	for cur := node; cur != nil; cur = cur.parentNode() {
		var reward int32 = -1
		if winner == cur.player {
			reward = 1
		}

		for i := 0; i < int(cur.childrenLen); i++ {
			child := cur.child(i)
			if child == nil {
				continue
			}
			if m.shadow.Cell(int(child.x), int(child.y)) == game.Cell(child.player) {
				child.ravePlays++
				child.raveWins += -reward
			}
		}

		cur.plays++
		cur.wins += reward
	}

	return nil
}

// shuffle permutes moves uniformly. Lengths below two need no work.
func (m *MCTS) shuffle(moves []game.Move) {
	if len(moves) < 2 {
		return
	}
	for i := len(moves) - 1; i > 0; i-- {
		j := m.rng.Intn(i + 1)
		moves[i], moves[j] = moves[j], moves[i]
	}
}
