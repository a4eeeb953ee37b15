package mcts

import (
	"unsafe"

	"github.com/chewxy/math32"

	"github.com/hexmatch/game"
)

// nodeRel is an encoded relative offset between two nodes in the same
// pool. As with board segments, the raw byte offset is XOR-ed with the
// sign bit so the zero pattern of fresh pool memory reads as null.
type nodeRel int64

const nodeRelMask = int64(-1) << 63

func nodeAbs2Rel(base unsafe.Pointer, abs *Node) nodeRel {
	if abs == nil {
		return 0
	}
	diff := int64(uintptr(unsafe.Pointer(abs)) - uintptr(base))
	return nodeRel(diff ^ nodeRelMask)
}

func nodeRel2Abs(base unsafe.Pointer, rel nodeRel) *Node {
	if rel == 0 {
		return nil
	}
	off := int64(rel) ^ nodeRelMask
	return (*Node)(unsafe.Add(base, int(off)))
}

// Node is one tree position: the move (x, y) made by player to reach it,
// its win/visit statistics, the sibling-shared RAVE statistics, and a
// trailing array of childrenCap relative child offsets allocated directly
// behind the header in pool memory. childrenCap equals the number of empty
// cells left after the root-to-node move path has been applied.
type Node struct {
	parent      nodeRel
	wins        int32
	raveWins    int32
	plays       uint32
	ravePlays   uint32
	childrenCap uint16
	childrenLen uint16
	player      game.Player
	x, y        uint8
}

const nodeAlign = unsafe.Alignof(Node{})

// nodeSize returns the pool footprint of a node with the given child
// capacity.
func nodeSize(children int) uintptr {
	return unsafe.Sizeof(Node{}) + uintptr(children)*unsafe.Sizeof(nodeRel(0))
}

func (n *Node) init(parent *Node, player game.Player, x, y uint8, children int) {
	n.parent = nodeAbs2Rel(unsafe.Pointer(n), parent)
	n.player = player
	n.x = x
	n.y = y

	n.wins, n.raveWins = 0, 0
	n.plays, n.ravePlays = 0, 0

	n.childrenCap = uint16(children)
	n.childrenLen = 0
}

// Move returns the coordinate this node's move occupies.
func (n *Node) Move() game.Move { return game.Move{X: n.x, Y: n.y} }

// Player returns the player who made this node's move.
func (n *Node) Player() game.Player { return n.player }

// Plays returns the number of playouts backpropagated through this node.
func (n *Node) Plays() uint32 { return n.plays }

func (n *Node) parentNode() *Node {
	return nodeRel2Abs(unsafe.Pointer(n), n.parent)
}

// childSlot addresses the i-th entry of the trailing child offset array.
func (n *Node) childSlot(i int) *nodeRel {
	off := unsafe.Sizeof(Node{}) + uintptr(i)*unsafe.Sizeof(nodeRel(0))
	return (*nodeRel)(unsafe.Add(unsafe.Pointer(n), off))
}

func (n *Node) child(i int) *Node {
	return nodeRel2Abs(unsafe.Pointer(n), *n.childSlot(i))
}

// expand allocates a child for the move (x, y), made by the opponent of
// n's player, and links it into n's child array. The child's own capacity
// is one less than n's: one more cell is now occupied. Returns nil when
// the pool is exhausted.
func (n *Node) expand(pool *Pool, x, y uint8) *Node {
	child := (*Node)(pool.Alloc(nodeAlign, nodeSize(int(n.childrenCap)-1)))
	if child == nil {
		return nil
	}

	child.init(n, n.player.Opponent(), x, y, int(n.childrenCap)-1)

	*n.childSlot(int(n.childrenLen)) = nodeAbs2Rel(unsafe.Pointer(n), child)
	n.childrenLen++

	return child
}

func (n *Node) findChild(x, y uint8) *Node {
	for i := 0; i < int(n.childrenLen); i++ {
		child := n.child(i)
		if child != nil && child.x == x && child.y == y {
			return child
		}
	}
	return nil
}

// exploration schedule: RAVE estimates dominate a node's score until it
// has accumulated this many playouts of its own.
const explorationRounds = 3000

// score computes the MCTS-RAVE selection value:
//
//	beta  = max(0, (explorationRounds - plays) / explorationRounds)
//	score = sqrt(2) * sqrt(ln(parent.plays) / plays)
//	      + (1 - beta) * wins / plays
//	      + beta * raveWins / ravePlays
//
// An unplayed node scores +Inf so selection prefers it over any visited
// sibling.
func (n *Node) score() float32 {
	if n.plays == 0 {
		return math32.Inf(1)
	}

	beta := (explorationRounds - float32(n.plays)) / explorationRounds
	if beta < 0 {
		beta = 0
	}

	parent := n.parentNode()

	exploration := math32.Sqrt2 * math32.Sqrt(math32.Log(float32(parent.plays))/float32(n.plays))
	exploitation := (1 - beta) * float32(n.wins) / float32(n.plays)

	var rave float32
	if n.ravePlays > 0 {
		rave = beta * float32(n.raveWins) / float32(n.ravePlays)
	}

	return exploration + exploitation + rave
}

// bestChild returns the allocated child with the highest score, or nil if
// no child has been expanded yet.
func (n *Node) bestChild() *Node {
	max := math32.Inf(-1)
	var best *Node

	for i := 0; i < int(n.childrenLen); i++ {
		child := n.child(i)
		if child == nil {
			continue
		}
		if s := child.score(); s > max {
			max = s
			best = child
		}
	}
	return best
}
