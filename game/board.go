package game

import (
	"strings"

	"github.com/pkg/errors"
)

// Board play errors.
var (
	ErrOutOfBounds = errors.New("move is out of bounds")
	ErrOccupied    = errors.New("cell is already occupied")
)

// Segment is a union-find node for one board cell or virtual edge. The
// zero value is an unoccupied root of rank 0 once its occupant is set.
type Segment struct {
	parent   segRel
	rank     uint8
	occupant Cell
}

// Occupant returns the cell state tracked by the segment.
func (s *Segment) Occupant() Cell { return s.occupant }

// root walks parent links to the representative of s's set, compressing
// the path as it goes: every traversed node is re-pointed at its
// grandparent, halving the depth of the walked chain.
func (s *Segment) root() *Segment {
	for {
		parent := segRel2Abs(s, s.parent)
		if parent == nil {
			return s
		}
		grandparent := segRel2Abs(parent, parent.parent)
		if grandparent == nil {
			return parent
		}

		s.parent = segAbs2Rel(s, grandparent)
		s = grandparent
	}
}

// merge unions the sets containing a and b, attaching the lower-rank root
// beneath the higher. On a tie b's root wins and its rank grows, so
// merging a cell into a virtual edge keeps the edge as representative.
func merge(a, b *Segment) {
	aroot := a.root()
	broot := b.root()

	if aroot == broot {
		return
	}

	switch {
	case aroot.rank < broot.rank:
		aroot.parent = segAbs2Rel(aroot, broot)
	case aroot.rank > broot.rank:
		broot.parent = segAbs2Rel(broot, aroot)
	default:
		aroot.parent = segAbs2Rel(aroot, broot)
		broot.rank++
	}
}

// joined reports whether a and b are in the same set.
func joined(a, b *Segment) bool {
	return a.root() == b.root()
}

// The four virtual edge segments live after the size*size cell segments.
const (
	edgeBlackSource = iota
	edgeBlackSink
	edgeWhiteSource
	edgeWhiteSink
	edgeCount
)

// Hex adjacency on the rhombic grid.
var (
	neighbourDX = [6]int{-1, -1, 0, 0, +1, +1}
	neighbourDY = [6]int{0, +1, -1, +1, -1, 0}
)

// MaxSize is the largest supported board dimension; coordinates travel as
// single bytes.
const MaxSize = 255

// Board is the authoritative Hex game state. All size*size cell segments
// plus the four virtual edges are laid out in one contiguous array, so
// relative parent offsets stay valid across bulk copies.
type Board struct {
	size     int
	segments []Segment
}

// NewBoard returns an empty board of the given dimension.
func NewBoard(size int) (*Board, error) {
	if size < 1 || size > MaxSize {
		return nil, errors.Errorf("board size must be in [1,%d], got %d", MaxSize, size)
	}

	b := &Board{
		size:     size,
		segments: make([]Segment, size*size+edgeCount),
	}
	b.reset()
	return b, nil
}

// reset clears every segment and restores the fixed edge occupants.
func (b *Board) reset() {
	for i := range b.segments {
		b.segments[i] = Segment{occupant: CellEmpty}
	}
	b.edge(edgeBlackSource).occupant = CellBlack
	b.edge(edgeBlackSink).occupant = CellBlack
	b.edge(edgeWhiteSource).occupant = CellWhite
	b.edge(edgeWhiteSink).occupant = CellWhite
}

// Size returns the board dimension.
func (b *Board) Size() int { return b.size }

func (b *Board) edge(which int) *Segment {
	return &b.segments[b.size*b.size+which]
}

func (b *Board) segment(x, y int) *Segment {
	return &b.segments[y*b.size+x]
}

// Cell returns the occupant of (x, y), or CellEmpty for out-of-bounds
// coordinates.
func (b *Board) Cell(x, y int) Cell {
	if x < 0 || x >= b.size || y < 0 || y >= b.size {
		return CellEmpty
	}
	return b.segment(x, y).occupant
}

// Play claims the empty cell (x, y) for player and merges it with its
// same-coloured neighbours and, on an edge cell, with the player's virtual
// edge. The edge union runs first so the group's representative can be an
// edge root.
func (b *Board) Play(player Player, x, y int) error {
	if x < 0 || x >= b.size || y < 0 || y >= b.size {
		return errors.Wrapf(ErrOutOfBounds, "(%d,%d) on a %d-board", x, y, b.size)
	}

	seg := b.segment(x, y)
	if seg.occupant != CellEmpty {
		return errors.Wrapf(ErrOccupied, "(%d,%d) held by %v", x, y, seg.occupant)
	}

	seg.occupant = Cell(player)
	b.connect(seg, player, x, y)
	return nil
}

// connect merges a freshly occupied segment with the player's edges and
// its same-coloured neighbours.
func (b *Board) connect(seg *Segment, player Player, x, y int) {
	switch player {
	case Black:
		if x == 0 {
			merge(seg, b.edge(edgeBlackSource))
		}
		if x == b.size-1 {
			merge(seg, b.edge(edgeBlackSink))
		}
	case White:
		if y == 0 {
			merge(seg, b.edge(edgeWhiteSource))
		}
		if y == b.size-1 {
			merge(seg, b.edge(edgeWhiteSink))
		}
	}

	for i := 0; i < len(neighbourDX); i++ {
		px := x + neighbourDX[i]
		py := y + neighbourDY[i]

		if px < 0 || px >= b.size || py < 0 || py >= b.size {
			continue
		}

		neighbour := b.segment(px, py)
		if neighbour.occupant == seg.occupant {
			merge(seg, neighbour)
		}
	}
}

// Swap exchanges the colours of every occupied cell and rebuilds the
// union-find from scratch: all parents and ranks are cleared, then each
// occupied cell is reconnected in reading order. Occupancy locations are
// untouched, so a second Swap restores the original position.
func (b *Board) Swap() {
	for i := range b.segments {
		seg := &b.segments[i]
		seg.parent = 0
		seg.rank = 0

		if i < b.size*b.size {
			switch seg.occupant {
			case CellBlack:
				seg.occupant = CellWhite
			case CellWhite:
				seg.occupant = CellBlack
			}
		}
	}

	for y := 0; y < b.size; y++ {
		for x := 0; x < b.size; x++ {
			seg := b.segment(x, y)
			if seg.occupant == CellEmpty {
				continue
			}
			b.connect(seg, Player(seg.occupant), x, y)
		}
	}
}

// Winner reports the winning player, if any. At most one side can have its
// source and sink joined.
func (b *Board) Winner() (Player, bool) {
	if joined(b.edge(edgeBlackSource), b.edge(edgeBlackSink)) {
		return Black, true
	}
	if joined(b.edge(edgeWhiteSource), b.edge(edgeWhiteSink)) {
		return White, true
	}
	return Black, false
}

// AvailableMoves writes every empty cell to buf in reading order and
// returns how many there are. A nil buf counts without writing.
func (b *Board) AvailableMoves(buf []Move) int {
	idx := 0
	for y := 0; y < b.size; y++ {
		for x := 0; x < b.size; x++ {
			if b.segment(x, y).occupant != CellEmpty {
				continue
			}
			if buf != nil {
				buf[idx] = Move{X: uint8(x), Y: uint8(y)}
			}
			idx++
		}
	}
	return idx
}

// CopyTo overwrites dst with b's state in one bulk copy. Both boards must
// share a dimension. Relative parent offsets survive the copy unchanged.
func (b *Board) CopyTo(dst *Board) {
	if dst.size != b.size {
		panic("game: CopyTo between boards of different sizes")
	}
	copy(dst.segments, b.segments)
}

// String renders the board as an indented rhombus.
func (b *Board) String() string {
	var sb strings.Builder
	for y := 0; y < b.size; y++ {
		sb.WriteString(strings.Repeat("  ", y))
		for x := 0; x < b.size; x++ {
			switch b.segment(x, y).occupant {
			case CellBlack:
				sb.WriteString("B ")
			case CellWhite:
				sb.WriteString("W ")
			default:
				sb.WriteString(". ")
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
