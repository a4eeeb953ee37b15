package mcts

import (
	"testing"
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexmatch/game"
)

func TestNodeSize(t *testing.T) {
	header := unsafe.Sizeof(Node{})

	assert.Equal(t, header, nodeSize(0))
	assert.Equal(t, header+3*8, nodeSize(3))
}

func TestNodeRelRoundTrip(t *testing.T) {
	p, err := NewPool(1 << 10)
	require.NoError(t, err)

	a := (*Node)(p.Alloc(nodeAlign, nodeSize(2)))
	b := (*Node)(p.Alloc(nodeAlign, nodeSize(2)))
	require.NotNil(t, a)
	require.NotNil(t, b)

	for _, abs := range []*Node{a, b} {
		rel := nodeAbs2Rel(unsafe.Pointer(a), abs)
		assert.Equal(t, abs, nodeRel2Abs(unsafe.Pointer(a), rel))
	}

	// self reference encodes to a non-zero pattern
	self := nodeAbs2Rel(unsafe.Pointer(a), a)
	require.NotEqual(t, nodeRel(0), self)

	// null round trip
	assert.Equal(t, nodeRel(0), nodeAbs2Rel(unsafe.Pointer(a), nil))
	assert.Nil(t, nodeRel2Abs(unsafe.Pointer(a), 0))
}

func TestExpandLinksChild(t *testing.T) {
	p, err := NewPool(1 << 10)
	require.NoError(t, err)

	root := (*Node)(p.Alloc(nodeAlign, nodeSize(3)))
	require.NotNil(t, root)
	root.init(nil, game.White, 0, 0, 3)

	child := root.expand(p, 2, 1)
	require.NotNil(t, child)

	assert.Equal(t, game.Black, child.Player(), "children carry the opponent of their parent")
	assert.Equal(t, game.Move{X: 2, Y: 1}, child.Move())
	assert.Equal(t, uint16(2), child.childrenCap)
	assert.Equal(t, uint16(1), root.childrenLen)

	assert.Equal(t, root, child.parentNode())
	assert.Equal(t, child, root.child(0))
	assert.Equal(t, child, root.findChild(2, 1))
	assert.Nil(t, root.findChild(0, 1))
}

func TestExpandFailsOnFullPool(t *testing.T) {
	p, err := NewPool(nodeSize(2))
	require.NoError(t, err)

	root := (*Node)(p.Alloc(nodeAlign, nodeSize(2)))
	require.NotNil(t, root)
	root.init(nil, game.White, 0, 0, 2)

	assert.Nil(t, root.expand(p, 1, 0))
	assert.Equal(t, uint16(0), root.childrenLen)
}

func TestScoreUnplayedIsInfinite(t *testing.T) {
	var n Node
	assert.True(t, math32.IsInf(n.score(), 1))
}

func TestScoreFormula(t *testing.T) {
	p, err := NewPool(1 << 10)
	require.NoError(t, err)

	parent := (*Node)(p.Alloc(nodeAlign, nodeSize(2)))
	require.NotNil(t, parent)
	parent.init(nil, game.White, 0, 0, 2)
	parent.plays = 100

	child := parent.expand(p, 1, 1)
	require.NotNil(t, child)
	child.plays = 50
	child.wins = 10
	child.ravePlays = 80
	child.raveWins = 20

	beta := float32(explorationRounds-50) / explorationRounds
	want := math32.Sqrt2*math32.Sqrt(math32.Log(100)/50) +
		(1-beta)*float32(10)/50 +
		beta*float32(20)/80

	assert.InDelta(t, want, child.score(), 1e-6)
}

func TestScoreBeyondExplorationIgnoresRave(t *testing.T) {
	p, err := NewPool(1 << 10)
	require.NoError(t, err)

	parent := (*Node)(p.Alloc(nodeAlign, nodeSize(1)))
	require.NotNil(t, parent)
	parent.init(nil, game.White, 0, 0, 1)
	parent.plays = explorationRounds + 500

	child := parent.expand(p, 0, 1)
	require.NotNil(t, child)
	child.plays = explorationRounds + 1
	child.wins = 600
	child.ravePlays = 10
	child.raveWins = -10

	// beta clamps to zero, leaving pure exploitation plus exploration
	want := math32.Sqrt2*math32.Sqrt(math32.Log(float32(parent.plays))/float32(child.plays)) +
		float32(child.wins)/float32(child.plays)

	assert.InDelta(t, want, child.score(), 1e-6)
}

func TestBestChildPrefersUnplayed(t *testing.T) {
	p, err := NewPool(1 << 10)
	require.NoError(t, err)

	root := (*Node)(p.Alloc(nodeAlign, nodeSize(3)))
	require.NotNil(t, root)
	root.init(nil, game.White, 0, 0, 3)
	root.plays = 10

	seen := root.expand(p, 0, 0)
	require.NotNil(t, seen)
	seen.plays = 10
	seen.wins = 10

	fresh := root.expand(p, 1, 0)
	require.NotNil(t, fresh)

	assert.Equal(t, fresh, root.bestChild())
}
