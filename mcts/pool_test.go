package mcts

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoolRejectsZeroCapacity(t *testing.T) {
	_, err := NewPool(0)
	assert.Error(t, err)

	// sub-word capacities round down to nothing
	_, err = NewPool(7)
	assert.Error(t, err)
}

func TestAllocAlignsAndAdvances(t *testing.T) {
	p, err := NewPool(64)
	require.NoError(t, err)
	require.Equal(t, uintptr(64), p.Cap())
	require.Equal(t, uintptr(0), p.Len())

	first := p.Alloc(8, 20)
	require.NotNil(t, first)
	assert.Equal(t, p.base, first)
	assert.Equal(t, uintptr(20), p.Len())

	// cursor rounds up to the next 8-byte boundary
	second := p.Alloc(8, 8)
	require.NotNil(t, second)
	assert.Equal(t, unsafe.Add(p.base, 24), second)
	assert.Equal(t, uintptr(32), p.Len())
}

func TestAllocExactFit(t *testing.T) {
	p, err := NewPool(64)
	require.NoError(t, err)

	// exactly the remaining capacity succeeds
	require.NotNil(t, p.Alloc(8, 64))
	assert.Equal(t, uintptr(64), p.Len())

	// one more byte fails
	assert.Nil(t, p.Alloc(1, 1))
}

func TestAllocOverCapacityFails(t *testing.T) {
	p, err := NewPool(64)
	require.NoError(t, err)

	assert.Nil(t, p.Alloc(8, 65))
	assert.Equal(t, uintptr(0), p.Len(), "failed allocation must not move the cursor")

	require.NotNil(t, p.Alloc(8, 40))
	assert.Nil(t, p.Alloc(8, 32))
}

func TestResetRestoresBase(t *testing.T) {
	p, err := NewPool(64)
	require.NoError(t, err)

	require.NotNil(t, p.Alloc(8, 48))

	p.Reset()
	require.Equal(t, uintptr(0), p.Len())

	again := p.Alloc(8, 8)
	require.NotNil(t, again)
	assert.Equal(t, p.base, again)
}
