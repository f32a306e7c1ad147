package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMuteUnmute(t *testing.T) {
	p := New(BlockStoreAndShow)

	assert.False(t, p.IsMuted("u2"))
	p.Mute("u2")
	assert.True(t, p.IsMuted("u2"))
	p.Unmute("u2")
	assert.False(t, p.IsMuted("u2"))
}

func TestBlockUnblock(t *testing.T) {
	p := New(BlockStoreAndShow)

	p.Block("u2")
	assert.True(t, p.IsBlocked("u2"))
	assert.False(t, p.IsBlocked("u3"), "predicates are per conversation")
	p.Unblock("u2")
	assert.False(t, p.IsBlocked("u2"))
}

func TestMuteAndBlockAreIndependent(t *testing.T) {
	p := New(BlockStoreAndShow)

	p.Mute("u2")
	assert.False(t, p.IsBlocked("u2"))
	p.Block("u2")
	p.Unmute("u2")
	assert.True(t, p.IsBlocked("u2"))
}

func TestPolicy(t *testing.T) {
	assert.Equal(t, BlockStoreAndShow, New(BlockStoreAndShow).Policy())
	assert.Equal(t, BlockDrop, New(BlockDrop).Policy())
}

func TestReset(t *testing.T) {
	p := New(BlockStoreAndShow)
	p.Mute("u2")
	p.Block("u3")

	p.Reset()
	assert.False(t, p.IsMuted("u2"))
	assert.False(t, p.IsBlocked("u3"))
}
