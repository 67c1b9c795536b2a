package syncmsg

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPacket(t *testing.T) {
	before := time.Now().UTC().Add(-time.Second)
	p := NewPacket("app.conf", []string{"a", "bc"})

	_, err := uuid.Parse(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "app.conf", p.File)
	assert.Equal(t, []string{"a", "bc"}, p.Blocks)
	assert.True(t, p.SentAt.After(before))
	assert.Equal(t, 3, p.Size())
	assert.NoError(t, p.Validate())
}

func TestNewPacket_NilBlocks(t *testing.T) {
	p := NewPacket("app.conf", nil)
	assert.NotNil(t, p.Blocks)
	assert.Empty(t, p.Blocks)
	assert.Equal(t, 0, p.Size())
}

func TestPacket_Validate(t *testing.T) {
	p := &Packet{Blocks: []string{"x"}}
	assert.ErrorIs(t, p.Validate(), ErrMissingFileID)
}

func TestNewPacket_UniqueIDs(t *testing.T) {
	a := NewPacket("a", nil)
	b := NewPacket("a", nil)
	assert.NotEqual(t, a.ID, b.ID)
}
