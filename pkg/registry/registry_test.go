package registry

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletd/agent/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true, Output: io.Discard})
	os.Exit(m.Run())
}

func TestTaskRegistryTakeAndRemove(t *testing.T) {
	reg := NewTaskRegistry()
	conn := []byte("conn-1")

	reg.Register("task-1", conn, "nym-1")

	record, ok := reg.TakeAndRemove("task-1")
	require.True(t, ok)
	assert.Equal(t, conn, record.Connection)
	assert.Equal(t, "nym-1", record.Owner)

	// Consumed exactly once
	_, ok = reg.TakeAndRemove("task-1")
	assert.False(t, ok)
}

func TestTaskRegistryUnknownTask(t *testing.T) {
	reg := NewTaskRegistry()

	_, ok := reg.TakeAndRemove("never-registered")
	assert.False(t, ok)
}

func TestTaskRegistryOverwrite(t *testing.T) {
	reg := NewTaskRegistry()

	reg.Register("task-1", []byte("conn-1"), "nym-1")
	reg.Register("task-1", []byte("conn-2"), "nym-2")

	record, ok := reg.TakeAndRemove("task-1")
	require.True(t, ok)
	assert.Equal(t, []byte("conn-2"), record.Connection)
	assert.Equal(t, "nym-2", record.Owner)
	assert.Equal(t, 0, reg.Len())
}

func TestTaskRegistryEmptyArguments(t *testing.T) {
	reg := NewTaskRegistry()

	assert.Panics(t, func() { reg.Register("", []byte("conn"), "nym") })
	assert.Panics(t, func() { reg.Register("task", nil, "nym") })
	assert.Panics(t, func() { reg.Register("task", []byte("conn"), "") })
}

func TestTaskRegistryCopiesConnection(t *testing.T) {
	reg := NewTaskRegistry()
	conn := []byte("conn-1")

	reg.Register("task-1", conn, "nym-1")
	conn[0] = 'X'

	record, ok := reg.TakeAndRemove("task-1")
	require.True(t, ok)
	assert.Equal(t, []byte("conn-1"), record.Connection)
}

func TestConnectionRegistryResolve(t *testing.T) {
	reg := NewConnectionRegistry()

	_, ok := reg.Resolve("nym-1")
	assert.False(t, ok)

	reg.Associate("nym-1", []byte("conn-1"))

	conn, ok := reg.Resolve("nym-1")
	require.True(t, ok)
	assert.Equal(t, []byte("conn-1"), conn)
}

func TestConnectionRegistryFirstAssociationWins(t *testing.T) {
	reg := NewConnectionRegistry()

	reg.Associate("nym-1", []byte("conn-1"))
	reg.Associate("nym-1", []byte("conn-2"))

	conn, ok := reg.Resolve("nym-1")
	require.True(t, ok)
	assert.Equal(t, []byte("conn-1"), conn)
}

func TestConnectionRegistryOverwritePath(t *testing.T) {
	reg := NewConnectionRegistry()

	reg.Associate("nym-1", []byte("conn-1"))
	reg.Overwrite("nym-1", []byte("conn-2"))

	conn, ok := reg.Resolve("nym-1")
	require.True(t, ok)
	assert.Equal(t, []byte("conn-2"), conn)
}

func TestConnectionRegistryEmptyOwner(t *testing.T) {
	reg := NewConnectionRegistry()

	reg.Associate("", []byte("conn-1"))
	reg.Overwrite("", []byte("conn-1"))

	assert.Equal(t, 0, reg.Len())
}
