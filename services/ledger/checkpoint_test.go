package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bsv-blockchain/utxo-ttl/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const checkpointStore = "file:///data1/ttls.sqlite"

func TestCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lastProcessed.dat")
	checkpoint := NewCheckpoint(path, checkpointStore)

	_, found, err := checkpoint.Read()
	require.NoError(t, err)
	assert.False(t, found)

	resume, err := checkpoint.ResumeHeight()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), resume)

	require.NoError(t, checkpoint.Write(859490))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "859490\n"+checkpointStore+"\n", string(b))
	assert.NoFileExists(t, path+".tmp")

	height, found, err := checkpoint.Read()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint32(859490), height)

	require.NoError(t, checkpoint.Write(859491))

	resume, err = checkpoint.ResumeHeight()
	require.NoError(t, err)
	assert.Equal(t, uint32(859492), resume)
}

func TestCheckpointOtherStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lastProcessed.dat")
	require.NoError(t, NewCheckpoint(path, checkpointStore).Write(120))

	other := NewCheckpoint(path, "file:///data2/ttls.sqlite")

	_, _, err := other.Read()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))

	_, err = other.ResumeHeight()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))

	// a fresh build into the other store takes the checkpoint over
	require.NoError(t, other.Write(3))

	resume, err := other.ResumeHeight()
	require.NoError(t, err)
	assert.Equal(t, uint32(4), resume)

	_, _, err = NewCheckpoint(path, checkpointStore).Read()
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestCheckpointInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lastProcessed.dat")
	require.NoError(t, os.WriteFile(path, []byte("not a height\n"+checkpointStore+"\n"), 0o600))

	_, _, err := NewCheckpoint(path, checkpointStore).Read()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrProcessing))

	require.NoError(t, os.WriteFile(path, []byte(" 42\n "+checkpointStore), 0o600))

	height, found, err := NewCheckpoint(path, checkpointStore).Read()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint32(42), height)

	// a bare height carries no store
	require.NoError(t, os.WriteFile(path, []byte("42\n"), 0o600))

	_, _, err = NewCheckpoint(path, checkpointStore).Read()
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}
