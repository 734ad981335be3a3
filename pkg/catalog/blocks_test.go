package catalog

import (
	"testing"

	"github.com/cuemby/blockcat/pkg/catalogerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockWriterSetBlockTransitions(t *testing.T) {
	s := newTestStore(t)
	storageID := mustStorage(t, s, "primary")
	v, err := s.CreateVersion("vol1", "snap1", 2048, 512, storageID)
	require.NoError(t, err)

	w, err := s.NewBlockWriter(v.ID)
	require.NoError(t, err)

	// sparse-in, not present: no-op
	require.NoError(t, w.SetBlock(BlockInput{Idx: 0, UID: SparseBlockUID, Size: 512}))

	// data-in, not present: insert
	require.NoError(t, w.SetBlock(BlockInput{Idx: 1, UID: NewBlockUID(1, 1), Size: 512, Valid: true}))

	// data-in, present: update in place
	require.NoError(t, w.SetBlock(BlockInput{Idx: 1, UID: NewBlockUID(2, 2), Size: 512, Valid: true}))

	require.NoError(t, w.Close())

	b, err := s.GetBlockByIdx(v.ID, 1, 512)
	require.NoError(t, err)
	assert.Equal(t, NewBlockUID(2, 2), b.UID())

	sparse, err := s.GetBlockByIdx(v.ID, 0, 512)
	require.NoError(t, err)
	assert.False(t, sparse.UID().Present)
}

func TestBlockWriterSparseDeletesExisting(t *testing.T) {
	s := newTestStore(t)
	storageID := mustStorage(t, s, "primary")
	v, err := s.CreateVersion("vol1", "snap1", 1024, 512, storageID)
	require.NoError(t, err)

	w, err := s.NewBlockWriter(v.ID)
	require.NoError(t, err)
	require.NoError(t, w.SetBlock(BlockInput{Idx: 0, UID: NewBlockUID(1, 1), Size: 512, Valid: true}))
	require.NoError(t, w.SetBlock(BlockInput{Idx: 0, UID: SparseBlockUID, Size: 512}))
	require.NoError(t, w.Close())

	b, err := s.GetBlockByIdx(v.ID, 0, 512)
	require.NoError(t, err)
	assert.False(t, b.UID().Present)
}

func TestGetBlocksByVersionSynthesizesSparseRuns(t *testing.T) {
	s := newTestStore(t)
	storageID := mustStorage(t, s, "primary")
	v, err := s.CreateVersion("vol1", "snap1", 5*512, 512, storageID)
	require.NoError(t, err)

	require.NoError(t, s.CreateBlocks(v.ID, []BlockInput{
		{Idx: 0, UID: NewBlockUID(1, 1), Size: 512, Valid: true},
		{Idx: 2, UID: NewBlockUID(2, 2), Size: 512, Valid: true},
	}))

	var seen []Block
	err = s.GetBlocksByVersion(v.ID, 5, 512, 2, func(b Block) error {
		seen = append(seen, b)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 5)
	assert.True(t, seen[0].UID().Present)
	assert.False(t, seen[1].UID().Present)
	assert.True(t, seen[2].UID().Present)
	assert.False(t, seen[3].UID().Present)
	assert.False(t, seen[4].UID().Present)
}

func TestSetBlockInvalidatesOwningVersions(t *testing.T) {
	s := newTestStore(t)
	storageID := mustStorage(t, s, "primary")
	v, err := s.CreateVersion("vol1", "snap1", 512, 512, storageID)
	require.NoError(t, err)

	uid := NewBlockUID(7, 7)
	require.NoError(t, s.CreateBlocks(v.ID, []BlockInput{{Idx: 0, UID: uid, Size: 512, Valid: true}}))

	affected, err := s.SetBlockInvalid(uid)
	require.NoError(t, err)
	require.Len(t, affected, 1)
	assert.Equal(t, v.UID, affected[0])

	got, err := s.GetVersion(v.UID)
	require.NoError(t, err)
	assert.Equal(t, StatusInvalid, got.Status)
}

func TestGetBlockByChecksumRequiresValidAndStorage(t *testing.T) {
	s := newTestStore(t)
	storageA := mustStorage(t, s, "a")
	storageB := mustStorage(t, s, "b")
	vA, err := s.CreateVersion("vol1", "snap1", 512, 512, storageA)
	require.NoError(t, err)

	checksum := []byte{0xde, 0xad, 0xbe, 0xef}
	require.NoError(t, s.CreateBlocks(vA.ID, []BlockInput{
		{Idx: 0, UID: NewBlockUID(9, 9), Size: 512, Checksum: checksum, Valid: true},
	}))

	found, err := s.GetBlockByChecksum(checksum, storageA)
	require.NoError(t, err)
	assert.Equal(t, NewBlockUID(9, 9), found.UID())

	_, err = s.GetBlockByChecksum(checksum, storageB)
	require.Error(t, err)
	assert.Equal(t, catalogerr.NotFound, catalogerr.KindOf(err))
}
