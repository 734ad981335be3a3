package catalog

import (
	"testing"

	"github.com/cuemby/blockcat/pkg/catalogerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustStorage(t *testing.T, s *Store, name string) int64 {
	t.Helper()
	st, err := s.CreateStorage(name)
	require.NoError(t, err)
	return st.ID
}

func TestCreateVersionAssignsUID(t *testing.T) {
	s := newTestStore(t)
	storageID := mustStorage(t, s, "primary")

	v, err := s.CreateVersion("vol1", "snap1", 4096, 512, storageID)
	require.NoError(t, err)

	assert.Regexp(t, `^V\d{10}$`, v.UID)
	assert.Equal(t, StatusIncomplete, v.Status)

	second, err := s.CreateVersion("vol1", "snap2", 4096, 512, storageID)
	require.NoError(t, err)
	assert.NotEqual(t, v.UID, second.UID)
}

func TestSetVersionStatusAndProtected(t *testing.T) {
	s := newTestStore(t)
	storageID := mustStorage(t, s, "primary")
	v, err := s.CreateVersion("vol1", "snap1", 4096, 512, storageID)
	require.NoError(t, err)

	valid := StatusValid
	protected := true
	require.NoError(t, s.SetVersion(v.UID, &valid, &protected))

	got, err := s.GetVersion(v.UID)
	require.NoError(t, err)
	assert.Equal(t, StatusValid, got.Status)
	assert.True(t, got.Protected)
}

func TestSetVersionNotFound(t *testing.T) {
	s := newTestStore(t)
	valid := StatusValid
	err := s.SetVersion("V0000000099", &valid, nil)
	require.Error(t, err)
	assert.Equal(t, catalogerr.NotFound, catalogerr.KindOf(err))
}

func TestGetVersionsFilterByVolumeAndLabel(t *testing.T) {
	s := newTestStore(t)
	storageID := mustStorage(t, s, "primary")

	a, err := s.CreateVersion("vol-a", "snap1", 4096, 512, storageID)
	require.NoError(t, err)
	_, err = s.CreateVersion("vol-b", "snap1", 4096, 512, storageID)
	require.NoError(t, err)

	require.NoError(t, s.AddLabel(a.UID, "env", "prod"))

	byVolume, err := s.GetVersions(VersionFilter{Volume: "vol-a"})
	require.NoError(t, err)
	require.Len(t, byVolume, 1)
	assert.Equal(t, a.UID, byVolume[0].UID)

	byLabel, err := s.GetVersions(VersionFilter{Labels: map[string]string{"env": "prod"}})
	require.NoError(t, err)
	require.Len(t, byLabel, 1)
	assert.Equal(t, a.UID, byLabel[0].UID)

	bySnapshotOnly, err := s.GetVersions(VersionFilter{Snapshot: "snap1"})
	require.NoError(t, err)
	assert.Len(t, bySnapshotOnly, 2)
}

func TestRmVersionProtected(t *testing.T) {
	s := newTestStore(t)
	storageID := mustStorage(t, s, "primary")
	v, err := s.CreateVersion("vol1", "snap1", 4096, 512, storageID)
	require.NoError(t, err)

	protected := true
	require.NoError(t, s.SetVersion(v.UID, nil, &protected))

	_, err = s.RmVersion(v.UID)
	require.Error(t, err)
	assert.Equal(t, catalogerr.Usage, catalogerr.KindOf(err))
}

func TestRmVersionTombstonesBlocks(t *testing.T) {
	s := newTestStore(t)
	storageID := mustStorage(t, s, "primary")
	v, err := s.CreateVersion("vol1", "snap1", 1024, 512, storageID)
	require.NoError(t, err)

	require.NoError(t, s.CreateBlocks(v.ID, []BlockInput{
		{Idx: 0, UID: NewBlockUID(1, 1), Size: 512, Valid: true},
		{Idx: 1, UID: NewBlockUID(2, 2), Size: 512, Valid: true},
	}))

	n, err := s.RmVersion(v.UID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var tombstones int
	require.NoError(t, s.db.Get(&tombstones, `SELECT count(*) FROM deleted_blocks`))
	assert.Equal(t, 2, tombstones)

	_, err = s.GetVersion(v.UID)
	require.Error(t, err)
	assert.Equal(t, catalogerr.NotFound, catalogerr.KindOf(err))
}
