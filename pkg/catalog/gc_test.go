package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertTombstone(t *testing.T, s *Store, storageID int64, uid BlockUID, age time.Duration) {
	t.Helper()
	date := NormalizeTimestamp(time.Now().Add(-age))
	_, err := s.db.Exec(`INSERT INTO deleted_blocks (storage_id, uid_left, uid_right, date) VALUES (?, ?, ?, ?)`,
		storageID, int64(uid.Left), int64(uid.Right), date)
	require.NoError(t, err)
}

func TestGetDeleteCandidatesYieldsHitsPastGracePeriod(t *testing.T) {
	s := newTestStore(t)
	storageID := mustStorage(t, s, "primary")

	uid := NewBlockUID(1, 1)
	insertTombstone(t, s, storageID, uid, 2*time.Hour)

	var gotHits map[string][]BlockUID
	err := s.GetDeleteCandidates(3600, func(hits map[string][]BlockUID) error {
		gotHits = hits
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, gotHits)
	assert.Equal(t, []BlockUID{uid}, gotHits["primary"])

	var remaining int
	require.NoError(t, s.db.Get(&remaining, `SELECT count(*) FROM deleted_blocks`))
	assert.Equal(t, 0, remaining)
}

func TestGetDeleteCandidatesSkipsWithinGracePeriod(t *testing.T) {
	s := newTestStore(t)
	storageID := mustStorage(t, s, "primary")
	insertTombstone(t, s, storageID, NewBlockUID(2, 2), 10*time.Second)

	called := false
	err := s.GetDeleteCandidates(3600, func(hits map[string][]BlockUID) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)

	var remaining int
	require.NoError(t, s.db.Get(&remaining, `SELECT count(*) FROM deleted_blocks`))
	assert.Equal(t, 1, remaining)
}

func TestGetDeleteCandidatesFalsePositiveWhenReReferenced(t *testing.T) {
	s := newTestStore(t)
	storageID := mustStorage(t, s, "primary")
	v, err := s.CreateVersion("vol1", "snap1", 512, 512, storageID)
	require.NoError(t, err)

	uid := NewBlockUID(3, 3)
	insertTombstone(t, s, storageID, uid, 2*time.Hour)
	require.NoError(t, s.CreateBlocks(v.ID, []BlockInput{{Idx: 0, UID: uid, Size: 512, Valid: true}}))

	called := false
	err = s.GetDeleteCandidates(3600, func(hits map[string][]BlockUID) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called, "a re-referenced uid must not be yielded for deletion")

	var remaining int
	require.NoError(t, s.db.Get(&remaining, `SELECT count(*) FROM deleted_blocks`))
	assert.Equal(t, 0, remaining, "the false-positive tombstone is still consumed")
}
