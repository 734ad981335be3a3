package catalog

import (
	"testing"

	"github.com/cuemby/blockcat/pkg/catalogerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetStorage(t *testing.T) {
	s := newTestStore(t)

	created, err := s.CreateStorage("primary")
	require.NoError(t, err)
	assert.Equal(t, "primary", created.Name)
	assert.NotZero(t, created.ID)

	byName, err := s.GetStorageByName("primary")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	byID, err := s.GetStorageByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "primary", byID.Name)
}

func TestCreateStorageDuplicate(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateStorage("primary")
	require.NoError(t, err)

	_, err = s.CreateStorage("primary")
	require.Error(t, err)
	assert.Equal(t, catalogerr.AlreadyExists, catalogerr.KindOf(err))
}

func TestGetStorageByNameNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetStorageByName("missing")
	require.Error(t, err)
	assert.Equal(t, catalogerr.NotFound, catalogerr.KindOf(err))
}

func TestListStorages(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateStorage("b-storage")
	require.NoError(t, err)
	_, err = s.CreateStorage("a-storage")
	require.NoError(t, err)

	storages, err := s.ListStorages()
	require.NoError(t, err)
	require.Len(t, storages, 2)
	assert.Equal(t, "a-storage", storages[0].Name)
	assert.Equal(t, "b-storage", storages[1].Name)
}

func TestSyncStorages(t *testing.T) {
	s := newTestStore(t)

	err := s.SyncStorages(map[string]int64{"one": 1, "two": 2})
	require.NoError(t, err)

	storages, err := s.ListStorages()
	require.NoError(t, err)
	assert.Len(t, storages, 2)

	// idempotent re-sync with the same ids succeeds
	err = s.SyncStorages(map[string]int64{"one": 1, "two": 2})
	require.NoError(t, err)

	// conflicting id for an existing name fails
	err = s.SyncStorages(map[string]int64{"one": 99})
	require.Error(t, err)
	assert.Equal(t, catalogerr.Configuration, catalogerr.KindOf(err))
}
