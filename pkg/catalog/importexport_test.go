package catalog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cuemby/blockcat/pkg/catalogerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImportRoundtrip(t *testing.T) {
	src := newTestStore(t)
	storageID := mustStorage(t, src, "primary")

	v, err := src.CreateVersion("vol1", "snap1", 1024, 512, storageID)
	require.NoError(t, err)
	require.NoError(t, src.AddLabel(v.UID, "env", "prod"))
	require.NoError(t, src.CreateBlocks(v.ID, []BlockInput{
		{Idx: 0, UID: NewBlockUID(1, 1), Size: 512, Checksum: []byte{0xab, 0xcd}, Valid: true},
	}))
	valid := StatusValid
	require.NoError(t, src.SetVersion(v.UID, &valid, nil))

	var buf bytes.Buffer
	require.NoError(t, src.Export(&buf, nil, false))
	assert.Contains(t, buf.String(), `"metadata_version"`)

	dst := newTestStore(t)
	_, err = dst.CreateStorage("primary")
	require.NoError(t, err)

	require.NoError(t, dst.Import(&buf))

	imported, err := dst.GetVersion(v.UID)
	require.NoError(t, err)
	assert.Equal(t, "vol1", imported.Volume)
	assert.Equal(t, StatusValid, imported.Status)
	assert.Equal(t, "prod", imported.Labels["env"])

	block, err := dst.GetBlockByIdx(imported.ID, 0, 512)
	require.NoError(t, err)
	assert.Equal(t, NewBlockUID(1, 1), block.UID())
}

func TestImportRejectsDuplicateUID(t *testing.T) {
	src := newTestStore(t)
	storageID := mustStorage(t, src, "primary")
	v, err := src.CreateVersion("vol1", "snap1", 512, 512, storageID)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, src.Export(&buf, []string{v.UID}, true))

	err = src.Import(bytes.NewReader(buf.Bytes()))
	require.Error(t, err)
	assert.Equal(t, catalogerr.AlreadyExists, catalogerr.KindOf(err))
}

func TestImportV1Normalization(t *testing.T) {
	dst := newTestStore(t)
	_, err := dst.CreateStorage("legacy-storage")
	require.NoError(t, err)

	doc := `{
		"metadata_version": "1.0.0",
		"versions": [{
			"uid": "7",
			"date": "2023-05-01T10:00:00",
			"name": "vol1",
			"snapshot_name": "snap1",
			"size": 1024,
			"block_size": 512,
			"storage_id": "legacy-storage",
			"status": "valid",
			"protected": false,
			"bytes_read": 1000,
			"labels": [{"name": "env", "value": "prod"}],
			"blocks": [{"id": 0, "uid": {"left": 1, "right": 1}, "size": 512, "checksum": "abcd", "valid": true}]
		}]
	}`

	require.NoError(t, dst.Import(strings.NewReader(doc)))

	v, err := dst.GetVersion("V0000000007")
	require.NoError(t, err)
	assert.Equal(t, "vol1", v.Volume)
	assert.Equal(t, "snap1", v.Snapshot)
	assert.Equal(t, "prod", v.Labels["env"])
	assert.Nil(t, v.BytesRead, "a 1.0.* minor version forces stats to null")
}

func TestImportUnsupportedMetadataVersion(t *testing.T) {
	dst := newTestStore(t)
	err := dst.Import(strings.NewReader(`{"metadata_version": "9.0.0", "versions": []}`))
	require.Error(t, err)
	assert.Equal(t, catalogerr.InputData, catalogerr.KindOf(err))
}
