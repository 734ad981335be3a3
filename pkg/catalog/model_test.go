package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusStringAndParse(t *testing.T) {
	tests := []struct {
		status Status
		name   string
	}{
		{StatusIncomplete, "incomplete"},
		{StatusValid, "valid"},
		{StatusInvalid, "invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.status.String())
			parsed, err := ParseStatus(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.status, parsed)
		})
	}

	_, err := ParseStatus("bogus")
	assert.Error(t, err)
}

func TestBlocksCountFromSize(t *testing.T) {
	tests := []struct {
		name      string
		size      int64
		blockSize int64
		want      int64
	}{
		{"exact multiple", 4096, 512, 8},
		{"rounds up", 4097, 512, 9},
		{"zero size", 0, 512, 0},
		{"zero block size", 100, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BlocksCountFromSize(tt.size, tt.blockSize))
		})
	}
}

func TestBlockSetUIDAndBack(t *testing.T) {
	var b Block
	b.SetUID(NewBlockUID(10, 20))
	assert.Equal(t, NewBlockUID(10, 20), b.UID())

	b.SetUID(SparseBlockUID)
	assert.Nil(t, b.UIDLeft)
	assert.Nil(t, b.UIDRight)
	assert.False(t, b.UID().Present)
}

func TestDeletedBlockUID(t *testing.T) {
	d := DeletedBlock{UIDLeft: 5, UIDRight: 6}
	assert.Equal(t, NewBlockUID(5, 6), d.UID())
}
