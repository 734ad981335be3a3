package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAndParseVersionUID(t *testing.T) {
	uid := FormatVersionUID(42)
	assert.Equal(t, VersionUID("V0000000042"), uid)

	parsed, err := ParseVersionUID(string(uid))
	require.NoError(t, err)
	assert.Equal(t, uid, parsed)

	_, err = ParseVersionUID("not-a-uid")
	assert.Error(t, err)
}

func TestBlockUIDKeyRoundtrip(t *testing.T) {
	uid := NewBlockUID(0x0123456789abcdef, 0xfedcba9876543210)
	key := uid.Key()
	assert.Len(t, key, 33)

	back, err := ParseBlockUIDKey(key)
	require.NoError(t, err)
	assert.Equal(t, uid, back)
}

func TestParseBlockUIDKeyRejectsBadInput(t *testing.T) {
	_, err := ParseBlockUIDKey("too-short")
	assert.Error(t, err)

	_, err = ParseBlockUIDKey("zzzzzzzzzzzzzzzz-0000000000000000")
	assert.Error(t, err)
}

func TestBlockUIDCompare(t *testing.T) {
	a := NewBlockUID(1, 5)
	b := NewBlockUID(1, 6)
	c := NewBlockUID(2, 0)

	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, -1, a.Compare(c))
	assert.Equal(t, 0, a.Compare(a))
}

func TestChecksumHexRoundtrip(t *testing.T) {
	sum, err := ParseChecksumHex("deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", sum.Hex())

	empty, err := ParseChecksumHex("")
	require.NoError(t, err)
	assert.Equal(t, "", empty.Hex())

	_, err = ParseChecksumHex("not-hex!")
	assert.Error(t, err)
}

func TestParseTimestampVariants(t *testing.T) {
	t1, err := ParseTimestamp("2024-01-02T03:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, 2024, t1.Year())

	t2, err := ParseTimestamp("2024-01-02T03:04:05")
	require.NoError(t, err)
	assert.Equal(t, t1.Year(), t2.Year())

	_, err = ParseTimestamp("not a timestamp")
	assert.Error(t, err)
}

func TestFormatTimestampHasMicrosecondsAndZ(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 123456000, time.UTC)
	formatted := FormatTimestamp(ts)
	assert.Equal(t, "2024-01-02T03:04:05.123456Z", formatted)
}
