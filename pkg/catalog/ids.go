package catalog

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cuemby/blockcat/pkg/catalogerr"
)

var versionUIDPattern = regexp.MustCompile(`^V\d{10}$`)

// VersionUID is the externally visible identifier of a Version: "V" followed
// by exactly ten decimal digits.
type VersionUID string

// ParseVersionUID validates s against the V\d{10} format.
func ParseVersionUID(s string) (VersionUID, error) {
	const op = catalogerr.Op("catalog.ParseVersionUID")
	if !versionUIDPattern.MatchString(s) {
		return "", catalogerr.E(op, catalogerr.InputData, fmt.Errorf("invalid version uid %q", s))
	}
	return VersionUID(s), nil
}

// FormatVersionUID renders a sequence number (as assigned by create_version)
// as a VersionUID, e.g. 1 -> "V0000000001".
func FormatVersionUID(n int64) VersionUID {
	return VersionUID(fmt.Sprintf("V%010d", n))
}

func (u VersionUID) String() string { return string(u) }

// BlockUID is the 128-bit content-address of a stored block payload: a pair
// of 64-bit halves. A zero value with Present=false denotes a sparse slot.
type BlockUID struct {
	Left    uint64
	Right   uint64
	Present bool
}

// NewBlockUID constructs a present BlockUID from its two halves.
func NewBlockUID(left, right uint64) BlockUID {
	return BlockUID{Left: left, Right: right, Present: true}
}

// SparseBlockUID is the zero value representing an absent/sparse slot.
var SparseBlockUID = BlockUID{}

// Compare orders two BlockUIDs lexicographically on (Left, Right), treating
// an absent half as 0.
func (b BlockUID) Compare(other BlockUID) int {
	if b.Left != other.Left {
		if b.Left < other.Left {
			return -1
		}
		return 1
	}
	if b.Right != other.Right {
		if b.Right < other.Right {
			return -1
		}
		return 1
	}
	return 0
}

// Key encodes the BlockUID as the 33-character storage key
// "{left:016x}-{right:016x}".
func (b BlockUID) Key() string {
	return fmt.Sprintf("%016x-%016x", b.Left, b.Right)
}

// ParseBlockUIDKey decodes a storage key produced by Key. Any length other
// than 33, or non-hex halves, is rejected.
func ParseBlockUIDKey(s string) (BlockUID, error) {
	const op = catalogerr.Op("catalog.ParseBlockUIDKey")
	if len(s) != 33 {
		return BlockUID{}, catalogerr.E(op, catalogerr.InputData, fmt.Errorf("block uid key must be 33 characters, got %d", len(s)))
	}
	left, right, ok := strings.Cut(s, "-")
	if !ok || len(left) != 16 || len(right) != 16 {
		return BlockUID{}, catalogerr.E(op, catalogerr.InputData, fmt.Errorf("malformed block uid key %q", s))
	}
	var leftVal, rightVal uint64
	if _, err := fmt.Sscanf(left, "%016x", &leftVal); err != nil {
		return BlockUID{}, catalogerr.E(op, catalogerr.InputData, fmt.Errorf("malformed block uid left half %q: %w", left, err))
	}
	if _, err := fmt.Sscanf(right, "%016x", &rightVal); err != nil {
		return BlockUID{}, catalogerr.E(op, catalogerr.InputData, fmt.Errorf("malformed block uid right half %q: %w", right, err))
	}
	return NewBlockUID(leftVal, rightVal), nil
}

// Checksum is a bounded-length opaque byte string, transported as lowercase
// hex and persisted as raw bytes.
type Checksum []byte

const maxChecksumBytes = 64

// ParseChecksumHex decodes a lowercase hex checksum string.
func ParseChecksumHex(s string) (Checksum, error) {
	const op = catalogerr.Op("catalog.ParseChecksumHex")
	if s == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, catalogerr.E(op, catalogerr.InputData, fmt.Errorf("invalid checksum hex: %w", err))
	}
	if len(raw) > maxChecksumBytes {
		return nil, catalogerr.E(op, catalogerr.InputData, fmt.Errorf("checksum exceeds %d bytes", maxChecksumBytes))
	}
	return Checksum(raw), nil
}

// Hex renders the checksum as lowercase hex, or "" if nil/empty.
func (c Checksum) Hex() string {
	if len(c) == 0 {
		return ""
	}
	return hex.EncodeToString(c)
}

const timestampLayout = "2006-01-02T15:04:05"

// NormalizeTimestamp converts t to UTC wall time, stripping any location
// information so the stored value is naive UTC.
func NormalizeTimestamp(t time.Time) time.Time {
	return t.UTC()
}

// ParseTimestamp parses an ISO-like timestamp string (the reference accepts
// "%Y-%m-%dT%H:%M:%S"-shaped input), assuming UTC when no offset is given.
func ParseTimestamp(s string) (time.Time, error) {
	const op = catalogerr.Op("catalog.ParseTimestamp")
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return NormalizeTimestamp(t), nil
	}
	if t, err := time.Parse(timestampLayout, s); err == nil {
		return NormalizeTimestamp(t), nil
	}
	return time.Time{}, catalogerr.E(op, catalogerr.InputData, fmt.Errorf("invalid timestamp %q", s))
}

// FormatTimestamp renders t as ISO-8601 with microsecond precision and a
// trailing Z, matching the export document format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z")
}
