package catalog

import (
	"fmt"
	"time"

	"github.com/cuemby/blockcat/pkg/catalogerr"
)

// Status is a Version's lifecycle state.
type Status int

const (
	StatusIncomplete Status = 0
	StatusValid      Status = 1
	StatusInvalid    Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusIncomplete:
		return "incomplete"
	case StatusValid:
		return "valid"
	case StatusInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// ParseStatus parses a status name as exported/imported in JSON documents.
func ParseStatus(s string) (Status, error) {
	const op = catalogerr.Op("catalog.ParseStatus")
	switch s {
	case "incomplete":
		return StatusIncomplete, nil
	case "valid":
		return StatusValid, nil
	case "invalid":
		return StatusInvalid, nil
	default:
		return 0, catalogerr.E(op, catalogerr.InputData, fmt.Errorf("invalid status %q", s))
	}
}

// Version is a point-in-time snapshot record.
type Version struct {
	ID        int64      `db:"id"`
	UID       string     `db:"uid"`
	Date      time.Time  `db:"date"`
	Volume    string     `db:"volume"`
	Snapshot  string     `db:"snapshot"`
	Size      int64      `db:"size"`
	BlockSize int64      `db:"block_size"`
	StorageID int64      `db:"storage_id"`
	Status    Status     `db:"status"`
	Protected bool       `db:"protected"`

	BytesRead         *int64 `db:"bytes_read"`
	BytesWritten      *int64 `db:"bytes_written"`
	BytesDeduplicated *int64 `db:"bytes_deduplicated"`
	BytesSparse       *int64 `db:"bytes_sparse"`
	Duration          *int64 `db:"duration"`

	// Populated by read paths, not persisted columns.
	StorageName       string            `db:"-"`
	Labels            map[string]string `db:"-"`
	BlocksCount       int64             `db:"-"`
	SparseBlocksCount int64             `db:"-"`
}

// BlocksCountFromSize computes ceil(size / blockSize), the invariant linking
// Version.Size and Version.BlockSize to the number of block slots.
func BlocksCountFromSize(size, blockSize int64) int64 {
	if blockSize <= 0 {
		return 0
	}
	return (size + blockSize - 1) / blockSize
}

// Block is one slot of a version, keyed by (VersionID, Idx).
type Block struct {
	VersionID int64  `db:"version_id"`
	Idx       int64  `db:"idx"`
	UIDLeft   *int64 `db:"uid_left"`
	UIDRight  *int64 `db:"uid_right"`
	Size      int64  `db:"size"`
	Checksum  []byte `db:"checksum"`
	Valid     bool   `db:"valid"`
}

// UID reconstructs the BlockUID value from the nullable storage columns.
func (b Block) UID() BlockUID {
	if b.UIDLeft == nil || b.UIDRight == nil {
		return SparseBlockUID
	}
	return NewBlockUID(uint64(*b.UIDLeft), uint64(*b.UIDRight))
}

// SetUID stores uid into the nullable columns, clearing both on a sparse
// value so the row can be omitted entirely by callers that filter sparse
// slots before insertion.
func (b *Block) SetUID(uid BlockUID) {
	if !uid.Present {
		b.UIDLeft = nil
		b.UIDRight = nil
		return
	}
	left := int64(uid.Left)
	right := int64(uid.Right)
	b.UIDLeft = &left
	b.UIDRight = &right
}

// Label is a (name, value) pair attached to a version.
type Label struct {
	VersionID int64  `db:"version_id"`
	Name      string `db:"name"`
	Value     string `db:"value"`
}

// Storage is a named object-storage backend.
type Storage struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// DeletedBlock is a GC tombstone written when a version referencing the uid
// is removed.
type DeletedBlock struct {
	ID        int64     `db:"id"`
	StorageID int64     `db:"storage_id"`
	UIDLeft   int64     `db:"uid_left"`
	UIDRight  int64     `db:"uid_right"`
	Date      time.Time `db:"date"`
}

// UID reconstructs the BlockUID referenced by this tombstone.
func (d DeletedBlock) UID() BlockUID {
	return NewBlockUID(uint64(d.UIDLeft), uint64(d.UIDRight))
}

// Lock is an advisory, process-global lock row.
type Lock struct {
	LockName  string    `db:"lock_name"`
	Host      string    `db:"host"`
	ProcessID string    `db:"process_id"`
	Reason    string    `db:"reason"`
	Date      time.Time `db:"date"`
}

const maxNameLength = 255

func validateName(op catalogerr.Op, field, value string) error {
	if len(value) > maxNameLength {
		return catalogerr.E(op, catalogerr.InputData, fmt.Errorf("%s exceeds %d characters", field, maxNameLength))
	}
	return nil
}
