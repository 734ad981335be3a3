package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/blockcat/pkg/catalogerr"
	metrics "github.com/cuemby/blockcat/pkg/catalogmetrics"
	"github.com/cuemby/blockcat/pkg/log"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// blockCommitInterval bounds how long a BlockWriter defers its transaction
// commit: set_block calls accumulate in one transaction until this much
// wall-clock time has elapsed since the last commit.
const blockCommitInterval = 20 * time.Second

// BlockInput describes one slot to be written by SetBlock/CreateBlocks.
type BlockInput struct {
	Idx      int64
	UID      BlockUID
	Size     int64
	Checksum []byte
	Valid    bool
}

// BlockWriter batches SetBlock calls into a transaction that auto-commits
// (and reopens) once blockCommitInterval has elapsed, bounding per-operation
// latency while capping lost work on crash. Callers that need synchronous
// durability call Commit explicitly; Close performs a final commit.
type BlockWriter struct {
	store      *Store
	tx         *sqlx.Tx
	versionID  int64
	lastCommit time.Time
	log        zerolog.Logger
}

// NewBlockWriter opens a BlockWriter for the given version.
func (s *Store) NewBlockWriter(versionID int64) (*BlockWriter, error) {
	const op = catalogerr.Op("catalog.NewBlockWriter")

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, catalogerr.E(op, catalogerr.Internal, err)
	}
	return &BlockWriter{
		store:      s,
		tx:         tx,
		versionID:  versionID,
		lastCommit: time.Now(),
		log:        log.WithComponent("catalog"),
	}, nil
}

// SetBlock applies one of four idempotent transitions for the (version, idx)
// slot: sparse-in/not-present is a no-op, sparse-in/present deletes the row,
// data-in/not-present inserts, data-in/present updates in place.
func (w *BlockWriter) SetBlock(in BlockInput) error {
	const op = catalogerr.Op("catalog.SetBlock")

	var existing int
	err := w.tx.Get(&existing, `SELECT count(*) FROM blocks WHERE version_id = ? AND idx = ?`, w.versionID, in.Idx)
	if err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	present := existing > 0

	switch {
	case !in.UID.Present && !present:
		// sparse-in, not present: no-op
	case !in.UID.Present && present:
		if _, err := w.tx.Exec(`DELETE FROM blocks WHERE version_id = ? AND idx = ?`, w.versionID, in.Idx); err != nil {
			return catalogerr.E(op, catalogerr.Internal, err)
		}
	case in.UID.Present && !present:
		var b Block
		b.VersionID = w.versionID
		b.Idx = in.Idx
		b.SetUID(in.UID)
		b.Size = in.Size
		b.Checksum = in.Checksum
		b.Valid = in.Valid
		if _, err := w.tx.Exec(`
			INSERT INTO blocks (version_id, idx, uid_left, uid_right, size, checksum, valid)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			b.VersionID, b.Idx, b.UIDLeft, b.UIDRight, b.Size, b.Checksum, b.Valid); err != nil {
			return catalogerr.E(op, catalogerr.Internal, err)
		}
	case in.UID.Present && present:
		left := int64(in.UID.Left)
		right := int64(in.UID.Right)
		if _, err := w.tx.Exec(`
			UPDATE blocks SET uid_left = ?, uid_right = ?, size = ?, checksum = ?, valid = ?
			WHERE version_id = ? AND idx = ?`,
			left, right, in.Size, in.Checksum, in.Valid, w.versionID, in.Idx); err != nil {
			return catalogerr.E(op, catalogerr.Internal, err)
		}
	}

	if time.Since(w.lastCommit) >= blockCommitInterval {
		return w.Commit()
	}
	return nil
}

// Commit commits the current transaction and opens a fresh one so the
// writer can continue accepting SetBlock calls.
func (w *BlockWriter) Commit() error {
	const op = catalogerr.Op("catalog.BlockWriter.Commit")

	timer := metrics.NewTimer()
	if err := w.tx.Commit(); err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	timer.ObserveDuration(metrics.BlockWriterCommitDuration)
	metrics.BlockWriterCommitsTotal.Inc()

	tx, err := w.store.db.Beginx()
	if err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	w.tx = tx
	w.lastCommit = time.Now()
	return nil
}

// Close performs a final commit and releases the writer. It does not open a
// new transaction.
func (w *BlockWriter) Close() error {
	const op = catalogerr.Op("catalog.BlockWriter.Close")
	if err := w.tx.Commit(); err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	return nil
}

// CreateBlocks bulk-inserts the initial block population for a version.
// Fully-sparse rows are filtered out before insertion; the whole batch
// commits synchronously.
func (s *Store) CreateBlocks(versionID int64, inputs []BlockInput) error {
	const op = catalogerr.Op("catalog.CreateBlocks")

	tx, err := s.db.Beginx()
	if err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	defer tx.Rollback()

	for _, in := range inputs {
		if !in.UID.Present {
			continue
		}
		var b Block
		b.SetUID(in.UID)
		if _, err := tx.Exec(`
			INSERT INTO blocks (version_id, idx, uid_left, uid_right, size, checksum, valid)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			versionID, in.Idx, b.UIDLeft, b.UIDRight, in.Size, in.Checksum, in.Valid); err != nil {
			return catalogerr.E(op, catalogerr.Internal, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	return nil
}

// SetBlockInvalid marks every block row carrying uid invalid, then sets
// every owning version's status to invalid. It returns the affected version
// uids.
func (s *Store) SetBlockInvalid(uid BlockUID) ([]string, error) {
	const op = catalogerr.Op("catalog.SetBlockInvalid")
	logger := log.WithComponent("catalog")

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, catalogerr.E(op, catalogerr.Internal, err)
	}
	defer tx.Rollback()

	var versionIDs []int64
	if err := tx.Select(&versionIDs, `
		SELECT DISTINCT version_id FROM blocks WHERE uid_left = ? AND uid_right = ?`,
		int64(uid.Left), int64(uid.Right)); err != nil {
		return nil, catalogerr.E(op, catalogerr.Internal, err)
	}

	if _, err := tx.Exec(`UPDATE blocks SET valid = 0 WHERE uid_left = ? AND uid_right = ?`,
		int64(uid.Left), int64(uid.Right)); err != nil {
		return nil, catalogerr.E(op, catalogerr.Internal, err)
	}

	var uids []string
	for _, vid := range versionIDs {
		if _, err := tx.Exec(`UPDATE versions SET status = ? WHERE id = ?`, StatusInvalid, vid); err != nil {
			return nil, catalogerr.E(op, catalogerr.Internal, err)
		}
		var versionUID string
		if err := tx.Get(&versionUID, `SELECT uid FROM versions WHERE id = ?`, vid); err != nil {
			return nil, catalogerr.E(op, catalogerr.Internal, err)
		}
		uids = append(uids, versionUID)
	}

	if err := tx.Commit(); err != nil {
		return nil, catalogerr.E(op, catalogerr.Internal, err)
	}

	logger.Error().Str("block_uid", uid.Key()).Strs("affected_versions", uids).Msg("block marked invalid")
	return uids, nil
}

// GetBlock returns any block row carrying uid.
func (s *Store) GetBlock(uid BlockUID) (Block, error) {
	const op = catalogerr.Op("catalog.GetBlock")

	var b Block
	err := s.db.Get(&b, `
		SELECT version_id, idx, uid_left, uid_right, size, checksum, valid
		FROM blocks WHERE uid_left = ? AND uid_right = ? LIMIT 1`, int64(uid.Left), int64(uid.Right))
	if errors.Is(err, sql.ErrNoRows) {
		return Block{}, catalogerr.E(op, catalogerr.NotFound, fmt.Errorf("block uid %s not found", uid.Key()))
	}
	if err != nil {
		return Block{}, catalogerr.E(op, catalogerr.Internal, err)
	}
	return b, nil
}

// GetBlockByIdx returns the block at (versionID, idx), synthesizing a
// sparse block if the row is absent.
func (s *Store) GetBlockByIdx(versionID, idx, blockSize int64) (Block, error) {
	const op = catalogerr.Op("catalog.GetBlockByIdx")

	var b Block
	err := s.db.Get(&b, `
		SELECT version_id, idx, uid_left, uid_right, size, checksum, valid
		FROM blocks WHERE version_id = ? AND idx = ?`, versionID, idx)
	if errors.Is(err, sql.ErrNoRows) {
		return sparseBlock(versionID, idx, blockSize), nil
	}
	if err != nil {
		return Block{}, catalogerr.E(op, catalogerr.Internal, err)
	}
	return b, nil
}

// GetBlockByChecksum returns a valid block matching checksum within the
// given storage, for deduplication lookups.
func (s *Store) GetBlockByChecksum(checksum []byte, storageID int64) (Block, error) {
	const op = catalogerr.Op("catalog.GetBlockByChecksum")

	var b Block
	err := s.db.Get(&b, `
		SELECT blocks.version_id, blocks.idx, blocks.uid_left, blocks.uid_right, blocks.size, blocks.checksum, blocks.valid
		FROM blocks JOIN versions ON blocks.version_id = versions.id
		WHERE blocks.checksum = ? AND blocks.valid = 1 AND versions.storage_id = ?
		LIMIT 1`, checksum, storageID)
	if errors.Is(err, sql.ErrNoRows) {
		return Block{}, catalogerr.E(op, catalogerr.NotFound, fmt.Errorf("no valid block with this checksum in storage %d", storageID))
	}
	if err != nil {
		return Block{}, catalogerr.E(op, catalogerr.Internal, err)
	}
	return b, nil
}

func sparseBlock(versionID, idx, blockSize int64) Block {
	return Block{VersionID: versionID, Idx: idx, Size: blockSize, Valid: true}
}

// GetBlocksByVersion streams the full dense sequence of blocks for a
// version in windows of yieldPer, synthesizing sparse rows for index gaps.
// Windowing avoids holding a large cursor and allows safe interleaved
// commits of unrelated writes.
func (s *Store) GetBlocksByVersion(versionID, blocksCount, blockSize int64, yieldPer int, fn func(Block) error) error {
	const op = catalogerr.Op("catalog.GetBlocksByVersion")

	if yieldPer <= 0 {
		yieldPer = 1000
	}

	for start := int64(0); start < blocksCount; start += int64(yieldPer) {
		end := start + int64(yieldPer)
		if end > blocksCount {
			end = blocksCount
		}

		var rows []Block
		if err := s.db.Select(&rows, `
			SELECT version_id, idx, uid_left, uid_right, size, checksum, valid
			FROM blocks WHERE version_id = ? AND idx >= ? AND idx < ?
			ORDER BY idx`, versionID, start, end); err != nil {
			return catalogerr.E(op, catalogerr.Internal, err)
		}

		rowIdx := 0
		for idx := start; idx < end; idx++ {
			if rowIdx < len(rows) && rows[rowIdx].Idx == idx {
				if err := fn(rows[rowIdx]); err != nil {
					return err
				}
				rowIdx++
				continue
			}
			if err := fn(sparseBlock(versionID, idx, blockSize)); err != nil {
				return err
			}
		}
	}
	return nil
}
