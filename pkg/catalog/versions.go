package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/blockcat/pkg/catalogerr"
	metrics "github.com/cuemby/blockcat/pkg/catalogmetrics"
	"github.com/cuemby/blockcat/pkg/log"
)

// CreateVersion inserts a new Version with status=incomplete and
// date=now(UTC). The uid is assigned from the row's sequence number,
// formatted V\d{10}.
func (s *Store) CreateVersion(volume, snapshot string, size, blockSize, storageID int64) (Version, error) {
	const op = catalogerr.Op("catalog.CreateVersion")

	if err := validateName(op, "volume", volume); err != nil {
		return Version{}, err
	}
	if err := validateName(op, "snapshot", snapshot); err != nil {
		return Version{}, err
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return Version{}, catalogerr.E(op, catalogerr.Internal, err)
	}
	defer tx.Rollback()

	now := NormalizeTimestamp(time.Now())

	res, err := tx.Exec(`
		INSERT INTO versions (uid, date, volume, snapshot, size, block_size, storage_id, status, protected)
		VALUES ('', ?, ?, ?, ?, ?, ?, ?, 0)`,
		now, volume, snapshot, size, blockSize, storageID, StatusIncomplete)
	if err != nil {
		return Version{}, catalogerr.E(op, catalogerr.Internal, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Version{}, catalogerr.E(op, catalogerr.Internal, err)
	}

	uid := FormatVersionUID(id)
	if _, err := tx.Exec(`UPDATE versions SET uid = ? WHERE id = ?`, uid, id); err != nil {
		return Version{}, catalogerr.E(op, catalogerr.Internal, err)
	}

	if err := tx.Commit(); err != nil {
		return Version{}, catalogerr.E(op, catalogerr.Internal, err)
	}

	metrics.VersionsCreatedTotal.Inc()
	metrics.VersionsTotal.WithLabelValues(StatusIncomplete.String()).Inc()

	return Version{
		ID: id, UID: string(uid), Date: now, Volume: volume, Snapshot: snapshot,
		Size: size, BlockSize: blockSize, StorageID: storageID, Status: StatusIncomplete,
	}, nil
}

// SetVersionStats atomically updates the five post-backup statistics fields.
func (s *Store) SetVersionStats(uid string, bytesRead, bytesWritten, bytesDeduplicated, bytesSparse, duration *int64) error {
	const op = catalogerr.Op("catalog.SetVersionStats")

	res, err := s.db.Exec(`
		UPDATE versions
		SET bytes_read = ?, bytes_written = ?, bytes_deduplicated = ?, bytes_sparse = ?, duration = ?
		WHERE uid = ?`,
		bytesRead, bytesWritten, bytesDeduplicated, bytesSparse, duration, uid)
	if err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	return requireOneRowAffected(op, res, uid)
}

// SetVersion performs a partial update of status and/or protected. A
// transition to invalid status is logged at error level; any other
// transition at info level.
func (s *Store) SetVersion(uid string, status *Status, protected *bool) error {
	const op = catalogerr.Op("catalog.SetVersion")
	logger := log.WithVersionUID(uid)

	if status == nil && protected == nil {
		return nil
	}

	query := "UPDATE versions SET "
	args := []interface{}{}
	if status != nil {
		query += "status = ?"
		args = append(args, *status)
	}
	if protected != nil {
		if status != nil {
			query += ", "
		}
		query += "protected = ?"
		args = append(args, *protected)
	}
	query += " WHERE uid = ?"
	args = append(args, uid)

	res, err := s.db.Exec(query, args...)
	if err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	if err := requireOneRowAffected(op, res, uid); err != nil {
		return err
	}

	if status != nil {
		event := logger.Info()
		if *status == StatusInvalid {
			event = logger.Error()
		}
		event.Str("status", status.String()).Msg("version status updated")
	}

	return nil
}

// GetVersion looks up a single version by uid, populating its storage name,
// labels, and derived block counts.
func (s *Store) GetVersion(uid string) (Version, error) {
	const op = catalogerr.Op("catalog.GetVersion")

	var v Version
	err := s.db.Get(&v, `
		SELECT id, uid, date, volume, snapshot, size, block_size, storage_id, status, protected,
		       bytes_read, bytes_written, bytes_deduplicated, bytes_sparse, duration
		FROM versions WHERE uid = ?`, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return Version{}, catalogerr.E(op, catalogerr.NotFound, fmt.Errorf("version %q not found", uid))
	}
	if err != nil {
		return Version{}, catalogerr.E(op, catalogerr.Internal, err)
	}

	if err := s.populateVersionDetails(&v); err != nil {
		return Version{}, err
	}
	return v, nil
}

func (s *Store) populateVersionDetails(v *Version) error {
	const op = catalogerr.Op("catalog.populateVersionDetails")

	storage, err := s.GetStorageByID(v.StorageID)
	if err != nil {
		return err
	}
	v.StorageName = storage.Name

	labels, err := s.labelsForVersion(v.ID)
	if err != nil {
		return err
	}
	v.Labels = labels

	v.BlocksCount = BlocksCountFromSize(v.Size, v.BlockSize)

	var presentCount int64
	if err := s.db.Get(&presentCount, `
		SELECT count(*) FROM blocks
		WHERE version_id = ? AND uid_left IS NOT NULL AND uid_right IS NOT NULL`, v.ID); err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	v.SparseBlocksCount = v.BlocksCount - presentCount

	return nil
}

// VersionFilter selects versions for GetVersions. Zero-valued fields are not
// applied; Labels entries are AND-combined with every other filter.
type VersionFilter struct {
	UID      string
	Volume   string
	Snapshot string
	Labels   map[string]string
}

// GetVersions enumerates versions matching filter, ordered by (volume, date).
func (s *Store) GetVersions(filter VersionFilter) ([]Version, error) {
	const op = catalogerr.Op("catalog.GetVersions")

	query := `SELECT id, uid, date, volume, snapshot, size, block_size, storage_id, status, protected,
	       bytes_read, bytes_written, bytes_deduplicated, bytes_sparse, duration
	FROM versions v WHERE 1=1`
	var args []interface{}

	if filter.UID != "" {
		query += " AND uid = ?"
		args = append(args, filter.UID)
	}
	if filter.Volume != "" {
		query += " AND volume = ?"
		args = append(args, filter.Volume)
	}
	if filter.Snapshot != "" {
		query += " AND snapshot = ?"
		args = append(args, filter.Snapshot)
	}
	for name, value := range filter.Labels {
		query += ` AND v.id IN (SELECT version_id FROM labels WHERE name = ? AND value = ?)`
		args = append(args, name, value)
	}
	query += " ORDER BY volume, date"

	var versions []Version
	if err := s.db.Select(&versions, query, args...); err != nil {
		return nil, catalogerr.E(op, catalogerr.Internal, err)
	}

	for i := range versions {
		if err := s.populateVersionDetails(&versions[i]); err != nil {
			return nil, err
		}
	}
	return versions, nil
}

// RmVersion tombstones every present-uid block owned by the version (so the
// GC planner can consider them for deletion), then deletes the Version row
// (cascading blocks and labels). It returns the number of blocks that were
// attached to the removed version. A protected version cannot be removed.
func (s *Store) RmVersion(uid string) (int, error) {
	const op = catalogerr.Op("catalog.RmVersion")
	logger := log.WithVersionUID(uid)

	tx, err := s.db.Beginx()
	if err != nil {
		return 0, catalogerr.E(op, catalogerr.Internal, err)
	}
	defer tx.Rollback()

	var v Version
	err = tx.Get(&v, `SELECT id, uid, storage_id, protected FROM versions WHERE uid = ?`, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, catalogerr.E(op, catalogerr.NotFound, fmt.Errorf("version %q not found", uid))
	}
	if err != nil {
		return 0, catalogerr.E(op, catalogerr.Internal, err)
	}
	if v.Protected {
		return 0, catalogerr.E(op, catalogerr.Usage, fmt.Errorf("version %q is protected", uid))
	}

	type uidRow struct {
		UIDLeft  int64 `db:"uid_left"`
		UIDRight int64 `db:"uid_right"`
	}
	var present []uidRow
	if err := tx.Select(&present, `
		SELECT uid_left, uid_right FROM blocks
		WHERE version_id = ? AND uid_left IS NOT NULL AND uid_right IS NOT NULL`, v.ID); err != nil {
		return 0, catalogerr.E(op, catalogerr.Internal, err)
	}

	now := NormalizeTimestamp(time.Now())
	for _, row := range present {
		if _, err := tx.Exec(`
			INSERT INTO deleted_blocks (storage_id, uid_left, uid_right, date) VALUES (?, ?, ?, ?)`,
			v.StorageID, row.UIDLeft, row.UIDRight, now); err != nil {
			return 0, catalogerr.E(op, catalogerr.Internal, err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM versions WHERE id = ?`, v.ID); err != nil {
		return 0, catalogerr.E(op, catalogerr.Internal, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, catalogerr.E(op, catalogerr.Internal, err)
	}

	metrics.VersionsRemovedTotal.Inc()
	logger.Info().Int("blocks", len(present)).Msg("version removed")

	return len(present), nil
}

func requireOneRowAffected(op catalogerr.Op, res sql.Result, uid string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	if n == 0 {
		return catalogerr.E(op, catalogerr.NotFound, fmt.Errorf("version %q not found", uid))
	}
	return nil
}
