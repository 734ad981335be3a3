package catalog

import (
	"time"

	"github.com/cuemby/blockcat/pkg/catalogerr"
	metrics "github.com/cuemby/blockcat/pkg/catalogmetrics"
	"github.com/cuemby/blockcat/pkg/log"
)

// gcBatchSize is the number of tombstones considered per round.
const gcBatchSize = 250

// DefaultGracePeriod is the default tombstone grace period: long enough
// that a dedup lookup which found the block before rm_version can complete
// its re-reference write before GC considers the tombstone.
const DefaultGracePeriod = 3600 * time.Second

type tombstoneRow struct {
	ID          int64  `db:"id"`
	StorageID   int64  `db:"storage_id"`
	UIDLeft     int64  `db:"uid_left"`
	UIDRight    int64  `db:"uid_right"`
	StorageName string `db:"storage_name"`
}

// GetDeleteCandidates runs a two-phase, resumable GC sweep: each round
// selects up to gcBatchSize tombstones older than graceSeconds, splits them
// into false positives (the uid was re-referenced since deletion) and
// genuine hits, deletes both sets of tombstone rows, then yields the hit
// list (by storage name) to fn before committing. The caller is expected to
// have removed the underlying objects by the time fn returns; commit is
// deliberately deferred until after the callback to honor that contract.
// The sweep loops until a round returns no tombstones.
func (s *Store) GetDeleteCandidates(graceSeconds int64, fn func(hits map[string][]BlockUID) error) error {
	const op = catalogerr.Op("catalog.GetDeleteCandidates")
	logger := log.WithComponent("gc")

	cutoff := NormalizeTimestamp(time.Now().Add(-time.Duration(graceSeconds) * time.Second))

	totalFalsePositives := 0
	totalHits := 0

	for {
		timer := metrics.NewTimer()
		hits, falsePositives, err := s.runGCRound(cutoff, fn)
		metrics.GCRoundsTotal.Inc()
		timer.ObserveDuration(metrics.GCRoundDuration)
		if err != nil {
			return catalogerr.E(op, catalogerr.Internal, err)
		}

		totalHits += hits
		totalFalsePositives += falsePositives

		if hits == 0 && falsePositives == 0 {
			break
		}
	}

	var pending int64
	if err := s.db.Get(&pending, `SELECT count(*) FROM deleted_blocks`); err == nil {
		metrics.GCTombstonesPending.Set(float64(pending))
	}

	logger.Info().
		Int("hits", totalHits).
		Int("false_positives", totalFalsePositives).
		Msg("gc sweep complete")
	return nil
}

func (s *Store) runGCRound(cutoff time.Time, fn func(hits map[string][]BlockUID) error) (hitCount, falsePositiveCount int, err error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	var candidates []tombstoneRow
	if err := tx.Select(&candidates, `
		SELECT deleted_blocks.id, deleted_blocks.storage_id, deleted_blocks.uid_left, deleted_blocks.uid_right,
		       storages.name AS storage_name
		FROM deleted_blocks JOIN storages ON deleted_blocks.storage_id = storages.id
		WHERE deleted_blocks.date < ?
		ORDER BY deleted_blocks.id
		LIMIT ?`, cutoff, gcBatchSize); err != nil {
		return 0, 0, err
	}

	if len(candidates) == 0 {
		return 0, 0, nil
	}

	var deleteIDs []int64
	hits := make(map[string][]BlockUID)

	for _, c := range candidates {
		var referenced int
		if err := tx.Get(&referenced, `
			SELECT count(*) FROM blocks WHERE uid_left = ? AND uid_right = ?`,
			c.UIDLeft, c.UIDRight); err != nil {
			return 0, 0, err
		}

		deleteIDs = append(deleteIDs, c.ID)
		if referenced > 0 {
			falsePositiveCount++
			continue
		}
		uid := NewBlockUID(uint64(c.UIDLeft), uint64(c.UIDRight))
		hits[c.StorageName] = append(hits[c.StorageName], uid)
		hitCount++
	}

	query, args, err := sqlxIn(`DELETE FROM deleted_blocks WHERE id IN (?)`, deleteIDs)
	if err != nil {
		return 0, 0, err
	}
	if _, err := tx.Exec(query, args...); err != nil {
		return 0, 0, err
	}

	if len(hits) > 0 {
		for storageName, uids := range hits {
			log.WithStorage(storageName).Debug().Int("blocks", len(uids)).Msg("gc delete candidates")
		}
		if err := fn(hits); err != nil {
			return 0, 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}

	metrics.GCFalsePositivesTotal.Add(float64(falsePositiveCount))
	metrics.GCResolvedTotal.Add(float64(hitCount))

	return hitCount, falsePositiveCount, nil
}
