package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cuemby/blockcat/pkg/catalogerr"
	metrics "github.com/cuemby/blockcat/pkg/catalogmetrics"
	"github.com/cuemby/blockcat/pkg/log"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Locker is a process-global advisory lock service. One Locker instance
// should live for the lifetime of a process; its identity (host,
// process_id) is fixed at construction, matching the reference's use of
// node name + a UUID generated once per process so restarts never collide.
type Locker struct {
	store     *Store
	host      string
	processID string
	log       zerolog.Logger
}

// NewLocker creates a Locker identified by the local hostname and a
// freshly generated process UUID.
func NewLocker(s *Store) (*Locker, error) {
	const op = catalogerr.Op("catalog.NewLocker")

	host, err := os.Hostname()
	if err != nil {
		return nil, catalogerr.E(op, catalogerr.Internal, err)
	}

	return &Locker{
		store:     s,
		host:      host,
		processID: uuid.New().String(),
		log:       log.WithComponent("lock"),
	}, nil
}

func versionLockName(uid string) string {
	return fmt.Sprintf("Version %s", uid)
}

// Acquire inserts a lock row. Double-acquire by this same instance is a
// contract violation (Internal). A uniqueness violation from another
// instance holding the name becomes AlreadyLocked, unless override is set,
// in which case the existing row is replaced.
func (l *Locker) Acquire(name, reason string, override bool) error {
	const op = catalogerr.Op("catalog.Locker.Acquire")

	owned, err := l.owns(name)
	if err != nil {
		return err
	}
	if owned {
		return catalogerr.E(op, catalogerr.Internal, fmt.Errorf("lock %q already held by this instance", name))
	}

	now := NormalizeTimestamp(time.Now())

	if override {
		_, err := l.store.db.Exec(`
			INSERT INTO locks (lock_name, host, process_id, reason, date) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (lock_name) DO UPDATE SET host = excluded.host, process_id = excluded.process_id,
				reason = excluded.reason, date = excluded.date`,
			name, l.host, l.processID, reason, now)
		if err != nil {
			return catalogerr.E(op, catalogerr.Internal, err)
		}
		metrics.LockAcquisitionsTotal.Inc()
		l.log.Warn().Str("lock", name).Msg("lock override")
		return nil
	}

	_, err = l.store.db.Exec(`INSERT INTO locks (lock_name, host, process_id, reason, date) VALUES (?, ?, ?, ?, ?)`,
		name, l.host, l.processID, reason, now)
	if err != nil {
		if isUniqueViolation(err) {
			metrics.LockConflictsTotal.Inc()
			return catalogerr.E(op, catalogerr.AlreadyLocked, fmt.Errorf("lock %q already held", name))
		}
		return catalogerr.E(op, catalogerr.Internal, err)
	}

	metrics.LockAcquisitionsTotal.Inc()
	l.log.Info().Str("lock", name).Msg("lock acquired")
	return nil
}

// IsLocked reports whether any instance holds name.
func (l *Locker) IsLocked(name string) (bool, error) {
	const op = catalogerr.Op("catalog.Locker.IsLocked")

	var count int
	if err := l.store.db.Get(&count, `SELECT count(*) FROM locks WHERE lock_name = ?`, name); err != nil {
		return false, catalogerr.E(op, catalogerr.Internal, err)
	}
	return count > 0, nil
}

// Update changes the reason on a lock this instance holds.
func (l *Locker) Update(name, reason string) error {
	const op = catalogerr.Op("catalog.Locker.Update")

	res, err := l.store.db.Exec(`
		UPDATE locks SET reason = ? WHERE lock_name = ? AND host = ? AND process_id = ?`,
		reason, name, l.host, l.processID)
	if err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	if n == 0 {
		return catalogerr.E(op, catalogerr.Internal, fmt.Errorf("lock %q is not held by this instance", name))
	}
	return nil
}

// Release deletes a lock this instance holds.
func (l *Locker) Release(name string) error {
	const op = catalogerr.Op("catalog.Locker.Release")

	res, err := l.store.db.Exec(`DELETE FROM locks WHERE lock_name = ? AND host = ? AND process_id = ?`,
		name, l.host, l.processID)
	if err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	if n == 0 {
		return catalogerr.E(op, catalogerr.Internal, fmt.Errorf("lock %q is not held by this instance", name))
	}
	metrics.LockReleasesTotal.Inc()
	l.log.Info().Str("lock", name).Msg("lock released")
	return nil
}

// ReleaseAll deletes every lock held by this instance. Called on shutdown;
// errors are swallowed because the process is already tearing down.
func (l *Locker) ReleaseAll() {
	_, _ = l.store.db.Exec(`DELETE FROM locks WHERE host = ? AND process_id = ?`, l.host, l.processID)
}

// ListLocks returns every held lock.
func (l *Locker) ListLocks() ([]Lock, error) {
	const op = catalogerr.Op("catalog.Locker.ListLocks")

	var locks []Lock
	if err := l.store.db.Select(&locks, `SELECT lock_name, host, process_id, reason, date FROM locks ORDER BY lock_name`); err != nil {
		return nil, catalogerr.E(op, catalogerr.Internal, err)
	}
	return locks, nil
}

func (l *Locker) owns(name string) (bool, error) {
	const op = catalogerr.Op("catalog.Locker.owns")

	var lock Lock
	err := l.store.db.Get(&lock, `SELECT lock_name, host, process_id, reason, date FROM locks WHERE lock_name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, catalogerr.E(op, catalogerr.Internal, err)
	}
	return lock.Host == l.host && lock.ProcessID == l.processID, nil
}

// WithLock acquires name, runs fn, and guarantees release on any exit path
// (including a panic recovered and re-raised by the runtime's own defer
// chain), mirroring a scoped-resource / context-manager release contract.
// It always releases on a normal return, even though a caller might want
// the lock held past fn's completion (e.g. to hand off to a longer-lived
// follow-on step) — that opt-out isn't exposed here, so callers needing it
// must call Acquire/Release directly instead of WithLock.
func (l *Locker) WithLock(name, reason string, override bool, fn func() error) error {
	if err := l.Acquire(name, reason, override); err != nil {
		return err
	}
	defer func() {
		_ = l.Release(name)
	}()
	return fn()
}

// WithVersionLock is WithLock scoped to a version, using the lock name
// convention "Version <uid>".
func (l *Locker) WithVersionLock(uid, reason string, override bool, fn func() error) error {
	return l.WithLock(versionLockName(uid), reason, override, fn)
}
