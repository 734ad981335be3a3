package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/cuemby/blockcat/pkg/catalogerr"
)

// CreateStorage inserts a new named storage backend.
func (s *Store) CreateStorage(name string) (Storage, error) {
	const op = catalogerr.Op("catalog.CreateStorage")

	res, err := s.db.Exec(`INSERT INTO storages (name) VALUES (?)`, name)
	if err != nil {
		if isUniqueViolation(err) {
			return Storage{}, catalogerr.E(op, catalogerr.AlreadyExists, fmt.Errorf("storage %q already exists", name))
		}
		return Storage{}, catalogerr.E(op, catalogerr.Internal, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Storage{}, catalogerr.E(op, catalogerr.Internal, err)
	}
	return Storage{ID: id, Name: name}, nil
}

// GetStorageByName looks up a storage by its unique name.
func (s *Store) GetStorageByName(name string) (Storage, error) {
	const op = catalogerr.Op("catalog.GetStorageByName")

	var st Storage
	err := s.db.Get(&st, `SELECT id, name FROM storages WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return Storage{}, catalogerr.E(op, catalogerr.NotFound, fmt.Errorf("storage %q not found", name))
	}
	if err != nil {
		return Storage{}, catalogerr.E(op, catalogerr.Internal, err)
	}
	return st, nil
}

// GetStorageByID looks up a storage by its primary key.
func (s *Store) GetStorageByID(id int64) (Storage, error) {
	const op = catalogerr.Op("catalog.GetStorageByID")

	var st Storage
	err := s.db.Get(&st, `SELECT id, name FROM storages WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Storage{}, catalogerr.E(op, catalogerr.NotFound, fmt.Errorf("storage id %d not found", id))
	}
	if err != nil {
		return Storage{}, catalogerr.E(op, catalogerr.Internal, err)
	}
	return st, nil
}

// ListStorages returns every known storage, ordered by name.
func (s *Store) ListStorages() ([]Storage, error) {
	const op = catalogerr.Op("catalog.ListStorages")

	var storages []Storage
	if err := s.db.Select(&storages, `SELECT id, name FROM storages ORDER BY name`); err != nil {
		return nil, catalogerr.E(op, catalogerr.Internal, err)
	}
	return storages, nil
}

// SyncStorages idempotently upserts storages with caller-supplied ids, so
// sync can make the catalog's storage table match external configuration.
// A name that already exists under a different id is a Configuration error.
func (s *Store) SyncStorages(byNameToID map[string]int64) error {
	const op = catalogerr.Op("catalog.SyncStorages")

	tx, err := s.db.Beginx()
	if err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	defer tx.Rollback()

	for name, id := range byNameToID {
		var existingID int64
		err := tx.Get(&existingID, `SELECT id FROM storages WHERE name = ?`, name)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.Exec(`INSERT INTO storages (id, name) VALUES (?, ?)`, id, name); err != nil {
				return catalogerr.E(op, catalogerr.Internal, err)
			}
		case err != nil:
			return catalogerr.E(op, catalogerr.Internal, err)
		case existingID != id:
			return catalogerr.E(op, catalogerr.Configuration,
				fmt.Errorf("storage %q already has id %d, sync requested id %d", name, existingID, id))
		}
	}

	if err := tx.Commit(); err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
