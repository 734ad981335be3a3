package catalog

import (
	"fmt"

	"github.com/cuemby/blockcat/pkg/catalogerr"
)

// AddLabel upserts (version_uid, name) -> value.
func (s *Store) AddLabel(uid, name, value string) error {
	const op = catalogerr.Op("catalog.AddLabel")

	if err := validateName(op, "label name", name); err != nil {
		return err
	}
	if err := validateName(op, "label value", value); err != nil {
		return err
	}

	var versionID int64
	if err := s.db.Get(&versionID, `SELECT id FROM versions WHERE uid = ?`, uid); err != nil {
		return catalogerr.E(op, catalogerr.NotFound, fmt.Errorf("version %q not found", uid))
	}

	_, err := s.db.Exec(`
		INSERT INTO labels (version_id, name, value) VALUES (?, ?, ?)
		ON CONFLICT (version_id, name) DO UPDATE SET value = excluded.value`,
		versionID, name, value)
	if err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	return nil
}

// RmLabel deletes a label by (version_uid, name).
func (s *Store) RmLabel(uid, name string) error {
	const op = catalogerr.Op("catalog.RmLabel")

	var versionID int64
	if err := s.db.Get(&versionID, `SELECT id FROM versions WHERE uid = ?`, uid); err != nil {
		return catalogerr.E(op, catalogerr.NotFound, fmt.Errorf("version %q not found", uid))
	}

	if _, err := s.db.Exec(`DELETE FROM labels WHERE version_id = ? AND name = ?`, versionID, name); err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	return nil
}

func (s *Store) labelsForVersion(versionID int64) (map[string]string, error) {
	const op = catalogerr.Op("catalog.labelsForVersion")

	var rows []Label
	if err := s.db.Select(&rows, `SELECT version_id, name, value FROM labels WHERE version_id = ?`, versionID); err != nil {
		return nil, catalogerr.E(op, catalogerr.Internal, err)
	}

	labels := make(map[string]string, len(rows))
	for _, r := range rows {
		labels[r.Name] = r.Value
	}
	return labels, nil
}
