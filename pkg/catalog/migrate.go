package catalog

import (
	"fmt"
	"strings"

	"github.com/cuemby/blockcat/pkg/catalogerr"
	"github.com/cuemby/blockcat/pkg/log"
	"github.com/jmoiron/sqlx"
)

// Engine selects the SQL dialect in effect for a Store.
type Engine int

const (
	EngineSQLite Engine = iota
	EnginePostgres
)

type migration struct {
	revision   int
	statements []string
}

// migrations is the ordered list of schema revisions. Revision 1 is the base
// schema; later revisions are additive. HeadRevision is the highest revision
// in this list.
var migrations = []migration{
	{revision: 1, statements: schemaStatements},
	{revision: 2, statements: schemaRevision2Statements},
}

// HeadRevision is the schema revision this build of the catalog expects.
func HeadRevision() int {
	head := 0
	for _, m := range migrations {
		if m.revision > head {
			head = m.revision
		}
	}
	return head
}

func adaptStatement(stmt string, engine Engine) string {
	if engine != EnginePostgres {
		return stmt
	}
	for from, to := range postgresReplacements {
		stmt = strings.ReplaceAll(stmt, from, to)
	}
	return stmt
}

// CurrentRevision reads the applied schema revision, or 0 if the
// schema_migrations table does not yet exist.
func CurrentRevision(db *sqlx.DB) (int, error) {
	const op = catalogerr.Op("catalog.CurrentRevision")

	var revision int
	err := db.Get(&revision, `SELECT revision FROM schema_migrations LIMIT 1`)
	if err != nil {
		if isMissingTable(err) {
			return 0, nil
		}
		return 0, catalogerr.E(op, catalogerr.Internal, err)
	}
	return revision, nil
}

// isMissingTable recognizes the "no such table" family of errors across the
// sqlite and postgres drivers well enough to treat a fresh database as
// revision 0 rather than a hard failure.
func isMissingTable(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no such table") || strings.Contains(msg, "does not exist")
}

// databaseIsEmpty reports whether the database has no user tables yet, per
// engine.
func databaseIsEmpty(db *sqlx.DB, engine Engine) (bool, error) {
	var query string
	switch engine {
	case EnginePostgres:
		query = `SELECT count(*) FROM information_schema.tables WHERE table_schema = 'public'`
	default:
		query = `SELECT count(*) FROM sqlite_master WHERE type = 'table'`
	}
	var count int
	if err := db.Get(&count, query); err != nil {
		return false, err
	}
	return count == 0, nil
}

// Init creates the schema from scratch and stamps it at head. It refuses to
// run against a non-empty database.
func Init(db *sqlx.DB, engine Engine) error {
	const op = catalogerr.Op("catalog.Init")
	logger := log.WithComponent("migrate")

	empty, err := databaseIsEmpty(db, engine)
	if err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	if !empty {
		return catalogerr.E(op, catalogerr.Configuration, fmt.Errorf("refusing to init: database is not empty"))
	}

	tx, err := db.Beginx()
	if err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	defer tx.Rollback()

	for _, m := range migrations {
		for _, stmt := range m.statements {
			if _, err := tx.Exec(adaptStatement(stmt, engine)); err != nil {
				return catalogerr.E(op, catalogerr.Internal, fmt.Errorf("revision %d: %w", m.revision, err))
			}
		}
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (revision) VALUES (?)`, HeadRevision()); err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	if err := tx.Commit(); err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}

	logger.Info().Int("revision", HeadRevision()).Msg("schema initialized")
	return nil
}

// Migrate runs schema upgrades from the current revision to head.
func Migrate(db *sqlx.DB, engine Engine) error {
	const op = catalogerr.Op("catalog.Migrate")
	logger := log.WithComponent("migrate")

	current, err := CurrentRevision(db)
	if err != nil {
		return err
	}

	applied := 0
	for _, m := range migrations {
		if m.revision <= current {
			continue
		}
		tx, err := db.Beginx()
		if err != nil {
			return catalogerr.E(op, catalogerr.Internal, err)
		}
		for _, stmt := range m.statements {
			if _, err := tx.Exec(adaptStatement(stmt, engine)); err != nil {
				tx.Rollback()
				return catalogerr.E(op, catalogerr.Internal, fmt.Errorf("revision %d: %w", m.revision, err))
			}
		}
		if current == 0 {
			if _, err := tx.Exec(`INSERT INTO schema_migrations (revision) VALUES (?)`, m.revision); err != nil {
				tx.Rollback()
				return catalogerr.E(op, catalogerr.Internal, err)
			}
		} else {
			if _, err := tx.Exec(`UPDATE schema_migrations SET revision = ?`, m.revision); err != nil {
				tx.Rollback()
				return catalogerr.E(op, catalogerr.Internal, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return catalogerr.E(op, catalogerr.Internal, err)
		}
		current = m.revision
		applied++
		logger.Info().Int("revision", m.revision).Msg("migration applied")
	}

	logger.Info().Int("applied", applied).Int("revision", current).Msg("migration complete")
	return nil
}

// RequireHeadRevision fails with MigrationRequired if the database's applied
// revision does not match HeadRevision.
func RequireHeadRevision(db *sqlx.DB) error {
	const op = catalogerr.Op("catalog.RequireHeadRevision")

	current, err := CurrentRevision(db)
	if err != nil {
		return err
	}
	if current != HeadRevision() {
		return catalogerr.E(op, catalogerr.MigrationRequired,
			fmt.Errorf("schema at revision %d, head is %d", current, HeadRevision()))
	}
	return nil
}
