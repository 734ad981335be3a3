package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/blockcat/pkg/catalogerr"
	"github.com/cuemby/blockcat/pkg/log"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// lockTimeout bounds how long a SQLite connection waits on "database is
// locked" contention: 3x the default block-commit interval.
const lockTimeout = 3 * 20 * time.Second

// Store is a handle on the catalog's backing relational database. Every
// catalog operation is a method on Store or on a value it returns
// (BlockWriter).
type Store struct {
	db     *sqlx.DB
	engine Engine
	log    zerolog.Logger
}

// New opens (but does not migrate) a Store for the given connection URL.
// The scheme selects the driver: "sqlite:" uses the pure-Go modernc.org
// driver, "postgres:"/"postgresql:" uses pgx.
func New(databaseEngine string) (*Store, error) {
	const op = catalogerr.Op("catalog.New")

	driverName, dsn, engine, err := parseDatabaseEngine(databaseEngine)
	if err != nil {
		return nil, catalogerr.E(op, catalogerr.Configuration, err)
	}

	if engine == EngineSQLite {
		dsn = sqliteDSNWithPragmas(dsn)
	}

	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, catalogerr.E(op, catalogerr.Configuration, fmt.Errorf("connect: %w", err))
	}

	if engine == EngineSQLite {
		// SQLite enforces foreign_keys and busy_timeout per connection, not
		// per database, so a pooled *sqlx.DB that hands out more than one
		// underlying connection would silently run with FK enforcement off
		// (and no busy timeout) on every connection but the first. Pinning
		// the pool to a single connection also keeps a ":memory:" DSN from
		// fragmenting into a separate, empty database per connection.
		db.SetMaxOpenConns(1)
	}

	return &Store{db: db, engine: engine, log: log.WithComponent("catalog")}, nil
}

// sqliteDSNWithPragmas appends modernc.org/sqlite's per-connection pragma
// query parameters to path, so every connection the driver opens enforces
// foreign keys and waits on lock contention rather than failing immediately.
func sqliteDSNWithPragmas(path string) string {
	pragmas := fmt.Sprintf("_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)", lockTimeout.Milliseconds())
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + pragmas
}

func parseDatabaseEngine(url string) (driverName, dsn string, engine Engine, err error) {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		path := strings.TrimPrefix(url, "sqlite://")
		return "sqlite", path, EngineSQLite, nil
	case strings.HasPrefix(url, "sqlite:"):
		path := strings.TrimPrefix(url, "sqlite:")
		return "sqlite", path, EngineSQLite, nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "pgx", url, EnginePostgres, nil
	default:
		return "", "", 0, fmt.Errorf("unrecognized databaseEngine scheme in %q", url)
	}
}

// DB exposes the underlying sqlx handle for components (GC, lock, filter)
// that need to build their own queries.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Engine reports the SQL dialect this store was opened against.
func (s *Store) Engine() Engine {
	return s.engine
}

// Close releases the underlying database connection(s).
func (s *Store) Close() error {
	return s.db.Close()
}

// Init creates the schema from scratch, refusing a non-empty database.
func (s *Store) Init() error {
	return Init(s.db, s.engine)
}

// Migrate upgrades the schema to head.
func (s *Store) Migrate() error {
	return Migrate(s.db, s.engine)
}

// RequireHeadRevision fails with MigrationRequired if the schema is not at
// head; callers are expected to invoke this once at startup.
func (s *Store) RequireHeadRevision() error {
	return RequireHeadRevision(s.db)
}
