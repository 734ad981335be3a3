package catalog

import (
	"fmt"

	"github.com/cuemby/blockcat/pkg/catalog/filter"
	"github.com/cuemby/blockcat/pkg/catalogerr"
	metrics "github.com/cuemby/blockcat/pkg/catalogmetrics"
)

// GetVersionsByExpr parses and lowers a filter expression (see package
// filter) and returns every version it selects, ordered by (volume, date).
// An empty expression matches every version.
func (s *Store) GetVersionsByExpr(expr string) ([]Version, error) {
	const op = catalogerr.Op("catalog.GetVersionsByExpr")

	ast, err := filter.Parse(expr)
	if err != nil {
		metrics.FilterParseErrorsTotal.Inc()
		return nil, err
	}

	where, args, err := filter.Lower(ast)
	if err != nil {
		metrics.FilterParseErrorsTotal.Inc()
		return nil, err
	}
	metrics.FilterQueriesTotal.Inc()

	query := fmt.Sprintf(`
		SELECT id, uid, date, volume, snapshot, size, block_size, storage_id, status, protected,
		       bytes_read, bytes_written, bytes_deduplicated, bytes_sparse, duration
		FROM versions v WHERE %s ORDER BY volume, date`, where)

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
