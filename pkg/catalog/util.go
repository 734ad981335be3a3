package catalog

import "github.com/jmoiron/sqlx"

// sqlxIn expands a query's "IN (?)" placeholder for a slice argument into one
// "?" bindvar per element. The result is not rebound, so it keeps the "?"
// style that the sqlite driver accepts and the postgres driver does not.
func sqlxIn(query string, args ...interface{}) (string, []interface{}, error) {
	expanded, flatArgs, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return expanded, flatArgs, nil
}
