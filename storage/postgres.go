package storage

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

var psqlDialect = sqlDialect{
	quote: pq.QuoteIdentifier,
	placeholder: func(i int) string {
		return fmt.Sprintf("$%d", i)
	},
	types: map[string]string{
		"text": "TEXT",
		"int":  "INTEGER",
		"real": "DOUBLE PRECISION",
	},
}

// Writes the merged feed into a Postgres database. Existing GTFS
// tables are dropped and recreated in the same transaction as the
// inserts, so readers see either the previous feed or the complete
// new one.
type PSQLFeedWriter struct {
	*sqlFeedWriter
}

func NewPSQLFeedWriter(connStr string) (*PSQLFeedWriter, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	db.SetMaxOpenConns(1)

	w, err := newSQLFeedWriter(db, psqlDialect, true)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &PSQLFeedWriter{sqlFeedWriter: w}, nil
}
