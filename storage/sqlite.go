package storage

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

var sqliteDialect = sqlDialect{
	quote: func(ident string) string {
		return `"` + ident + `"`
	},
	placeholder: func(int) string {
		return "?"
	},
	types: map[string]string{
		"text": "TEXT",
		"int":  "INTEGER",
		"real": "REAL",
	},
}

// Writes the merged feed into a fresh SQLite database file, one table
// per GTFS file. Any existing file at path is replaced.
type SQLiteFeedWriter struct {
	*sqlFeedWriter
	path string
}

func NewSQLiteFeedWriter(path string) (*SQLiteFeedWriter, error) {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing %s: %w", path, err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A transaction owns a single connection anyway.
	db.SetMaxOpenConns(1)

	w, err := newSQLFeedWriter(db, sqliteDialect, false)
	if err != nil {
		db.Close()
		os.Remove(path)
		return nil, err
	}

	w.cleanup = func() error {
		err := os.Remove(path)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
		return nil
	}

	return &SQLiteFeedWriter{sqlFeedWriter: w, path: path}, nil
}
