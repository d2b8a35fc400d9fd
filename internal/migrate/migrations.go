// Package migrate applies the embedded schema scripts to a SQLite database.
// Scripts live under sql/ and are named NNNN_description.sql; the numeric
// prefix is the schema version the script brings the database up to.
package migrate

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var scripts embed.FS

type step struct {
	version int
	name    string
	sql     string
}

func readSteps() ([]step, error) {
	entries, err := fs.ReadDir(scripts, "sql")
	if err != nil {
		return nil, err
	}
	steps := make([]step, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		prefix, _, ok := strings.Cut(e.Name(), "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: missing version prefix", e.Name())
		}
		v, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", e.Name(), err)
		}
		body, err := scripts.ReadFile("sql/" + e.Name())
		if err != nil {
			return nil, err
		}
		steps = append(steps, step{version: v, name: e.Name(), sql: string(body)})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].version < steps[j].version })
	return steps, nil
}

// Migrate brings db up to the latest embedded schema version. All pending
// steps run inside a single transaction; a brand-new database starts at
// version 0 and replays everything.
func Migrate(db *sql.DB) error {
	steps, err := readSteps()
	if err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_version(version INTEGER NOT NULL);`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}
	var current int
	switch err := tx.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&current); err {
	case nil:
	case sql.ErrNoRows:
		if _, err := tx.Exec(`INSERT INTO schema_version(version) VALUES (0)`); err != nil {
			return fmt.Errorf("seed schema_version: %w", err)
		}
	default:
		return fmt.Errorf("read schema_version: %w", err)
	}

	for _, s := range steps {
		if s.version <= current {
			continue
		}
		if _, err := tx.Exec(s.sql); err != nil {
			return fmt.Errorf("apply %s: %w", s.name, err)
		}
		if _, err := tx.Exec(`UPDATE schema_version SET version=?`, s.version); err != nil {
			return fmt.Errorf("bump schema_version: %w", err)
		}
		current = s.version
	}
	return tx.Commit()
}
