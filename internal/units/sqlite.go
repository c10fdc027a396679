package units

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a unit has no stored record.
var ErrNotFound = errors.New("units: not found")

const schemaVersion = 1

// Store persists the unit graph in a sqlite database so a workspace does
// not need a full re-index on every start.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(`
        PRAGMA foreign_keys = ON;
        PRAGMA journal_mode = WAL;
    `); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set PRAGMA: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}
	if version == schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS units (
            name TEXT PRIMARY KEY,
            path TEXT NOT NULL,
            last_modified INTEGER NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS imports (
            source TEXT NOT NULL,
            target TEXT NOT NULL,
            PRIMARY KEY (source, target)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_imports_target
            ON imports(target)`,
	}
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %q: %w", query, err)
		}
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return tx.Commit()
}

// Load reads the stored graph into g.
func (s *Store) Load(g *Graph) error {
	type record struct {
		path     string
		modified time.Time
	}
	records := make(map[string]record)

	rows, err := s.db.Query("SELECT name, path, last_modified FROM units")
	if err != nil {
		return fmt.Errorf("failed to query units: %w", err)
	}
	for rows.Next() {
		var name, path string
		var modified int64
		if err := rows.Scan(&name, &path, &modified); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan unit record: %w", err)
		}
		records[name] = record{path: path, modified: time.Unix(modified, 0)}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("error iterating unit records: %w", err)
	}
	rows.Close()

	imports := make(map[string][]string)
	rows, err = s.db.Query("SELECT source, target FROM imports")
	if err != nil {
		return fmt.Errorf("failed to query imports: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var source, target string
		if err := rows.Scan(&source, &target); err != nil {
			return fmt.Errorf("failed to scan import record: %w", err)
		}
		imports[source] = append(imports[source], target)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating import records: %w", err)
	}

	for name, r := range records {
		g.Upsert(name, r.path, r.modified, imports[name])
	}
	return nil
}

// Flush writes the whole graph back to the database in one transaction.
func (s *Store) Flush(g *Graph) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM imports"); err != nil {
		return fmt.Errorf("failed to clear imports: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM units"); err != nil {
		return fmt.Errorf("failed to clear units: %w", err)
	}

	for _, unit := range g.Units() {
		info, ok := g.Lookup(unit)
		if !ok {
			continue
		}
		if _, err := tx.Exec(
			"INSERT INTO units (name, path, last_modified) VALUES (?, ?, ?)",
			unit, info.Path, info.Modified.Unix(),
		); err != nil {
			return fmt.Errorf("failed to insert unit %s: %w", unit, err)
		}
		for _, target := range g.Imports(unit) {
			if _, err := tx.Exec(
				"INSERT INTO imports (source, target) VALUES (?, ?)",
				unit, target,
			); err != nil {
				return fmt.Errorf("failed to insert import %s -> %s: %w", unit, target, err)
			}
		}
	}

	return tx.Commit()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
