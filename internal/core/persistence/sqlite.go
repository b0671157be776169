package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/zeusync/holdable/internal/core/models"
)

// SQLiteStore keeps one row per item in a local sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates the database and its schema if needed.
func Open(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err = initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err = initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS placements (
		item_id INTEGER PRIMARY KEY,
		definition TEXT NOT NULL,
		container INTEGER NOT NULL,
		attached INTEGER NOT NULL,
		pos_x REAL NOT NULL,
		pos_y REAL NOT NULL,
		rotation REAL NOT NULL,
		pick_rules TEXT NOT NULL
	);`)
	return err
}

// SaveRecords replaces the stored set with records in one transaction.
func (s *SQLiteStore) SaveRecords(ctx context.Context, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, `DELETE FROM placements`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO placements
		(item_id, definition, container, attached, pos_x, pos_y, rotation, pick_rules)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		rules, err := json.Marshal(r.PickRules)
		if err != nil {
			return fmt.Errorf("item %d: %w", r.ItemID, err)
		}
		if _, err = stmt.ExecContext(ctx,
			int64(r.ItemID), string(r.Definition), int64(r.Container), r.Attached,
			r.Position.X(), r.Position.Y(), r.Rotation, string(rules),
		); err != nil {
			return fmt.Errorf("item %d: %w", r.ItemID, err)
		}
	}
	return tx.Commit()
}

// LoadRecords returns every stored record ordered by item id.
func (s *SQLiteStore) LoadRecords(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		item_id, definition, container, attached, pos_x, pos_y, rotation, pick_rules
		FROM placements ORDER BY item_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r          Record
			id, cont   int64
			def, rules string
			x, y       float64
		)
		if err = rows.Scan(&id, &def, &cont, &r.Attached, &x, &y, &r.Rotation, &rules); err != nil {
			return nil, err
		}
		if err = json.Unmarshal([]byte(rules), &r.PickRules); err != nil {
			return nil, fmt.Errorf("item %d: %w", id, err)
		}
		r.ItemID = models.EntityID(id)
		r.Definition = models.DefinitionID(def)
		r.Container = models.ContainerID(cont)
		r.Position[0], r.Position[1] = x, y
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
