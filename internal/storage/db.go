package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"preciobot/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Lookups are written from concurrent handlers; one connection keeps
	// sqlite from reporting SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS catalog_rows (
  sheet TEXT NOT NULL,
  rowNo INTEGER NOT NULL,
  device TEXT NOT NULL,
  headersJson TEXT NOT NULL,
  fieldsJson TEXT NOT NULL,
  syncedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY(sheet, rowNo)
);

CREATE TABLE IF NOT EXISTS lookups (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  identity TEXT NOT NULL,
  message TEXT NOT NULL,
  plan TEXT NOT NULL,
  query TEXT NOT NULL,
  outcome TEXT NOT NULL,
  candidates INTEGER NOT NULL DEFAULT 0,
  device TEXT NOT NULL DEFAULT '',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_lookups_createdAt ON lookups(createdAt);
CREATE INDEX IF NOT EXISTS idx_lookups_identity ON lookups(identity);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// ReplaceCatalog swaps the stored snapshot of one sheet for records.
func (d *DB) ReplaceCatalog(sheet string, records []internal.CatalogRecord) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM catalog_rows WHERE sheet = ?`, sheet); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
INSERT INTO catalog_rows (sheet, rowNo, device, headersJson, fieldsJson, syncedAt)
VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		headersJSON, err := json.Marshal(r.Headers)
		if err != nil {
			return err
		}
		fieldsJSON, err := json.Marshal(r.Fields)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(sheet, r.RowNo, r.Device, string(headersJSON), string(fieldsJSON)); err != nil {
			return fmt.Errorf("insert row %d: %w", r.RowNo, err)
		}
	}

	return tx.Commit()
}

// ListCatalog returns the stored snapshot of a sheet in sheet order. An empty
// result means the sheet was never synced.
func (d *DB) ListCatalog(sheet string) ([]internal.CatalogRecord, error) {
	rows, err := d.conn.Query(`
SELECT rowNo, device, headersJson, fieldsJson
FROM catalog_rows WHERE sheet = ? ORDER BY rowNo ASC`, sheet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.CatalogRecord
	for rows.Next() {
		r := internal.CatalogRecord{Sheet: sheet}
		var headersJSON, fieldsJSON string
		if err := rows.Scan(&r.RowNo, &r.Device, &headersJSON, &fieldsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(headersJSON), &r.Headers); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &r.Fields); err != nil {
			return nil, err
		}
		out = append(out, r)
	}

	return out, rows.Err()
}

func (d *DB) InsertLookup(row internal.LookupRow) (int64, error) {
	result, err := d.conn.Exec(`
INSERT INTO lookups (traceId, identity, message, plan, query, outcome, candidates, device)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, row.TraceID, row.Identity, row.Message, row.Plan, row.Query, row.Outcome, row.Candidates, row.Device)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListLookups returns lookups created at or after since (sqlite
// "YYYY-MM-DD HH:MM:SS", empty for all), newest first.
func (d *DB) ListLookups(since string, limit int) ([]internal.LookupRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.conn.Query(`
SELECT id, traceId, identity, message, plan, query, outcome, candidates, device, createdAt
FROM lookups
WHERE createdAt >= ?
ORDER BY id DESC
LIMIT ?
`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.LookupRow
	for rows.Next() {
		var row internal.LookupRow
		if err := rows.Scan(
			&row.ID, &row.TraceID, &row.Identity, &row.Message, &row.Plan,
			&row.Query, &row.Outcome, &row.Candidates, &row.Device, &row.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
