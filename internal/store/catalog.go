package store

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const catalogSchema = `
CREATE TABLE IF NOT EXISTS records (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    mode        TEXT NOT NULL,
    frequency   INTEGER NOT NULL,
    created_at  INTEGER NOT NULL,
    page_count  INTEGER NOT NULL,
    seq         INTEGER NOT NULL
)`

// catalog is a sqlite-backed cache of record summaries, kept alongside the
// authoritative per-record directories so that GetFiles doesn't need to
// stat and parse every metadata.json on every call (TryGetEntry still reads
// the record's metadata.json from disk). The directory
// tree remains the source of truth: a missing or stale catalog row is
// rebuilt from disk by rebuild, never trusted blindly for correctness-
// critical decisions such as CreateFile's existence check.
type catalog struct {
	dbPath string

	once sync.Once
	db   *sql.DB
	err  error

	seqMu sync.Mutex
	nextSeq int64
}

func newCatalog(dbPath string) *catalog {
	return &catalog{dbPath: dbPath}
}

func (c *catalog) open() (*sql.DB, error) {
	c.once.Do(func() {
		db, err := sql.Open("sqlite3", c.dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
		if err != nil {
			c.err = fmt.Errorf("opening catalog: %w", err)
			return
		}
		if _, err = db.Exec(catalogSchema); err != nil {
			_ = db.Close()
			c.err = fmt.Errorf("initializing catalog schema: %w", err)
			return
		}
		c.db = db
	})
	return c.db, c.err
}

func (c *catalog) close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// upsert records or refreshes a catalog entry for id, assigning it the next
// creation sequence number the first time it is seen.
func (c *catalog) upsert(e Entry) error {
	db, err := c.open()
	if err != nil {
		return err
	}

	c.seqMu.Lock()
	seq := c.nextSeq
	c.nextSeq++
	c.seqMu.Unlock()

	_, err = db.Exec(`
INSERT INTO records (id, name, mode, frequency, created_at, page_count, seq)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    mode = excluded.mode,
    frequency = excluded.frequency,
    page_count = excluded.page_count`,
		e.ID.String(), e.Name, e.Mode, e.Frequency, e.CreatedAt.UnixMicro(), e.PageCount, seq)
	if err != nil {
		return fmt.Errorf("upserting catalog entry: %w", err)
	}
	return nil
}

func (c *catalog) delete(id uuid.UUID) error {
	db, err := c.open()
	if err != nil {
		return err
	}
	_, err = db.Exec(`DELETE FROM records WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("deleting catalog entry: %w", err)
	}
	return nil
}

// list returns record ids ordered by creation sequence.
func (c *catalog) list() ([]uuid.UUID, error) {
	db, err := c.open()
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`SELECT id FROM records ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing catalog: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scanning catalog row: %w", err)
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parsing catalog id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (c *catalog) has(id uuid.UUID) (bool, error) {
	db, err := c.open()
	if err != nil {
		return false, err
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(1) FROM records WHERE id = ?`, id.String()).Scan(&n); err != nil {
		return false, fmt.Errorf("checking catalog entry: %w", err)
	}
	return n > 0, nil
}

// resetSeqTo raises the next sequence number to at least n without
// inserting a row; used after rebuilding the catalog from disk so records
// created afterwards sort after every record found by the directory scan.
func (c *catalog) resetSeqTo(n int64) {
	c.seqMu.Lock()
	if n > c.nextSeq {
		c.nextSeq = n
	}
	c.seqMu.Unlock()
}
