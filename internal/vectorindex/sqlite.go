package vectorindex

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"crawshaw.io/sqlite"

	"github.com/localrivet/kbrag/internal/vector"
)

// ErrIndexNotFound reports that no persisted index exists at the store's
// location. Callers distinguish it from corruption and I/O failures.
var ErrIndexNotFound = errors.New("no persisted index at location")

const createEntriesSQL = `
CREATE TABLE IF NOT EXISTS kb_entries (
	ord INTEGER PRIMARY KEY,
	id TEXT NOT NULL,
	source TEXT NOT NULL,
	chunk INTEGER NOT NULL,
	content TEXT NOT NULL,
	embedding BLOB NOT NULL
);`

const createMetaSQL = `
CREATE TABLE IF NOT EXISTS kb_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Store persists an Index as a SQLite database at a fixed filesystem path.
// Connections are opened per operation and closed before returning, so the
// database file can be deleted and recreated between calls.
type Store struct {
	path string
}

// NewStore creates a Store for the database file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the filesystem location the store reads and writes.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a persisted index is present at the store location.
func (s *Store) Exists() bool {
	if s.path == "" {
		return false
	}
	info, err := os.Stat(s.path)
	return err == nil && !info.IsDir()
}

// Delete removes the persisted index. Deleting a store that was never saved
// is not an error.
func (s *Store) Delete() error {
	if s.path == "" {
		return errors.New("no index location configured")
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete persisted index: %w", err)
	}
	return nil
}

// Load reads the persisted index into memory. Returns ErrIndexNotFound when
// nothing has been persisted at the store location yet.
func (s *Store) Load() (*Index, error) {
	if s.path == "" {
		return nil, errors.New("no index location configured")
	}
	if !s.Exists() {
		return nil, ErrIndexNotFound
	}

	conn, err := sqlite.OpenConn(s.path, sqlite.SQLITE_OPEN_READONLY)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	defer conn.Close()

	dimension, err := readDimension(conn)
	if err != nil {
		return nil, err
	}

	index, err := New(dimension)
	if err != nil {
		return nil, err
	}

	stmt, err := conn.Prepare("SELECT id, source, chunk, content, embedding FROM kb_entries ORDER BY ord;")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare entry query: %w", err)
	}
	defer stmt.Reset()

	for {
		hasRow, err := stmt.Step()
		if err != nil {
			return nil, fmt.Errorf("failed to read index entries: %w", err)
		}
		if !hasRow {
			break
		}

		entry := Entry{
			ID:      stmt.ColumnText(0),
			Source:  stmt.ColumnText(1),
			Ordinal: int(stmt.ColumnInt64(2)),
			Content: stmt.ColumnText(3),
		}

		blob := make([]byte, stmt.ColumnLen(4))
		stmt.ColumnBytes(4, blob)

		embedding, err := vector.BytesToFloat32Slice(blob)
		if err != nil {
			return nil, fmt.Errorf("failed to decode embedding for entry %s: %w", entry.ID, err)
		}
		entry.Embedding = embedding

		if err := index.Add(entry); err != nil {
			return nil, fmt.Errorf("persisted index is inconsistent: %w", err)
		}
	}

	return index, nil
}

// Save writes the full index to the store location inside one transaction,
// replacing whatever was persisted before.
func (s *Store) Save(index *Index) error {
	if s.path == "" {
		return errors.New("no index location configured")
	}
	if err := index.ready(); err != nil {
		return err
	}

	conn, err := sqlite.OpenConn(s.path, sqlite.SQLITE_OPEN_CREATE|sqlite.SQLITE_OPEN_READWRITE)
	if err != nil {
		return fmt.Errorf("failed to open index database: %w", err)
	}
	defer conn.Close()

	if err := exec(conn, createEntriesSQL); err != nil {
		return fmt.Errorf("failed to create entries table: %w", err)
	}
	if err := exec(conn, createMetaSQL); err != nil {
		return fmt.Errorf("failed to create metadata table: %w", err)
	}

	if err := exec(conn, "BEGIN IMMEDIATE;"); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := s.writeAll(conn, index); err != nil {
		_ = exec(conn, "ROLLBACK;")
		return err
	}
	if err := exec(conn, "COMMIT;"); err != nil {
		return fmt.Errorf("failed to commit index: %w", err)
	}

	return nil
}

func (s *Store) writeAll(conn *sqlite.Conn, index *Index) error {
	if err := exec(conn, "DELETE FROM kb_entries;"); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}
	if err := exec(conn, "DELETE FROM kb_meta;"); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}

	meta, err := conn.Prepare("INSERT INTO kb_meta (key, value) VALUES (?, ?);")
	if err != nil {
		return fmt.Errorf("failed to prepare metadata insert: %w", err)
	}
	defer meta.Reset()

	meta.BindText(1, "dimension")
	meta.BindText(2, strconv.Itoa(index.Dimension()))
	if _, err := meta.Step(); err != nil {
		return fmt.Errorf("failed to write dimension metadata: %w", err)
	}

	insert, err := conn.Prepare("INSERT INTO kb_entries (ord, id, source, chunk, content, embedding) VALUES (?, ?, ?, ?, ?, ?);")
	if err != nil {
		return fmt.Errorf("failed to prepare entry insert: %w", err)
	}
	defer insert.Reset()

	for i, entry := range index.entries {
		blob, err := vector.Float32SliceToBytes(entry.Embedding)
		if err != nil {
			return fmt.Errorf("failed to encode embedding for entry %s: %w", entry.ID, err)
		}

		// Bind indices are 1-based.
		insert.BindInt64(1, int64(i))
		insert.BindText(2, entry.ID)
		insert.BindText(3, entry.Source)
		insert.BindInt64(4, int64(entry.Ordinal))
		insert.BindText(5, entry.Content)
		insert.BindBytes(6, blob)

		if _, err := insert.Step(); err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", entry.ID, err)
		}
		if err := insert.Reset(); err != nil {
			return fmt.Errorf("failed to reset entry insert: %w", err)
		}
	}

	return nil
}

// readDimension fetches the vector dimension recorded when the index was
// last saved.
func readDimension(conn *sqlite.Conn) (int, error) {
	stmt, err := conn.Prepare("SELECT value FROM kb_meta WHERE key = 'dimension';")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare metadata query: %w", err)
	}
	defer stmt.Reset()

	hasRow, err := stmt.Step()
	if err != nil {
		return 0, fmt.Errorf("failed to read metadata: %w", err)
	}
	if !hasRow {
		return 0, errors.New("persisted index has no dimension metadata")
	}

	dimension, err := strconv.Atoi(stmt.ColumnText(0))
	if err != nil {
		return 0, fmt.Errorf("persisted dimension is not a number: %w", err)
	}
	return dimension, nil
}

// exec runs a single statement that returns no rows.
func exec(conn *sqlite.Conn, sql string) error {
	stmt, err := conn.Prepare(sql)
	if err != nil {
		return err
	}
	defer stmt.Reset()

	_, err = stmt.Step()
	return err
}
