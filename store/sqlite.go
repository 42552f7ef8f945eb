// Package store provides SQLite-backed persistence for the kernel: the live
// diagram and its checkpoint history, stored as zstd-compressed canonical
// JSON with BLAKE3 digests.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/TomHumphrey150/OpenJaw-sub004/kernel"
)

//go:embed schema.sql
var schemaSQL string

//go:embed pragmas.sql
var pragmasSQL string

// DBFile is the database file name inside a data directory.
const DBFile = "causal.db"

// ErrDigestMismatch reports a stored blob that no longer matches its digest.
var ErrDigestMismatch = errors.New("stored blob digest mismatch")

// DB wraps a SQLite connection.
type DB struct {
	conn *sql.DB
	mu   sync.Mutex
	path string
}

var (
	_ kernel.Store           = (*DB)(nil)
	_ kernel.CheckpointStore = (*DB)(nil)
	_ kernel.CommitStore     = (*DB)(nil)
)

// OpenDir opens or creates the database inside dir.
func OpenDir(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return Open(filepath.Join(dir, DBFile))
}

// Open opens a database at the given path, applying pragmas and schema.
func Open(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	for _, pragma := range strings.Split(pragmasSQL, "\n") {
		pragma = strings.TrimSpace(pragma)
		if pragma == "" || strings.HasPrefix(pragma, "--") {
			continue
		}
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// ----- Head -----

// LoadSnapshot implements kernel.Store.
func (db *DB) LoadSnapshot(ctx context.Context) (kernel.Snapshot, bool, error) {
	var blob, digest []byte
	err := db.conn.QueryRowContext(ctx,
		`SELECT blob, digest FROM head WHERE id = 1`,
	).Scan(&blob, &digest)
	if err == sql.ErrNoRows {
		return kernel.Snapshot{}, false, nil
	}
	if err != nil {
		return kernel.Snapshot{}, false, fmt.Errorf("querying head: %w", err)
	}

	var snap kernel.Snapshot
	if err := decodeBlob(blob, digest, &snap); err != nil {
		return kernel.Snapshot{}, false, fmt.Errorf("head: %w", err)
	}
	return snap, true, nil
}

// SaveSnapshot implements kernel.Store.
func (db *DB) SaveSnapshot(ctx context.Context, snap kernel.Snapshot) error {
	blob, digest, err := encodeBlob(snap)
	if err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	return saveHead(ctx, db.conn, snap.Diagram.GraphVersion, digest, blob)
}

// SaveCommit implements kernel.CommitStore: the head and the new checkpoint
// are written in one transaction.
func (db *DB) SaveCommit(ctx context.Context, snap kernel.Snapshot, cp kernel.Checkpoint) error {
	headBlob, headDigest, err := encodeBlob(snap)
	if err != nil {
		return err
	}
	cpBlob, cpDigest, err := encodeBlob(cp.Diagram)
	if err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning commit: %w", err)
	}
	defer tx.Rollback()

	if err := saveHead(ctx, tx, snap.Diagram.GraphVersion, headDigest, headBlob); err != nil {
		return err
	}
	if err := insertCheckpoint(ctx, tx, cp, cpDigest, cpBlob); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveHead(ctx context.Context, ex execer, version string, digest, blob []byte) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO head (id, graph_version, updated_at, digest, blob) VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   graph_version = excluded.graph_version,
		   updated_at = excluded.updated_at,
		   digest = excluded.digest,
		   blob = excluded.blob`,
		version, time.Now().UnixMilli(), digest, blob,
	)
	if err != nil {
		return fmt.Errorf("saving head: %w", err)
	}
	return nil
}

// ----- Checkpoints -----

// AppendCheckpoint implements kernel.CheckpointStore.
func (db *DB) AppendCheckpoint(ctx context.Context, cp kernel.Checkpoint) error {
	blob, digest, err := encodeBlob(cp.Diagram)
	if err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	return insertCheckpoint(ctx, db.conn, cp, digest, blob)
}

func insertCheckpoint(ctx context.Context, ex execer, cp kernel.Checkpoint, digest, blob []byte) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO checkpoints (id, graph_version, created_at, digest, blob) VALUES (?, ?, ?, ?, ?)`,
		cp.ID, cp.GraphVersion, cp.CreatedAt.UnixMilli(), digest, blob,
	)
	if err != nil {
		return fmt.Errorf("inserting checkpoint: %w", err)
	}
	return nil
}

// ListCheckpoints implements kernel.CheckpointStore, oldest first.
func (db *DB) ListCheckpoints(ctx context.Context) ([]kernel.Checkpoint, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, graph_version, created_at, digest, blob FROM checkpoints ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying checkpoints: %w", err)
	}
	defer rows.Close()

	var out []kernel.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func scanCheckpoint(rows *sql.Rows) (kernel.Checkpoint, error) {
	var (
		cp        kernel.Checkpoint
		createdAt int64
		digest    []byte
		blob      []byte
	)
	if err := rows.Scan(&cp.ID, &cp.GraphVersion, &createdAt, &digest, &blob); err != nil {
		return kernel.Checkpoint{}, fmt.Errorf("scanning checkpoint: %w", err)
	}
	cp.CreatedAt = time.UnixMilli(createdAt).UTC()
	if err := decodeBlob(blob, digest, &cp.Diagram); err != nil {
		return kernel.Checkpoint{}, fmt.Errorf("checkpoint %s: %w", cp.ID, err)
	}
	return cp, nil
}
