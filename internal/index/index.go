package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kestrelworks/nervecenter/internal/journal"
	"github.com/kestrelworks/nervecenter/internal/record"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS records (
	seq        INTEGER PRIMARY KEY,
	kind       TEXT NOT NULL,
	record_id  TEXT NOT NULL,
	version    INTEGER NOT NULL,
	actor_id   TEXT,
	model_type TEXT,
	created_at TEXT,
	body       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_id ON records(record_id, seq);
CREATE INDEX IF NOT EXISTS idx_records_kind ON records(kind, seq);
`
// #endregion schema

// #region index-struct
// Index is a derived, rebuildable SQLite view over the journal, for ad-hoc
// inspection queries. It is never written by the orchestrator; the journal
// stays the single source of truth and the index can be dropped and rebuilt
// from it at any time.
type Index struct {
	db *sql.DB
}

// Open opens a SQLite database and runs migrations.
func Open(dbPath string) (*Index, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Index{db: db}, nil
}

// Close closes the underlying database connection.
func (ix *Index) Close() error {
	return ix.db.Close()
}
// #endregion index-struct

// #region build
// indexedFields are the envelope fields lifted into queryable columns.
type indexedFields struct {
	ID        string           `json:"id"`
	Version   int              `json:"version"`
	ActorID   string           `json:"actorId"`
	ModelType record.ModelType `json:"modelType"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Build rebuilds the index from the journal. The records table is cleared
// first, so Build is idempotent: rebuilding from the same journal yields
// the same rows.
func (ix *Index) Build(journalPath string) (int, error) {
	tx, err := ix.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM records`); err != nil {
		return 0, fmt.Errorf("clear records: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO records (seq, kind, record_id, version, actor_id, model_type, created_at, body)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	n := 0
	err = journal.Replay(journalPath, func(e journal.Entry) error {
		var f indexedFields
		if err := json.Unmarshal(e.Record, &f); err != nil {
			return fmt.Errorf("decode record at seq %d: %w", e.Seq, err)
		}
		version := f.Version
		if e.Kind == record.KindActor {
			version = 1
		}
		_, err := stmt.Exec(
			e.Seq, string(e.Kind), f.ID, version,
			nullIfEmpty(f.ActorID), nullIfEmpty(string(f.ModelType)),
			f.CreatedAt.Format(time.RFC3339Nano), string(e.Record),
		)
		if err != nil {
			return fmt.Errorf("insert seq %d: %w", e.Seq, err)
		}
		n++
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}
// #endregion build

// #region rows
// Row is one indexed journal line.
type Row struct {
	Seq       int64  `json:"seq"`
	Kind      string `json:"kind"`
	RecordID  string `json:"record_id"`
	Version   int    `json:"version"`
	ActorID   string `json:"actor_id,omitempty"`
	ModelType string `json:"model_type,omitempty"`
	CreatedAt string `json:"created_at"`
	Body      string `json:"body"`
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var r Row
		var actorID, modelType sql.NullString
		if err := rows.Scan(&r.Seq, &r.Kind, &r.RecordID, &r.Version, &actorID, &modelType, &r.CreatedAt, &r.Body); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if actorID.Valid {
			r.ActorID = actorID.String
		}
		if modelType.Valid {
			r.ModelType = modelType.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Recent returns the most recently appended lines, newest first.
func (ix *Index) Recent(limit int) ([]Row, error) {
	rows, err := ix.db.Query(
		`SELECT seq, kind, record_id, version, actor_id, model_type, created_at, body
		 FROM records ORDER BY seq DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	return scanRows(rows)
}

// History returns every appended version for one record id, in append order.
func (ix *Index) History(recordID string) ([]Row, error) {
	rows, err := ix.db.Query(
		`SELECT seq, kind, record_id, version, actor_id, model_type, created_at, body
		 FROM records WHERE record_id = ? ORDER BY seq ASC`, recordID,
	)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", recordID, err)
	}
	return scanRows(rows)
}

// ByKind returns the most recent lines of one record kind, newest first.
func (ix *Index) ByKind(kind record.Kind, limit int) ([]Row, error) {
	rows, err := ix.db.Query(
		`SELECT seq, kind, record_id, version, actor_id, model_type, created_at, body
		 FROM records WHERE kind = ? ORDER BY seq DESC LIMIT ?`, string(kind), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return scanRows(rows)
}

// Count returns the number of indexed lines.
func (ix *Index) Count() (int, error) {
	var n int
	if err := ix.db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}
// #endregion rows

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
