// Package flowstore is a local sqlite-backed cache of flows and run
// history, so historical runs stay inspectable offline. Flow documents and
// events are stored as JSON; event payloads over 1KB are zstd-compressed.
// It satisfies the run session's Ledger interface for the offline path.
package flowstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/flowdeck/flowdeck/pkg/compress"
	"github.com/flowdeck/flowdeck/pkg/model/mrun"
	"github.com/flowdeck/flowdeck/pkg/model/mvflow"
)

var (
	ErrFlowNotFound = sql.ErrNoRows
	ErrRunNotFound  = errors.New("run not found")
)

// compressThreshold matches the point where zstd starts paying for itself
// on event payloads.
const compressThreshold = 1024

const schema = `
CREATE TABLE IF NOT EXISTS flows (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	doc        BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	flow_id    TEXT NOT NULL,
	doc        BLOB NOT NULL,
	status     TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS run_events (
	run_id        TEXT NOT NULL,
	seq           INTEGER NOT NULL,
	doc           BLOB NOT NULL,
	compress_type INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_runs_flow ON runs (flow_id, created_at DESC);
`

type Store struct {
	db *sql.DB
}

// Open creates or opens the store at path. ":memory:" works for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open flow store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init flow store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// --- Flows ---

// SaveFlow upserts the flow document, minting an id when absent.
func (s *Store) SaveFlow(ctx context.Context, f *mvflow.VisualFlow) (string, error) {
	if f.ID == "" {
		f.ID = ulid.Make().String()
	}
	doc, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("encode flow: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO flows (id, name, doc, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, doc = excluded.doc, updated_at = excluded.updated_at`,
		f.ID, f.Name, doc, time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("save flow: %w", err)
	}
	return f.ID, nil
}

func (s *Store) GetFlow(ctx context.Context, id string) (*mvflow.VisualFlow, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM flows WHERE id = ?`, id).Scan(&doc)
	if err != nil {
		return nil, err
	}
	var f mvflow.VisualFlow
	if err := json.Unmarshal(doc, &f); err != nil {
		return nil, fmt.Errorf("decode flow %s: %w", id, err)
	}
	return &f, nil
}

func (s *Store) ListFlows(ctx context.Context) ([]mvflow.VisualFlow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM flows ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mvflow.VisualFlow
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var f mvflow.VisualFlow
		if err := json.Unmarshal(doc, &f); err != nil {
			return nil, fmt.Errorf("decode flow: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) DeleteFlow(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM flows WHERE id = ?`, id)
	return err
}

// --- Runs ---

// SaveRun upserts the run summary snapshot.
func (s *Store) SaveRun(ctx context.Context, run mrun.RunSummary) error {
	doc, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, flow_id, doc, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET doc = excluded.doc, status = excluded.status, updated_at = excluded.updated_at`,
		run.RunID, run.FlowID, doc, run.Status, run.CreatedAt.UnixMilli(), run.UpdatedAt.UnixMilli())
	return err
}

// AppendEvent stores the next event of a run's append-only sequence.
func (s *Store) AppendEvent(ctx context.Context, runID string, ev mrun.ExecutionEvent) error {
	doc, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	ctype := compress.CompressTypeNone
	if len(doc) >= compressThreshold {
		compressed, err := compress.Compress(doc, compress.CompressTypeZstd)
		if err == nil && len(compressed) < len(doc) {
			doc = compressed
			ctype = compress.CompressTypeZstd
		}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO run_events (run_id, seq, doc, compress_type)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM run_events WHERE run_id = ?), ?, ?)`,
		runID, runID, doc, ctype)
	return err
}

// SaveRunHistory replaces the cached history of a run wholesale, mirroring
// the ledger's replace-not-merge contract.
func (s *Store) SaveRunHistory(ctx context.Context, h mrun.RunHistory) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_events WHERE run_id = ?`, h.Run.RunID); err != nil {
		return err
	}
	doc, err := json.Marshal(h.Run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, flow_id, doc, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET doc = excluded.doc, status = excluded.status, updated_at = excluded.updated_at`,
		h.Run.RunID, h.Run.FlowID, doc, h.Run.Status, h.Run.CreatedAt.UnixMilli(), h.Run.UpdatedAt.UnixMilli()); err != nil {
		return err
	}
	for i, ev := range h.Events {
		evDoc, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		ctype := compress.CompressTypeNone
		if len(evDoc) >= compressThreshold {
			if compressed, cerr := compress.Compress(evDoc, compress.CompressTypeZstd); cerr == nil && len(compressed) < len(evDoc) {
				evDoc = compressed
				ctype = compress.CompressTypeZstd
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_events (run_id, seq, doc, compress_type) VALUES (?, ?, ?, ?)`,
			h.Run.RunID, i+1, evDoc, ctype); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// --- runsession.Ledger ---

func (s *Store) ListRuns(ctx context.Context, flowID string, limit int) ([]mrun.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM runs WHERE flow_id = ? ORDER BY created_at DESC LIMIT ?`, flowID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mrun.RunSummary
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var run mrun.RunSummary
		if err := json.Unmarshal(doc, &run); err != nil {
			return nil, fmt.Errorf("decode run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *Store) GetRunHistory(ctx context.Context, runID string) (mrun.RunHistory, error) {
	var h mrun.RunHistory
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM runs WHERE run_id = ?`, runID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return h, ErrRunNotFound
	}
	if err != nil {
		return h, err
	}
	if err := json.Unmarshal(doc, &h.Run); err != nil {
		return h, fmt.Errorf("decode run %s: %w", runID, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT doc, compress_type FROM run_events WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return h, err
	}
	defer rows.Close()

	for rows.Next() {
		var evDoc []byte
		var ctype compress.CompressType
		if err := rows.Scan(&evDoc, &ctype); err != nil {
			return h, err
		}
		evDoc, err = compress.Decompress(evDoc, ctype)
		if err != nil {
			return h, fmt.Errorf("decompress event: %w", err)
		}
		var ev mrun.ExecutionEvent
		if err := json.Unmarshal(evDoc, &ev); err != nil {
			return h, fmt.Errorf("decode event: %w", err)
		}
		h.Events = append(h.Events, ev)
	}
	return h, rows.Err()
}
