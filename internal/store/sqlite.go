package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/flipflow/flipflow/pkg/api"
)

// SQLiteStore persists checkpoints in a local SQLite database, the
// default for single-host deployments. A mutex serializes writes since
// SQLite allows only one writer at a time
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

var _ Store = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS flipflow_runs (
	item_id    TEXT PRIMARY KEY,
	version    INTEGER NOT NULL,
	status     TEXT NOT NULL,
	state      TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS flipflow_offers (
	offer_id    TEXT PRIMARY KEY,
	item_id     TEXT NOT NULL,
	status      TEXT NOT NULL,
	payload     TEXT NOT NULL,
	received_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS flipflow_offers_item_idx
	ON flipflow_offers (item_id);
`

// NewSQLiteStore opens a SQLite-backed store at the given path (or
// ":memory:") and ensures its schema
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// a single connection keeps :memory: databases consistent and
	// avoids writer lock contention
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, st *api.RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}

	const query = `
INSERT OR IGNORE INTO flipflow_runs
	(item_id, version, status, state, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, query,
		string(st.ItemID), st.Version, string(st.Status), string(state),
		st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunExists, st.ItemID)
	}
	return nil
}

func (s *SQLiteStore) Load(
	ctx context.Context, id api.ItemID,
) (*api.RunState, error) {
	const query = `SELECT state FROM flipflow_runs WHERE item_id = ?`

	var state []byte
	err := s.db.QueryRowContext(ctx, query, string(id)).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return unmarshalRun(state)
}

func (s *SQLiteStore) CompareAndSwap(
	ctx context.Context, id api.ItemID, expected int64, next *api.RunState,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}

	const query = `
UPDATE flipflow_runs
SET version = ?, status = ?, state = ?, updated_at = ?
WHERE item_id = ? AND version = ?`

	res, err := s.db.ExecContext(ctx, query,
		next.Version, string(next.Status), string(state), next.UpdatedAt,
		string(id), expected,
	)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := s.Load(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: run %s, expected %d",
			ErrVersionConflict, id, expected)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*api.RunState, error) {
	const query = `SELECT state FROM flipflow_runs ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var res []*api.RunState
	for rows.Next() {
		var state []byte
		if err := rows.Scan(&state); err != nil {
			return nil, err
		}
		st, err := unmarshalRun(state)
		if err != nil {
			return nil, err
		}
		res = append(res, st)
	}
	return res, rows.Err()
}

func (s *SQLiteStore) PutOffer(ctx context.Context, offer *api.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(offer)
	if err != nil {
		return fmt.Errorf("marshal offer: %w", err)
	}

	const query = `
INSERT INTO flipflow_offers (offer_id, item_id, status, payload, received_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (offer_id) DO UPDATE
SET status = excluded.status, payload = excluded.payload`

	_, err = s.db.ExecContext(ctx, query,
		string(offer.ID), string(offer.ItemID), string(offer.Status),
		string(payload), offer.ReceivedAt,
	)
	return err
}

func (s *SQLiteStore) GetOffer(
	ctx context.Context, id api.OfferID,
) (*api.Offer, error) {
	const query = `SELECT payload FROM flipflow_offers WHERE offer_id = ?`

	var payload []byte
	err := s.db.QueryRowContext(ctx, query, string(id)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: offer %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return unmarshalOffer(payload)
}

func (s *SQLiteStore) SwapOffer(
	ctx context.Context, id api.OfferID, expected api.OfferStatus,
	next *api.Offer,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal offer: %w", err)
	}

	const query = `
UPDATE flipflow_offers
SET status = ?, payload = ?
WHERE offer_id = ? AND status = ?`

	res, err := s.db.ExecContext(ctx, query,
		string(next.Status), string(payload), string(id), string(expected),
	)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := s.GetOffer(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: offer %s, expected %s",
			ErrVersionConflict, id, expected)
	}
	return nil
}

func (s *SQLiteStore) ListOffers(
	ctx context.Context, id api.ItemID,
) ([]*api.Offer, error) {
	const query = `
SELECT payload FROM flipflow_offers
WHERE item_id = ?
ORDER BY received_at`

	rows, err := s.db.QueryContext(ctx, query, string(id))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var res []*api.Offer
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		offer, err := unmarshalOffer(payload)
		if err != nil {
			return nil, err
		}
		res = append(res, offer)
	}
	return res, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
