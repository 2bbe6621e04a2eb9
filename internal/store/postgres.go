package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/flipflow/flipflow/pkg/api"
)

// PostgresStore persists checkpoints in Postgres. Snapshots are stored
// as JSON alongside the version column the compare-and-swap keys on
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS flipflow_runs (
	item_id    TEXT PRIMARY KEY,
	version    BIGINT NOT NULL,
	status     TEXT NOT NULL,
	state      JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS flipflow_offers (
	offer_id    TEXT PRIMARY KEY,
	item_id     TEXT NOT NULL,
	status      TEXT NOT NULL,
	payload     JSONB NOT NULL,
	received_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS flipflow_offers_item_idx
	ON flipflow_offers (item_id);
`

// NewPostgresStore opens a Postgres-backed store and ensures its schema
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Create(ctx context.Context, st *api.RunState) error {
	state, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}

	const query = `
INSERT INTO flipflow_runs (item_id, version, status, state, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (item_id) DO NOTHING`

	res, err := s.db.ExecContext(ctx, query,
		string(st.ItemID), st.Version, string(st.Status), state,
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

func (s *PostgresStore) Load(
	ctx context.Context, id api.ItemID,
) (*api.RunState, error) {
	const query = `SELECT state FROM flipflow_runs WHERE item_id = $1`

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

func (s *PostgresStore) CompareAndSwap(
	ctx context.Context, id api.ItemID, expected int64, next *api.RunState,
) error {
	state, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}

	const query = `
UPDATE flipflow_runs
SET version = $3, status = $4, state = $5, updated_at = $6
WHERE item_id = $1 AND version = $2`

	res, err := s.db.ExecContext(ctx, query,
		string(id), expected, next.Version, string(next.Status), state,
		next.UpdatedAt,
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

func (s *PostgresStore) List(ctx context.Context) ([]*api.RunState, error) {
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

func (s *PostgresStore) PutOffer(
	ctx context.Context, offer *api.Offer,
) error {
	payload, err := json.Marshal(offer)
	if err != nil {
		return fmt.Errorf("marshal offer: %w", err)
	}

	const query = `
INSERT INTO flipflow_offers (offer_id, item_id, status, payload, received_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (offer_id) DO UPDATE
SET status = EXCLUDED.status, payload = EXCLUDED.payload`

	_, err = s.db.ExecContext(ctx, query,
		string(offer.ID), string(offer.ItemID), string(offer.Status),
		payload, offer.ReceivedAt,
	)
	return err
}

func (s *PostgresStore) GetOffer(
	ctx context.Context, id api.OfferID,
) (*api.Offer, error) {
	const query = `SELECT payload FROM flipflow_offers WHERE offer_id = $1`

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

func (s *PostgresStore) SwapOffer(
	ctx context.Context, id api.OfferID, expected api.OfferStatus,
	next *api.Offer,
) error {
	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal offer: %w", err)
	}

	const query = `
UPDATE flipflow_offers
SET status = $3, payload = $4
WHERE offer_id = $1 AND status = $2`

	res, err := s.db.ExecContext(ctx, query,
		string(id), string(expected), string(next.Status), payload,
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

func (s *PostgresStore) ListOffers(
	ctx context.Context, id api.ItemID,
) ([]*api.Offer, error) {
	const query = `
SELECT payload FROM flipflow_offers
WHERE item_id = $1
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

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func unmarshalRun(state []byte) (*api.RunState, error) {
	var st api.RunState
	if err := json.Unmarshal(state, &st); err != nil {
		return nil, fmt.Errorf("unmarshal run state: %w", err)
	}
	return &st, nil
}

func unmarshalOffer(payload []byte) (*api.Offer, error) {
	var offer api.Offer
	if err := json.Unmarshal(payload, &offer); err != nil {
		return nil, fmt.Errorf("unmarshal offer: %w", err)
	}
	return &offer, nil
}
