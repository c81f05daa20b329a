package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/evermark/curation-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Amounts are stored as NUMERIC for exact smallest-unit precision.
//
// Expected schema:
//
//	CREATE TABLE delegation_records (
//	    seq             BIGSERIAL,
//	    account_id      TEXT        NOT NULL,
//	    item_id         TEXT        NOT NULL,
//	    amount          NUMERIC     NOT NULL,
//	    cycle           BIGINT      NOT NULL,
//	    direction       TEXT        NOT NULL,
//	    observed_at     TIMESTAMPTZ NOT NULL,
//	    source_event_id TEXT        NOT NULL,
//	    PRIMARY KEY (account_id, source_event_id)
//	);
//
// The primary key gives atomic insert-or-noop via ON CONFLICT DO NOTHING;
// seq preserves insertion order across backfills.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const insertRecordSQL = `
	INSERT INTO delegation_records
	    (account_id, item_id, amount, cycle, direction, observed_at, source_event_id)
	VALUES ($1, $2, $3::NUMERIC, $4, $5, $6, $7)
	ON CONFLICT (account_id, source_event_id) DO NOTHING`

func (s *PostgresStore) PutRecord(ctx context.Context, accountID string, rec model.DelegationRecord) (bool, error) {
	tag, err := s.pool.Exec(ctx, insertRecordSQL,
		accountID, rec.ItemID, rec.Amount.String(),
		rec.Cycle, string(rec.Direction), rec.ObservedAt, rec.SourceEventID,
	)
	if err != nil {
		return false, fmt.Errorf("put record %s/%s: %w", accountID, rec.SourceEventID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// PutRecords sends the whole batch in a single round-trip via pgx.Batch.
// Each statement's RowsAffected distinguishes inserted from duplicate.
func (s *PostgresStore) PutRecords(ctx context.Context, accountID string, recs []model.DelegationRecord) ([]bool, error) {
	if len(recs) == 0 {
		return nil, nil
	}

	batch := &pgx.Batch{}
	for _, rec := range recs {
		batch.Queue(insertRecordSQL,
			accountID, rec.ItemID, rec.Amount.String(),
			rec.Cycle, string(rec.Direction), rec.ObservedAt, rec.SourceEventID,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := make([]bool, 0, len(recs))
	for i := range recs {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("put records %s (record %d of %d): %w",
				accountID, i+1, len(recs), err)
		}
		inserted = append(inserted, tag.RowsAffected() > 0)
	}
	return inserted, nil
}

func (s *PostgresStore) GetLedger(ctx context.Context, accountID string) ([]model.DelegationRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT account_id, item_id, amount::TEXT, cycle, direction, observed_at, source_event_id
		 FROM delegation_records
		 WHERE account_id = $1
		 ORDER BY seq`, accountID)
	if err != nil {
		return nil, fmt.Errorf("get ledger %s: %w", accountID, err)
	}
	defer rows.Close()

	var records []model.DelegationRecord
	for rows.Next() {
		var rec model.DelegationRecord
		var amountS, directionS string

		if err := rows.Scan(&rec.AccountID, &rec.ItemID, &amountS,
			&rec.Cycle, &directionS, &rec.ObservedAt, &rec.SourceEventID); err != nil {
			return nil, err
		}

		rec.Amount, _ = decimal.NewFromString(amountS)
		rec.Direction = model.Direction(directionS)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) RefreshLedger(ctx context.Context, accountID string) ([]model.DelegationRecord, error) {
	return s.GetLedger(ctx, accountID)
}

func (s *PostgresStore) ClearLedger(ctx context.Context, accountID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM delegation_records WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("clear ledger %s: %w", accountID, err)
	}
	return nil
}
