package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/speedrun-hq/paywatch/pkg/lifecycle"
	"github.com/speedrun-hq/paywatch/pkg/logger"
	"github.com/speedrun-hq/paywatch/pkg/models"
)

// schema is applied idempotently at startup. Amounts are TEXT on
// purpose: they are base-unit integers that must survive round trips
// without precision loss.
const schema = `
CREATE TABLE IF NOT EXISTS payment_intents (
	id                TEXT PRIMARY KEY,
	chain_id          TEXT NOT NULL,
	asset_symbol      TEXT NOT NULL,
	asset_decimals    INT NOT NULL,
	asset_type        TEXT NOT NULL,
	asset_contract    TEXT,
	recipient         TEXT NOT NULL,
	amount            TEXT NOT NULL,
	reference         TEXT NOT NULL,
	min_confirmations BIGINT NOT NULL,
	status            TEXT NOT NULL,
	tx_hash           TEXT,
	confirmations     BIGINT NOT NULL DEFAULT 0,
	last_checked_at   TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL,
	expires_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS payment_intents_reference_key ON payment_intents (reference);
CREATE INDEX IF NOT EXISTS payment_intents_status_idx ON payment_intents (status);

CREATE TABLE IF NOT EXISTS intent_events (
	id         BIGSERIAL PRIMARY KEY,
	intent_id  TEXT NOT NULL,
	type       TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS intent_events_intent_idx ON intent_events (intent_id, id);
`

// intentColumns is the column list every intent query selects, in the
// order scanIntent expects
const intentColumns = `id, chain_id, asset_symbol, asset_decimals, asset_type, asset_contract,
	recipient, amount, reference, min_confirmations, status, tx_hash, confirmations,
	last_checked_at, created_at, expires_at, updated_at`

// PostgresStore persists intents in Postgres via a pgx connection pool
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to the database and verifies the
// connection. Call Migrate before first use.
func NewPostgresStore(ctx context.Context, databaseURL string, log logger.Logger) (*PostgresStore, error) {
	if log == nil {
		log = &logger.EmptyLogger{}
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %v", err)
	}

	return &PostgresStore{pool: pool, logger: log}, nil
}

// Migrate applies the embedded schema. Safe to run on every startup.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %v", err)
	}
	s.logger.Info("database schema is up to date")
	return nil
}

// mapUniqueViolation translates Postgres unique violations into the
// store's sentinel errors
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if strings.Contains(pgErr.ConstraintName, "reference") {
			return ErrDuplicateReference
		}
		return ErrDuplicateID
	}
	return nil
}

func (s *PostgresStore) CreateIntent(ctx context.Context, intent *models.PaymentIntent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO payment_intents (
			id, chain_id, asset_symbol, asset_decimals, asset_type, asset_contract,
			recipient, amount, reference, min_confirmations, status, tx_hash,
			confirmations, last_checked_at, created_at, expires_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,$8,$9,$10,$11,NULLIF($12,''),$13,$14,$15,$16,$17)
	`,
		intent.ID,
		intent.ChainID,
		intent.Asset.Symbol,
		intent.Asset.Decimals,
		intent.Asset.Type,
		intent.Asset.ContractAddress,
		intent.Recipient,
		intent.Amount,
		intent.Reference,
		int64(intent.ConfirmationPolicy.MinConfirmations),
		intent.Status,
		intent.TxHash,
		int64(intent.Confirmations),
		intent.LastCheckedAt,
		intent.CreatedAt,
		intent.ExpiresAt,
		intent.UpdatedAt,
	)
	if err != nil {
		if sentinel := mapUniqueViolation(err); sentinel != nil {
			return sentinel
		}
		return fmt.Errorf("failed to insert intent %s: %v", intent.ID, err)
	}
	return nil
}

// rowScanner covers both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntent(row rowScanner) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	var contract, txHash sql.NullString
	var lastChecked sql.NullTime
	var minConfirmations, confirmations int64

	err := row.Scan(
		&intent.ID,
		&intent.ChainID,
		&intent.Asset.Symbol,
		&intent.Asset.Decimals,
		&intent.Asset.Type,
		&contract,
		&intent.Recipient,
		&intent.Amount,
		&intent.Reference,
		&minConfirmations,
		&intent.Status,
		&txHash,
		&confirmations,
		&lastChecked,
		&intent.CreatedAt,
		&intent.ExpiresAt,
		&intent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	intent.Asset.ContractAddress = contract.String
	intent.ConfirmationPolicy.MinConfirmations = uint64(minConfirmations)
	intent.TxHash = txHash.String
	intent.Confirmations = uint64(confirmations)
	if lastChecked.Valid {
		t := lastChecked.Time
		intent.LastCheckedAt = &t
	}
	return &intent, nil
}

func (s *PostgresStore) GetIntent(ctx context.Context, id string) (*models.PaymentIntent, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+intentColumns+`
		FROM payment_intents WHERE id=$1
	`, id)

	intent, err := scanIntent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch intent %s: %v", id, err)
	}
	return intent, nil
}

func (s *PostgresStore) FindByReference(ctx context.Context, reference string) (*models.PaymentIntent, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+intentColumns+`
		FROM payment_intents WHERE reference=$1
	`, reference)

	intent, err := scanIntent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch intent by reference: %v", err)
	}
	return intent, nil
}

func (s *PostgresStore) listIntents(ctx context.Context, query string, args ...any) ([]*models.PaymentIntent, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list intents: %v", err)
	}
	defer rows.Close()

	var intents []*models.PaymentIntent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan intent: %v", err)
		}
		intents = append(intents, intent)
	}
	return intents, rows.Err()
}

func (s *PostgresStore) ListPendingIntents(ctx context.Context) ([]*models.PaymentIntent, error) {
	return s.listIntents(ctx, `
		SELECT `+intentColumns+`
		FROM payment_intents
		WHERE status IN ('PENDING','DETECTED')
		ORDER BY created_at ASC, id ASC
	`)
}

func (s *PostgresStore) ListIntentsByStatus(ctx context.Context, status models.IntentStatus) ([]*models.PaymentIntent, error) {
	if status == "" {
		return s.listIntents(ctx, `
			SELECT `+intentColumns+`
			FROM payment_intents
			ORDER BY created_at ASC, id ASC
		`)
	}
	return s.listIntents(ctx, `
		SELECT `+intentColumns+`
		FROM payment_intents
		WHERE status=$1
		ORDER BY created_at ASC, id ASC
	`, status)
}

func (s *PostgresStore) UpdateIntentStatus(ctx context.Context, id string, target models.IntentStatus, meta VerificationMeta) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	var current models.IntentStatus
	var txHash sql.NullString
	var confirmations int64
	err = tx.QueryRow(ctx, `
		SELECT status, tx_hash, confirmations
		FROM payment_intents WHERE id=$1
		FOR UPDATE
	`, id).Scan(&current, &txHash, &confirmations)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock intent %s: %v", id, err)
	}

	// transition legality lives in Go, the database only serializes
	if lifecycle.IsTerminal(current) {
		return false, nil
	}

	next := current
	changed := false
	if target != current {
		if !lifecycle.CanTransition(current, target) {
			next = current // keep, but still refresh the bookkeeping below
		} else {
			next = target
			changed = true
		}
	}

	newHash := txHash.String
	newConfirmations := uint64(confirmations)
	if (target == current || changed) && meta.TxHash != "" {
		if newHash != meta.TxHash || newConfirmations != meta.Confirmations {
			newHash = meta.TxHash
			newConfirmations = meta.Confirmations
			changed = true
		}
	}

	var lastChecked *time.Time
	if !meta.LastCheckedAt.IsZero() {
		t := meta.LastCheckedAt.UTC()
		lastChecked = &t
	}

	_, err = tx.Exec(ctx, `
		UPDATE payment_intents
		SET status=$2,
		    tx_hash=NULLIF($3,''),
		    confirmations=$4,
		    last_checked_at=COALESCE($5, last_checked_at),
		    updated_at=CASE WHEN $6 THEN now() ELSE updated_at END
		WHERE id=$1
	`, id, next, newHash, int64(newConfirmations), lastChecked, changed)
	if err != nil {
		return false, fmt.Errorf("failed to update intent %s: %v", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit intent update: %v", err)
	}
	return changed, nil
}

func (s *PostgresStore) StatusCounts(ctx context.Context) (map[models.IntentStatus]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM payment_intents GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count intents: %v", err)
	}
	defer rows.Close()

	counts := make(map[models.IntentStatus]int)
	for rows.Next() {
		var status models.IntentStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %v", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (s *PostgresStore) AppendEvent(ctx context.Context, event *models.Event) error {
	payload := event.Payload
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO intent_events (intent_id, type, payload, created_at)
		VALUES ($1, $2, $3::jsonb, $4)
		RETURNING id, created_at
	`, event.IntentID, event.Type, string(payload), createdAt).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append event for intent %s: %v", event.IntentID, err)
	}
	return nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, intentID string) ([]*models.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, intent_id, type, payload, created_at
		FROM intent_events
		WHERE intent_id=$1
		ORDER BY id ASC
	`, intentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %v", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var event models.Event
		var payload []byte
		if err := rows.Scan(&event.ID, &event.IntentID, &event.Type, &payload, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %v", err)
		}
		event.Payload = payload
		events = append(events, &event)
	}
	return events, rows.Err()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
