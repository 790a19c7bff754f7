package transaction

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/fraudshield/fraudshield/internal/riskeval"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed transaction store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the transactions table if it doesn't exist.
// The seq column gives a total order for transactions sharing a timestamp.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id               VARCHAR(40) PRIMARY KEY,
			seq              BIGSERIAL,
			account_id       VARCHAR(40) NOT NULL,
			receiver_account VARCHAR(64) NOT NULL,
			amount           NUMERIC(20,2) NOT NULL,
			type             VARCHAR(20) NOT NULL,
			ts               TIMESTAMPTZ NOT NULL,
			risk_score       NUMERIC(6,4) NOT NULL,
			decision         VARCHAR(20) NOT NULL,
			explanation      TEXT[] NOT NULL DEFAULT '{}',
			status           VARCHAR(12) NOT NULL,
			model            VARCHAR(60)
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id, ts DESC);
		CREATE INDEX IF NOT EXISTS idx_transactions_decision ON transactions(decision);
	`)
	return err
}

// Create inserts a finalized transaction. Records are never updated.
func (p *PostgresStore) Create(ctx context.Context, tx *Transaction) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, account_id, receiver_account, amount, type, ts,
			risk_score, decision, explanation, status, model
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		tx.ID, tx.AccountID, tx.ReceiverAccount, tx.Amount, string(tx.Type), tx.Timestamp,
		tx.RiskScore, string(tx.Decision), pq.Array(tx.Explanation), string(tx.Status), tx.Model,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// Get retrieves a transaction by ID.
func (p *PostgresStore) Get(ctx context.Context, id string) (*Transaction, error) {
	row := p.db.QueryRowContext(ctx, selectTransaction+` WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

// ListByAccount returns an account's transactions, newest first.
func (p *PostgresStore) ListByAccount(ctx context.Context, accountID string, limit int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, selectTransaction+`
		WHERE account_id = $1
		ORDER BY ts DESC, seq ASC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list by account: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanTransactions(rows)
}

// ListRecent returns the newest transactions across all accounts.
func (p *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, selectTransaction+`
		ORDER BY ts DESC, seq ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanTransactions(rows)
}

// Count returns the total number of recorded transactions.
func (p *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// CountByDecision returns transaction counts grouped by verdict decision.
func (p *PostgresStore) CountByDecision(ctx context.Context) (map[riskeval.Decision]int, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT decision, COUNT(*) FROM transactions GROUP BY decision`)
	if err != nil {
		return nil, fmt.Errorf("count by decision: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[riskeval.Decision]int)
	for rows.Next() {
		var decision string
		var n int
		if err := rows.Scan(&decision, &n); err != nil {
			return nil, err
		}
		counts[riskeval.Decision(decision)] = n
	}
	return counts, rows.Err()
}

const selectTransaction = `
	SELECT id, account_id, receiver_account, amount, type, ts,
		risk_score, decision, explanation, status, model
	FROM transactions`

// scannable abstracts *sql.Row and *sql.Rows for shared scanning logic.
type scannable interface {
	Scan(dest ...interface{}) error
}

// scanTransaction scans a single row into a Transaction.
func scanTransaction(row scannable) (*Transaction, error) {
	var tx Transaction
	var txType, decision, status string
	var model sql.NullString
	var explanation pq.StringArray

	err := row.Scan(
		&tx.ID, &tx.AccountID, &tx.ReceiverAccount, &tx.Amount, &txType, &tx.Timestamp,
		&tx.RiskScore, &decision, &explanation, &status, &model,
	)
	if err != nil {
		return nil, err
	}

	tx.Type = Type(txType)
	tx.Decision = riskeval.Decision(decision)
	tx.Status = Status(status)
	tx.Explanation = []string(explanation)
	if model.Valid {
		tx.Model = model.String
	}
	return &tx, nil
}

// scanTransactions scans multiple rows into a slice of Transaction.
func scanTransactions(rows *sql.Rows) ([]*Transaction, error) {
	var result []*Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}
