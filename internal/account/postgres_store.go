package account

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed account store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the accounts table if it doesn't exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			id             VARCHAR(40) PRIMARY KEY,
			owner_name     VARCHAR(200) NOT NULL,
			email          VARCHAR(320) NOT NULL UNIQUE,
			phone          VARCHAR(32),
			account_number VARCHAR(10) NOT NULL UNIQUE,
			balance        NUMERIC(20,2) NOT NULL DEFAULT 0,
			status         VARCHAR(10) NOT NULL DEFAULT 'ACTIVE',
			created_at     TIMESTAMPTZ DEFAULT NOW(),
			updated_at     TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_accounts_status ON accounts(status);
	`)
	return err
}

// Create inserts a new account, mapping unique violations to domain errors.
func (p *PostgresStore) Create(ctx context.Context, acct *Account) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO accounts (id, owner_name, email, phone, account_number, balance, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		acct.ID, acct.OwnerName, strings.ToLower(acct.Email), acct.Phone,
		acct.AccountNumber, acct.Balance, string(acct.Status),
		acct.CreatedAt, acct.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			if strings.Contains(pqErr.Constraint, "email") {
				return ErrDuplicateEmail
			}
			return ErrDuplicateNumber
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// Get retrieves an account by ID.
func (p *PostgresStore) Get(ctx context.Context, id string) (*Account, error) {
	row := p.db.QueryRowContext(ctx, selectAccount+` WHERE id = $1`, id)
	acct, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return acct, nil
}

// GetByNumber retrieves an account by its 10-digit account number.
func (p *PostgresStore) GetByNumber(ctx context.Context, number string) (*Account, error) {
	row := p.db.QueryRowContext(ctx, selectAccount+` WHERE account_number = $1`, number)
	acct, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account by number: %w", err)
	}
	return acct, nil
}

// GetByEmail retrieves an account by owner email.
func (p *PostgresStore) GetByEmail(ctx context.Context, email string) (*Account, error) {
	row := p.db.QueryRowContext(ctx, selectAccount+` WHERE email = $1`, strings.ToLower(email))
	acct, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	return acct, nil
}

// List returns accounts ordered by most recently created.
func (p *PostgresStore) List(ctx context.Context, limit int) ([]*Account, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, selectAccount+` ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanAccounts(rows)
}

// ApplyStatus validates the transition against the stored status and persists
// it in a single serializable transaction.
func (p *PostgresStore) ApplyStatus(ctx context.Context, id string, next Status) (*Account, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock account: %w", err)
	}

	if !CanTransition(Status(current), next) {
		return nil, ErrInvalidTransition
	}

	row := tx.QueryRowContext(ctx, `
		UPDATE accounts SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING id, owner_name, email, phone, account_number, balance, status, created_at, updated_at
	`, id, string(next), time.Now())

	acct, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return acct, nil
}

// Debit subtracts amount from the balance, rejecting overdrafts.
func (p *PostgresStore) Debit(ctx context.Context, id string, amount float64) (*Account, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE accounts SET balance = balance - $2, updated_at = $3
		WHERE id = $1 AND balance >= $2
		RETURNING id, owner_name, email, phone, account_number, balance, status, created_at, updated_at
	`, id, amount, time.Now())

	acct, err := scanAccount(row)
	if err == sql.ErrNoRows {
		// Distinguish missing account from insufficient funds.
		var exists bool
		if e := p.db.QueryRowContext(ctx, `SELECT TRUE FROM accounts WHERE id = $1`, id).Scan(&exists); e == sql.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, ErrInsufficientBalance
	}
	if err != nil {
		return nil, fmt.Errorf("debit account: %w", err)
	}
	return acct, nil
}

// CountByStatus returns the number of accounts in each status.
func (p *PostgresStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM accounts GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

const selectAccount = `
	SELECT id, owner_name, email, phone, account_number, balance, status, created_at, updated_at
	FROM accounts`

// scannable abstracts *sql.Row and *sql.Rows for shared scanning logic.
type scannable interface {
	Scan(dest ...interface{}) error
}

// scanAccount scans a single row into an Account.
func scanAccount(row scannable) (*Account, error) {
	var acct Account
	var status string
	var phone sql.NullString
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(
		&acct.ID, &acct.OwnerName, &acct.Email, &phone,
		&acct.AccountNumber, &acct.Balance, &status,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	acct.Status = Status(status)
	if phone.Valid {
		acct.Phone = phone.String
	}
	if createdAt.Valid {
		acct.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		acct.UpdatedAt = updatedAt.Time
	}
	return &acct, nil
}

// scanAccounts scans multiple rows into a slice of Account.
func scanAccounts(rows *sql.Rows) ([]*Account, error) {
	var result []*Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, acct)
	}
	return result, rows.Err()
}
