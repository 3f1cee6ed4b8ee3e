/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the SQL to interact with the accounts, transactions and payees
 * tables.
 *
 * Balance mutations take a row-level lock (`SELECT ... FOR UPDATE`) inside a
 * transaction so that two concurrent withdrawals cannot both pass the
 * sufficient-funds check against a stale balance. A transfer locks both rows in
 * ascending account-number order to avoid deadlocks when transfers run
 * concurrently in both directions between the same pair.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver.
 * - github.com/shopspring/decimal: Exact decimal amounts.
 * - internal/domain: Domain models.
 */

package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/unk029-openconsultinguk/unk029-bank-app/internal/domain"
)

// accountNoBase seeds account number allocation: the first account created in
// an empty database gets accountNoBase + 1.
const accountNoBase = 12345000

// PostgresRepository is the pgx-backed implementation of Repository.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `account_no, name, balance, sort_code, password_hash, email, mobile, created_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	err := row.Scan(
		&account.AccountNo,
		&account.Name,
		&account.Balance,
		&account.SortCode,
		&account.PasswordHash,
		&account.Email,
		&account.Mobile,
		&account.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAccount retrieves an account by its account number.
func (r *PostgresRepository) GetAccount(ctx context.Context, accountNo int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_no = $1`
	account, err := scanAccount(r.db.QueryRow(ctx, query, accountNo))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("account %d: %w", accountNo, ErrAccountNotFound)
		}
		return nil, err
	}
	return account, nil
}

// GetAccountByEmail retrieves an account by its email, used as an alternate
// login key.
func (r *PostgresRepository) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	account, err := scanAccount(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("email %s: %w", email, ErrAccountNotFound)
		}
		return nil, err
	}
	return account, nil
}

// CreateAccount allocates the next account number (max existing + 1) and
// inserts the new row in a single transaction.
func (r *PostgresRepository) CreateAccount(ctx context.Context, name, passwordHash, email, sortCode string, openingBalance decimal.Decimal) (*domain.Account, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var accountNo int64
	err = tx.QueryRow(ctx, `SELECT COALESCE(MAX(account_no), $1) + 1 FROM accounts`, int64(accountNoBase)).Scan(&accountNo)
	if err != nil {
		return nil, err
	}

	account := &domain.Account{
		AccountNo:    accountNo,
		Name:         name,
		Balance:      openingBalance,
		SortCode:     sortCode,
		PasswordHash: passwordHash,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO accounts (account_no, name, balance, sort_code, password_hash, email)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		RETURNING email, created_at
	`, accountNo, name, openingBalance, sortCode, passwordHash, email).Scan(&account.Email, &account.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return account, nil
}

// UpdateAccount applies a partial update; nil fields keep their current value.
func (r *PostgresRepository) UpdateAccount(ctx context.Context, accountNo int64, email, mobile, passwordHash *string) (*domain.Account, error) {
	query := `
		UPDATE accounts
		SET email = COALESCE($2, email),
		    mobile = COALESCE($3, mobile),
		    password_hash = COALESCE($4, password_hash),
		    updated_at = NOW()
		WHERE account_no = $1
	`
	result, err := r.db.Exec(ctx, query, accountNo, email, mobile, passwordHash)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected() == 0 {
		return nil, fmt.Errorf("account %d: %w", accountNo, ErrAccountNotFound)
	}
	return r.GetAccount(ctx, accountNo)
}

// Deposit credits an account inside a row-locked transaction.
func (r *PostgresRepository) Deposit(ctx context.Context, accountNo int64, amount decimal.Decimal) (*domain.BalanceChange, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	name, balance, err := lockAccount(ctx, tx, accountNo)
	if err != nil {
		return nil, err
	}

	newBalance := balance.Add(amount)
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1, updated_at = NOW() WHERE account_no = $2`, newBalance, accountNo); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &domain.BalanceChange{AccountNo: accountNo, Name: name, NewBalance: newBalance}, nil
}

// Withdraw debits an account inside a row-locked transaction. The
// sufficient-funds check runs against the locked balance, so concurrent
// withdrawals cannot jointly overdraw the account.
func (r *PostgresRepository) Withdraw(ctx context.Context, accountNo int64, amount decimal.Decimal) (*domain.BalanceChange, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	name, balance, err := lockAccount(ctx, tx, accountNo)
	if err != nil {
		return nil, err
	}

	if balance.LessThan(amount) {
		return nil, &InsufficientFundsError{AccountNo: accountNo, Balance: balance, Requested: amount}
	}

	newBalance := balance.Sub(amount)
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1, updated_at = NOW() WHERE account_no = $2`, newBalance, accountNo); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &domain.BalanceChange{AccountNo: accountNo, Name: name, NewBalance: newBalance}, nil
}

// Transfer moves funds between two local accounts atomically. Destination
// existence is verified under lock before either balance changes, so a failed
// transfer leaves the source exactly as it was.
func (r *PostgresRepository) Transfer(ctx context.Context, fromAccountNo, toAccountNo int64, amount decimal.Decimal) (*domain.TransferResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	names := make(map[int64]string, 2)
	balances := make(map[int64]decimal.Decimal, 2)
	first, second := lockOrder(fromAccountNo, toAccountNo)
	for _, no := range []int64{first, second} {
		name, balance, err := lockAccount(ctx, tx, no)
		if err != nil {
			return nil, err
		}
		names[no] = name
		balances[no] = balance
	}

	if balances[fromAccountNo].LessThan(amount) {
		return nil, &InsufficientFundsError{AccountNo: fromAccountNo, Balance: balances[fromAccountNo], Requested: amount}
	}

	fromNewBalance := balances[fromAccountNo].Sub(amount)
	toNewBalance := balances[toAccountNo].Add(amount)

	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1, updated_at = NOW() WHERE account_no = $2`, fromNewBalance, fromAccountNo); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1, updated_at = NOW() WHERE account_no = $2`, toNewBalance, toAccountNo); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &domain.TransferResult{
		FromAccountNo:  fromAccountNo,
		ToAccountNo:    toAccountNo,
		Amount:         amount,
		FromNewBalance: fromNewBalance,
		ToNewBalance:   toNewBalance,
		FromName:       names[fromAccountNo],
		ToName:         names[toAccountNo],
	}, nil
}

// InsertTransaction appends one audit record.
func (r *PostgresRepository) InsertTransaction(ctx context.Context, rec *domain.TransactionRecord) error {
	query := `
		INSERT INTO transactions (account_no, type, amount, description, related_account_no, direction, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	return r.db.QueryRow(ctx, query,
		rec.AccountNo,
		rec.Type,
		rec.Amount,
		rec.Description,
		rec.RelatedAccountNo,
		rec.Direction,
		rec.Status,
	).Scan(&rec.ID, &rec.CreatedAt)
}

// ListTransactions returns an account's audit records, most recent first.
func (r *PostgresRepository) ListTransactions(ctx context.Context, accountNo int64) ([]domain.TransactionRecord, error) {
	query := `
		SELECT id, account_no, type, amount, COALESCE(description, ''), related_account_no, direction, status, created_at
		FROM transactions
		WHERE account_no = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.Query(ctx, query, accountNo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.TransactionRecord
	for rows.Next() {
		var rec domain.TransactionRecord
		err := rows.Scan(
			&rec.ID,
			&rec.AccountNo,
			&rec.Type,
			&rec.Amount,
			&rec.Description,
			&rec.RelatedAccountNo,
			&rec.Direction,
			&rec.Status,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// AddPayee saves a counterparty for a user's future transfers.
func (r *PostgresRepository) AddPayee(ctx context.Context, payee *domain.Payee) (*domain.Payee, error) {
	query := `
		INSERT INTO payees (user_account_no, payee_name, payee_account_no, payee_sort_code)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		payee.UserAccountNo,
		payee.PayeeName,
		payee.PayeeAccountNo,
		payee.PayeeSortCode,
	).Scan(&payee.ID, &payee.CreatedAt)
	if err != nil {
		return nil, err
	}
	return payee, nil
}

// ListPayees returns all payees saved by a user, most recent first.
func (r *PostgresRepository) ListPayees(ctx context.Context, userAccountNo int64) ([]domain.Payee, error) {
	query := `
		SELECT id, user_account_no, payee_name, payee_account_no, payee_sort_code, created_at
		FROM payees
		WHERE user_account_no = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userAccountNo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payees []domain.Payee
	for rows.Next() {
		var p domain.Payee
		if err := rows.Scan(&p.ID, &p.UserAccountNo, &p.PayeeName, &p.PayeeAccountNo, &p.PayeeSortCode, &p.CreatedAt); err != nil {
			return nil, err
		}
		payees = append(payees, p)
	}
	return payees, rows.Err()
}

// lockAccount selects an account row FOR UPDATE and returns its name and balance.
func lockAccount(ctx context.Context, tx pgx.Tx, accountNo int64) (string, decimal.Decimal, error) {
	var name string
	var balance decimal.Decimal
	err := tx.QueryRow(ctx, `SELECT name, balance FROM accounts WHERE account_no = $1 FOR UPDATE`, accountNo).Scan(&name, &balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", decimal.Decimal{}, fmt.Errorf("account %d: %w", accountNo, ErrAccountNotFound)
		}
		return "", decimal.Decimal{}, err
	}
	return name, balance, nil
}

// lockOrder returns the pair in ascending order; rows are always locked
// lowest account number first.
func lockOrder(a, b int64) (int64, int64) {
	if b < a {
		return b, a
	}
	return a, b
}
