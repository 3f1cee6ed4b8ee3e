/**
 * @description
 * This file defines the `Repository` interface, the contract for all data access
 * required by the ledger-service, along with the store-level error taxonomy.
 * Business logic depends only on this interface, so tests can substitute an
 * in-memory implementation.
 *
 * @dependencies
 * - context, errors, fmt: Standard Go libraries.
 * - github.com/shopspring/decimal: Exact decimal amounts.
 * - internal/domain: The service's domain models.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/unk029-openconsultinguk/unk029-bank-app/internal/domain"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// InsufficientFundsError carries the figures a caller needs to explain the
// rejection. It matches errors.Is(err, ErrInsufficientFunds).
type InsufficientFundsError struct {
	AccountNo int64
	Balance   decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: account %d holds %s, requested %s",
		e.AccountNo, e.Balance.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// Repository defines the set of methods for interacting with the database.
// Every balance mutation runs in its own storage transaction: all row changes
// for one logical operation commit together or not at all.
type Repository interface {
	// Account methods
	GetAccount(ctx context.Context, accountNo int64) (*domain.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	CreateAccount(ctx context.Context, name, passwordHash, email, sortCode string, openingBalance decimal.Decimal) (*domain.Account, error)
	UpdateAccount(ctx context.Context, accountNo int64, email, mobile, passwordHash *string) (*domain.Account, error)

	// Ledger methods. Withdraw and Transfer fail with *InsufficientFundsError
	// without mutating state when the source balance cannot cover the amount.
	Deposit(ctx context.Context, accountNo int64, amount decimal.Decimal) (*domain.BalanceChange, error)
	Withdraw(ctx context.Context, accountNo int64, amount decimal.Decimal) (*domain.BalanceChange, error)
	Transfer(ctx context.Context, fromAccountNo, toAccountNo int64, amount decimal.Decimal) (*domain.TransferResult, error)

	// Audit log methods
	InsertTransaction(ctx context.Context, rec *domain.TransactionRecord) error
	ListTransactions(ctx context.Context, accountNo int64) ([]domain.TransactionRecord, error)

	// Payee methods
	AddPayee(ctx context.Context, payee *domain.Payee) (*domain.Payee, error)
	ListPayees(ctx context.Context, userAccountNo int64) ([]domain.Payee, error)
}
