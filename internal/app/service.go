/**
 * @description
 * This file contains the core business logic for the bank ledger. The `Service`
 * struct orchestrates account lifecycle and money movement operations,
 * coordinating between the database repository, the partner bank directory,
 * the partner bank client, and the message broker.
 *
 * Key features:
 * - Account creation with bcrypt-hashed credentials and an opening balance.
 * - Deposit, withdrawal, and internal transfer with transaction audit records.
 * - Login verification and sort code validation.
 * - Payee book management.
 *
 * @dependencies
 * - context, errors, fmt, log: Standard Go libraries.
 * - github.com/shopspring/decimal: Exact decimal amounts.
 * - golang.org/x/crypto/bcrypt: Password hashing and verification.
 * - internal/banks, internal/domain, internal/store: Directory, models, data access.
 * - pkg/partnerclient, pkg/rabbitmq: External service communication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/unk029-openconsultinguk/unk029-bank-app/internal/banks"
	"github.com/unk029-openconsultinguk/unk029-bank-app/internal/domain"
	"github.com/unk029-openconsultinguk/unk029-bank-app/internal/store"
	"github.com/unk029-openconsultinguk/unk029-bank-app/pkg/partnerclient"
	"github.com/unk029-openconsultinguk/unk029-bank-app/pkg/rabbitmq"
)

var (
	// ErrUnauthorized marks an operation attempted by a caller who does not
	// own the target account.
	ErrUnauthorized = errors.New("caller does not own this account")
	// ErrInvalidAmount marks a zero or negative amount.
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	// ErrSameAccount marks a transfer whose source and destination coincide.
	ErrSameAccount = errors.New("source and destination accounts are the same")
	// ErrUnknownSortCode marks a destination sort code not present in the
	// partner bank directory.
	ErrUnknownSortCode = errors.New("sort code does not match any known bank")
	// ErrUnknownBankCode marks a destination bank code not present in the
	// partner bank directory.
	ErrUnknownBankCode = errors.New("bank code does not match any known bank")
	// ErrInvalidPassword marks a login attempt with the wrong password.
	ErrInvalidPassword = errors.New("invalid credentials")
	// ErrSortCodeMismatch marks a sort code validation that does not match
	// the account's sort code.
	ErrSortCodeMismatch = errors.New("sort code does not match account")
	// ErrValidation marks a malformed request rejected before reaching the
	// ledger.
	ErrValidation = errors.New("invalid request")
)

// openingBalance is credited to every newly created account.
var openingBalance = decimal.NewFromInt(1000)

// PartnerGateway delivers the external leg of a cross-bank transfer.
// *partnerclient.Client satisfies it.
type PartnerGateway interface {
	Deposit(ctx context.Context, bank domain.PartnerBank, req partnerclient.DepositRequest) error
}

// Service provides the core business logic for accounts and transfers.
type Service struct {
	repo          store.Repository
	directory     *banks.Directory
	partner       PartnerGateway
	eventProducer rabbitmq.Publisher
	eventExchange string
}

// NewService creates a new ledger service instance. The event producer may be
// nil, in which case lifecycle events are not published.
func NewService(repo store.Repository, directory *banks.Directory, partner PartnerGateway, producer rabbitmq.Publisher, exchange string) *Service {
	return &Service{
		repo:          repo,
		directory:     directory,
		partner:       partner,
		eventProducer: producer,
		eventExchange: exchange,
	}
}

// CreateAccount opens a new account with the opening balance and the internal
// bank's sort code. The password is stored as a bcrypt hash.
func (s *Service) CreateAccount(ctx context.Context, req domain.CreateAccountRequest) (*domain.Account, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if req.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	acct, err := s.repo.CreateAccount(ctx, req.Name, string(hash), req.Email, s.directory.Internal().SortCode, openingBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	log.Printf("level=info component=ledger_service msg=\"account created\" account_no=%d", acct.AccountNo)
	return acct, nil
}

// GetAccount returns the account identified by accountNo, subject to the
// caller owning it.
func (s *Service) GetAccount(ctx context.Context, callerAccountNo, accountNo int64) (*domain.Account, error) {
	if callerAccountNo != accountNo {
		return nil, ErrUnauthorized
	}
	return s.repo.GetAccount(ctx, accountNo)
}

// UpdateAccount applies a partial update to the caller's own account. A new
// password, when present, is hashed before storage.
func (s *Service) UpdateAccount(ctx context.Context, callerAccountNo, accountNo int64, upd domain.AccountUpdate) (*domain.Account, error) {
	if callerAccountNo != accountNo {
		return nil, ErrUnauthorized
	}
	if upd.IsEmpty() {
		return nil, fmt.Errorf("%w: no fields to update", ErrValidation)
	}

	var passwordHash *string
	if upd.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*upd.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		h := string(hash)
		passwordHash = &h
	}

	return s.repo.UpdateAccount(ctx, accountNo, upd.Email, upd.Mobile, passwordHash)
}

// Login verifies credentials by account number or email and returns the
// matching account summary on success.
func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.Account, error) {
	var (
		acct *domain.Account
		err  error
	)
	switch {
	case req.AccountNo != nil:
		acct, err = s.repo.GetAccount(ctx, *req.AccountNo)
	case req.Email != nil:
		acct, err = s.repo.GetAccountByEmail(ctx, *req.Email)
	default:
		return nil, fmt.Errorf("%w: account_no or email is required", ErrValidation)
	}
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			// Same response as a bad password so login cannot be used to
			// probe for account numbers.
			return nil, ErrInvalidPassword
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidPassword
	}
	return acct, nil
}

// ValidateSortCode checks that the supplied sort code matches the account's
// own sort code. Comparison ignores separator formatting.
func (s *Service) ValidateSortCode(ctx context.Context, accountNo int64, sortCode string) error {
	acct, err := s.repo.GetAccount(ctx, accountNo)
	if err != nil {
		return err
	}
	if banks.NormalizeSortCode(sortCode) != banks.NormalizeSortCode(acct.SortCode) {
		return ErrSortCodeMismatch
	}
	return nil
}

// Deposit credits the caller's account and records the movement. A zero
// amount is accepted and leaves the balance unchanged; only negative amounts
// are rejected.
func (s *Service) Deposit(ctx context.Context, callerAccountNo, accountNo int64, amount decimal.Decimal) (*domain.BalanceChange, error) {
	if callerAccountNo != accountNo {
		return nil, ErrUnauthorized
	}
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}

	change, err := s.repo.Deposit(ctx, accountNo, amount)
	if err != nil {
		return nil, err
	}

	s.recordTransaction(ctx, domain.TransactionRecord{
		AccountNo:   accountNo,
		Type:        domain.TxTypeDeposit,
		Amount:      amount,
		Description: "Deposit",
		Direction:   domain.DirectionIn,
		Status:      domain.StatusSuccess,
	})
	return change, nil
}

// Withdraw debits the caller's account and records the movement. A failed
// withdrawal due to insufficient funds is recorded as a failed transaction.
func (s *Service) Withdraw(ctx context.Context, callerAccountNo, accountNo int64, amount decimal.Decimal) (*domain.BalanceChange, error) {
	if callerAccountNo != accountNo {
		return nil, ErrUnauthorized
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	change, err := s.repo.Withdraw(ctx, accountNo, amount)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			s.recordTransaction(ctx, domain.TransactionRecord{
				AccountNo:   accountNo,
				Type:        domain.TxTypeWithdraw,
				Amount:      amount,
				Description: "Withdrawal declined: insufficient funds",
				Direction:   domain.DirectionOut,
				Status:      domain.StatusFail,
			})
		}
		return nil, err
	}

	s.recordTransaction(ctx, domain.TransactionRecord{
		AccountNo:   accountNo,
		Type:        domain.TxTypeWithdraw,
		Amount:      amount,
		Description: "Withdrawal",
		Direction:   domain.DirectionOut,
		Status:      domain.StatusSuccess,
	})
	return change, nil
}

// InternalTransfer moves funds between two accounts held at this bank in a
// single database transaction, then records a movement on each side.
func (s *Service) InternalTransfer(ctx context.Context, callerAccountNo int64, req domain.TransferRequest) (*domain.TransferResult, error) {
	if callerAccountNo != req.FromAccountNo {
		return nil, ErrUnauthorized
	}
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if req.FromAccountNo == req.ToAccountNo {
		return nil, ErrSameAccount
	}

	result, err := s.repo.Transfer(ctx, req.FromAccountNo, req.ToAccountNo, req.Amount)
	if err != nil {
		// A fail audit lands on the sender only; for a missing sender the
		// insert fails and is logged, which is the best we can do.
		if errors.Is(err, store.ErrInsufficientFunds) || errors.Is(err, store.ErrAccountNotFound) {
			s.recordTransaction(ctx, domain.TransactionRecord{
				AccountNo:        req.FromAccountNo,
				Type:             domain.TxTypeTransfer,
				Amount:           req.Amount,
				Description:      fmt.Sprintf("Transfer to account %d failed: %v", req.ToAccountNo, err),
				RelatedAccountNo: &req.ToAccountNo,
				Direction:        domain.DirectionOut,
				Status:           domain.StatusFail,
			})
		}
		return nil, err
	}

	s.recordTransaction(ctx, domain.TransactionRecord{
		AccountNo:        req.FromAccountNo,
		Type:             domain.TxTypeTransfer,
		Amount:           req.Amount,
		Description:      fmt.Sprintf("Transfer to %s (account %d)", result.ToName, req.ToAccountNo),
		RelatedAccountNo: &req.ToAccountNo,
		Direction:        domain.DirectionOut,
		Status:           domain.StatusSuccess,
	})
	s.recordTransaction(ctx, domain.TransactionRecord{
		AccountNo:        req.ToAccountNo,
		Type:             domain.TxTypeTransfer,
		Amount:           req.Amount,
		Description:      fmt.Sprintf("Transfer from %s (account %d)", result.FromName, req.FromAccountNo),
		RelatedAccountNo: &req.FromAccountNo,
		Direction:        domain.DirectionIn,
		Status:           domain.StatusSuccess,
	})
	return result, nil
}

// GetTransactions returns the caller's transaction history, newest first.
func (s *Service) GetTransactions(ctx context.Context, callerAccountNo, accountNo int64) ([]domain.TransactionRecord, error) {
	if callerAccountNo != accountNo {
		return nil, ErrUnauthorized
	}
	// Verify the account exists so an empty history is distinguishable from
	// an unknown account.
	if _, err := s.repo.GetAccount(ctx, accountNo); err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, accountNo)
}

// ListBanks returns the partner bank directory entries.
func (s *Service) ListBanks(ctx context.Context) []domain.PartnerBank {
	return s.directory.ListBanks()
}

// AddPayee saves a payee to the caller's address book.
func (s *Service) AddPayee(ctx context.Context, callerAccountNo int64, payee domain.Payee) (*domain.Payee, error) {
	if callerAccountNo != payee.UserAccountNo {
		return nil, ErrUnauthorized
	}
	if payee.PayeeName == "" {
		return nil, fmt.Errorf("%w: payee name is required", ErrValidation)
	}
	return s.repo.AddPayee(ctx, &payee)
}

// ListPayees returns the caller's saved payees.
func (s *Service) ListPayees(ctx context.Context, callerAccountNo, accountNo int64) ([]domain.Payee, error) {
	if callerAccountNo != accountNo {
		return nil, ErrUnauthorized
	}
	return s.repo.ListPayees(ctx, accountNo)
}

// recordTransaction appends an audit record. Audit failures never fail the
// money movement itself; they are logged and the operation's result stands.
func (s *Service) recordTransaction(ctx context.Context, rec domain.TransactionRecord) {
	if err := s.repo.InsertTransaction(ctx, &rec); err != nil {
		log.Printf("level=error component=ledger_service msg=\"failed to record transaction\" account_no=%d type=%s err=%v", rec.AccountNo, rec.Type, err)
	}
}

// publishEvent publishes a transfer lifecycle event. Publishing is
// best-effort; failures are logged and ignored.
func (s *Service) publishEvent(ctx context.Context, routingKey string, event domain.TransferEvent) {
	if s.eventProducer == nil {
		return
	}
	if err := s.eventProducer.Publish(ctx, s.eventExchange, routingKey, event); err != nil {
		log.Printf("level=warn component=ledger_service msg=\"failed to publish event\" routing_key=%s reference=%s err=%v", routingKey, event.Reference, err)
	}
}
