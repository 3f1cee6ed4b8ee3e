package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/unk029-openconsultinguk/unk029-bank-app/internal/banks"
	"github.com/unk029-openconsultinguk/unk029-bank-app/internal/domain"
	"github.com/unk029-openconsultinguk/unk029-bank-app/internal/store"
)

// ledgerRepoStub is an in-memory store.Repository used across the app tests.
type ledgerRepoStub struct {
	accounts map[int64]*domain.Account
	records  []domain.TransactionRecord
	payees   []domain.Payee

	nextAccountNo int64
	insertTxErr   error
}

func newLedgerRepoStub(accounts ...*domain.Account) *ledgerRepoStub {
	s := &ledgerRepoStub{
		accounts:      make(map[int64]*domain.Account),
		nextAccountNo: 12345001,
	}
	for _, acct := range accounts {
		s.accounts[acct.AccountNo] = acct
		if acct.AccountNo >= s.nextAccountNo {
			s.nextAccountNo = acct.AccountNo + 1
		}
	}
	return s
}

func (s *ledgerRepoStub) GetAccount(ctx context.Context, accountNo int64) (*domain.Account, error) {
	acct, ok := s.accounts[accountNo]
	if !ok {
		return nil, fmt.Errorf("account %d: %w", accountNo, store.ErrAccountNotFound)
	}
	copied := *acct
	return &copied, nil
}

func (s *ledgerRepoStub) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	for _, acct := range s.accounts {
		if acct.Email != nil && *acct.Email == email {
			copied := *acct
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("email %s: %w", email, store.ErrAccountNotFound)
}

func (s *ledgerRepoStub) CreateAccount(ctx context.Context, name, passwordHash, email, sortCode string, openingBalance decimal.Decimal) (*domain.Account, error) {
	acct := &domain.Account{
		AccountNo:    s.nextAccountNo,
		Name:         name,
		Balance:      openingBalance,
		SortCode:     sortCode,
		PasswordHash: passwordHash,
	}
	if email != "" {
		acct.Email = &email
	}
	s.nextAccountNo++
	s.accounts[acct.AccountNo] = acct
	copied := *acct
	return &copied, nil
}

func (s *ledgerRepoStub) UpdateAccount(ctx context.Context, accountNo int64, email, mobile, passwordHash *string) (*domain.Account, error) {
	acct, ok := s.accounts[accountNo]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	if email != nil {
		acct.Email = email
	}
	if mobile != nil {
		acct.Mobile = mobile
	}
	if passwordHash != nil {
		acct.PasswordHash = *passwordHash
	}
	copied := *acct
	return &copied, nil
}

func (s *ledgerRepoStub) Deposit(ctx context.Context, accountNo int64, amount decimal.Decimal) (*domain.BalanceChange, error) {
	acct, ok := s.accounts[accountNo]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	acct.Balance = acct.Balance.Add(amount)
	return &domain.BalanceChange{AccountNo: accountNo, Name: acct.Name, NewBalance: acct.Balance}, nil
}

func (s *ledgerRepoStub) Withdraw(ctx context.Context, accountNo int64, amount decimal.Decimal) (*domain.BalanceChange, error) {
	acct, ok := s.accounts[accountNo]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	if acct.Balance.LessThan(amount) {
		return nil, &store.InsufficientFundsError{AccountNo: accountNo, Balance: acct.Balance, Requested: amount}
	}
	acct.Balance = acct.Balance.Sub(amount)
	return &domain.BalanceChange{AccountNo: accountNo, Name: acct.Name, NewBalance: acct.Balance}, nil
}

func (s *ledgerRepoStub) Transfer(ctx context.Context, fromAccountNo, toAccountNo int64, amount decimal.Decimal) (*domain.TransferResult, error) {
	from, ok := s.accounts[fromAccountNo]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	to, ok := s.accounts[toAccountNo]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	if from.Balance.LessThan(amount) {
		return nil, &store.InsufficientFundsError{AccountNo: fromAccountNo, Balance: from.Balance, Requested: amount}
	}
	from.Balance = from.Balance.Sub(amount)
	to.Balance = to.Balance.Add(amount)
	return &domain.TransferResult{
		FromAccountNo:  fromAccountNo,
		ToAccountNo:    toAccountNo,
		Amount:         amount,
		FromNewBalance: from.Balance,
		ToNewBalance:   to.Balance,
		FromName:       from.Name,
		ToName:         to.Name,
	}, nil
}

func (s *ledgerRepoStub) InsertTransaction(ctx context.Context, rec *domain.TransactionRecord) error {
	if s.insertTxErr != nil {
		return s.insertTxErr
	}
	rec.ID = int64(len(s.records) + 1)
	s.records = append(s.records, *rec)
	return nil
}

func (s *ledgerRepoStub) ListTransactions(ctx context.Context, accountNo int64) ([]domain.TransactionRecord, error) {
	var out []domain.TransactionRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].AccountNo == accountNo {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

func (s *ledgerRepoStub) AddPayee(ctx context.Context, payee *domain.Payee) (*domain.Payee, error) {
	payee.ID = int64(len(s.payees) + 1)
	s.payees = append(s.payees, *payee)
	copied := *payee
	return &copied, nil
}

func (s *ledgerRepoStub) ListPayees(ctx context.Context, userAccountNo int64) ([]domain.Payee, error) {
	var out []domain.Payee
	for _, p := range s.payees {
		if p.UserAccountNo == userAccountNo {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *ledgerRepoStub) recordsFor(accountNo int64) []domain.TransactionRecord {
	var out []domain.TransactionRecord
	for _, rec := range s.records {
		if rec.AccountNo == accountNo {
			out = append(out, rec)
		}
	}
	return out
}

func newTestService(repo store.Repository) *Service {
	return NewService(repo, banks.DefaultDirectory(), nil, nil, "test.events")
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testAccount(accountNo int64, name, balance string) *domain.Account {
	return &domain.Account{
		AccountNo: accountNo,
		Name:      name,
		Balance:   dec(balance),
		SortCode:  "11-11-11",
	}
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	repo := newLedgerRepoStub(testAccount(12345001, "Alice", "1000.00"))
	svc := newTestService(repo)
	ctx := context.Background()

	change, err := svc.Deposit(ctx, 12345001, 12345001, dec("200.00"))
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if !change.NewBalance.Equal(dec("1200.00")) {
		t.Fatalf("expected balance 1200.00 after deposit, got %s", change.NewBalance)
	}

	change, err = svc.Withdraw(ctx, 12345001, 12345001, dec("200.00"))
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if !change.NewBalance.Equal(dec("1000.00")) {
		t.Fatalf("expected balance 1000.00 after withdrawal, got %s", change.NewBalance)
	}

	recs := repo.recordsFor(12345001)
	if len(recs) != 2 {
		t.Fatalf("expected 2 audit records, got %d", len(recs))
	}
	if recs[0].Type != domain.TxTypeDeposit || recs[0].Direction != domain.DirectionIn {
		t.Errorf("unexpected first record: %+v", recs[0])
	}
	if recs[1].Type != domain.TxTypeWithdraw || recs[1].Direction != domain.DirectionOut {
		t.Errorf("unexpected second record: %+v", recs[1])
	}
}

func TestWithdrawExactBalanceLeavesZero(t *testing.T) {
	repo := newLedgerRepoStub(testAccount(12345001, "Alice", "1000.00"))
	svc := newTestService(repo)

	change, err := svc.Withdraw(context.Background(), 12345001, 12345001, dec("1000.00"))
	if err != nil {
		t.Fatalf("expected a withdrawal of the full balance to succeed, got %v", err)
	}
	if !change.NewBalance.IsZero() {
		t.Fatalf("expected balance 0, got %s", change.NewBalance)
	}
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	repo := newLedgerRepoStub(testAccount(12345001, "Alice", "1000.00"))
	svc := newTestService(repo)

	_, err := svc.Withdraw(context.Background(), 12345001, 12345001, dec("1000.01"))
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	acct, _ := repo.GetAccount(context.Background(), 12345001)
	if !acct.Balance.Equal(dec("1000.00")) {
		t.Fatalf("expected balance unchanged, got %s", acct.Balance)
	}

	recs := repo.recordsFor(12345001)
	if len(recs) != 1 || recs[0].Status != domain.StatusFail {
		t.Fatalf("expected one failed audit record, got %+v", recs)
	}
}

func TestDepositRejectsNegativeAmounts(t *testing.T) {
	repo := newLedgerRepoStub(testAccount(12345001, "Alice", "1000.00"))
	svc := newTestService(repo)

	for _, amount := range []string{"-5.00", "-0.01"} {
		if _, err := svc.Deposit(context.Background(), 12345001, 12345001, dec(amount)); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("amount %s: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	if len(repo.records) != 0 {
		t.Fatalf("expected no audit records for rejected deposits, got %d", len(repo.records))
	}
}

func TestDepositAcceptsZeroAmount(t *testing.T) {
	repo := newLedgerRepoStub(testAccount(12345001, "Alice", "1000.00"))
	svc := newTestService(repo)

	change, err := svc.Deposit(context.Background(), 12345001, 12345001, dec("0"))
	if err != nil {
		t.Fatalf("expected a zero deposit to succeed, got %v", err)
	}
	if !change.NewBalance.Equal(dec("1000.00")) {
		t.Fatalf("expected balance unchanged at 1000.00, got %s", change.NewBalance)
	}

	acct, _ := repo.GetAccount(context.Background(), 12345001)
	if !acct.Balance.Equal(dec("1000.00")) {
		t.Fatalf("expected stored balance unchanged, got %s", acct.Balance)
	}
}

func TestOwnershipEnforcedOnAccountOperations(t *testing.T) {
	repo := newLedgerRepoStub(testAccount(12345001, "Alice", "1000.00"))
	svc := newTestService(repo)
	ctx := context.Background()

	if _, err := svc.Deposit(ctx, 99999999, 12345001, dec("10")); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("deposit: expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.Withdraw(ctx, 99999999, 12345001, dec("10")); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("withdraw: expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.GetAccount(ctx, 99999999, 12345001); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("get account: expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.GetTransactions(ctx, 99999999, 12345001); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("transactions: expected ErrUnauthorized, got %v", err)
	}
}

func TestInternalTransferRecordsBothSides(t *testing.T) {
	repo := newLedgerRepoStub(
		testAccount(12345001, "Alice", "500.00"),
		testAccount(12345002, "Bob", "100.00"),
	)
	svc := newTestService(repo)

	result, err := svc.InternalTransfer(context.Background(), 12345001, domain.TransferRequest{
		FromAccountNo: 12345001,
		ToAccountNo:   12345002,
		Amount:        dec("150.00"),
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if !result.FromNewBalance.Equal(dec("350.00")) || !result.ToNewBalance.Equal(dec("250.00")) {
		t.Fatalf("unexpected balances: from=%s to=%s", result.FromNewBalance, result.ToNewBalance)
	}

	fromRecs := repo.recordsFor(12345001)
	toRecs := repo.recordsFor(12345002)
	if len(fromRecs) != 1 || len(toRecs) != 1 {
		t.Fatalf("expected one record per side, got %d and %d", len(fromRecs), len(toRecs))
	}
	if fromRecs[0].Direction != domain.DirectionOut || fromRecs[0].Description != "Transfer to Bob (account 12345002)" {
		t.Errorf("unexpected sender record: %+v", fromRecs[0])
	}
	if toRecs[0].Direction != domain.DirectionIn || toRecs[0].Description != "Transfer from Alice (account 12345001)" {
		t.Errorf("unexpected recipient record: %+v", toRecs[0])
	}
}

func TestInternalTransferSameAccountRejected(t *testing.T) {
	repo := newLedgerRepoStub(testAccount(12345001, "Alice", "500.00"))
	svc := newTestService(repo)

	_, err := svc.InternalTransfer(context.Background(), 12345001, domain.TransferRequest{
		FromAccountNo: 12345001,
		ToAccountNo:   12345001,
		Amount:        dec("10"),
	})
	if !errors.Is(err, ErrSameAccount) {
		t.Fatalf("expected ErrSameAccount, got %v", err)
	}
}

func TestInternalTransferMissingDestinationLeavesSourceUnchanged(t *testing.T) {
	repo := newLedgerRepoStub(testAccount(12345001, "Alice", "500.00"))
	svc := newTestService(repo)

	_, err := svc.InternalTransfer(context.Background(), 12345001, domain.TransferRequest{
		FromAccountNo: 12345001,
		ToAccountNo:   99999999,
		Amount:        dec("10"),
	})
	if !errors.Is(err, store.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	acct, _ := repo.GetAccount(context.Background(), 12345001)
	if !acct.Balance.Equal(dec("500.00")) {
		t.Fatalf("expected source balance unchanged, got %s", acct.Balance)
	}
}

func TestCreateAccountHashesPasswordAndAppliesDefaults(t *testing.T) {
	repo := newLedgerRepoStub()
	svc := newTestService(repo)

	acct, err := svc.CreateAccount(context.Background(), domain.CreateAccountRequest{
		Name:     "Carol",
		Password: "hunter2",
		Email:    "carol@example.com",
	})
	if err != nil {
		t.Fatalf("create account failed: %v", err)
	}
	if !acct.Balance.Equal(dec("1000")) {
		t.Errorf("expected opening balance 1000, got %s", acct.Balance)
	}
	if acct.SortCode != "11-11-11" {
		t.Errorf("expected the internal bank's sort code, got %q", acct.SortCode)
	}
	if acct.PasswordHash == "hunter2" {
		t.Fatal("password must not be stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte("hunter2")); err != nil {
		t.Fatalf("stored hash does not verify against the password: %v", err)
	}
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	acct := testAccount(12345001, "Alice", "1000.00")
	acct.PasswordHash = string(hash)
	email := "alice@example.com"
	acct.Email = &email

	repo := newLedgerRepoStub(acct)
	svc := newTestService(repo)
	ctx := context.Background()
	accountNo := int64(12345001)

	got, err := svc.Login(ctx, domain.LoginRequest{AccountNo: &accountNo, Password: "hunter2"})
	if err != nil {
		t.Fatalf("login by account number failed: %v", err)
	}
	if got.AccountNo != 12345001 {
		t.Fatalf("expected account 12345001, got %d", got.AccountNo)
	}

	if _, err := svc.Login(ctx, domain.LoginRequest{Email: &email, Password: "hunter2"}); err != nil {
		t.Fatalf("login by email failed: %v", err)
	}

	if _, err := svc.Login(ctx, domain.LoginRequest{AccountNo: &accountNo, Password: "wrong"}); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword for a bad password, got %v", err)
	}

	missing := int64(99999999)
	if _, err := svc.Login(ctx, domain.LoginRequest{AccountNo: &missing, Password: "hunter2"}); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword for an unknown account, got %v", err)
	}
}

func TestValidateSortCode(t *testing.T) {
	repo := newLedgerRepoStub(testAccount(12345001, "Alice", "1000.00"))
	svc := newTestService(repo)
	ctx := context.Background()

	if err := svc.ValidateSortCode(ctx, 12345001, "111111"); err != nil {
		t.Fatalf("expected unformatted sort code to validate, got %v", err)
	}
	if err := svc.ValidateSortCode(ctx, 12345001, "60-00-01"); !errors.Is(err, ErrSortCodeMismatch) {
		t.Fatalf("expected ErrSortCodeMismatch, got %v", err)
	}
}

func TestUpdateAccountHashesNewPassword(t *testing.T) {
	repo := newLedgerRepoStub(testAccount(12345001, "Alice", "1000.00"))
	svc := newTestService(repo)

	newPassword := "s3cret!"
	acct, err := svc.UpdateAccount(context.Background(), 12345001, 12345001, domain.AccountUpdate{Password: &newPassword})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if acct.PasswordHash == newPassword {
		t.Fatal("password must not be stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(newPassword)); err != nil {
		t.Fatalf("stored hash does not verify against the new password: %v", err)
	}
}

func TestPayees(t *testing.T) {
	repo := newLedgerRepoStub(testAccount(12345001, "Alice", "1000.00"))
	svc := newTestService(repo)
	ctx := context.Background()

	saved, err := svc.AddPayee(ctx, 12345001, domain.Payee{
		UserAccountNo:  12345001,
		PayeeName:      "Bob",
		PayeeAccountNo: 12345002,
		PayeeSortCode:  "20-40-41",
	})
	if err != nil {
		t.Fatalf("add payee failed: %v", err)
	}
	if saved.ID == 0 {
		t.Fatal("expected a payee ID to be assigned")
	}

	payees, err := svc.ListPayees(ctx, 12345001, 12345001)
	if err != nil {
		t.Fatalf("list payees failed: %v", err)
	}
	if len(payees) != 1 || payees[0].PayeeName != "Bob" {
		t.Fatalf("unexpected payees: %+v", payees)
	}

	if _, err := svc.AddPayee(ctx, 99999999, domain.Payee{UserAccountNo: 12345001, PayeeName: "Eve"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
