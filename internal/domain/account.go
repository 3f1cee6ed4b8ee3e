/**
 * @description
 * This file defines the core domain models for the ledger-service: bank accounts
 * and the request/response shapes used by the ledger and transfer operations.
 *
 * @notes
 * - Amounts use shopspring/decimal rather than float64 so that balance arithmetic
 *   is exact to the minor currency unit. Balances must never go negative after a
 *   committed operation.
 * - The password hash is never serialized; the API only ever returns account
 *   summaries.
 */

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents a bank account row. AccountNo is immutable once assigned.
type Account struct {
	AccountNo    int64           `json:"account_no"`
	Name         string          `json:"name"`
	Balance      decimal.Decimal `json:"balance"`
	SortCode     string          `json:"sort_code"`
	PasswordHash string          `json:"-"`
	Email        *string         `json:"email,omitempty"`
	Mobile       *string         `json:"mobile,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Summary strips the account down to the fields safe to return to any caller.
func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		AccountNo: a.AccountNo,
		Name:      a.Name,
		Balance:   a.Balance,
		SortCode:  a.SortCode,
	}
}

// AccountSummary is the public view of an account.
type AccountSummary struct {
	AccountNo int64           `json:"account_no"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	SortCode  string          `json:"sort_code"`
}

// CreateAccountRequest is the DTO for opening a new account.
type CreateAccountRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// AccountUpdate carries a partial update; only non-nil fields are applied.
// Password, when present, is the caller's new plaintext secret and is hashed
// by the service before it reaches the store.
type AccountUpdate struct {
	Email    *string `json:"email,omitempty"`
	Mobile   *string `json:"mobile,omitempty"`
	Password *string `json:"password,omitempty"`
}

// IsEmpty reports whether the update would change nothing.
func (u AccountUpdate) IsEmpty() bool {
	return u.Email == nil && u.Mobile == nil && u.Password == nil
}

// LoginRequest authenticates by account number or email plus password.
type LoginRequest struct {
	AccountNo *int64  `json:"account_no,omitempty"`
	Email     *string `json:"email,omitempty"`
	Password  string  `json:"password"`
}

// AmountRequest is the body for deposit and withdraw operations.
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// BalanceChange is the result of a single-account balance mutation.
type BalanceChange struct {
	AccountNo  int64           `json:"account_no"`
	Name       string          `json:"name"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

// TransferRequest is the body for an internal transfer between two local accounts.
type TransferRequest struct {
	FromAccountNo int64           `json:"from_account_no"`
	ToAccountNo   int64           `json:"to_account_no"`
	Amount        decimal.Decimal `json:"amount"`
}

// TransferResult reports a committed internal transfer. FromName and ToName are
// carried for audit descriptions but not exposed on the wire.
type TransferResult struct {
	FromAccountNo  int64           `json:"from_account_no"`
	ToAccountNo    int64           `json:"to_account_no"`
	Amount         decimal.Decimal `json:"transferred_amount"`
	FromNewBalance decimal.Decimal `json:"from_new_balance"`
	ToNewBalance   decimal.Decimal `json:"to_new_balance"`
	FromName       string          `json:"-"`
	ToName         string          `json:"-"`
}

// CrossBankTransferRequest is the body for a transfer that may leave this bank.
// The destination bank is named either by sort code or by bank code; the bank
// code wins when both are present. An empty sort code, or one matching the
// internal bank's, keeps the transfer local; anything else is resolved against
// the partner bank directory.
type CrossBankTransferRequest struct {
	FromAccountNo int64           `json:"from_account_no"`
	ToAccountNo   int64           `json:"to_account_no"`
	Amount        decimal.Decimal `json:"amount"`
	ToSortCode    string          `json:"to_sort_code,omitempty"`
	ToBankCode    string          `json:"to_bank_code,omitempty"`
	ToName        string          `json:"to_name,omitempty"`
}

// CrossBankTransferResult reports the terminal state of an orchestrated transfer.
type CrossBankTransferResult struct {
	Reference           string          `json:"reference"`
	Status              string          `json:"status"`
	Internal            bool            `json:"internal"`
	Amount              decimal.Decimal `json:"amount"`
	FromAccountNo       int64           `json:"from_account_no"`
	FromNewBalance      decimal.Decimal `json:"from_new_balance"`
	ToAccountNo         int64           `json:"to_account_no"`
	DestinationBankCode string          `json:"destination_bank_code,omitempty"`
	DestinationBankName string          `json:"destination_bank_name,omitempty"`
	Message             string          `json:"message"`
}

// Payee is a saved counterparty for a user's future transfers.
type Payee struct {
	ID             int64     `json:"id"`
	UserAccountNo  int64     `json:"user_account_no"`
	PayeeName      string    `json:"payee_name"`
	PayeeAccountNo int64     `json:"payee_account_no"`
	PayeeSortCode  string    `json:"payee_sort_code"`
	CreatedAt      time.Time `json:"created_at"`
}
