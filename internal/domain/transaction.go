package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types.
const (
	TxTypeDeposit  = "deposit"
	TxTypeWithdraw = "withdraw"
	TxTypeTransfer = "transfer"
)

// Transaction directions, from the owning account's point of view.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Transaction statuses. Failed legs are recorded too, so that a compensated
// cross-bank attempt leaves an auditable trace.
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
)

// TransactionRecord is one append-only ledger audit entry. Records are created
// immediately after each balance-affecting attempt and never mutated.
type TransactionRecord struct {
	ID               int64           `json:"id"`
	AccountNo        int64           `json:"account_no"`
	Type             string          `json:"type"`
	Amount           decimal.Decimal `json:"amount"`
	Description      string          `json:"description"`
	RelatedAccountNo *int64          `json:"related_account_no,omitempty"`
	Direction        string          `json:"direction"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
}
