package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Routing keys for transfer lifecycle events.
const (
	TransferEventCompleted = "transfer.completed"
	TransferEventFailed    = "transfer.failed"
	TransferEventRefunded  = "transfer.refunded"
)

// TransferEvent is the payload published after each cross-bank transfer attempt
// reaches a terminal state. Publishing is best effort and never blocks the
// caller-facing response.
type TransferEvent struct {
	EventID       uuid.UUID       `json:"event_id"`
	Reference     string          `json:"reference"`
	FromAccountNo int64           `json:"from_account_no"`
	ToAccountNo   int64           `json:"to_account_no"`
	BankCode      string          `json:"bank_code,omitempty"`
	SortCode      string          `json:"sort_code,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	Reason        string          `json:"reason,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}
