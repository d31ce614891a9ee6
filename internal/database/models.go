package ledgerdb

import (
	"time"

	"gorm.io/gorm"
)

// Withdrawal lifecycle states. Confirmed and Failed are terminal;
// records are never deleted and serve as the audit log.
const (
	WithdrawalPending   = "pending"
	WithdrawalSent      = "sent"
	WithdrawalConfirmed = "confirmed"
	WithdrawalFailed    = "failed"
)

// Deposit states. A deposit stays unmatched until its comment resolves
// to a known account; it is credited at most once per chain tx hash.
const (
	DepositUnmatched = "unmatched"
	DepositCredited  = "credited"
	DepositRejected  = "rejected"
)

// Task states mirrored from the marketplace; the settlement engine only
// cares about non-cancelled tasks when computing reserved budgets.
const (
	TaskActive    = "active"
	TaskCompleted = "completed"
	TaskCancelled = "cancelled"
)

// Account is an internal ledger account keyed by the user's Telegram id,
// which is also the identifier deposited funds carry in their comment.
type Account struct {
	gorm.Model
	TelegramID int64  `gorm:"uniqueIndex"`
	Username   string `gorm:"index"`
	ReferrerID *uint  `gorm:"index"`
}

// Balance holds the three per-account sub-ledgers in nano-TON. Amounts
// are integers, never floats.
type Balance struct {
	gorm.Model
	AccountID    uint `gorm:"uniqueIndex"`
	ActiveNano   int64
	EscrowNano   int64
	ReferralNano int64
}

// WithdrawalRequest is one outbound payment intent. The idempotency key
// is the single source of deduplication; a balance debit happens at
// most once, at the pending-to-sent transition.
type WithdrawalRequest struct {
	gorm.Model
	IdempotencyKey string `gorm:"uniqueIndex"`
	AccountID      *uint  `gorm:"index"` // nil for operator withdrawals
	ToAddress      string
	AmountNano     int64
	Status         string  `gorm:"index"`
	ChainTxID      *string `gorm:"index"`
	ErrorDetail    string
	AttemptCount   int
	Notes          string
}

// DepositRecord is one observed incoming transfer, keyed by the chain
// transaction hash.
type DepositRecord struct {
	gorm.Model
	ChainTxID   string `gorm:"uniqueIndex"`
	FromAddress string
	AmountNano  int64
	ExtractedID *int64 `gorm:"index"` // account identifier from the comment
	AccountID   *uint  `gorm:"index"`
	Status      string `gorm:"index"`
	CreditedAt  *time.Time
}

// Task is the spending commitment the marketplace tracks; its reserved
// budget (slots times unit price) feeds balance reconciliation.
type Task struct {
	gorm.Model
	CreatorID        uint `gorm:"index"`
	Title            string
	PricePerSlotNano int64
	TotalSlots       int
	CompletedSlots   int
	Status           string `gorm:"index"`
}

// ReservedNano is the task's full budget in nano-TON.
func (t *Task) ReservedNano() int64 {
	return t.PricePerSlotNano * int64(t.TotalSlots)
}
