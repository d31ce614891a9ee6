package ledgerdb

import (
	"errors"

	"gorm.io/gorm"
)

// FindAccountByTelegramID resolves the identifier deposits and
// withdrawal requests carry. Returns (nil, nil) when unknown, since a
// missing account is an expected outcome, not a failure.
func (s *Store) FindAccountByTelegramID(telegramID int64) (*Account, error) {
	var a Account
	err := s.db.Where("telegram_id = ?", telegramID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAccount registers a new ledger account.
func (s *Store) CreateAccount(a *Account) error {
	return s.db.Create(a).Error
}

// AccountByID fetches an account by primary key.
func (s *Store) AccountByID(id uint) (*Account, error) {
	var a Account
	if err := s.db.First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// FindWithdrawalByKey looks up a withdrawal by its idempotency key.
// Returns (nil, nil) when no record exists.
func (s *Store) FindWithdrawalByKey(idempotencyKey string) (*WithdrawalRequest, error) {
	var w WithdrawalRequest
	err := s.db.Where("idempotency_key = ?", idempotencyKey).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// CreateWithdrawal persists a new pending request.
func (s *Store) CreateWithdrawal(w *WithdrawalRequest) error {
	return s.db.Create(w).Error
}

// SaveWithdrawal persists state-machine transitions.
func (s *Store) SaveWithdrawal(w *WithdrawalRequest) error {
	return s.db.Save(w).Error
}

// GetWithdrawal fetches one request by primary key.
func (s *Store) GetWithdrawal(id uint) (*WithdrawalRequest, error) {
	var w WithdrawalRequest
	if err := s.db.First(&w, id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// ListWithdrawals returns the audit log, newest first.
func (s *Store) ListWithdrawals(limit int) ([]WithdrawalRequest, error) {
	var out []WithdrawalRequest
	q := s.db.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return out, q.Find(&out).Error
}

// PendingUnsent returns requests stuck in pending with no chain id:
// candidates for the retry sweep; funds were never debited for them.
func (s *Store) PendingUnsent(limit int) ([]WithdrawalRequest, error) {
	var out []WithdrawalRequest
	err := s.db.Where("status = ? AND chain_tx_id IS NULL", WithdrawalPending).
		Order("created_at ASC").Limit(limit).Find(&out).Error
	return out, err
}

// SentUnconfirmed returns requests awaiting a chain verdict.
func (s *Store) SentUnconfirmed() ([]WithdrawalRequest, error) {
	var out []WithdrawalRequest
	err := s.db.Where("status = ? AND chain_tx_id IS NOT NULL", WithdrawalSent).
		Find(&out).Error
	return out, err
}

// DepositExists reports whether the chain tx hash has been observed
// before; this check is what makes re-scanning idempotent.
func (s *Store) DepositExists(chainTxID string) (bool, error) {
	var count int64
	err := s.db.Model(&DepositRecord{}).Where("chain_tx_id = ?", chainTxID).Count(&count).Error
	return count > 0, err
}

// CreateDeposit persists a newly observed incoming transfer.
func (s *Store) CreateDeposit(d *DepositRecord) error {
	return s.db.Create(d).Error
}

// SaveDeposit persists deposit state changes.
func (s *Store) SaveDeposit(d *DepositRecord) error {
	return s.db.Save(d).Error
}

// UnmatchedDeposits returns deposits whose identifier did not resolve
// at observation time; accounts may register after the money arrives.
func (s *Store) UnmatchedDeposits() ([]DepositRecord, error) {
	var out []DepositRecord
	err := s.db.Where("status = ? AND extracted_id IS NOT NULL", DepositUnmatched).
		Find(&out).Error
	return out, err
}

// ListDepositsByAccount returns the account's deposit history.
func (s *Store) ListDepositsByAccount(accountID uint) ([]DepositRecord, error) {
	var out []DepositRecord
	err := s.db.Where("account_id = ?", accountID).Order("created_at DESC").Find(&out).Error
	return out, err
}

// CreateTask records a spending commitment.
func (s *Store) CreateTask(t *Task) error {
	return s.db.Create(t).Error
}

// SaveTask persists task state changes.
func (s *Store) SaveTask(t *Task) error {
	return s.db.Save(t).Error
}

// GetTask fetches one task by primary key.
func (s *Store) GetTask(id uint) (*Task, error) {
	var t Task
	if err := s.db.First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// SumCreditedDeposits totals everything credited to the account.
func (s *Store) SumCreditedDeposits(accountID uint) (int64, error) {
	return s.sum(&DepositRecord{}, "amount_nano",
		"account_id = ? AND status = ?", accountID, DepositCredited)
}

// SumSentWithdrawals totals withdrawals that actually moved funds:
// those that reached sent or confirmed.
func (s *Store) SumSentWithdrawals(accountID uint) (int64, error) {
	return s.sum(&WithdrawalRequest{}, "amount_nano",
		"account_id = ? AND status IN ?", accountID,
		[]string{WithdrawalSent, WithdrawalConfirmed})
}

// SumReservedBudgets totals the budgets of the account's non-cancelled
// tasks (total slots times unit price).
func (s *Store) SumReservedBudgets(accountID uint) (int64, error) {
	return s.sum(&Task{}, "price_per_slot_nano * total_slots",
		"creator_id = ? AND status != ?", accountID, TaskCancelled)
}

func (s *Store) sum(model interface{}, expr string, query string, args ...interface{}) (int64, error) {
	var total *int64
	err := s.db.Model(model).Select("SUM("+expr+")").Where(query, args...).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}
