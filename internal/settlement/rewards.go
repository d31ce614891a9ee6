package settlement

import (
	"errors"
	"fmt"

	ledgerdb "github.com/RustamRomanov/BlackMirrowMarket/internal/database"
	"github.com/RustamRomanov/BlackMirrowMarket/internal/logger"
)

var (
	ErrTaskNotActive = errors.New("settlement: task is not active")
	ErrTaskFull      = errors.New("settlement: task has no free slots")
)

// ReserveTaskBudget debits the creator's active balance for the full
// task budget up front and opens the task. Reserved budget counts
// against the creator in reconciliation until the task completes or is
// cancelled.
func (e *Engine) ReserveTaskBudget(telegramID int64, title string, pricePerSlotNano int64, totalSlots int) (*ledgerdb.Task, error) {
	if pricePerSlotNano <= 0 || totalSlots <= 0 {
		return nil, ErrInvalidAmount
	}
	account, err := e.store.FindAccountByTelegramID(telegramID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	task := &ledgerdb.Task{
		CreatorID:        account.ID,
		Title:            title,
		PricePerSlotNano: pricePerSlotNano,
		TotalSlots:       totalSlots,
		Status:           ledgerdb.TaskActive,
	}
	budget := task.ReservedNano()
	if _, err := e.store.DebitActive(account.ID, budget); err != nil {
		if errors.Is(err, ledgerdb.ErrInsufficientBalance) {
			return nil, fmt.Errorf("%w: task budget is %d nano", ErrInsufficientFunds, budget)
		}
		return nil, err
	}
	if err := e.store.CreateTask(task); err != nil {
		// The debit landed but the task did not: put the money back
		// rather than strand it.
		if _, crErr := e.store.CreditActive(account.ID, budget); crErr != nil {
			logger.Errorf("refund after failed task create for account %d: %v", account.ID, crErr)
		}
		return nil, err
	}
	return task, nil
}

// CancelTask closes an active task and refunds the unspent slots to the
// creator. Slots already completed stay paid.
func (e *Engine) CancelTask(taskID uint) (*ledgerdb.Task, error) {
	task, err := e.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != ledgerdb.TaskActive {
		return nil, ErrTaskNotActive
	}

	refund := task.PricePerSlotNano * int64(task.TotalSlots-task.CompletedSlots)
	if refund > 0 {
		if _, err := e.store.CreditActive(task.CreatorID, refund); err != nil {
			return nil, err
		}
	}
	task.Status = ledgerdb.TaskCancelled
	if err := e.store.SaveTask(task); err != nil {
		return nil, err
	}
	logger.Infof("task %d cancelled, %d nano refunded to creator %d", task.ID, refund, task.CreatorID)
	return task, nil
}

// HoldReward moves one slot's reward into the worker's escrow, pending
// validation of the submitted work. The task budget was debited at
// creation, so nothing moves out of the creator here.
func (e *Engine) HoldReward(taskID uint, workerTelegramID int64) (*ledgerdb.Task, error) {
	task, err := e.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != ledgerdb.TaskActive {
		return nil, ErrTaskNotActive
	}
	if task.CompletedSlots >= task.TotalSlots {
		return nil, ErrTaskFull
	}
	worker, err := e.store.FindAccountByTelegramID(workerTelegramID)
	if err != nil {
		return nil, err
	}
	if worker == nil {
		return nil, ErrAccountNotFound
	}

	if _, err := e.store.CreditEscrow(worker.ID, task.PricePerSlotNano); err != nil {
		return nil, err
	}
	task.CompletedSlots++
	if task.CompletedSlots == task.TotalSlots {
		task.Status = ledgerdb.TaskCompleted
	}
	if err := e.store.SaveTask(task); err != nil {
		return nil, err
	}
	return task, nil
}

// ReleaseReward converts a worker's escrowed reward into spendable
// balance after validation. The platform commission comes off the
// gross, and the worker's referrer, if any, earns their cut on the same
// gross amount.
func (e *Engine) ReleaseReward(workerTelegramID int64, grossNano int64) error {
	if grossNano <= 0 {
		return ErrInvalidAmount
	}
	worker, err := e.store.FindAccountByTelegramID(workerTelegramID)
	if err != nil {
		return err
	}
	if worker == nil {
		return ErrAccountNotFound
	}

	commission := grossNano * e.cfg.AppCommissionPercent / 100
	net := grossNano - commission
	if _, err := e.store.ReleaseFromEscrow(worker.ID, grossNano, net); err != nil {
		return err
	}

	if worker.ReferrerID != nil {
		bonus := grossNano * e.cfg.ReferralCommissionPercent / 100
		if bonus > 0 {
			if _, err := e.store.CreditReferral(*worker.ReferrerID, bonus); err != nil {
				logger.Errorf("referral credit for account %d failed: %v", *worker.ReferrerID, err)
			}
		}
	}
	return nil
}
