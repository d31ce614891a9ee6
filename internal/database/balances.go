package ledgerdb

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// GetOrCreateBalance returns the account's balance row, creating a zero
// balance on first touch.
func (s *Store) GetOrCreateBalance(accountID uint) (*Balance, error) {
	lock := s.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()
	return s.getOrCreateBalanceLocked(accountID)
}

func (s *Store) getOrCreateBalanceLocked(accountID uint) (*Balance, error) {
	var b Balance
	err := s.db.Where("account_id = ?", accountID).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		b = Balance{AccountID: accountID}
		if err := s.db.Create(&b).Error; err != nil {
			return nil, err
		}
		return &b, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// mutateBalance runs fn on the account's balance row under the account
// lock and persists the result in one transaction.
func (s *Store) mutateBalance(accountID uint, fn func(*Balance) error) (*Balance, error) {
	lock := s.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	b, err := s.getOrCreateBalanceLocked(accountID)
	if err != nil {
		return nil, err
	}
	if err := fn(b); err != nil {
		return nil, err
	}
	if err := s.db.Save(b).Error; err != nil {
		return nil, err
	}
	return b, nil
}

// CreditActive adds to the active balance.
func (s *Store) CreditActive(accountID uint, amountNano int64) (*Balance, error) {
	return s.mutateBalance(accountID, func(b *Balance) error {
		b.ActiveNano += amountNano
		return nil
	})
}

// DebitActive removes from the active balance, failing without mutation
// if funds do not cover the amount.
func (s *Store) DebitActive(accountID uint, amountNano int64) (*Balance, error) {
	return s.mutateBalance(accountID, func(b *Balance) error {
		if b.ActiveNano < amountNano {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, b.ActiveNano, amountNano)
		}
		b.ActiveNano -= amountNano
		return nil
	})
}

// ForceDebitActive removes from the active balance without the
// sufficiency check. Used only after the chain has accepted a
// broadcast: the debit must then happen exactly once even if a
// concurrent spend already drained the balance; reconciliation reports
// the resulting negative.
func (s *Store) ForceDebitActive(accountID uint, amountNano int64) (*Balance, error) {
	return s.mutateBalance(accountID, func(b *Balance) error {
		b.ActiveNano -= amountNano
		return nil
	})
}

// CreditEscrow adds funds directly to the escrow sub-balance, without
// touching active funds. Used to hold a worker's reward until the task
// completion is validated.
func (s *Store) CreditEscrow(accountID uint, amountNano int64) (*Balance, error) {
	return s.mutateBalance(accountID, func(b *Balance) error {
		b.EscrowNano += amountNano
		return nil
	})
}

// MoveToEscrow reserves active funds against a commitment.
func (s *Store) MoveToEscrow(accountID uint, amountNano int64) (*Balance, error) {
	return s.mutateBalance(accountID, func(b *Balance) error {
		if b.ActiveNano < amountNano {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, b.ActiveNano, amountNano)
		}
		b.ActiveNano -= amountNano
		b.EscrowNano += amountNano
		return nil
	})
}

// ReleaseFromEscrow moves grossNano out of escrow and credits
// creditNano to the active balance. The difference is the commission
// retained by the platform; callers pass equal values for a
// commission-free release.
func (s *Store) ReleaseFromEscrow(accountID uint, grossNano, creditNano int64) (*Balance, error) {
	return s.mutateBalance(accountID, func(b *Balance) error {
		if b.EscrowNano < grossNano {
			return fmt.Errorf("%w: escrow has %d, need %d", ErrInsufficientBalance, b.EscrowNano, grossNano)
		}
		b.EscrowNano -= grossNano
		b.ActiveNano += creditNano
		return nil
	})
}

// CreditReferral adds referral earnings on top of the active balance.
func (s *Store) CreditReferral(accountID uint, amountNano int64) (*Balance, error) {
	return s.mutateBalance(accountID, func(b *Balance) error {
		b.ActiveNano += amountNano
		b.ReferralNano += amountNano
		return nil
	})
}

// SetActive overwrites the active balance; reconciliation only.
func (s *Store) SetActive(accountID uint, amountNano int64) (*Balance, error) {
	return s.mutateBalance(accountID, func(b *Balance) error {
		b.ActiveNano = amountNano
		return nil
	})
}
