// Package ledgerdb persists the settlement engine's state: accounts,
// balances, withdrawal requests, deposit records, and the task budgets
// reconciliation depends on. SQLite via gorm, one store value owned by
// the engine.
package ledgerdb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrNotFound            = gorm.ErrRecordNotFound
	ErrInsufficientBalance = errors.New("ledgerdb: insufficient balance")
)

// Store wraps the database handle together with the per-account lock
// table every balance mutation must go through.
type Store struct {
	db *gorm.DB

	mu           sync.Mutex
	accountLocks map[uint]*sync.Mutex
}

// Open opens (creating if needed) the SQLite ledger at dbPath and runs
// migrations.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.AutoMigrate(
		&Account{},
		&Balance{},
		&WithdrawalRequest{},
		&DepositRecord{},
		&Task{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db, accountLocks: make(map[uint]*sync.Mutex)}, nil
}

// accountLock returns the mutex guarding one account's balance. The
// ledger for a given account may be mutated by at most one logical
// operation at a time.
func (s *Store) accountLock(accountID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.accountLocks[accountID]
	if !ok {
		l = &sync.Mutex{}
		s.accountLocks[accountID] = l
	}
	return l
}
