package repository

import (
	"fmt"
	"sync"

	"github.com/satgate/satgate/internal/models"
)

// MemoryDB is an in-memory challenge ledger for development and tests.
type MemoryDB struct {
	mu         sync.RWMutex
	challenges map[string]*models.Challenge
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{challenges: make(map[string]*models.Challenge)}
}

func (db *MemoryDB) AddChallenge(challenge *models.Challenge) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.challenges[challenge.PaymentHash]; exists {
		return fmt.Errorf("challenge for payment hash %s already recorded", challenge.PaymentHash)
	}
	copied := *challenge
	db.challenges[challenge.PaymentHash] = &copied
	return nil
}

func (db *MemoryDB) GetChallenge(paymentHash string) (*models.Challenge, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	challenge, ok := db.challenges[paymentHash]
	if !ok {
		return nil, fmt.Errorf("challenge not found for payment hash %s", paymentHash)
	}
	copied := *challenge
	return &copied, nil
}

func (db *MemoryDB) MarkSettled(paymentHash string, settledAt int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	challenge, ok := db.challenges[paymentHash]
	if !ok {
		return fmt.Errorf("challenge not found for payment hash %s", paymentHash)
	}
	if !challenge.Settled {
		challenge.Settled = true
		challenge.SettledAt = settledAt
	}
	return nil
}

func (db *MemoryDB) CountChallenges() (int64, int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var settled int64
	for _, challenge := range db.challenges {
		if challenge.Settled {
			settled++
		}
	}
	return int64(len(db.challenges)), settled, nil
}

func (db *MemoryDB) RemoveExpiredChallenges(before int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for hash, challenge := range db.challenges {
		if challenge.ExpiresAt < before && !challenge.Settled {
			delete(db.challenges, hash)
		}
	}
	return nil
}
