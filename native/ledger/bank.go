package ledger

import (
	"fmt"
	"sync"

	"tokensale/core/types"
	"tokensale/storage"
)

// Bank is the base-currency rail. Unlike the token ledger it reports failure
// as an error, matching the trusted-forwarding contract of the sale engine.
type Bank struct {
	mu sync.Mutex
	kv storage.KVStore
}

// NewBank constructs a bank over the supplied storage backend.
func NewBank(kv storage.KVStore) (*Bank, error) {
	if kv == nil {
		return nil, fmt.Errorf("ledger: storage required")
	}
	return &Bank{kv: kv}, nil
}

func (b *Bank) balanceKey(holder types.Address) []byte {
	return []byte("bank/balance/" + holder.Hex())
}

func (b *Bank) readBalance(holder types.Address) (uint64, error) {
	var balance uint64
	if _, err := b.kv.KVGet(b.balanceKey(holder), &balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// BalanceOf returns the base-currency holdings of an account.
func (b *Bank) BalanceOf(holder types.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readBalance(holder)
}

// Deposit credits base currency to an account.
func (b *Bank) Deposit(to types.Address, amount uint64) error {
	if to.IsZero() {
		return fmt.Errorf("ledger: deposit to zero address")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	balance, err := b.readBalance(to)
	if err != nil {
		return err
	}
	updated := balance + amount
	if updated < balance {
		return fmt.Errorf("ledger: balance overflow for %s", to)
	}
	return b.kv.KVPut(b.balanceKey(to), updated)
}

// Transfer moves base currency between accounts, failing when the payer's
// balance is short.
func (b *Bank) Transfer(from, to types.Address, amount uint64) error {
	if from.IsZero() || to.IsZero() {
		return fmt.Errorf("ledger: transfer with zero address")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	fromBalance, err := b.readBalance(from)
	if err != nil {
		return err
	}
	if fromBalance < amount {
		return fmt.Errorf("ledger: insufficient funds: %s has %d, needs %d", from, fromBalance, amount)
	}
	toBalance, err := b.readBalance(to)
	if err != nil {
		return err
	}
	updated := toBalance + amount
	if updated < toBalance {
		return fmt.Errorf("ledger: balance overflow for %s", to)
	}
	if err := b.kv.KVPut(b.balanceKey(from), fromBalance-amount); err != nil {
		return err
	}
	return b.kv.KVPut(b.balanceKey(to), updated)
}
