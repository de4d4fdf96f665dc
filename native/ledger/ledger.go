// Package ledger provides the in-process fungible ledgers the sale service
// runs against: a token ledger holding the sale asset and a bank moving the
// base currency. Both persist balances through the storage KV layer so saled
// restarts resume with exact holdings.
package ledger

import (
	"fmt"
	"strings"
	"sync"

	"tokensale/core/types"
	"tokensale/storage"
)

// Ledger is a KV-backed fungible token ledger. It signals transfer acceptance
// with an explicit boolean outcome, the conforming shape the sale engine's
// safe-transfer wrapper expects.
type Ledger struct {
	mu     sync.Mutex
	kv     storage.KVStore
	symbol string
}

// NewLedger constructs a ledger for the given asset symbol.
func NewLedger(kv storage.KVStore, symbol string) (*Ledger, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return nil, fmt.Errorf("ledger: symbol required")
	}
	if kv == nil {
		return nil, fmt.Errorf("ledger: storage required")
	}
	return &Ledger{kv: kv, symbol: trimmed}, nil
}

// Symbol returns the asset symbol this ledger tracks.
func (l *Ledger) Symbol() string { return l.symbol }

func (l *Ledger) balanceKey(holder types.Address) []byte {
	return []byte("ledger/" + l.symbol + "/balance/" + holder.Hex())
}

func (l *Ledger) readBalance(holder types.Address) (uint64, error) {
	var balance uint64
	if _, err := l.kv.KVGet(l.balanceKey(holder), &balance); err != nil {
		return 0, err
	}
	return balance, nil
}

func (l *Ledger) writeBalance(holder types.Address, balance uint64) error {
	return l.kv.KVPut(l.balanceKey(holder), balance)
}

// BalanceOf returns the holdings of the supplied account.
func (l *Ledger) BalanceOf(holder types.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readBalance(holder)
}

// Mint credits freshly issued tokens to an account. Used to fund the sale
// inventory at genesis.
func (l *Ledger) Mint(to types.Address, amount uint64) error {
	if to.IsZero() {
		return fmt.Errorf("ledger: mint to zero address")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, err := l.readBalance(to)
	if err != nil {
		return err
	}
	updated := balance + amount
	if updated < balance {
		return fmt.Errorf("ledger: balance overflow for %s", to)
	}
	return l.writeBalance(to, updated)
}

// Transfer moves amount between accounts. It returns false, not an error,
// when the sender's balance is short: execution succeeded but the ledger
// declined the move.
func (l *Ledger) Transfer(from, to types.Address, amount uint64) (interface{}, error) {
	return l.move(from, to, amount)
}

// TransferFrom mirrors Transfer for custodial pulls; the sale engine is the
// custodian for every account it touches through this path.
func (l *Ledger) TransferFrom(from, to types.Address, amount uint64) (interface{}, error) {
	return l.move(from, to, amount)
}

func (l *Ledger) move(from, to types.Address, amount uint64) (interface{}, error) {
	if from.IsZero() || to.IsZero() {
		return false, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fromBalance, err := l.readBalance(from)
	if err != nil {
		return nil, err
	}
	if fromBalance < amount {
		return false, nil
	}
	toBalance, err := l.readBalance(to)
	if err != nil {
		return nil, err
	}
	updated := toBalance + amount
	if updated < toBalance {
		return nil, fmt.Errorf("ledger: balance overflow for %s", to)
	}
	if err := l.writeBalance(from, fromBalance-amount); err != nil {
		return nil, err
	}
	if err := l.writeBalance(to, updated); err != nil {
		return nil, err
	}
	return true, nil
}
