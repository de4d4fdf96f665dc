package sale

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tokensale/core/events"
	"tokensale/core/types"
)

// Config carries the immutable construction parameters of a sale.
type Config struct {
	// Administrator is the initial privileged identity.
	Administrator types.Address
	// Treasury receives forwarded base currency.
	Treasury types.Address
	// EngineAccount is the ledger account whose balance is the sale inventory.
	EngineAccount types.Address
	// UnitSize is the divisor defining one whole unit of the sale asset in
	// its smallest indivisible amount. Immutable after construction.
	UnitSize uint64
	// PricePerUnit is the base-currency cost of one unit.
	PricePerUnit uint64
}

// Engine sells a fungible asset at an administrator-set fixed rate. It owns
// the sale state exclusively and talks to the asset ledger only through the
// safe-transfer wrapper. A new engine starts paused; the administrator funds
// the inventory and activates it explicitly.
type Engine struct {
	mu    sync.Mutex
	guard callGuard

	state    *State
	store    *StateStore
	asset    TokenLedger
	bank     BaseLedger
	receipts *ReceiptLedger
	emitter  events.Emitter
	logger   *slog.Logger
	nowFn    func() int64
	newID    func() string
}

// NewEngine validates the configuration and constructs a paused engine.
func NewEngine(cfg Config, asset TokenLedger, bank BaseLedger) (*Engine, error) {
	if asset == nil {
		return nil, fmt.Errorf("sale: asset ledger required")
	}
	if bank == nil {
		return nil, fmt.Errorf("sale: base ledger required")
	}
	if cfg.Administrator.IsZero() || cfg.Treasury.IsZero() || cfg.EngineAccount.IsZero() {
		return nil, ErrZeroAddress
	}
	if cfg.UnitSize == 0 {
		return nil, fmt.Errorf("sale: unit size must be positive")
	}
	if cfg.PricePerUnit == 0 {
		return nil, ErrInvalidPrice
	}
	return &Engine{
		state: &State{
			Administrator: cfg.Administrator,
			Treasury:      cfg.Treasury,
			EngineAccount: cfg.EngineAccount,
			UnitSize:      cfg.UnitSize,
			PricePerUnit:  cfg.PricePerUnit,
			Paused:        true,
		},
		asset:   asset,
		bank:    bank,
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		nowFn:   func() int64 { return time.Now().Unix() },
		newID:   uuid.NewString,
	}, nil
}

// AttachStateStore wires durable persistence. When a previously saved state
// exists it is resumed, provided its immutable fields match the current
// configuration; otherwise the fresh state is written through.
func (e *Engine) AttachStateStore(store *StateStore) error {
	if e == nil || store == nil {
		return fmt.Errorf("sale: nil state store")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	saved, ok, err := store.Load()
	if err != nil {
		return err
	}
	if ok {
		if saved.UnitSize != e.state.UnitSize {
			return fmt.Errorf("sale: persisted unit size %d does not match configured %d", saved.UnitSize, e.state.UnitSize)
		}
		if saved.EngineAccount != e.state.EngineAccount {
			return fmt.Errorf("sale: persisted engine account %s does not match configured %s", saved.EngineAccount, e.state.EngineAccount)
		}
		e.state = saved
		e.store = store
		return nil
	}
	e.store = store
	return store.Save(e.state)
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetReceipts wires the purchase receipt ledger. Receipt writes happen after
// settlement and never abort a completed buy.
func (e *Engine) SetReceipts(receipts *ReceiptLedger) { e.receipts = receipts }

// SetLogger overrides the engine logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetIDFunc overrides receipt identifier generation, primarily for tests.
func (e *Engine) SetIDFunc(newID func() string) {
	if newID != nil {
		e.newID = newID
	}
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

// persistLocked writes the current state through the attached store. Callers
// hold e.mu.
func (e *Engine) persistLocked() error {
	if e.store == nil {
		return nil
	}
	return e.store.Save(e.state)
}

func (e *Engine) requireAdminLocked(caller types.Address) error {
	if caller != e.state.Administrator {
		return ErrNotAdministrator
	}
	return nil
}

// Snapshot returns a copy of the current state for read-only consumers.
func (e *Engine) Snapshot() *State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Quote computes the asset amount a payment would purchase at the current
// price. Pure: no side effects, no pause requirement.
func (e *Engine) Quote(paymentAmount uint64) (uint64, error) {
	e.mu.Lock()
	unit, price := e.state.UnitSize, e.state.PricePerUnit
	e.mu.Unlock()
	return MulDiv(paymentAmount, unit, price)
}

// Buy executes a guarded purchase: payment in base currency, asset released
// to the recipient, payment forwarded to the treasury. The operation settles
// entirely or not at all; on any failure the totals are restored and any
// already-released asset is clawed back.
func (e *Engine) Buy(payer, recipient types.Address, paymentAmount, minAssetOut uint64) (uint64, error) {
	if err := e.guard.enter(); err != nil {
		return 0, err
	}
	defer e.guard.exit()

	e.mu.Lock()
	if e.state.Paused {
		e.mu.Unlock()
		return 0, ErrPaused
	}
	if paymentAmount == 0 {
		e.mu.Unlock()
		return 0, ErrZeroPayment
	}
	if recipient.IsZero() {
		e.mu.Unlock()
		return 0, ErrZeroAddress
	}
	unit, price := e.state.UnitSize, e.state.PricePerUnit
	self, treasury := e.state.EngineAccount, e.state.Treasury
	e.mu.Unlock()

	assetAmount, err := MulDiv(paymentAmount, unit, price)
	if err != nil {
		return 0, err
	}
	if assetAmount == 0 {
		return 0, ErrZeroQuote
	}
	if assetAmount < minAssetOut {
		return 0, &SlippageError{MinAssetOut: minAssetOut, Quoted: assetAmount}
	}

	available, err := e.asset.BalanceOf(self)
	if err != nil {
		return 0, fmt.Errorf("sale: read inventory: %w", err)
	}
	if assetAmount > available {
		return 0, &InventoryError{Available: available, Needed: assetAmount}
	}

	// Effects before interactions: the totals reflect the sale before any
	// external call that could re-enter.
	e.mu.Lock()
	prevRaised, prevSold := e.state.TotalInRaised, e.state.TotalOutSold
	raised, err := addChecked(prevRaised, paymentAmount)
	if err != nil {
		e.mu.Unlock()
		return 0, fmt.Errorf("sale: raised total: %w", err)
	}
	sold, err := addChecked(prevSold, assetAmount)
	if err != nil {
		e.mu.Unlock()
		return 0, fmt.Errorf("sale: sold total: %w", err)
	}
	e.state.TotalInRaised, e.state.TotalOutSold = raised, sold
	if err := e.persistLocked(); err != nil {
		e.state.TotalInRaised, e.state.TotalOutSold = prevRaised, prevSold
		e.mu.Unlock()
		return 0, err
	}
	e.mu.Unlock()

	rollback := func() {
		e.mu.Lock()
		e.state.TotalInRaised, e.state.TotalOutSold = prevRaised, prevSold
		if err := e.persistLocked(); err != nil {
			e.logger.Error("sale: rollback persist failed", slog.Any("error", err))
		}
		e.mu.Unlock()
	}

	if err := safeTransfer(e.asset, self, recipient, assetAmount); err != nil {
		rollback()
		return 0, err
	}

	if err := e.bank.Transfer(payer, treasury, paymentAmount); err != nil {
		// Claw the released asset back so the failed operation leaves no
		// trace, then restore the totals.
		compErr := safeTransferFrom(e.asset, recipient, self, assetAmount)
		rollback()
		forwardErr := fmt.Errorf("%w: %v", ErrForwardFailed, err)
		if compErr != nil {
			return 0, errors.Join(forwardErr, fmt.Errorf("sale: compensation failed: %w", compErr))
		}
		return 0, forwardErr
	}

	receiptID := e.recordReceipt(payer, recipient, paymentAmount, assetAmount, price, unit)
	e.emit(events.SalePurchased{
		ReceiptID:   receiptID,
		Payer:       payer,
		Recipient:   recipient,
		PaymentIn:   paymentAmount,
		AssetOut:    assetAmount,
		Price:       price,
		UnitSize:    unit,
		TotalRaised: raised,
		TotalSold:   sold,
	})
	return assetAmount, nil
}

// recordReceipt appends an audit receipt for a settled buy. Settlement is
// already final here, so a receipt failure is logged rather than propagated.
func (e *Engine) recordReceipt(payer, recipient types.Address, paymentIn, assetOut, price, unit uint64) string {
	if e.receipts == nil {
		return ""
	}
	receipt := &Receipt{
		ID:           e.newID(),
		Payer:        payer,
		Recipient:    recipient,
		PaymentIn:    paymentIn,
		AssetOut:     assetOut,
		PricePerUnit: price,
		UnitSize:     unit,
		CreatedAt:    e.nowFn(),
	}
	if err := e.receipts.Put(receipt); err != nil {
		e.logger.Error("sale: receipt write failed",
			slog.String("receipt", receipt.ID), slog.Any("error", err))
		return ""
	}
	return receipt.ID
}

// SetPrice replaces the price per unit. Administrator only; zero is invalid.
func (e *Engine) SetPrice(caller types.Address, newPrice uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAdminLocked(caller); err != nil {
		return err
	}
	if newPrice == 0 {
		return ErrInvalidPrice
	}
	oldPrice := e.state.PricePerUnit
	e.state.PricePerUnit = newPrice
	if err := e.persistLocked(); err != nil {
		e.state.PricePerUnit = oldPrice
		return err
	}
	e.emit(events.SalePriceUpdated{Admin: caller, OldPrice: oldPrice, NewPrice: newPrice})
	return nil
}

// SetTreasury rotates the treasury identity. Administrator only.
func (e *Engine) SetTreasury(caller, newTreasury types.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAdminLocked(caller); err != nil {
		return err
	}
	if newTreasury.IsZero() {
		return ErrZeroAddress
	}
	oldTreasury := e.state.Treasury
	e.state.Treasury = newTreasury
	if err := e.persistLocked(); err != nil {
		e.state.Treasury = oldTreasury
		return err
	}
	e.emit(events.SaleTreasuryUpdated{Admin: caller, OldTreasury: oldTreasury, NewTreasury: newTreasury})
	return nil
}

// SetPaused toggles the pause flag unconditionally. Administrator only.
func (e *Engine) SetPaused(caller types.Address, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAdminLocked(caller); err != nil {
		return err
	}
	prev := e.state.Paused
	e.state.Paused = paused
	if err := e.persistLocked(); err != nil {
		e.state.Paused = prev
		return err
	}
	e.emit(events.SalePauseChanged{Admin: caller, Paused: paused})
	return nil
}

// WithdrawUnsoldInventory removes sale inventory while paused. The pause
// requirement forces an explicit safety checkpoint before draining stock.
func (e *Engine) WithdrawUnsoldInventory(caller, to types.Address, amount uint64) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()

	e.mu.Lock()
	if err := e.requireAdminLocked(caller); err != nil {
		e.mu.Unlock()
		return err
	}
	if !e.state.Paused {
		e.mu.Unlock()
		return ErrNotPaused
	}
	if to.IsZero() {
		e.mu.Unlock()
		return ErrZeroAddress
	}
	self := e.state.EngineAccount
	e.mu.Unlock()

	if err := safeTransfer(e.asset, self, to, amount); err != nil {
		return err
	}
	e.emit(events.SaleInventoryWithdrawn{Admin: caller, To: to, Amount: amount})
	return nil
}

// RecoverForeignAsset returns tokens of an unrelated ledger accidentally held
// by the engine account. The sale asset itself is explicitly excluded so the
// recovery path cannot double as an inventory drain.
func (e *Engine) RecoverForeignAsset(caller types.Address, asset TokenLedger, to types.Address, amount uint64) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()

	e.mu.Lock()
	if err := e.requireAdminLocked(caller); err != nil {
		e.mu.Unlock()
		return err
	}
	if !e.state.Paused {
		e.mu.Unlock()
		return ErrNotPaused
	}
	if asset == nil || to.IsZero() {
		e.mu.Unlock()
		return ErrZeroAddress
	}
	if asset == e.asset {
		e.mu.Unlock()
		return ErrCannotRecoverSaleAsset
	}
	self := e.state.EngineAccount
	e.mu.Unlock()

	if err := safeTransferFrom(asset, self, to, amount); err != nil {
		return err
	}
	e.emit(events.SaleAssetRecovered{Admin: caller, Asset: assetLabel(asset), To: to, Amount: amount})
	return nil
}

// SweepBaseCurrency forwards stray base currency held by the engine account.
// Callable regardless of pause state.
func (e *Engine) SweepBaseCurrency(caller, to types.Address, amount uint64) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()

	e.mu.Lock()
	if err := e.requireAdminLocked(caller); err != nil {
		e.mu.Unlock()
		return err
	}
	if to.IsZero() {
		e.mu.Unlock()
		return ErrZeroAddress
	}
	self := e.state.EngineAccount
	e.mu.Unlock()

	if err := e.bank.Transfer(self, to, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrForwardFailed, err)
	}
	e.emit(events.SaleCurrencySwept{Admin: caller, To: to, Amount: amount})
	return nil
}

func assetLabel(asset TokenLedger) string {
	if named, ok := asset.(interface{ Symbol() string }); ok {
		return named.Symbol()
	}
	return "foreign"
}
