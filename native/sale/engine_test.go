package sale

import (
	"errors"
	"fmt"
	"testing"

	"tokensale/core/events"
	"tokensale/core/types"
	"tokensale/storage"
)

var (
	adminAddr    = types.Address{0xA1}
	treasuryAddr = types.Address{0xB2}
	engineAddr   = types.Address{0xC3}
	payerAddr    = types.Address{0xD4}
	buyerAddr    = types.Address{0xE5}
	otherAddr    = types.Address{0xF6}
)

type testToken struct {
	balances    map[types.Address]uint64
	legacy      bool
	decline     bool
	callErr     error
	fromErr     error
	declineFrom bool
	hook        func(from, to types.Address, amount uint64)
}

func newTestToken() *testToken {
	return &testToken{balances: make(map[types.Address]uint64)}
}

func (tt *testToken) BalanceOf(holder types.Address) (uint64, error) {
	return tt.balances[holder], nil
}

func (tt *testToken) Transfer(from, to types.Address, amount uint64) (interface{}, error) {
	if tt.hook != nil {
		tt.hook(from, to, amount)
	}
	if tt.callErr != nil {
		return nil, tt.callErr
	}
	if tt.decline {
		return false, nil
	}
	if tt.balances[from] < amount {
		return false, nil
	}
	tt.balances[from] -= amount
	tt.balances[to] += amount
	if tt.legacy {
		return nil, nil
	}
	return true, nil
}

func (tt *testToken) TransferFrom(from, to types.Address, amount uint64) (interface{}, error) {
	if tt.fromErr != nil {
		return nil, tt.fromErr
	}
	if tt.declineFrom {
		return false, nil
	}
	if tt.balances[from] < amount {
		return false, nil
	}
	tt.balances[from] -= amount
	tt.balances[to] += amount
	return true, nil
}

type testBank struct {
	balances map[types.Address]uint64
	failErr  error
}

func newTestBank() *testBank {
	return &testBank{balances: make(map[types.Address]uint64)}
}

func (tb *testBank) BalanceOf(holder types.Address) (uint64, error) {
	return tb.balances[holder], nil
}

func (tb *testBank) Transfer(from, to types.Address, amount uint64) error {
	if tb.failErr != nil {
		return tb.failErr
	}
	if tb.balances[from] < amount {
		return fmt.Errorf("insufficient funds for %s", from)
	}
	tb.balances[from] -= amount
	tb.balances[to] += amount
	return nil
}

type fixture struct {
	engine *Engine
	token  *testToken
	bank   *testBank
	events *events.CollectingEmitter
}

func newFixture(t *testing.T, inventory, unitSize, price uint64) *fixture {
	t.Helper()
	token := newTestToken()
	token.balances[engineAddr] = inventory
	bank := newTestBank()
	bank.balances[payerAddr] = 1 << 40
	engine, err := NewEngine(Config{
		Administrator: adminAddr,
		Treasury:      treasuryAddr,
		EngineAccount: engineAddr,
		UnitSize:      unitSize,
		PricePerUnit:  price,
	}, token, bank)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	collector := &events.CollectingEmitter{}
	engine.SetEmitter(collector)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	return &fixture{engine: engine, token: token, bank: bank, events: collector}
}

func (f *fixture) activate(t *testing.T) {
	t.Helper()
	if err := f.engine.SetPaused(adminAddr, false); err != nil {
		t.Fatalf("unpause: %v", err)
	}
}

func (f *fixture) totals(t *testing.T) (uint64, uint64) {
	t.Helper()
	state := f.engine.Snapshot()
	return state.TotalInRaised, state.TotalOutSold
}

func TestEngineStartsPaused(t *testing.T) {
	f := newFixture(t, 100, 1, 100)
	if !f.engine.Snapshot().Paused {
		t.Fatal("expected a fresh engine to start paused")
	}
	if _, err := f.engine.Buy(payerAddr, buyerAddr, 1000, 0); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}
	if raised, sold := f.totals(t); raised != 0 || sold != 0 {
		t.Fatalf("totals changed on rejected buy: %d/%d", raised, sold)
	}
}

func TestEngineConstructionValidation(t *testing.T) {
	token := newTestToken()
	bank := newTestBank()
	base := Config{Administrator: adminAddr, Treasury: treasuryAddr, EngineAccount: engineAddr, UnitSize: 1, PricePerUnit: 1}

	cfg := base
	cfg.UnitSize = 0
	if _, err := NewEngine(cfg, token, bank); err == nil {
		t.Fatal("expected zero unit size to be rejected")
	}
	cfg = base
	cfg.PricePerUnit = 0
	if _, err := NewEngine(cfg, token, bank); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
	cfg = base
	cfg.Treasury = types.ZeroAddress
	if _, err := NewEngine(cfg, token, bank); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
	if _, err := NewEngine(base, nil, bank); err == nil {
		t.Fatal("expected nil asset ledger to be rejected")
	}
}

func TestBuyInputValidation(t *testing.T) {
	f := newFixture(t, 100, 1, 100)
	f.activate(t)

	if _, err := f.engine.Buy(payerAddr, buyerAddr, 0, 0); !errors.Is(err, ErrZeroPayment) {
		t.Fatalf("expected ErrZeroPayment, got %v", err)
	}
	if _, err := f.engine.Buy(payerAddr, types.ZeroAddress, 1000, 0); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
	// 50 * 1 / 100 floors to zero.
	if _, err := f.engine.Buy(payerAddr, buyerAddr, 50, 0); !errors.Is(err, ErrZeroQuote) {
		t.Fatalf("expected ErrZeroQuote, got %v", err)
	}
	if raised, sold := f.totals(t); raised != 0 || sold != 0 {
		t.Fatalf("totals changed on rejected buys: %d/%d", raised, sold)
	}
}

func TestBuySlippage(t *testing.T) {
	f := newFixture(t, 100, 1, 100)
	f.activate(t)

	_, err := f.engine.Buy(payerAddr, buyerAddr, 1000, 11)
	var slip *SlippageError
	if !errors.As(err, &slip) {
		t.Fatalf("expected SlippageError, got %v", err)
	}
	if slip.Quoted != 10 || slip.MinAssetOut != 11 {
		t.Fatalf("unexpected slippage detail: %+v", slip)
	}
	if !errors.Is(err, ErrSlippageExceeded) {
		t.Fatalf("expected ErrSlippageExceeded match, got %v", err)
	}
	if raised, sold := f.totals(t); raised != 0 || sold != 0 {
		t.Fatalf("totals changed on rejected buy: %d/%d", raised, sold)
	}
}

func TestBuyInventoryBound(t *testing.T) {
	f := newFixture(t, 5, 1, 100)
	f.activate(t)

	_, err := f.engine.Buy(payerAddr, buyerAddr, 1000, 0)
	var inv *InventoryError
	if !errors.As(err, &inv) {
		t.Fatalf("expected InventoryError, got %v", err)
	}
	if inv.Available != 5 || inv.Needed != 10 {
		t.Fatalf("unexpected inventory detail: %+v", inv)
	}
	if raised, sold := f.totals(t); raised != 0 || sold != 0 {
		t.Fatalf("totals changed on rejected buy: %d/%d", raised, sold)
	}
}

func TestBuyConversionOverflow(t *testing.T) {
	f := newFixture(t, 100, ^uint64(0), 1)
	f.activate(t)
	if _, err := f.engine.Buy(payerAddr, buyerAddr, 2, 0); !errors.Is(err, ErrMulDivOverflow) {
		t.Fatalf("expected ErrMulDivOverflow, got %v", err)
	}
}

func TestBuyConservation(t *testing.T) {
	f := newFixture(t, 1000, 1, 100)
	f.activate(t)

	payments := []uint64{1000, 250, 777}
	var wantRaised, wantSold uint64
	for _, payment := range payments {
		assetOut, err := f.engine.Buy(payerAddr, buyerAddr, payment, 0)
		if err != nil {
			t.Fatalf("buy %d: %v", payment, err)
		}
		if assetOut != payment/100 {
			t.Fatalf("buy %d: unexpected asset out %d", payment, assetOut)
		}
		wantRaised += payment
		wantSold += assetOut
	}
	raised, sold := f.totals(t)
	if raised != wantRaised || sold != wantSold {
		t.Fatalf("totals %d/%d, want %d/%d", raised, sold, wantRaised, wantSold)
	}
	if got := f.token.balances[engineAddr]; got != 1000-wantSold {
		t.Fatalf("inventory %d, want %d", got, 1000-wantSold)
	}
	if got := f.token.balances[buyerAddr]; got != wantSold {
		t.Fatalf("buyer holdings %d, want %d", got, wantSold)
	}
	if got := f.bank.balances[treasuryAddr]; got != wantRaised {
		t.Fatalf("treasury %d, want %d", got, wantRaised)
	}

	var purchases int
	for _, evt := range f.events.Events {
		if _, ok := evt.(events.SalePurchased); ok {
			purchases++
		}
	}
	if purchases != len(payments) {
		t.Fatalf("expected %d purchase events, got %d", len(payments), purchases)
	}
}

func TestBuyLegacyLedgerSignalling(t *testing.T) {
	f := newFixture(t, 100, 1, 100)
	f.token.legacy = true
	f.activate(t)
	assetOut, err := f.engine.Buy(payerAddr, buyerAddr, 1000, 10)
	if err != nil {
		t.Fatalf("buy against legacy ledger: %v", err)
	}
	if assetOut != 10 {
		t.Fatalf("unexpected asset out %d", assetOut)
	}
}

func TestBuyDeclinedTransferRollsBack(t *testing.T) {
	f := newFixture(t, 100, 1, 100)
	f.token.decline = true
	f.activate(t)

	if _, err := f.engine.Buy(payerAddr, buyerAddr, 1000, 0); !errors.Is(err, ErrTransferDeclined) {
		t.Fatalf("expected ErrTransferDeclined, got %v", err)
	}
	if raised, sold := f.totals(t); raised != 0 || sold != 0 {
		t.Fatalf("totals not rolled back: %d/%d", raised, sold)
	}
	if got := f.token.balances[engineAddr]; got != 100 {
		t.Fatalf("inventory changed: %d", got)
	}
}

func TestBuyTransferCallFailureRollsBack(t *testing.T) {
	f := newFixture(t, 100, 1, 100)
	f.token.callErr = fmt.Errorf("ledger offline")
	f.activate(t)

	if _, err := f.engine.Buy(payerAddr, buyerAddr, 1000, 0); !errors.Is(err, ErrTransferCallFailed) {
		t.Fatalf("expected ErrTransferCallFailed, got %v", err)
	}
	if raised, sold := f.totals(t); raised != 0 || sold != 0 {
		t.Fatalf("totals not rolled back: %d/%d", raised, sold)
	}
}

func TestBuyForwardFailureCompensates(t *testing.T) {
	f := newFixture(t, 100, 1, 100)
	f.bank.failErr = fmt.Errorf("treasury unreachable")
	f.activate(t)

	if _, err := f.engine.Buy(payerAddr, buyerAddr, 1000, 0); !errors.Is(err, ErrForwardFailed) {
		t.Fatalf("expected ErrForwardFailed, got %v", err)
	}
	if raised, sold := f.totals(t); raised != 0 || sold != 0 {
		t.Fatalf("totals not rolled back: %d/%d", raised, sold)
	}
	if got := f.token.balances[engineAddr]; got != 100 {
		t.Fatalf("asset not clawed back, inventory %d", got)
	}
	if got := f.token.balances[buyerAddr]; got != 0 {
		t.Fatalf("buyer kept %d after failed forward", got)
	}
}

func TestBuyReentrancyRejected(t *testing.T) {
	f := newFixture(t, 100, 1, 100)
	f.activate(t)

	var nestedErr error
	f.token.hook = func(types.Address, types.Address, uint64) {
		// A hostile ledger re-enters the buy path from its transfer callback.
		_, nestedErr = f.engine.Buy(payerAddr, buyerAddr, 100, 0)
	}
	assetOut, err := f.engine.Buy(payerAddr, buyerAddr, 1000, 0)
	if err != nil {
		t.Fatalf("outer buy: %v", err)
	}
	if assetOut != 10 {
		t.Fatalf("outer buy asset out %d", assetOut)
	}
	if !errors.Is(nestedErr, ErrReentrancy) {
		t.Fatalf("expected nested ErrReentrancy, got %v", nestedErr)
	}
	if raised, sold := f.totals(t); raised != 1000 || sold != 10 {
		t.Fatalf("outer buy accounting wrong: %d/%d", raised, sold)
	}
}

func TestQuoteIsPure(t *testing.T) {
	f := newFixture(t, 0, 1, 100)
	// Quoting works while paused and with empty inventory.
	assetOut, err := f.engine.Quote(1000)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if assetOut != 10 {
		t.Fatalf("quote %d, want 10", assetOut)
	}
	if raised, sold := f.totals(t); raised != 0 || sold != 0 {
		t.Fatalf("quote mutated totals: %d/%d", raised, sold)
	}
}

func TestSetPrice(t *testing.T) {
	f := newFixture(t, 100, 1, 100)
	if err := f.engine.SetPrice(otherAddr, 200); !errors.Is(err, ErrNotAdministrator) {
		t.Fatalf("expected ErrNotAdministrator, got %v", err)
	}
	if err := f.engine.SetPrice(adminAddr, 0); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
	if err := f.engine.SetPrice(adminAddr, 50); err != nil {
		t.Fatalf("set price: %v", err)
	}
	if got := f.engine.Snapshot().PricePerUnit; got != 50 {
		t.Fatalf("price %d, want 50", got)
	}
	assetOut, err := f.engine.Quote(1000)
	if err != nil || assetOut != 20 {
		t.Fatalf("quote after reprice: %d err=%v", assetOut, err)
	}
}

func TestSetTreasury(t *testing.T) {
	f := newFixture(t, 100, 1, 100)
	if err := f.engine.SetTreasury(adminAddr, types.ZeroAddress); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
	if err := f.engine.SetTreasury(otherAddr, otherAddr); !errors.Is(err, ErrNotAdministrator) {
		t.Fatalf("expected ErrNotAdministrator, got %v", err)
	}
	if err := f.engine.SetTreasury(adminAddr, otherAddr); err != nil {
		t.Fatalf("set treasury: %v", err)
	}
	f.activate(t)
	if _, err := f.engine.Buy(payerAddr, buyerAddr, 1000, 0); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if got := f.bank.balances[otherAddr]; got != 1000 {
		t.Fatalf("rotated treasury received %d, want 1000", got)
	}
}

func TestWithdrawRequiresPause(t *testing.T) {
	f := newFixture(t, 100, 1, 100)
	if err := f.engine.WithdrawUnsoldInventory(otherAddr, otherAddr, 10); !errors.Is(err, ErrNotAdministrator) {
		t.Fatalf("expected ErrNotAdministrator, got %v", err)
	}
	if err := f.engine.WithdrawUnsoldInventory(adminAddr, otherAddr, 10); err != nil {
		t.Fatalf("withdraw while paused: %v", err)
	}
	if got := f.token.balances[otherAddr]; got != 10 {
		t.Fatalf("withdrawn %d, want 10", got)
	}
	f.activate(t)
	if err := f.engine.WithdrawUnsoldInventory(adminAddr, otherAddr, 10); !errors.Is(err, ErrNotPaused) {
		t.Fatalf("expected ErrNotPaused, got %v", err)
	}
}

func TestRecoverForeignAsset(t *testing.T) {
	f := newFixture(t, 100, 1, 100)
	foreign := newTestToken()
	foreign.balances[engineAddr] = 40

	if err := f.engine.RecoverForeignAsset(adminAddr, f.token, otherAddr, 10); !errors.Is(err, ErrCannotRecoverSaleAsset) {
		t.Fatalf("expected ErrCannotRecoverSaleAsset, got %v", err)
	}
	if err := f.engine.RecoverForeignAsset(adminAddr, foreign, otherAddr, 40); err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got := foreign.balances[otherAddr]; got != 40 {
		t.Fatalf("recovered %d, want 40", got)
	}
	f.activate(t)
	if err := f.engine.RecoverForeignAsset(adminAddr, foreign, otherAddr, 1); !errors.Is(err, ErrNotPaused) {
		t.Fatalf("expected ErrNotPaused, got %v", err)
	}
}

func TestSweepBaseCurrencyAnyPauseState(t *testing.T) {
	f := newFixture(t, 100, 1, 100)
	f.bank.balances[engineAddr] = 500

	if err := f.engine.SweepBaseCurrency(otherAddr, otherAddr, 100); !errors.Is(err, ErrNotAdministrator) {
		t.Fatalf("expected ErrNotAdministrator, got %v", err)
	}
	if err := f.engine.SweepBaseCurrency(adminAddr, otherAddr, 100); err != nil {
		t.Fatalf("sweep while paused: %v", err)
	}
	f.activate(t)
	if err := f.engine.SweepBaseCurrency(adminAddr, otherAddr, 100); err != nil {
		t.Fatalf("sweep while active: %v", err)
	}
	if got := f.bank.balances[otherAddr]; got != 200 {
		t.Fatalf("swept %d, want 200", got)
	}
	f.bank.failErr = fmt.Errorf("rail down")
	if err := f.engine.SweepBaseCurrency(adminAddr, otherAddr, 100); !errors.Is(err, ErrForwardFailed) {
		t.Fatalf("expected ErrForwardFailed, got %v", err)
	}
}

func TestTwoStepOwnership(t *testing.T) {
	f := newFixture(t, 100, 1, 100)

	if err := f.engine.InitiateOwnershipTransfer(otherAddr, buyerAddr); !errors.Is(err, ErrNotAdministrator) {
		t.Fatalf("expected ErrNotAdministrator, got %v", err)
	}
	if err := f.engine.InitiateOwnershipTransfer(adminAddr, types.ZeroAddress); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
	if err := f.engine.AcceptOwnershipTransfer(buyerAddr); !errors.Is(err, ErrNotPendingAdministrator) {
		t.Fatalf("expected ErrNotPendingAdministrator with no pending, got %v", err)
	}
	if err := f.engine.InitiateOwnershipTransfer(adminAddr, buyerAddr); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if got := f.engine.Snapshot().PendingAdministrator; got != buyerAddr {
		t.Fatalf("pending %s, want %s", got, buyerAddr)
	}
	if err := f.engine.AcceptOwnershipTransfer(otherAddr); !errors.Is(err, ErrNotPendingAdministrator) {
		t.Fatalf("expected ErrNotPendingAdministrator, got %v", err)
	}
	if err := f.engine.AcceptOwnershipTransfer(buyerAddr); err != nil {
		t.Fatalf("accept: %v", err)
	}
	state := f.engine.Snapshot()
	if state.Administrator != buyerAddr {
		t.Fatalf("administrator %s, want %s", state.Administrator, buyerAddr)
	}
	if !state.PendingAdministrator.IsZero() {
		t.Fatalf("pending not cleared: %s", state.PendingAdministrator)
	}
	// The previous administrator loses its privileges.
	if err := f.engine.SetPrice(adminAddr, 1); !errors.Is(err, ErrNotAdministrator) {
		t.Fatalf("expected old admin to be rejected, got %v", err)
	}
	if err := f.engine.SetPrice(buyerAddr, 1); err != nil {
		t.Fatalf("new admin rejected: %v", err)
	}
}

func TestStatePersistenceResume(t *testing.T) {
	kv := storage.NewManager(storage.NewMemDB())
	f := newFixture(t, 1000, 1, 100)
	if err := f.engine.AttachStateStore(NewStateStore(kv)); err != nil {
		t.Fatalf("attach store: %v", err)
	}
	if err := f.engine.SetPrice(adminAddr, 50); err != nil {
		t.Fatalf("set price: %v", err)
	}
	f.activate(t)
	if _, err := f.engine.Buy(payerAddr, buyerAddr, 1000, 0); err != nil {
		t.Fatalf("buy: %v", err)
	}

	resumed := newFixture(t, 1000, 1, 100)
	if err := resumed.engine.AttachStateStore(NewStateStore(kv)); err != nil {
		t.Fatalf("attach store on resume: %v", err)
	}
	state := resumed.engine.Snapshot()
	if state.PricePerUnit != 50 {
		t.Fatalf("resumed price %d, want 50", state.PricePerUnit)
	}
	if state.Paused {
		t.Fatal("resumed engine unexpectedly paused")
	}
	if state.TotalInRaised != 1000 || state.TotalOutSold != 20 {
		t.Fatalf("resumed totals %d/%d", state.TotalInRaised, state.TotalOutSold)
	}
}

func TestStatePersistenceRejectsMismatchedUnitSize(t *testing.T) {
	kv := storage.NewManager(storage.NewMemDB())
	f := newFixture(t, 1000, 1, 100)
	if err := f.engine.AttachStateStore(NewStateStore(kv)); err != nil {
		t.Fatalf("attach store: %v", err)
	}
	mismatched := newFixture(t, 1000, 2, 100)
	if err := mismatched.engine.AttachStateStore(NewStateStore(kv)); err == nil {
		t.Fatal("expected unit size mismatch to be rejected")
	}
}

func TestBuyWritesReceipt(t *testing.T) {
	kv := storage.NewManager(storage.NewMemDB())
	f := newFixture(t, 100, 1, 100)
	receipts := NewReceiptLedger(kv)
	f.engine.SetReceipts(receipts)
	f.engine.SetIDFunc(func() string { return "receipt-1" })
	f.activate(t)

	if _, err := f.engine.Buy(payerAddr, buyerAddr, 1000, 0); err != nil {
		t.Fatalf("buy: %v", err)
	}
	receipt, ok, err := receipts.Get("receipt-1")
	if err != nil || !ok {
		t.Fatalf("get receipt: ok=%v err=%v", ok, err)
	}
	if receipt.Payer != payerAddr || receipt.Recipient != buyerAddr {
		t.Fatalf("unexpected parties: %+v", receipt)
	}
	if receipt.PaymentIn != 1000 || receipt.AssetOut != 10 {
		t.Fatalf("unexpected amounts: %+v", receipt)
	}
	if receipt.CreatedAt != 1_700_000_000 {
		t.Fatalf("unexpected timestamp %d", receipt.CreatedAt)
	}
}
