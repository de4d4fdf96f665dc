package sale

import (
	"errors"
	"fmt"
)

var (
	// ErrReentrancy indicates a guarded operation was invoked while another
	// guarded operation was still in flight.
	ErrReentrancy = errors.New("sale: reentrant call")
	// ErrPaused indicates a buy was attempted while the sale is paused.
	ErrPaused = errors.New("sale: paused")
	// ErrNotPaused indicates an admin recovery or withdrawal was attempted
	// while the sale is active.
	ErrNotPaused = errors.New("sale: not paused")
	// ErrZeroPayment indicates a buy with a zero payment amount.
	ErrZeroPayment = errors.New("sale: zero payment")
	// ErrZeroAddress indicates a null identity where a real one is required.
	ErrZeroAddress = errors.New("sale: zero address")
	// ErrZeroQuote indicates the payment is too small to purchase any asset
	// at the current price.
	ErrZeroQuote = errors.New("sale: zero quote")
	// ErrInvalidPrice indicates an administrator attempted to set a zero price.
	ErrInvalidPrice = errors.New("sale: invalid price")
	// ErrMulDivOverflow indicates the exact conversion result does not fit a
	// 64-bit amount. Non-retryable: the price or unit size is misconfigured.
	ErrMulDivOverflow = errors.New("sale: muldiv overflow")
	// ErrDivisionByZero indicates a conversion against a zero divisor.
	ErrDivisionByZero = errors.New("sale: division by zero")
	// ErrTransferCallFailed indicates the ledger collaborator could not
	// execute a transfer at all.
	ErrTransferCallFailed = errors.New("sale: transfer call failed")
	// ErrTransferDeclined indicates the ledger executed the transfer call but
	// signalled rejection.
	ErrTransferDeclined = errors.New("sale: transfer declined")
	// ErrForwardFailed indicates base currency could not be forwarded.
	ErrForwardFailed = errors.New("sale: currency forward failed")
	// ErrCannotRecoverSaleAsset indicates an attempt to "recover" the sale
	// inventory itself through the foreign-asset path.
	ErrCannotRecoverSaleAsset = errors.New("sale: cannot recover sale asset")
	// ErrNotAdministrator indicates a privileged operation from a caller that
	// is not the administrator.
	ErrNotAdministrator = errors.New("sale: caller is not the administrator")
	// ErrNotPendingAdministrator indicates an ownership acceptance from a
	// caller other than the pending administrator.
	ErrNotPendingAdministrator = errors.New("sale: caller is not the pending administrator")
	// ErrSlippageExceeded is the match target for SlippageError.
	ErrSlippageExceeded = errors.New("sale: slippage exceeded")
	// ErrInsufficientInventory is the match target for InventoryError.
	ErrInsufficientInventory = errors.New("sale: insufficient inventory")
)

// SlippageError reports a quote that fell below the caller's floor.
type SlippageError struct {
	MinAssetOut uint64
	Quoted      uint64
}

func (e *SlippageError) Error() string {
	return fmt.Sprintf("sale: slippage exceeded: quoted %d below minimum %d", e.Quoted, e.MinAssetOut)
}

func (e *SlippageError) Unwrap() error { return ErrSlippageExceeded }

// InventoryError reports a purchase that exceeds the engine's holdings.
type InventoryError struct {
	Available uint64
	Needed    uint64
}

func (e *InventoryError) Error() string {
	return fmt.Sprintf("sale: insufficient inventory: need %d, have %d", e.Needed, e.Available)
}

func (e *InventoryError) Unwrap() error { return ErrInsufficientInventory }
