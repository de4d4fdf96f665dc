package sale

import (
	"fmt"

	"tokensale/core/types"
)

// normalizeOutcome collapses the heterogeneous success signalling of token
// ledgers into pass/fail. The decision table:
//
//	call error        -> ErrTransferCallFailed
//	nil outcome       -> success (legacy ledgers with no acceptance signal)
//	bool true         -> success
//	bool false        -> ErrTransferDeclined
//	any other shape   -> ErrTransferDeclined
func normalizeOutcome(outcome interface{}, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferCallFailed, err)
	}
	switch v := outcome.(type) {
	case nil:
		return nil
	case bool:
		if v {
			return nil
		}
		return ErrTransferDeclined
	default:
		return fmt.Errorf("%w: unexpected outcome %T", ErrTransferDeclined, outcome)
	}
}

// safeTransfer moves amount from the engine's holdings to the recipient,
// tolerating non-uniform ledger signalling.
func safeTransfer(ledger TokenLedger, from, to types.Address, amount uint64) error {
	outcome, err := ledger.Transfer(from, to, amount)
	return normalizeOutcome(outcome, err)
}

// safeTransferFrom pulls amount between third-party accounts. Only the
// foreign-asset recovery path and the buy compensation path use it.
func safeTransferFrom(ledger TokenLedger, from, to types.Address, amount uint64) error {
	outcome, err := ledger.TransferFrom(from, to, amount)
	return normalizeOutcome(outcome, err)
}
