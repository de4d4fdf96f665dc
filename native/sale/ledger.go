package sale

import "tokensale/core/types"

// TokenLedger is the external collaborator holding and moving fungible asset
// balances. Transfer and TransferFrom return a raw outcome because real
// ledger implementations signal success inconsistently: some return nothing,
// some return an acceptance flag, some return garbage. The engine never
// inspects the outcome directly; safeTransfer normalizes it.
type TokenLedger interface {
	BalanceOf(holder types.Address) (uint64, error)
	Transfer(from, to types.Address, amount uint64) (interface{}, error)
	TransferFrom(from, to types.Address, amount uint64) (interface{}, error)
}

// BaseLedger is the payment rail for the base currency. Unlike the asset
// ledger it is trusted to report failure as an error.
type BaseLedger interface {
	BalanceOf(holder types.Address) (uint64, error)
	Transfer(from, to types.Address, amount uint64) error
}
