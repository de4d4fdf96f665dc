package events

import (
	"strconv"

	"tokensale/core/types"
)

const (
	TypeSalePurchased          = "sale.purchased"
	TypeSalePriceUpdated       = "sale.price_updated"
	TypeSaleTreasuryUpdated    = "sale.treasury_updated"
	TypeSalePauseChanged       = "sale.pause_changed"
	TypeSaleInventoryWithdrawn = "sale.inventory_withdrawn"
	TypeSaleAssetRecovered     = "sale.asset_recovered"
	TypeSaleCurrencySwept      = "sale.currency_swept"
	TypeSaleOwnershipInitiated = "sale.ownership_initiated"
	TypeSaleOwnershipAccepted  = "sale.ownership_accepted"
)

// SalePurchased records a settled buy: payment received, asset released.
type SalePurchased struct {
	ReceiptID   string
	Payer       types.Address
	Recipient   types.Address
	PaymentIn   uint64
	AssetOut    uint64
	Price       uint64
	UnitSize    uint64
	TotalRaised uint64
	TotalSold   uint64
}

func (SalePurchased) EventType() string { return TypeSalePurchased }

func (e SalePurchased) Event() *types.Event {
	return &types.Event{
		Type: TypeSalePurchased,
		Attributes: map[string]string{
			"receiptId":   e.ReceiptID,
			"payer":       addr(e.Payer),
			"recipient":   addr(e.Recipient),
			"paymentIn":   strconv.FormatUint(e.PaymentIn, 10),
			"assetOut":    strconv.FormatUint(e.AssetOut, 10),
			"price":       strconv.FormatUint(e.Price, 10),
			"unitSize":    strconv.FormatUint(e.UnitSize, 10),
			"totalRaised": strconv.FormatUint(e.TotalRaised, 10),
			"totalSold":   strconv.FormatUint(e.TotalSold, 10),
		},
	}
}

// SalePriceUpdated records an administrator price change.
type SalePriceUpdated struct {
	Admin    types.Address
	OldPrice uint64
	NewPrice uint64
}

func (SalePriceUpdated) EventType() string { return TypeSalePriceUpdated }

func (e SalePriceUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeSalePriceUpdated,
		Attributes: map[string]string{
			"admin":    addr(e.Admin),
			"oldPrice": strconv.FormatUint(e.OldPrice, 10),
			"newPrice": strconv.FormatUint(e.NewPrice, 10),
		},
	}
}

// SaleTreasuryUpdated records a treasury rotation.
type SaleTreasuryUpdated struct {
	Admin       types.Address
	OldTreasury types.Address
	NewTreasury types.Address
}

func (SaleTreasuryUpdated) EventType() string { return TypeSaleTreasuryUpdated }

func (e SaleTreasuryUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeSaleTreasuryUpdated,
		Attributes: map[string]string{
			"admin":       addr(e.Admin),
			"oldTreasury": addr(e.OldTreasury),
			"newTreasury": addr(e.NewTreasury),
		},
	}
}

// SalePauseChanged records a pause toggle.
type SalePauseChanged struct {
	Admin  types.Address
	Paused bool
}

func (SalePauseChanged) EventType() string { return TypeSalePauseChanged }

func (e SalePauseChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeSalePauseChanged,
		Attributes: map[string]string{
			"admin":  addr(e.Admin),
			"paused": strconv.FormatBool(e.Paused),
		},
	}
}

// SaleInventoryWithdrawn records unsold inventory leaving the engine while
// paused.
type SaleInventoryWithdrawn struct {
	Admin  types.Address
	To     types.Address
	Amount uint64
}

func (SaleInventoryWithdrawn) EventType() string { return TypeSaleInventoryWithdrawn }

func (e SaleInventoryWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeSaleInventoryWithdrawn,
		Attributes: map[string]string{
			"admin":  addr(e.Admin),
			"to":     addr(e.To),
			"amount": strconv.FormatUint(e.Amount, 10),
		},
	}
}

// SaleAssetRecovered records recovery of a foreign asset accidentally held by
// the engine.
type SaleAssetRecovered struct {
	Admin  types.Address
	Asset  string
	To     types.Address
	Amount uint64
}

func (SaleAssetRecovered) EventType() string { return TypeSaleAssetRecovered }

func (e SaleAssetRecovered) Event() *types.Event {
	return &types.Event{
		Type: TypeSaleAssetRecovered,
		Attributes: map[string]string{
			"admin":  addr(e.Admin),
			"asset":  e.Asset,
			"to":     addr(e.To),
			"amount": strconv.FormatUint(e.Amount, 10),
		},
	}
}

// SaleCurrencySwept records base currency swept out of the engine account.
type SaleCurrencySwept struct {
	Admin  types.Address
	To     types.Address
	Amount uint64
}

func (SaleCurrencySwept) EventType() string { return TypeSaleCurrencySwept }

func (e SaleCurrencySwept) Event() *types.Event {
	return &types.Event{
		Type: TypeSaleCurrencySwept,
		Attributes: map[string]string{
			"admin":  addr(e.Admin),
			"to":     addr(e.To),
			"amount": strconv.FormatUint(e.Amount, 10),
		},
	}
}

// SaleOwnershipInitiated records the first half of an administrator handover.
type SaleOwnershipInitiated struct {
	Admin   types.Address
	Pending types.Address
}

func (SaleOwnershipInitiated) EventType() string { return TypeSaleOwnershipInitiated }

func (e SaleOwnershipInitiated) Event() *types.Event {
	return &types.Event{
		Type: TypeSaleOwnershipInitiated,
		Attributes: map[string]string{
			"admin":   addr(e.Admin),
			"pending": addr(e.Pending),
		},
	}
}

// SaleOwnershipAccepted records the pending administrator claiming control.
type SaleOwnershipAccepted struct {
	OldAdmin types.Address
	NewAdmin types.Address
}

func (SaleOwnershipAccepted) EventType() string { return TypeSaleOwnershipAccepted }

func (e SaleOwnershipAccepted) Event() *types.Event {
	return &types.Event{
		Type: TypeSaleOwnershipAccepted,
		Attributes: map[string]string{
			"oldAdmin": addr(e.OldAdmin),
			"newAdmin": addr(e.NewAdmin),
		},
	}
}
