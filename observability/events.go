// Package observability bridges engine events into logs and metrics without
// coupling the engine to either.
package observability

import (
	"log/slog"

	"tokensale/core/events"
	"tokensale/observability/metrics"
)

// EventBridge implements events.Emitter by logging every event and updating
// the sale metrics for the event types that map to a collector. Delivery is
// fire-and-forget; the bridge never fails the emitting operation.
type EventBridge struct {
	logger *slog.Logger
}

// NewEventBridge builds a bridge around the supplied logger.
func NewEventBridge(logger *slog.Logger) *EventBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBridge{logger: logger}
}

// Emit implements events.Emitter.
func (b *EventBridge) Emit(evt events.Event) {
	if b == nil || evt == nil {
		return
	}
	switch e := evt.(type) {
	case events.SalePurchased:
		metrics.Sale().RecordPurchase(e.PaymentIn, e.AssetOut)
		b.logger.Info("purchase settled",
			slog.String("receipt", e.ReceiptID),
			slog.String("payer", e.Payer.Hex()),
			slog.String("recipient", e.Recipient.Hex()),
			slog.Uint64("paymentIn", e.PaymentIn),
			slog.Uint64("assetOut", e.AssetOut))
	case events.SalePauseChanged:
		metrics.Sale().SetPaused(e.Paused)
		b.logger.Info("pause toggled", slog.Bool("paused", e.Paused))
	case events.SalePriceUpdated:
		b.logger.Info("price updated",
			slog.Uint64("oldPrice", e.OldPrice), slog.Uint64("newPrice", e.NewPrice))
	case events.SaleTreasuryUpdated:
		b.logger.Info("treasury updated",
			slog.String("oldTreasury", e.OldTreasury.Hex()),
			slog.String("newTreasury", e.NewTreasury.Hex()))
	case events.SaleInventoryWithdrawn:
		b.logger.Info("inventory withdrawn",
			slog.String("to", e.To.Hex()), slog.Uint64("amount", e.Amount))
	case events.SaleAssetRecovered:
		b.logger.Info("foreign asset recovered",
			slog.String("asset", e.Asset), slog.String("to", e.To.Hex()),
			slog.Uint64("amount", e.Amount))
	case events.SaleCurrencySwept:
		b.logger.Info("base currency swept",
			slog.String("to", e.To.Hex()), slog.Uint64("amount", e.Amount))
	case events.SaleOwnershipInitiated:
		b.logger.Info("ownership transfer initiated",
			slog.String("pending", e.Pending.Hex()))
	case events.SaleOwnershipAccepted:
		b.logger.Info("ownership transfer accepted",
			slog.String("newAdmin", e.NewAdmin.Hex()))
	default:
		b.logger.Info("event", slog.String("type", evt.EventType()))
	}
}

var _ events.Emitter = (*EventBridge)(nil)
