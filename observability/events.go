package observability

import (
	"fmt"
	"log/slog"

	"nftmarket/core/events"
)

// EventRecorder bridges engine events onto structured logs and the prometheus
// registry. It implements events.Emitter and is safe with a nil logger.
type EventRecorder struct {
	logger *slog.Logger
}

// NewEventRecorder builds a recorder that logs through the supplied logger.
func NewEventRecorder(logger *slog.Logger) *EventRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventRecorder{logger: logger}
}

// Emit implements the events.Emitter interface.
func (r *EventRecorder) Emit(evt events.Event) {
	if r == nil || evt == nil {
		return
	}
	logger := r.logger
	if logger == nil {
		logger = slog.Default()
	}
	switch e := evt.(type) {
	case events.TokenMinted:
		Market().RecordMint()
		logger.Info("event", "type", e.EventType(), "token_id", e.TokenID, "owner", hexAddr(e.Owner), "uri", e.URI)
	case events.TokenTransferred:
		Market().RecordTransfer()
		logger.Info("event", "type", e.EventType(), "token_id", e.TokenID, "from", hexAddr(e.From), "to", hexAddr(e.To))
	case events.TokenSold:
		Market().RecordSale(e.Price)
		logger.Info("event", "type", e.EventType(),
			"token_id", e.TokenID,
			"seller", hexAddr(e.Seller),
			"buyer", hexAddr(e.Buyer),
			"price", e.Price.String(),
			"royalty", e.Royalty.String(),
			"platform_fee", e.PlatformFee.String(),
			"seller_amount", e.SellerAmount.String(),
		)
	case events.ListingCancelled:
		Market().RecordCancel()
		logger.Info("event", "type", e.EventType(), "token_id", e.TokenID, "seller", hexAddr(e.Seller))
	default:
		logger.Info("event", "type", evt.EventType())
	}
}

func hexAddr(addr [20]byte) string {
	return fmt.Sprintf("0x%x", addr)
}
