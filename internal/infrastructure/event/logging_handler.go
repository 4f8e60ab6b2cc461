package event

import (
	"context"

	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/domain/shared"
	"github.com/erp/listingsync/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// LoggingHandler writes one audit line per listing status event
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a LoggingHandler writing to base
func NewLoggingHandler(base *zap.Logger) *LoggingHandler {
	if base == nil {
		base = zap.NewNop()
	}
	return &LoggingHandler{logger: base}
}

// Handle implements shared.EventHandler
func (h *LoggingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	changed, ok := event.(*integration.ListingStatusChangedEvent)
	if !ok {
		return nil
	}

	log := h.logger
	if requestID := logger.GetRequestID(ctx); requestID != "" {
		log = log.With(zap.String("request_id", requestID))
	}
	fields := logger.ListingAudit(string(changed.Platform), changed.SalesChannelID.String(), "", string(changed.Action))
	fields = append(fields,
		zap.String("event_id", changed.EventID().String()),
		zap.String("listing_id", changed.ListingID.String()),
		zap.String("from_status", string(changed.FromStatus)),
		zap.String("to_status", string(changed.ToStatus)),
		zap.Bool("success", changed.Success),
	)
	if changed.Message != "" {
		fields = append(fields, zap.String("message", changed.Message))
	}

	log = logger.WithTraceContext(ctx, log)
	if changed.Transitioned() {
		log.Info("Listing status changed", fields...)
		return nil
	}
	log.Debug("Listing status unchanged", fields...)
	return nil
}

// EventTypes implements shared.EventHandler
func (h *LoggingHandler) EventTypes() []string {
	return []string{integration.EventTypeListingStatusChanged}
}
