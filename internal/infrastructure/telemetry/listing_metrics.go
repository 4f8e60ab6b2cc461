package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/domain/shared"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when ListingMetrics is built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// ListingMetrics records marketplace call metrics and listing transitions.
// It is the CallRecorder handed to the adapters and an event handler for
// ListingStatusChanged.
type ListingMetrics struct {
	logger       *zap.Logger
	callsTotal   *Counter
	callDuration *Histogram
	transitions  *Counter
}

// NewListingMetrics registers the listing instruments on meter
func NewListingMetrics(meter metric.Meter, logger *zap.Logger) (*ListingMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	callsTotal, err := NewCounter(meter,
		"listing_marketplace_calls_total",
		"Marketplace adapter calls by platform, action and outcome",
		"{calls}",
	)
	if err != nil {
		return nil, err
	}
	callDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "listing_marketplace_call_duration_seconds",
		Description: "Duration of marketplace adapter calls",
		Unit:        "s",
		Boundaries:  MarketplaceDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	transitions, err := NewCounter(meter,
		"listing_status_transitions_total",
		"Persisted listing status transitions",
		"{transitions}",
	)
	if err != nil {
		return nil, err
	}

	return &ListingMetrics{
		logger:       logger,
		callsTotal:   callsTotal,
		callDuration: callDuration,
		transitions:  transitions,
	}, nil
}

// RecordCall records one adapter call
func (m *ListingMetrics) RecordCall(ctx context.Context, platform, action string, success bool, elapsed time.Duration) {
	outcome := OutcomeSuccess
	if !success {
		outcome = OutcomeFailure
	}
	m.callsTotal.Inc(ctx, AttrPlatform.String(platform), AttrAction.String(action), AttrOutcome.String(outcome))
	m.callDuration.RecordDuration(ctx, elapsed, AttrPlatform.String(platform), AttrAction.String(action))
}

// EventTypes implements shared.EventHandler
func (m *ListingMetrics) EventTypes() []string {
	return []string{integration.EventTypeListingStatusChanged}
}

// Handle counts a listing transition. Calls that left the status unchanged are skipped.
func (m *ListingMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	changed, ok := event.(*integration.ListingStatusChangedEvent)
	if !ok {
		m.logger.Debug("listing metrics ignored event", zap.String("event_type", event.EventType()))
		return nil
	}
	if !changed.Transitioned() {
		return nil
	}
	m.transitions.Inc(ctx,
		AttrPlatform.String(changed.Platform.String()),
		AttrFromStatus.String(string(changed.FromStatus)),
		AttrToStatus.String(string(changed.ToStatus)),
	)
	return nil
}

var _ shared.EventHandler = (*ListingMetrics)(nil)
