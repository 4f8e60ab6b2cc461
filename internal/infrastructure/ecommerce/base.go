package ecommerce

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/infrastructure/logger"
)

// CallRecorder receives one observation per adapter call
type CallRecorder interface {
	RecordCall(ctx context.Context, platform, action string, success bool, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordCall(context.Context, string, string, bool, time.Duration) {}

// adapterBase carries what every marketplace adapter shares: the channel, its
// connection and the audit trail.
type adapterBase struct {
	platform integration.PlatformCode
	channel  *integration.SalesChannel
	conn     *integration.MarketplaceConnection
	logger   *zap.Logger
	recorder CallRecorder
}

func newAdapterBase(platform integration.PlatformCode, channel *integration.SalesChannel, deps AdapterDeps) adapterBase {
	var conn *integration.MarketplaceConnection
	if channel != nil {
		conn = channel.Connection
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return adapterBase{
		platform: platform,
		channel:  channel,
		conn:     conn,
		logger:   log,
		recorder: recorder,
	}
}

// Platform returns the platform code this adapter handles
func (b *adapterBase) Platform() integration.PlatformCode {
	return b.platform
}

// marketplaceID identifies the remote store in audit lines
func (b *adapterBase) marketplaceID() string {
	if b.conn != nil {
		if b.conn.ExternalStoreID != "" {
			return b.conn.ExternalStoreID
		}
		if b.conn.ShopDomain != "" {
			return b.conn.ShopDomain
		}
	}
	if b.channel != nil {
		if settings, err := b.channel.TypedSettings(); err == nil && settings.MarketplaceID != "" {
			return settings.MarketplaceID
		}
	}
	return ""
}

func (b *adapterBase) channelID() string {
	if b.channel == nil {
		return ""
	}
	return b.channel.ID.String()
}

// precheck returns a failure when the adapter cannot run the call
func (b *adapterBase) precheck(connected bool, lc *integration.ListingContext, needsExternalID bool) (integration.AdapterResult, bool) {
	if !connected {
		return integration.NotConnected(b.platform), false
	}
	if needsExternalID && !lc.HasExternalID() {
		return integration.MissingLinkage(b.platform), false
	}
	return integration.AdapterResult{}, true
}

// requirePayload fails calls that send a listing without an assembled payload
func (b *adapterBase) requirePayload(lc *integration.ListingContext) (integration.AdapterResult, bool) {
	if lc == nil || lc.Payload == nil {
		return integration.Failed("Listing payload is missing", integration.ErrValidationFailed), false
	}
	return integration.AdapterResult{}, true
}

// finish writes the audit line and metrics of one call and returns result unchanged
func (b *adapterBase) finish(ctx context.Context, action integration.ListingAction, lc *integration.ListingContext, start time.Time, result integration.AdapterResult, fields ...zap.Field) integration.AdapterResult {
	elapsed := time.Since(start)

	all := logger.ListingAudit(string(b.platform), b.channelID(), b.marketplaceID(), string(action))
	if lc != nil && lc.Listing != nil {
		all = append(all,
			zap.String("listing_id", lc.Listing.ID.String()),
			zap.String("product_id", lc.Listing.ProductID.String()),
		)
	}
	if id := result.ExternalID; id != "" {
		all = append(all, zap.String("external_id", id))
	} else if lc.HasExternalID() {
		all = append(all, zap.String("external_id", lc.ExternalID()))
	}
	if requestID := logger.GetRequestID(ctx); requestID != "" {
		all = append(all, zap.String("request_id", requestID))
	}
	all = append(all, zap.Bool("success", result.Success), zap.Duration("duration", elapsed))
	all = append(all, fields...)

	if result.Success {
		b.logger.Info("marketplace call succeeded", all...)
	} else {
		all = append(all, zap.String("message", result.Message))
		if result.Err != nil {
			all = append(all, zap.Error(result.Err))
		}
		b.logger.Warn("marketplace call failed", all...)
	}

	b.recorder.RecordCall(ctx, string(b.platform), string(action), result.Success, elapsed)
	return result
}

// payloadHash fingerprints the outbound payload, or returns empty
func payloadHash(lc *integration.ListingContext) string {
	if lc == nil || lc.Payload == nil {
		return ""
	}
	h, err := lc.Payload.Hash()
	if err != nil {
		return ""
	}
	return h
}

// payloadUnchanged reports whether hash equals the last payload sent for a listing
// the platform already knows
func payloadUnchanged(lc *integration.ListingContext, hash string) bool {
	return hash != "" && lc.HasExternalID() && lc.PlatformDataString(integration.DataKeyPayloadHash) == hash
}

// upToDate is the no-op success returned when a sync has nothing to send
func upToDate(lc *integration.ListingContext) integration.AdapterResult {
	return integration.Succeeded("Listing is already up to date").
		WithExternalID(lc.ExternalID(), lc.Listing.ListingURL)
}
