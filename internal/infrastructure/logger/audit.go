package logger

import (
	"go.uber.org/zap"
)

// Field keys of the marketplace call audit line
const (
	AuditPlatformKey      = "platform"
	AuditChannelIDKey     = "channel_id"
	AuditMarketplaceIDKey = "marketplace_id"
	AuditActionKey        = "action"
)

// ListingAudit returns the fields every outbound marketplace call is logged with
func ListingAudit(platform, channelID, marketplaceID, action string) []zap.Field {
	return []zap.Field{
		zap.String(AuditPlatformKey, platform),
		zap.String(AuditChannelIDKey, channelID),
		zap.String(AuditMarketplaceIDKey, marketplaceID),
		zap.String(AuditActionKey, action),
	}
}
