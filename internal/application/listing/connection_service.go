package listing

import (
	"context"
	"time"

	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Credential keys written by business policy sync
const (
	CredentialFulfillmentPolicyID = "fulfillment_policy_id"
	CredentialPaymentPolicyID     = "payment_policy_id"
	CredentialReturnPolicyID      = "return_policy_id"
)

// ConnectionService runs account-level operations against a marketplace connection
type ConnectionService struct {
	connectionRepo integration.ConnectionRepository
	adapters       integration.AdapterResolver
	logger         *zap.Logger
	now            func() time.Time
}

// NewConnectionService creates a new ConnectionService
func NewConnectionService(
	connectionRepo integration.ConnectionRepository,
	adapters integration.AdapterResolver,
	logger *zap.Logger,
) *ConnectionService {
	return &ConnectionService{
		connectionRepo: connectionRepo,
		adapters:       adapters,
		logger:         logger,
		now:            time.Now,
	}
}

// TestConnection validates the stored credentials against the marketplace and
// records the outcome on the connection
func (s *ConnectionService) TestConnection(ctx context.Context, storeID, connectionID uuid.UUID) (*integration.ConnectionInfo, error) {
	conn, adapter, err := s.resolve(ctx, storeID, connectionID)
	if err != nil {
		return nil, err
	}
	connector, ok := adapter.(integration.CredentialConnector)
	if !ok {
		return nil, integration.ErrCapabilityNotSupported
	}

	info, err := connector.TestConnection(ctx)
	if err != nil {
		return nil, s.recordFailure(ctx, conn, err)
	}

	if conn.ShopDomain == "" {
		conn.ShopDomain = info.ShopDomain
	}
	if conn.ExternalStoreID == "" {
		conn.ExternalStoreID = info.ExternalStoreID
	}
	conn.MarkActive(s.now())
	if err := s.connectionRepo.Save(ctx, conn); err != nil {
		return nil, err
	}
	return info, nil
}

// SyncBusinessPolicies fetches the seller's business policies and stores their
// ids in the connection credentials
func (s *ConnectionService) SyncBusinessPolicies(ctx context.Context, storeID, connectionID uuid.UUID) (*integration.BusinessPolicies, error) {
	conn, adapter, err := s.resolve(ctx, storeID, connectionID)
	if err != nil {
		return nil, err
	}
	syncer, ok := adapter.(integration.BusinessPolicySyncer)
	if !ok {
		return nil, integration.ErrCapabilityNotSupported
	}

	policies, err := syncer.SyncBusinessPolicies(ctx)
	if err != nil {
		return nil, s.recordFailure(ctx, conn, err)
	}

	conn.SetCredential(CredentialFulfillmentPolicyID, policies.FulfillmentPolicyID)
	conn.SetCredential(CredentialPaymentPolicyID, policies.PaymentPolicyID)
	conn.SetCredential(CredentialReturnPolicyID, policies.ReturnPolicyID)
	conn.MarkActive(s.now())
	if err := s.connectionRepo.Save(ctx, conn); err != nil {
		return nil, err
	}

	if !policies.IsComplete() {
		s.logger.Warn("seller is missing business policies",
			zap.String("connection_id", conn.ID.String()),
			zap.String("fulfillment_policy_id", policies.FulfillmentPolicyID),
			zap.String("payment_policy_id", policies.PaymentPolicyID),
			zap.String("return_policy_id", policies.ReturnPolicyID),
		)
	}
	return policies, nil
}

// resolve loads the connection and builds an adapter for it through a
// transient channel bound to the connection
func (s *ConnectionService) resolve(ctx context.Context, storeID, connectionID uuid.UUID) (*integration.MarketplaceConnection, integration.ListingAdapter, error) {
	conn, err := s.connectionRepo.FindByID(ctx, connectionID)
	if err != nil {
		return nil, nil, err
	}
	if conn.StoreID != storeID {
		return nil, nil, integration.ErrConnectionNotFound
	}

	channel := &integration.SalesChannel{
		ID:           uuid.Nil,
		StoreID:      conn.StoreID,
		Type:         conn.Platform,
		Name:         conn.Platform.DisplayName(),
		ConnectionID: &conn.ID,
		Connection:   conn,
		IsActive:     true,
	}
	adapter, err := s.adapters.Make(ctx, channel)
	if err != nil {
		return nil, nil, err
	}
	return conn, adapter, nil
}

// recordFailure marks the connection as failing with a display-safe message
// and returns the original error
func (s *ConnectionService) recordFailure(ctx context.Context, conn *integration.MarketplaceConnection, cause error) error {
	message := integration.UpstreamFailed(conn.Platform, cause).Message
	conn.MarkError(message, s.now())
	if err := s.connectionRepo.Save(ctx, conn); err != nil {
		s.logger.Error("failed to record connection error",
			zap.String("connection_id", conn.ID.String()),
			zap.Error(err),
		)
	}
	return cause
}
