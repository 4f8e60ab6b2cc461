package ecommerce

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/erp/listingsync/internal/domain/integration"
)

// tokenPersistTimeout bounds the write of a refreshed token
const tokenPersistTimeout = 5 * time.Second

// TokenStore persists refreshed OAuth tokens of a connection
type TokenStore interface {
	SaveToken(ctx context.Context, connectionID uuid.UUID, accessToken, refreshToken string, expiresAt *time.Time) error
}

// persistingTokenSource reports every newly minted token to onRefresh
type persistingTokenSource struct {
	base      oauth2.TokenSource
	mu        sync.Mutex
	last      string
	onRefresh func(*oauth2.Token)
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	changed := tok.AccessToken != s.last
	s.last = tok.AccessToken
	s.mu.Unlock()
	if changed && s.onRefresh != nil {
		s.onRefresh(tok)
	}
	return tok, nil
}

// newRefreshingTokenSource returns a token source that refreshes the seller's
// stored token with the application credentials and writes refreshed tokens back
// to the connection.
func newRefreshingTokenSource(cfg OAuthConfig, conn *integration.MarketplaceConnection, httpClient *http.Client, store TokenStore, logger *zap.Logger) oauth2.TokenSource {
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	tok := &oauth2.Token{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		TokenType:    "Bearer",
	}
	if conn.TokenExpiresAt != nil {
		tok.Expiry = *conn.TokenExpiresAt
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	return &persistingTokenSource{
		base: oc.TokenSource(ctx, tok),
		last: conn.AccessToken,
		onRefresh: func(t *oauth2.Token) {
			var expiry *time.Time
			if !t.Expiry.IsZero() {
				e := t.Expiry
				expiry = &e
			}
			conn.UpdateToken(t.AccessToken, t.RefreshToken, expiry)
			if store == nil {
				return
			}
			saveCtx, cancel := context.WithTimeout(context.Background(), tokenPersistTimeout)
			defer cancel()
			if err := store.SaveToken(saveCtx, conn.ID, t.AccessToken, t.RefreshToken, expiry); err != nil {
				logger.Error("failed to persist refreshed marketplace token",
					zap.String("platform", string(conn.Platform)),
					zap.String("connection_id", conn.ID.String()),
					zap.Error(err),
				)
			}
		},
	}
}

// newClientCredentialsTokenSource returns a token source for platforms that
// issue app tokens from a client id/secret pair
func newClientCredentialsTokenSource(clientID, clientSecret, tokenURL string, httpClient *http.Client) oauth2.TokenSource {
	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	return cc.TokenSource(ctx)
}

// bearerAuthorizer sets header to prefix + the current access token
func bearerAuthorizer(source oauth2.TokenSource, header, prefix string) authorizer {
	return func(_ context.Context, req *http.Request) error {
		tok, err := source.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", integration.ErrPlatformTokenRefresh, err)
		}
		req.Header.Set(header, prefix+tok.AccessToken)
		return nil
	}
}

// headerTransport adds static headers to every request, including token requests
type headerTransport struct {
	base    http.RoundTripper
	headers func() map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range t.headers() {
		clone.Header.Set(k, v)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}
