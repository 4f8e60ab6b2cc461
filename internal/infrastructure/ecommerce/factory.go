package ecommerce

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erp/listingsync/internal/domain/integration"
)

// AdapterDeps are the collaborators handed to every adapter constructor
type AdapterDeps struct {
	Config Config
	Logger *zap.Logger
	// Recorder receives call metrics; nil disables them
	Recorder CallRecorder
	// Tokens persists refreshed OAuth tokens; nil keeps them in memory only
	Tokens TokenStore
	// HTTPClient replaces the per-platform client (tests)
	HTTPClient *http.Client

	limiters *limiterSet
}

// platformSettings returns the validated config, HTTP client and limiter of a platform
func (d AdapterDeps) platformSettings(platform integration.PlatformCode) (PlatformConfig, *http.Client, *rate.Limiter, error) {
	cfg, err := d.Config.For(platform)
	if err != nil {
		return PlatformConfig{}, nil, nil, err
	}
	client := d.HTTPClient
	if client == nil {
		client = newHTTPClient(cfg)
	}
	var limiter *rate.Limiter
	if d.limiters != nil {
		limiter = d.limiters.get(platform, cfg)
	}
	return cfg, client, limiter, nil
}

// AdapterConstructor builds the adapter of one platform for a channel
type AdapterConstructor func(channel *integration.SalesChannel, deps AdapterDeps) (integration.ListingAdapter, error)

// builtinAdapters is the compile-time registry
var builtinAdapters = map[integration.PlatformCode]AdapterConstructor{
	integration.PlatformShopify:     NewShopifyAdapter,
	integration.PlatformEbay:        NewEbayAdapter,
	integration.PlatformAmazon:      NewAmazonAdapter,
	integration.PlatformEtsy:        NewEtsyAdapter,
	integration.PlatformWalmart:     NewWalmartAdapter,
	integration.PlatformWooCommerce: NewWooCommerceAdapter,
	integration.PlatformBigCommerce: NewBigCommerceAdapter,
	integration.PlatformLocal:       NewLocalAdapter,
}

// AdapterFactory resolves the adapter backing a sales channel
type AdapterFactory struct {
	deps     AdapterDeps
	mu       sync.RWMutex
	registry map[integration.PlatformCode]AdapterConstructor
}

// NewAdapterFactory creates a factory with every built-in adapter registered
func NewAdapterFactory(deps AdapterDeps) *AdapterFactory {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Config.Platforms == nil {
		deps.Config = DefaultConfig()
	}
	deps.limiters = newLimiterSet()

	registry := make(map[integration.PlatformCode]AdapterConstructor, len(builtinAdapters))
	for code, ctor := range builtinAdapters {
		registry[code] = ctor
	}
	return &AdapterFactory{deps: deps, registry: registry}
}

// Register adds or replaces the constructor of a platform key
func (f *AdapterFactory) Register(code integration.PlatformCode, ctor AdapterConstructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registry[code] = ctor
}

// Platforms returns every registered platform key, sorted
func (f *AdapterFactory) Platforms() []integration.PlatformCode {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]integration.PlatformCode, 0, len(f.registry))
	for code := range f.registry {
		out = append(out, code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Make resolves the adapter: the local adapter for local channels, otherwise the
// linked connection's platform, otherwise the channel's declared type. Unknown
// keys fail with *integration.ConfigurationError.
func (f *AdapterFactory) Make(_ context.Context, channel *integration.SalesChannel) (integration.ListingAdapter, error) {
	if channel == nil {
		return nil, integration.ErrChannelNotFound
	}
	key := channel.PlatformKey()

	f.mu.RLock()
	ctor, ok := f.registry[key]
	f.mu.RUnlock()
	if !ok {
		return nil, &integration.ConfigurationError{Key: string(key)}
	}
	return ctor(channel, f.deps)
}

// limiterSet shares one rate limiter per platform across adapter instances
type limiterSet struct {
	mu       sync.Mutex
	limiters map[integration.PlatformCode]*rate.Limiter
}

func newLimiterSet() *limiterSet {
	return &limiterSet{limiters: make(map[integration.PlatformCode]*rate.Limiter)}
}

func (s *limiterSet) get(platform integration.PlatformCode, cfg PlatformConfig) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.limiters[platform]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	s.limiters[platform] = l
	return l
}

var _ integration.AdapterResolver = (*AdapterFactory)(nil)
