package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newStatusEvent(from, to integration.ListingStatus, success bool) *integration.ListingStatusChangedEvent {
	listing := &integration.PlatformListing{
		ID:             uuid.New(),
		StoreID:        uuid.New(),
		ProductID:      uuid.New(),
		SalesChannelID: uuid.New(),
		Status:         to,
	}
	result := integration.Succeeded("Listed")
	if !success {
		result = integration.Failed("Upstream rejected the listing", nil)
	}
	return integration.NewListingStatusChangedEvent(listing, integration.PlatformEbay, integration.ActionPublish, from, result)
}

// recordingHandler captures delivered events
type recordingHandler struct {
	mu      sync.Mutex
	types   []string
	handled []shared.DomainEvent
	err     error
	panics  bool
}

func newRecordingHandler(types ...string) *recordingHandler {
	return &recordingHandler{types: types}
}

func (h *recordingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	if h.panics {
		panic("handler exploded")
	}
	return h.err
}

func (h *recordingHandler) EventTypes() []string {
	return h.types
}

func (h *recordingHandler) received() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.handled...)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newRecordingHandler(integration.EventTypeListingStatusChanged)
	bus.Subscribe(handler)

	event := newStatusEvent(integration.ListingStatusDraft, integration.ListingStatusListed, true)
	require.NoError(t, bus.Publish(context.Background(), event))

	received := handler.received()
	require.Len(t, received, 1)
	assert.Same(t, event, received[0])
}

func TestInMemoryEventBus_Publish_SeveralEventsAndHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	first := newRecordingHandler()
	second := newRecordingHandler()
	bus.Subscribe(first, integration.EventTypeListingStatusChanged)
	bus.Subscribe(second, integration.EventTypeListingStatusChanged)

	err := bus.Publish(context.Background(),
		newStatusEvent(integration.ListingStatusDraft, integration.ListingStatusListed, true),
		nil,
		newStatusEvent(integration.ListingStatusListed, integration.ListingStatusEnded, true),
	)

	require.NoError(t, err)
	assert.Len(t, first.received(), 2)
	assert.Len(t, second.received(), 2)
}

func TestInMemoryEventBus_Publish_CatchAllHandler(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	catchAll := newRecordingHandler()
	bus.Subscribe(catchAll)

	require.NoError(t, bus.Publish(context.Background(), newStatusEvent(integration.ListingStatusDraft, integration.ListingStatusError, false)))
	assert.Len(t, catchAll.received(), 1)
}

func TestInMemoryEventBus_Publish_NoMatchingHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	other := newRecordingHandler("SomethingElse")
	bus.Subscribe(other)

	require.NoError(t, bus.Publish(context.Background(), newStatusEvent(integration.ListingStatusDraft, integration.ListingStatusListed, true)))
	assert.Empty(t, other.received())
}

func TestInMemoryEventBus_Publish_HandlerErrorDoesNotStopDelivery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	bus := NewInMemoryEventBus(zap.New(core))

	failing := newRecordingHandler(integration.EventTypeListingStatusChanged)
	failing.err = errors.New("metrics backend down")
	healthy := newRecordingHandler(integration.EventTypeListingStatusChanged)
	bus.Subscribe(failing)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), newStatusEvent(integration.ListingStatusDraft, integration.ListingStatusListed, true))

	require.Error(t, err)
	assert.ErrorIs(t, err, failing.err)
	assert.Len(t, failing.received(), 1)
	assert.Len(t, healthy.received(), 1)
	assert.Equal(t, 1, logs.FilterMessage("Event handler failed").Len())
}

func TestInMemoryEventBus_Publish_RecoversPanics(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	bus := NewInMemoryEventBus(zap.New(core))

	panicking := newRecordingHandler(integration.EventTypeListingStatusChanged)
	panicking.panics = true
	healthy := newRecordingHandler(integration.EventTypeListingStatusChanged)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), newStatusEvent(integration.ListingStatusDraft, integration.ListingStatusListed, true))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler exploded")
	assert.Len(t, healthy.received(), 1)
	assert.Equal(t, 1, logs.FilterMessage("Event handler panicked").Len())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newRecordingHandler(integration.EventTypeListingStatusChanged)
	bus.Subscribe(handler)

	_ = bus.Publish(context.Background(), newStatusEvent(integration.ListingStatusDraft, integration.ListingStatusListed, true))
	bus.Unsubscribe(handler)
	_ = bus.Publish(context.Background(), newStatusEvent(integration.ListingStatusListed, integration.ListingStatusEnded, true))

	assert.Len(t, handler.received(), 1)
}

func TestInMemoryEventBus_StopRejectsPublish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newRecordingHandler(integration.EventTypeListingStatusChanged)
	bus.Subscribe(handler)
	require.NoError(t, bus.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Stop(ctx))

	err := bus.Publish(context.Background(), newStatusEvent(integration.ListingStatusDraft, integration.ListingStatusListed, true))
	assert.ErrorIs(t, err, ErrBusStopped)
	assert.Empty(t, handler.received())

	require.NoError(t, bus.Start(context.Background()))
	require.NoError(t, bus.Publish(context.Background(), newStatusEvent(integration.ListingStatusDraft, integration.ListingStatusListed, true)))
	assert.Len(t, handler.received(), 1)
}

// blockingHandler holds a delivery open until released
type blockingHandler struct {
	entered chan struct{}
	release chan struct{}
}

func (h *blockingHandler) Handle(_ context.Context, _ shared.DomainEvent) error {
	close(h.entered)
	<-h.release
	return nil
}

func (h *blockingHandler) EventTypes() []string { return nil }

func TestInMemoryEventBus_StopWaitsForInflight(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := &blockingHandler{entered: make(chan struct{}), release: make(chan struct{})}
	bus.Subscribe(handler)

	published := make(chan error, 1)
	go func() {
		published <- bus.Publish(context.Background(), newStatusEvent(integration.ListingStatusDraft, integration.ListingStatusListed, true))
	}()
	<-handler.entered

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bus.Stop(short), context.DeadlineExceeded)

	close(handler.release)
	require.NoError(t, <-published)

	ctx, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	assert.NoError(t, bus.Stop(ctx))
}
