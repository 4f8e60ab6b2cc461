package integration

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestListing() *PlatformListing {
	return NewPlatformListing(uuid.New(), uuid.New(), uuid.New())
}

// ---------------------------------------------------------------------------
// PlatformListing Tests
// ---------------------------------------------------------------------------

func TestNewPlatformListing(t *testing.T) {
	l := newTestListing()
	assert.NotEqual(t, uuid.Nil, l.ID)
	assert.Equal(t, ListingStatusDraft, l.Status)
	assert.False(t, l.HasExternalID())
	assert.NotNil(t, l.PlatformData)
}

func TestPlatformListing_ApplySuccess(t *testing.T) {
	now := time.Now()

	t.Run("Publish stores external id and lists", func(t *testing.T) {
		l := newTestListing()
		l.MarkPending()
		l.LastError = "previous failure"

		result := Succeeded("Published").WithExternalID("123", "https://example.com/123").
			WithData(DataKeyPrice, decimal.NewFromInt(10)).
			WithData(DataKeyQuantity, 3).
			WithData(DataKeyOfferID, "offer-1")
		l.ApplySuccess(ActionPublish, result, now)

		require.True(t, l.HasExternalID())
		assert.Equal(t, "123", *l.ExternalListingID)
		assert.Equal(t, "https://example.com/123", l.ListingURL)
		assert.Equal(t, ListingStatusListed, l.Status)
		assert.Empty(t, l.LastError)
		assert.True(t, decimal.NewFromInt(10).Equal(*l.PlatformPrice))
		assert.Equal(t, 3, *l.PlatformQuantity)
		assert.Equal(t, "offer-1", l.PlatformDataString(DataKeyOfferID))
		assert.Equal(t, now, *l.PublishedAt)
		assert.Equal(t, now, *l.LastSyncedAt)
	})

	t.Run("Publish keeps a pending hint", func(t *testing.T) {
		l := newTestListing()
		l.ApplySuccess(ActionPublish, Succeeded("").WithExternalID("1", "").WithStatus(ListingStatusPending), now)
		assert.Equal(t, ListingStatusPending, l.Status)
	})

	t.Run("End always ends", func(t *testing.T) {
		l := newTestListing()
		l.Status = ListingStatusListed
		l.ApplySuccess(ActionEnd, Succeeded("Ended"), now)
		assert.Equal(t, ListingStatusEnded, l.Status)
	})

	t.Run("Refresh applies the status hint", func(t *testing.T) {
		l := newTestListing()
		l.Status = ListingStatusListed
		l.ApplySuccess(ActionRefresh, Succeeded("").WithStatus(ListingStatusEnded), now)
		assert.Equal(t, ListingStatusEnded, l.Status)
	})

	t.Run("Price update keeps status", func(t *testing.T) {
		l := newTestListing()
		l.Status = ListingStatusActive
		l.ApplySuccess(ActionUpdatePrice, Succeeded("").WithData(DataKeyPrice, decimal.NewFromInt(5)), now)
		assert.Equal(t, ListingStatusActive, l.Status)
		assert.True(t, decimal.NewFromInt(5).Equal(*l.PlatformPrice))
	})

	t.Run("Sync is stable", func(t *testing.T) {
		l := newTestListing()
		result := Succeeded("").WithExternalID("abc", "")
		l.ApplySuccess(ActionSync, result, now)
		first := l.Status
		l.ApplySuccess(ActionSync, result, now)
		assert.Equal(t, first, l.Status)
		assert.Equal(t, "abc", *l.ExternalListingID)
	})
}

func TestPlatformListing_ApplyFailure(t *testing.T) {
	now := time.Now()

	for _, action := range []ListingAction{ActionPublish, ActionUnpublish, ActionEnd} {
		l := newTestListing()
		l.Status = ListingStatusListed
		l.ApplyFailure(action, Failed("boom", ErrUpstreamFailure), now)
		assert.Equal(t, ListingStatusError, l.Status, action)
		assert.Equal(t, "boom", l.LastError)
	}

	for _, action := range []ListingAction{ActionUpdatePrice, ActionUpdateInventory, ActionSync, ActionRefresh} {
		l := newTestListing()
		l.Status = ListingStatusListed
		l.ApplyFailure(action, Failed("boom", ErrUpstreamFailure), now)
		assert.Equal(t, ListingStatusListed, l.Status, action)
		assert.Equal(t, "boom", l.LastError)
	}

	t.Run("keeps the id of a partially created listing", func(t *testing.T) {
		l := newTestListing()
		l.ApplyFailure(ActionPublish, Failed("boom", ErrUpstreamFailure).WithExternalID("draft-1", ""), now)
		assert.Equal(t, "draft-1", *l.ExternalListingID)
	})

	t.Run("keeps linkage data but not the payload hash", func(t *testing.T) {
		l := newTestListing()
		result := Failed("boom", ErrUpstreamFailure).
			WithData(DataKeyOfferID, "offer-9").
			WithData(DataKeyPayloadHash, "abc")
		l.ApplyFailure(ActionPublish, result, now)
		assert.Equal(t, "offer-9", l.PlatformDataString(DataKeyOfferID))
		assert.Empty(t, l.PlatformDataString(DataKeyPayloadHash))
		assert.False(t, l.HasExternalID())
	})
}

// ---------------------------------------------------------------------------
// AdapterResult Tests
// ---------------------------------------------------------------------------

func TestAdapterResult(t *testing.T) {
	t.Run("NotConnected names the platform", func(t *testing.T) {
		r := NotConnected(PlatformEtsy)
		assert.False(t, r.Success)
		assert.Equal(t, "Etsy is not connected", r.Message)
		assert.ErrorIs(t, r.Err, ErrNotConnected)
	})

	t.Run("MissingLinkage", func(t *testing.T) {
		r := MissingLinkage(PlatformShopify)
		assert.False(t, r.Success)
		assert.ErrorIs(t, r.Err, ErrMissingLinkage)
	})

	t.Run("UpstreamFailed uses the redacted message", func(t *testing.T) {
		cause := errors.New("401 token=secret")
		err := &UpstreamError{Platform: PlatformEbay, StatusCode: 401, Message: "HTTP 401: invalid token", Err: cause}
		r := UpstreamFailed(PlatformEbay, err)
		assert.Equal(t, "eBay: HTTP 401: invalid token", r.Message)
		assert.NotContains(t, r.Message, "secret")
		assert.ErrorIs(t, r.Err, ErrUpstreamFailure)
		assert.ErrorIs(t, r.Err, cause)
	})

	t.Run("WithData does not share maps", func(t *testing.T) {
		base := Succeeded("").WithData("a", 1)
		derived := base.WithData("b", 2)
		assert.Len(t, base.Data, 1)
		assert.Len(t, derived.Data, 2)
	})

	t.Run("Typed hints", func(t *testing.T) {
		r := Succeeded("").WithStatus(ListingStatusEnded).WithData(DataKeyQuantity, float64(4)).WithData(DataKeyPrice, "9.99")
		status, ok := r.Status()
		assert.True(t, ok)
		assert.Equal(t, ListingStatusEnded, status)
		qty, ok := r.Quantity()
		assert.True(t, ok)
		assert.Equal(t, 4, qty)
		price, ok := r.Price()
		assert.True(t, ok)
		assert.Equal(t, "9.99", price.String())
	})
}

func TestErrors(t *testing.T) {
	verr := &ValidationError{Errors: []string{"Title is required", "At least one image is required"}}
	assert.ErrorIs(t, verr, ErrValidationFailed)
	assert.Contains(t, verr.Error(), "Title is required; At least one image is required")

	cerr := &ConfigurationError{Key: "myspace"}
	assert.ErrorIs(t, cerr, ErrUnknownPlatform)
	assert.Contains(t, cerr.Error(), "myspace")
}
