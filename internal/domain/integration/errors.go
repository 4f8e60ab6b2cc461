package integration

import (
	"errors"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Listing errors
// ---------------------------------------------------------------------------

var (
	// Taxonomy errors surfaced through AdapterResult.Err or returned by services
	ErrNotConnected     = errors.New("integration: marketplace not connected")
	ErrMissingLinkage   = errors.New("integration: listing has no external id")
	ErrUpstreamFailure  = errors.New("integration: marketplace request failed")
	ErrValidationFailed = errors.New("integration: listing validation failed")
	ErrUnknownPlatform  = errors.New("integration: unknown platform")

	// Platform transport errors
	ErrPlatformUnavailable     = errors.New("integration: platform temporarily unavailable")
	ErrPlatformRequestFailed   = errors.New("integration: platform request failed")
	ErrPlatformInvalidResponse = errors.New("integration: invalid platform response")
	ErrPlatformAuthFailed      = errors.New("integration: platform authentication failed")
	ErrPlatformRateLimited     = errors.New("integration: platform rate limited")
	ErrPlatformTokenRefresh    = errors.New("integration: platform token refresh failed")

	// Entity errors
	ErrListingNotFound         = errors.New("integration: listing not found")
	ErrListingAlreadyExists    = errors.New("integration: listing already exists for product and channel")
	ErrListingVersionConflict  = errors.New("integration: listing was modified concurrently")
	ErrListingLocked           = errors.New("integration: listing operation already in progress")
	ErrChannelNotFound         = errors.New("integration: sales channel not found")
	ErrConnectionNotFound      = errors.New("integration: marketplace connection not found")
	ErrOverrideNotFound        = errors.New("integration: platform override not found")
	ErrCategoryMappingNotFound = errors.New("integration: category mapping not found")
	ErrTemplateMappingNotFound = errors.New("integration: template mapping not found")
	ErrInvalidPlatformCode     = errors.New("integration: invalid platform code")
	ErrInvalidCategoryID       = errors.New("integration: invalid category id")
	ErrCapabilityNotSupported  = errors.New("integration: capability not supported by platform")
)

// UpstreamError is a marketplace failure. Message is safe to display and never
// contains credentials; the original cause is kept for logging.
type UpstreamError struct {
	Platform   PlatformCode
	StatusCode int
	Message    string
	Err        error
}

// Error returns the display-safe message
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s", e.Platform.DisplayName(), e.Message)
}

// Unwrap exposes both the taxonomy sentinel and the original cause
func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpstreamFailure}
	}
	return []error{ErrUpstreamFailure, e.Err}
}

// ValidationError carries every hard validation error of a listing payload
type ValidationError struct {
	Errors []string
}

// Error joins all validation errors
func (e *ValidationError) Error() string {
	return "listing validation failed: " + strings.Join(e.Errors, "; ")
}

// Unwrap returns ErrValidationFailed
func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// ConfigurationError is raised when no adapter exists for a platform key
type ConfigurationError struct {
	Key string
}

// Error implements error
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("integration: no adapter registered for platform %q", e.Key)
}

// Unwrap returns ErrUnknownPlatform
func (e *ConfigurationError) Unwrap() error {
	return ErrUnknownPlatform
}
