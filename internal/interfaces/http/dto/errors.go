package dto

import (
	"errors"
	"net/http"

	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/domain/shared"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeListingInvalid is used when a listing payload fails validation
	ErrCodeListingInvalid = "ERR_LISTING_INVALID"
)

// Authentication error codes
const (
	ErrCodeUnauthorized     = "ERR_UNAUTHORIZED"
	ErrCodeForbidden        = "ERR_FORBIDDEN"
	ErrCodeTokenExpired     = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid     = "ERR_TOKEN_INVALID"
	ErrCodeTokenNotYetValid = "ERR_TOKEN_NOT_YET_VALID"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	// ErrCodeListingLocked is used while another operation holds the listing
	ErrCodeListingLocked = "ERR_LISTING_LOCKED"
)

// Business rule error codes
const (
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
	// ErrCodeNotConnected is used when the channel has no active marketplace connection
	ErrCodeNotConnected = "ERR_NOT_CONNECTED"
	// ErrCodeNotSupported is used when the platform lacks a capability
	ErrCodeNotSupported = "ERR_NOT_SUPPORTED"
)

// Input error codes
const (
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Upstream error codes
const (
	// ErrCodeUpstream is used when a marketplace call failed outside an adapter result
	ErrCodeUpstream = "ERR_UPSTREAM"
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
	// ErrCodeBusy is used when background work cannot be queued
	ErrCodeBusy = "ERR_BUSY"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:     http.StatusBadRequest,
	ErrCodeListingInvalid: http.StatusUnprocessableEntity,

	ErrCodeUnauthorized:     http.StatusUnauthorized,
	ErrCodeForbidden:        http.StatusForbidden,
	ErrCodeTokenExpired:     http.StatusUnauthorized,
	ErrCodeTokenInvalid:     http.StatusUnauthorized,
	ErrCodeTokenNotYetValid: http.StatusUnauthorized,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeListingLocked:       http.StatusConflict,

	ErrCodeInvalidState: http.StatusUnprocessableEntity,
	ErrCodeBusinessRule: http.StatusUnprocessableEntity,
	ErrCodeNotConnected: http.StatusUnprocessableEntity,
	ErrCodeNotSupported: http.StatusUnprocessableEntity,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeUpstream:    http.StatusBadGateway,
	ErrCodeRateLimited: http.StatusTooManyRequests,
	ErrCodeBusy:        http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainErrorCodes maps domain error codes to API error codes
var domainErrorCodes = map[string]string{
	shared.CodeNotFound:     ErrCodeNotFound,
	shared.CodeInvalidInput: ErrCodeInvalidInput,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format, or unknown, are returned as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := domainErrorCodes[code]; ok {
		return apiCode
	}
	return code
}

// integrationErrors maps integration sentinels to an API code and a display message.
// Order matters: the first match wins.
var integrationErrors = []struct {
	target  error
	code    string
	message string
}{
	{integration.ErrListingNotFound, ErrCodeNotFound, "Listing not found"},
	{integration.ErrChannelNotFound, ErrCodeNotFound, "Sales channel not found"},
	{integration.ErrConnectionNotFound, ErrCodeNotFound, "Marketplace connection not found"},
	{integration.ErrOverrideNotFound, ErrCodeNotFound, "Platform override not found"},
	{integration.ErrCategoryMappingNotFound, ErrCodeNotFound, "Category mapping not found"},
	{integration.ErrTemplateMappingNotFound, ErrCodeNotFound, "Template mapping not found"},
	{integration.ErrListingAlreadyExists, ErrCodeAlreadyExists, "Listing already exists for product and channel"},
	{integration.ErrListingVersionConflict, ErrCodeConcurrencyConflict, "Listing was modified concurrently, retry the operation"},
	{integration.ErrListingLocked, ErrCodeListingLocked, "Another operation on this listing is in progress"},
	{integration.ErrInvalidPlatformCode, ErrCodeInvalidInput, "Unknown platform"},
	{integration.ErrUnknownPlatform, ErrCodeInvalidInput, "No integration is available for this platform"},
	{integration.ErrInvalidCategoryID, ErrCodeInvalidInput, "Invalid category id"},
	{integration.ErrNotConnected, ErrCodeNotConnected, "Sales channel is not connected to its marketplace"},
	{integration.ErrMissingLinkage, ErrCodeInvalidState, "Listing has not been published yet"},
	{integration.ErrCapabilityNotSupported, ErrCodeNotSupported, "Operation is not supported by this platform"},
	{integration.ErrPlatformRateLimited, ErrCodeRateLimited, "Marketplace rate limit reached, try again later"},
}

// ResolveError maps an error returned by the application layer to an API code
// and a message that is safe to show. The boolean is false for unknown errors.
func ResolveError(err error) (code, message string, ok bool) {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return NormalizeErrorCode(domainErr.Code), domainErr.Message, true
	}

	var validationErr *integration.ValidationError
	if errors.As(err, &validationErr) {
		return ErrCodeListingInvalid, validationErr.Error(), true
	}

	for _, e := range integrationErrors {
		if errors.Is(err, e.target) {
			return e.code, e.message, true
		}
	}

	var upstreamErr *integration.UpstreamError
	if errors.As(err, &upstreamErr) {
		return ErrCodeUpstream, upstreamErr.Error(), true
	}
	if errors.Is(err, integration.ErrUpstreamFailure) {
		return ErrCodeUpstream, "Marketplace request failed", true
	}
	return ErrCodeInternal, "An unexpected error occurred", false
}
