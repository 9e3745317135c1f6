package source

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrRateLimited           = errors.New("rate_limited")
	ErrUpstream              = errors.New("upstream_error")
	ErrMalformedPage         = errors.New("malformed_page")
	ErrInvalidRecord         = errors.New("invalid_record")
	ErrInvalidDecimal        = errors.New("invalid_decimal")
	ErrInvalidShopDomain     = errors.New("invalid_shop_domain")
	ErrUnsupportedEntityType = errors.New("unsupported_entity_type")
)

// RateLimitError is returned on HTTP 429. RetryAfter is zero when the
// upstream did not send a usable Retry-After header.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter)
	}
	return ErrRateLimited.Error()
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// UpstreamError is returned for any other non-2xx response.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", ErrUpstream, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrUpstream, e.StatusCode, e.Body)
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}
