package places

import "errors"

var (
	ErrInvalidQuery        = errors.New("search query must be 1-200 characters")  // 400
	ErrInvalidLocation     = errors.New("invalid latitude or longitude")          // 400
	ErrProviderUnavailable = errors.New("places provider is unavailable")         // soft failure
	ErrRateLimitExceeded   = errors.New("places provider rate limit exceeded")    // soft failure
)
