package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors. An auth failure at the library boundary aborts
	// the whole sync run; token refresh happens before the fetch, never during.
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")

	// Resolution errors. ErrSearchFailed is transient (network/rate limit)
	// and folds into a NotFound result instead of aborting a sync.
	ErrSearchFailed   = fmt.Errorf("search request failed")
	ErrTrackNotFound  = fmt.Errorf("track not found")
	ErrAmbiguousMatch = fmt.Errorf("ambiguous match")

	// Queue errors. A download failure is isolated to its item; capacity
	// errors are returned to the enqueuer, never swallowed.
	ErrDownloadFailed   = fmt.Errorf("download failed")
	ErrCancelled        = fmt.Errorf("operation cancelled")
	ErrCapacityExceeded = fmt.Errorf("queue capacity exceeded")
	ErrQueueClosed      = fmt.Errorf("queue is shut down")
	ErrItemNotFound     = fmt.Errorf("queue item not found")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
