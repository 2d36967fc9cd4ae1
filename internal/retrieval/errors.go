package retrieval

import "errors"

// Error kinds named in the error handling design. Callers match with
// errors.Is; the core wraps these with fmt.Errorf("...: %w", err) to add
// context.
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotIndexed       = errors.New("collection not indexed")
	ErrParseFailure     = errors.New("parse failure")
	ErrCacheUnavailable = errors.New("cache unavailable")
	ErrExternalFailure  = errors.New("external collaborator failure")
	ErrResourceLimit    = errors.New("resource limit reached")
)
