package sales

import "errors"

// Sentinel errors for payment platform operations.
var (
	ErrAuth             = errors.New("payment platform authentication failed")
	ErrFetch            = errors.New("sales history fetch failed")
	ErrUnsupportedEvent = errors.New("unsupported webhook event")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
)
