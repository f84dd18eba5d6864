package forwarder

import "errors"

// Sentinel errors for conversion forwarding.
var (
	ErrForward = errors.New("conversion forward failed")
)
