package filterspec

import "errors"

var (
	// ErrConfig is returned (wrapped) for any FilterSpec construction
	// or translation error, eg. more than one prefix clause set.
	ErrConfig = errors.New("filterspec: configuration error")
)
