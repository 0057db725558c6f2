package broker

import "errors"

// ErrBadResponse is wrapped into a stream.BrokerError when the broker's
// JSON body doesn't contain the expected data.files array.
var ErrBadResponse = errors.New("broker: malformed response")
