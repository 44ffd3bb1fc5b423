package remote

import "errors"

var (
	ErrUnavailable = errors.New("server unavailable")
	ErrRejected    = errors.New("rejected by server")
)
