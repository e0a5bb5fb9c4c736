package ai

import "errors"

var (
	ErrUnavailable        = errors.New("ai provider unavailable")
	ErrStreamNotSupported = errors.New("ai provider does not support streaming")
)
