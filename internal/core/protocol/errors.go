package protocol

import "errors"

var (
	ErrTransportClosed       = errors.New("transport is closed")
	ErrPeerNotFound          = errors.New("peer not found")
	ErrQueueFull             = errors.New("outbound queue is full")
	ErrInvalidMessage        = errors.New("invalid message")
	ErrSerializationFailed   = errors.New("message serialization failed")
	ErrDeserializationFailed = errors.New("message deserialization failed")
)
