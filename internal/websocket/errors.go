package websocket

import "errors"

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("send buffer full")
	ErrNilConnection    = errors.New("nil connection")
	ErrDuplicateID      = errors.New("connection id already registered")
	ErrUnknownRole      = errors.New("unknown connection role")
)
