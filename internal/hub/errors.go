package hub

import "errors"

var (
	ErrAlreadyRunning        = errors.New("coordinator is already running")
	ErrNotRunning            = errors.New("coordinator is not running")
	ErrInboundChannelFull    = errors.New("inbound channel is full")
	ErrRegisterChannelFull   = errors.New("register channel is full")
	ErrUnregisterChannelFull = errors.New("unregister channel is full")
)
