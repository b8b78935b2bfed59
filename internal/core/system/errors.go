package system

import "errors"

var (
	ErrUnknownSystem          = errors.New("unknown system")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInactiveSystem         = errors.New("system not active")
	ErrNotComponentOwner      = errors.New("system owns no components")
	ErrDuplicateSystem        = errors.New("system already registered")

	// ErrBadConfig is returned by CreateComponent when handed a
	// configuration of the wrong type.
	ErrBadConfig = errors.New("bad component config")
)
