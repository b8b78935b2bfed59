package ecs

import "errors"

// ErrUnknownEntity is returned for ids that are not live.
var ErrUnknownEntity = errors.New("unknown entity")
