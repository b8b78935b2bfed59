package system

import (
	"fmt"

	coresys "github.com/l1jgo/gameworld/internal/core/system"
)

// configAs accepts a nil config (defaults), a value or a pointer of the
// system's config type.
func configAs[C any](system string, cfg any) (C, error) {
	var zero C
	switch c := cfg.(type) {
	case nil:
		return zero, nil
	case C:
		return c, nil
	case *C:
		if c == nil {
			return zero, nil
		}
		return *c, nil
	}
	return zero, fmt.Errorf("%w: %s got %T, want %T", coresys.ErrBadConfig, system, cfg, zero)
}

func decodeConfig[C any](decode func(any) error) (any, error) {
	var c C
	if decode == nil {
		return c, nil
	}
	if err := decode(&c); err != nil {
		return nil, err
	}
	return c, nil
}
