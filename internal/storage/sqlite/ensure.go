package sqlite

import "github.com/felixgeelhaar/cyberquest/internal/engine"

var _ engine.Store = (*Store)(nil)
