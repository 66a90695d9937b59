package cache

import "errors"

var (
	ErrQuotaExceeded = errors.New("persistent cache quota exceeded")
	ErrNilLoader     = errors.New("loader is required")
)
