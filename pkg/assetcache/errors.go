package assetcache

import (
	"errors"
	"fmt"
)

// ErrLoadFailed matches every *LoadError via errors.Is.
var ErrLoadFailed = errors.New("asset load failed")

// LoadError reports a loader failure for one key. The failed entry is not
// cached, so the next Get for the key tries again.
type LoadError struct {
	Key   string
	Path  string
	Cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load asset '%s' from '%s': %v", e.Key, e.Path, e.Cause)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrLoadFailed) true for any LoadError.
func (e *LoadError) Is(target error) bool {
	return target == ErrLoadFailed
}
