package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is matched by every NotFoundError.
var ErrNotFound = errors.New("not found")

// NotFoundError is returned when every resolution tier missed.
type NotFoundError struct {
	Key   string // cache key that was checked
	Path  string // filesystem path that was checked, if any
	Tried []Tier
}

func (e *NotFoundError) Error() string {
	tiers := make([]string, len(e.Tried))
	for i, t := range e.Tried {
		tiers[i] = string(t)
	}
	msg := fmt.Sprintf("%s not found (tried %s)", e.Key, strings.Join(tiers, ", "))
	if e.Path != "" {
		msg += "; path " + e.Path
	}
	return msg
}

// Is makes errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
