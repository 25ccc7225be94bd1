package store

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when a compare-and-set write finds a
	// newer version than the one it read.
	ErrVersionConflict = errors.New("version conflict")
)

// markGrace keeps alert marks past their bucket end so a late evaluation
// of the closing bucket cannot re-fire.
const markGrace = time.Hour
