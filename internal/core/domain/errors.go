package domain

import "errors"

// ErrNotFound is returned by outbound adapters for missing records.
var ErrNotFound = errors.New("not found")
