package store

import "errors"

// ErrNotFound is returned when a lookup or delete targets a row that
// does not exist. Handlers map it to a 404 without partial state change.
var ErrNotFound = errors.New("store: not found")
