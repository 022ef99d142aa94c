package models

import "errors"

// ErrInvalidInput marks problems with a local input file. Retrying the remote
// round-trip cannot fix these.
var ErrInvalidInput = errors.New("invalid input")
