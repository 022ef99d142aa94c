package services

import "errors"

var (
	// ErrNoOutput means the recognizer finished but wrote nothing under the prefix.
	ErrNoOutput = errors.New("no recognition output found")
	// ErrMalformedOutput means the result object is not a valid annotation response.
	ErrMalformedOutput = errors.New("malformed recognition output")
	// ErrRecognitionFailed means the result object carries a remote error status.
	ErrRecognitionFailed = errors.New("recognition failed")
	// ErrInvalidRegion means a bounding polygon has fewer than four vertices.
	ErrInvalidRegion = errors.New("invalid bounding region")
	// ErrDuplicateOutput means an earlier input in the batch already owns the
	// output names of this one.
	ErrDuplicateOutput = errors.New("output name already taken")
)
