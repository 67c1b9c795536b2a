package tags

import (
	"errors"
	"fmt"
)

var (
	// ErrTagMismatch is matched by every *TagMismatchError.
	ErrTagMismatch = errors.New("tag mismatch")
	// ErrReplacementCount is matched by every *ReplacementCountError.
	ErrReplacementCount = errors.New("replacement count mismatch")
)

// TagMismatchError reports an open marker with no close marker after it.
type TagMismatchError struct {
	// Offset is the byte offset of the unmatched open marker.
	Offset int
	Marker string
}

func (e *TagMismatchError) Error() string {
	return fmt.Sprintf("tag mismatch: open marker %q at offset %d has no closing marker", e.Marker, e.Offset)
}

func (e *TagMismatchError) Is(target error) bool {
	return target == ErrTagMismatch
}

// ReplacementCountError reports fewer replacement blocks than marker pairs in the target.
type ReplacementCountError struct {
	Want int
	Got  int
}

func (e *ReplacementCountError) Error() string {
	return fmt.Sprintf("replacement count mismatch: content has %d blocks, got %d replacements", e.Want, e.Got)
}

func (e *ReplacementCountError) Is(target error) bool {
	return target == ErrReplacementCount
}
