package align

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation covers malformed input sets: duplicate ids, empty ids,
	// empty files. Runs fail on it before any embedding call is issued.
	ErrValidation = errors.New("invalid input")

	// ErrEmbedding is returned when no row in an entire set could be
	// embedded after retries. Partial batch failures do not produce it.
	ErrEmbedding = errors.New("embedding failed")
)

// DimensionMismatchError indicates the provider returned vectors of
// inconsistent dimensionality. This is a provider/version problem, not a
// data problem, so it aborts the run immediately.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: got %d, want %d", e.Got, e.Want)
}
