package tags

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyMarker     = errors.New("marker cannot be empty")
	ErrIdenticalMarker = errors.New("open and close markers must differ")
)

// MarkerPair is the delimiter set that bounds every synchronizable block of a file.
// Master and minion must use the exact same pair.
type MarkerPair struct {
	Open  string
	Close string
}

// NewMarkerPair returns a validated marker pair.
func NewMarkerPair(open, close string) (MarkerPair, error) {
	m := MarkerPair{Open: open, Close: close}
	if err := m.Validate(); err != nil {
		return MarkerPair{}, err
	}
	return m, nil
}

func (m MarkerPair) Validate() error {
	if m.Open == "" {
		return fmt.Errorf("open %w", ErrEmptyMarker)
	}
	if m.Close == "" {
		return fmt.Errorf("close %w", ErrEmptyMarker)
	}
	if m.Open == m.Close {
		return ErrIdenticalMarker
	}
	return nil
}

func (m MarkerPair) String() string {
	return fmt.Sprintf("%q..%q", m.Open, m.Close)
}
