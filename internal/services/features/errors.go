package features

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyFetch means the source returned no rows for the requested tickers and range.
	ErrEmptyFetch = errors.New("empty fetch result")
	// ErrDuplicateBar is returned under DuplicateReject when a ticker has two bars at one timestamp.
	ErrDuplicateBar = errors.New("duplicate bar")
	// ErrDuplicateTicker is returned when a ticker is listed twice in the universe.
	ErrDuplicateTicker = errors.New("ticker listed twice in universe")
	// ErrNoTickers is returned when the ticker universe is empty.
	ErrNoTickers = errors.New("ticker universe is empty")
	// ErrNoSequences means preprocessing produced no windows.
	ErrNoSequences = errors.New("no valid sequences found during preprocessing")
)

// InsufficientDataError reports fewer trading days than a window plus its horizon needs.
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: have %d trading days, need at least %d", e.Have, e.Need)
}

// DegenerateLabelError reports a target set that cannot be learned.
type DegenerateLabelError struct {
	Unique int
}

func (e *DegenerateLabelError) Error() string {
	return fmt.Sprintf("degenerate labels: only %d unique target value(s)", e.Unique)
}
