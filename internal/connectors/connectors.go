package connectors

import (
	"context"
	"errors"
	"fmt"
)

// SheetSource returns the raw cell grid of one worksheet, header row first.
type SheetSource interface {
	FetchRows(ctx context.Context, sheet string) ([][]string, error)
	Name() string
}

var ErrSheetNotFound = errors.New("sheet not found")

// StatusError carries the upstream status code so callers can decide on a
// retry without knowing which API produced it.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("source status %d: %v", e.Code, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}
