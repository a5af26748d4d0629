// Package refresh models the external-connection refresh capability used by
// report generation. The live automation bridge is platform software outside
// this codebase, so the interface ships with a no-op implementation and the
// pipeline treats unavailability as "refresh skipped".
package refresh

import (
	"context"
	"errors"
)

// ErrUnavailable signals that no automation bridge exists on this host.
// Callers must degrade gracefully; it is never a run failure.
var ErrUnavailable = errors.New("refresh bridge unavailable")

// Service refreshes external data connections inside a generated document.
type Service interface {
	// Refresh re-queries the document's external connections in place.
	// Returns ErrUnavailable when the host has no automation bridge.
	Refresh(ctx context.Context, documentPath string) error
	// Available reports whether Refresh can succeed on this host.
	Available() bool
}

type noop struct{}

// NewNoop returns the stand-in service for hosts without a bridge.
func NewNoop() Service {
	return noop{}
}

func (noop) Refresh(context.Context, string) error { return ErrUnavailable }

func (noop) Available() bool { return false }
