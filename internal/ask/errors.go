//-------------------------------------------------------------------------
//
// pgEdge Ask Gateway
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package ask

import (
	"errors"
	"fmt"
)

// ErrCancelled is matched by the error returned when an ask is cancelled
// through its context. The partial result is returned alongside it.
var ErrCancelled = errors.New("ask cancelled")

// ErrKnowledgeBaseNotFound is returned when a requested knowledge base does
// not exist.
var ErrKnowledgeBaseNotFound = errors.New("knowledge base not found")

// RemoteCallError reports a failure of the remote knowledge base during an
// ask. It unwraps to the underlying client error.
type RemoteCallError struct {
	Target Target
	Err    error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("ask %s: remote call failed: %v", e.Target, e.Err)
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

// cancelled wraps a context error so that it matches both ErrCancelled and
// the context error itself.
func cancelled(ctxErr error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, ctxErr)
}
