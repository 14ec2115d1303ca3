// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package backend

import (
	"log/slog"

	recallerr "github.com/recall-dev/recall/pkg/errors"
)

// Selector picks a backend for one generation call.
//
// Selection is advisory, not a hard contract: local is preferred unless the
// caller forces remote, and when remote is requested but no remote backend
// is configured the selector silently falls back to local. Callers that
// need a guarantee must check the returned backend's Kind.
type Selector struct {
	local  Completer
	remote Completer
	logger *slog.Logger
}

// NewSelector creates a Selector. Either backend may be nil.
func NewSelector(local, remote Completer) *Selector {
	return &Selector{local: local, remote: remote, logger: slog.Default()}
}

// Pick returns the backend to use. forceRemote wins over preferLocal.
// Returns an error only when no backend at all is configured.
func (s *Selector) Pick(preferLocal, forceRemote bool) (Completer, error) {
	if forceRemote {
		if s.remote != nil {
			return s.remote, nil
		}
		if s.local != nil {
			s.logger.Debug("remote backend requested but not configured, falling back to local")
			return s.local, nil
		}
		return nil, recallerr.New(recallerr.CodeBackendNotFound, "no backend configured")
	}

	if preferLocal && s.local != nil {
		return s.local, nil
	}
	if s.local != nil {
		return s.local, nil
	}
	if s.remote != nil {
		return s.remote, nil
	}
	return nil, recallerr.New(recallerr.CodeBackendNotFound, "no backend configured")
}

// Available reports whether any backend is configured.
func (s *Selector) Available() bool {
	return s.local != nil || s.remote != nil
}
