package holdable

import (
	"errors"

	"github.com/zeusync/holdable/internal/core/holdable/authority"
	"github.com/zeusync/holdable/internal/core/holdable/body"
)

var (
	// ErrIllegalTarget is a routine rejection of a user action whose guard
	// failed. It is never logged.
	ErrIllegalTarget = errors.New("holdable: transition not allowed")
	// ErrInvalidBodyState means the primary body was destroyed; the transition
	// was aborted and the item keeps its last placement.
	ErrInvalidBodyState = body.ErrInvalidBodyState
	// ErrStaleBinding reports that the terrain cell an item was pinned to is
	// gone. The item is dropped by the engine, not the user.
	ErrStaleBinding = errors.New("holdable: attach target cell no longer solid")
	// ErrAuthorityMismatch is returned for confirmations that do not match the
	// pending request. They are discarded.
	ErrAuthorityMismatch = authority.ErrAuthorityMismatch
	// ErrPendingAuthority means the request was forwarded to the authoritative
	// side and nothing changed locally yet.
	ErrPendingAuthority = errors.New("holdable: waiting for authority confirmation")
	// ErrRemoved is returned for operations on a removed item.
	ErrRemoved = errors.New("holdable: item removed")
)
