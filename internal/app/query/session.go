package query

import (
	"context"

	"github.com/danghamo/groupwatch/internal/app/command"
	"github.com/danghamo/groupwatch/internal/domain/group"
	"github.com/danghamo/groupwatch/internal/domain/shared"
	"github.com/danghamo/groupwatch/internal/store"
)

// GetSessionQuery asks for everything a watch session needs from local storage
type GetSessionQuery struct {
	GroupID string `json:"group_id"`
}

// NewGetSessionQuery creates a session query for groupID
func NewGetSessionQuery(groupID string) GetSessionQuery {
	return GetSessionQuery{GroupID: command.NormalizeGroupID(groupID)}
}

// SessionEntry is the hydrated local state for one group
type SessionEntry struct {
	Identity group.Identity `json:"identity"`
	Meta     group.Meta     `json:"meta"`
	// Cached is false when the group was never created or joined from this
	// device; such a session runs without a deadline
	Cached bool `json:"cached"`
}

// SessionQueryHandler reads identity and cached group metadata
type SessionQueryHandler struct {
	identity *store.IdentityStore
	meta     *store.GroupMetaStore
}

// NewSessionQueryHandler creates a new session query handler
func NewSessionQueryHandler(identity *store.IdentityStore, meta *store.GroupMetaStore) *SessionQueryHandler {
	return &SessionQueryHandler{identity: identity, meta: meta}
}

// Handle hydrates the session entry
func (h *SessionQueryHandler) Handle(ctx context.Context, q GetSessionQuery) (SessionEntry, error) {
	if q.GroupID == "" {
		return SessionEntry{}, shared.ErrInvalidInput("Please enter a group ID")
	}

	identity, err := h.identity.Identity(ctx)
	if err != nil {
		return SessionEntry{}, err
	}

	meta, ok, err := h.meta.Get(ctx, q.GroupID)
	if err != nil {
		return SessionEntry{}, err
	}
	if !ok {
		meta = group.Meta{GroupID: q.GroupID}
	}

	return SessionEntry{Identity: identity, Meta: meta, Cached: ok}, nil
}
