package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/danghamo/groupwatch/internal/domain/group"
)

const (
	memberIDKey    = "location_tracker_member_id"
	displayNameKey = "location_tracker_display_name"
	groupKeyPrefix = "group_"
)

// IdentityStore provides a stable member id and the member's display name
type IdentityStore struct {
	kv Store
}

// NewIdentityStore creates an identity store over kv
func NewIdentityStore(kv Store) *IdentityStore {
	return &IdentityStore{kv: kv}
}

// GenerateMemberID returns a fresh member id
func GenerateMemberID() string {
	return "member_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// MemberID returns the stored member id, creating one on first use
func (s *IdentityStore) MemberID(ctx context.Context) (string, error) {
	id, ok, err := s.kv.Get(ctx, memberIDKey)
	if err != nil {
		return "", fmt.Errorf("read member id: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}

	id = GenerateMemberID()
	if err := s.kv.Set(ctx, memberIDKey, id); err != nil {
		return "", fmt.Errorf("store member id: %w", err)
	}
	return id, nil
}

// DisplayName returns the stored display name, or "" when unset
func (s *IdentityStore) DisplayName(ctx context.Context) (string, error) {
	name, _, err := s.kv.Get(ctx, displayNameKey)
	if err != nil {
		return "", fmt.Errorf("read display name: %w", err)
	}
	return name, nil
}

// SetDisplayName stores the display name
func (s *IdentityStore) SetDisplayName(ctx context.Context, name string) error {
	return s.kv.Set(ctx, displayNameKey, strings.TrimSpace(name))
}

// Identity returns both the member id and display name
func (s *IdentityStore) Identity(ctx context.Context) (group.Identity, error) {
	id, err := s.MemberID(ctx)
	if err != nil {
		return group.Identity{}, err
	}
	name, err := s.DisplayName(ctx)
	if err != nil {
		return group.Identity{}, err
	}
	return group.Identity{MemberID: id, DisplayName: name}, nil
}

// Clear forgets the identity
func (s *IdentityStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, memberIDKey); err != nil {
		return err
	}
	return s.kv.Delete(ctx, displayNameKey)
}

// GroupMetaStore caches group metadata keyed by group id
type GroupMetaStore struct {
	kv Store
}

// NewGroupMetaStore creates a metadata store over kv
func NewGroupMetaStore(kv Store) *GroupMetaStore {
	return &GroupMetaStore{kv: kv}
}

// Get returns the cached metadata; ok is false when nothing is cached
func (s *GroupMetaStore) Get(ctx context.Context, groupID string) (group.Meta, bool, error) {
	raw, ok, err := s.kv.Get(ctx, groupKeyPrefix+groupID)
	if err != nil || !ok {
		return group.Meta{}, false, err
	}
	var meta group.Meta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return group.Meta{}, false, fmt.Errorf("decode group %s metadata: %w", groupID, err)
	}
	if meta.GroupID == "" {
		meta.GroupID = groupID
	}
	return meta, true, nil
}

// Put caches metadata under its group id
func (s *GroupMetaStore) Put(ctx context.Context, meta group.Meta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode group metadata: %w", err)
	}
	return s.kv.Set(ctx, groupKeyPrefix+meta.GroupID, string(raw))
}

// Delete removes cached metadata
func (s *GroupMetaStore) Delete(ctx context.Context, groupID string) error {
	return s.kv.Delete(ctx, groupKeyPrefix+groupID)
}
