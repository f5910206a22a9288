package command

import "strings"

// Group Commands

// CreateGroupCommand creates a group and joins it as its first member
type CreateGroupCommand struct {
	BaseCommand
	Name            string `json:"name" validate:"max=100"`
	DisplayName     string `json:"display_name"`
	RefreshInterval int    `json:"refresh_interval" validate:"oneof=10 30 60"`
	// ExpiryHours nil creates a group that never expires
	ExpiryHours *int `json:"expiry_hours" validate:"omitempty,oneof=2 4 8 24"`
}

// NewCreateGroupCommand creates a new create group command
func NewCreateGroupCommand(name, displayName string, refreshInterval int, expiryHours *int) CreateGroupCommand {
	return CreateGroupCommand{
		BaseCommand:     NewBaseCommand("CreateGroup", ""),
		Name:            strings.TrimSpace(name),
		DisplayName:     strings.TrimSpace(displayName),
		RefreshInterval: refreshInterval,
		ExpiryHours:     expiryHours,
	}
}

// JoinGroupCommand registers the local member in an existing group
type JoinGroupCommand struct {
	BaseCommand
	GroupID     string `json:"group_id"`
	DisplayName string `json:"display_name"`
}

// NewJoinGroupCommand creates a new join group command. Group ids are
// case-insensitive and stored upper case.
func NewJoinGroupCommand(groupID, displayName string) JoinGroupCommand {
	id := NormalizeGroupID(groupID)
	return JoinGroupCommand{
		BaseCommand: NewBaseCommand("JoinGroup", id),
		GroupID:     id,
		DisplayName: strings.TrimSpace(displayName),
	}
}

// DeleteGroupCommand deletes a group remotely and forgets it locally
type DeleteGroupCommand struct {
	BaseCommand
	GroupID string `json:"group_id"`
}

// NewDeleteGroupCommand creates a new delete group command
func NewDeleteGroupCommand(groupID string) DeleteGroupCommand {
	id := NormalizeGroupID(groupID)
	return DeleteGroupCommand{
		BaseCommand: NewBaseCommand("DeleteGroup", id),
		GroupID:     id,
	}
}

// NormalizeGroupID trims and upper-cases a group id
func NormalizeGroupID(groupID string) string {
	return strings.ToUpper(strings.TrimSpace(groupID))
}

// ExpiryOptions are the selectable group lifetimes in hours
var ExpiryOptions = []int{2, 4, 8, 24}
