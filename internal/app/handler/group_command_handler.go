package handler

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/danghamo/groupwatch/internal/app/command"
	"github.com/danghamo/groupwatch/internal/domain/group"
	"github.com/danghamo/groupwatch/internal/domain/shared"
	"github.com/danghamo/groupwatch/internal/groupapi"
	"github.com/danghamo/groupwatch/internal/store"
	"github.com/danghamo/groupwatch/pkg/logger"
)

// GroupService is the remote group service used by the entry flows
type GroupService interface {
	CreateGroup(ctx context.Context, req groupapi.CreateGroupRequest) (*group.Group, error)
	JoinGroup(ctx context.Context, groupID string, identity group.Identity) (*group.Group, error)
	DeleteGroup(ctx context.Context, groupID string) error
}

// GroupCommandHandler handles group commands
type GroupCommandHandler struct {
	api      GroupService
	identity *store.IdentityStore
	meta     *store.GroupMetaStore
	validate *validator.Validate
	logger   *logger.Logger
}

// NewGroupCommandHandler creates a new group command handler
func NewGroupCommandHandler(api GroupService, identity *store.IdentityStore, meta *store.GroupMetaStore, log *logger.Logger) *GroupCommandHandler {
	return &GroupCommandHandler{
		api:      api,
		identity: identity,
		meta:     meta,
		validate: validator.New(),
		logger:   log.WithComponent("group-commands"),
	}
}

// Handle handles group commands. Create and join results carry the cached
// group.Meta as Data.
func (h *GroupCommandHandler) Handle(ctx context.Context, cmd command.Command) (command.CommandResult, error) {
	switch c := cmd.(type) {
	case command.CreateGroupCommand:
		meta, err := h.handleCreateGroup(ctx, c)
		if err != nil {
			return command.NewErrorResult("Failed to create group", err), err
		}
		return command.NewSuccessResult("Group created", meta), nil
	case command.JoinGroupCommand:
		meta, err := h.handleJoinGroup(ctx, c)
		if err != nil {
			return command.NewErrorResult("Failed to join group", err), err
		}
		return command.NewSuccessResult("Joined group", meta), nil
	case command.DeleteGroupCommand:
		if err := h.handleDeleteGroup(ctx, c); err != nil {
			return command.NewErrorResult(shared.UserMessage(err), err), err
		}
		return command.NewSuccessResult("Group deleted", nil), nil
	default:
		err := fmt.Errorf("unknown command type: %T", cmd)
		return command.NewErrorResult("Unknown command", err), err
	}
}

func (h *GroupCommandHandler) handleCreateGroup(ctx context.Context, cmd command.CreateGroupCommand) (group.Meta, error) {
	if cmd.DisplayName == "" {
		return group.Meta{}, shared.ErrInvalidInput("Please enter your display name")
	}
	if err := h.validate.Struct(cmd); err != nil {
		return group.Meta{}, shared.WrapDomainError(err, shared.ErrCodeInvalidInput, "invalid group settings")
	}

	identity, err := h.saveIdentity(ctx, cmd.DisplayName)
	if err != nil {
		return group.Meta{}, err
	}

	g, err := h.api.CreateGroup(ctx, groupapi.CreateGroupRequest{
		Name:            cmd.Name,
		RefreshInterval: cmd.RefreshInterval,
		ExpiryDuration:  cmd.ExpiryHours,
	})
	if err != nil {
		return group.Meta{}, err
	}

	meta := group.MetaFromGroup(g)
	if err := h.meta.Put(ctx, meta); err != nil {
		return group.Meta{}, err
	}

	// the creator joins like everyone else
	if _, err := h.api.JoinGroup(ctx, g.ID, identity); err != nil {
		return group.Meta{}, err
	}

	h.logger.Info("Group created",
		zap.String("group_id", g.ID),
		zap.String("member_id", identity.MemberID))
	return meta, nil
}

func (h *GroupCommandHandler) handleJoinGroup(ctx context.Context, cmd command.JoinGroupCommand) (group.Meta, error) {
	if cmd.GroupID == "" {
		return group.Meta{}, shared.ErrInvalidInput("Please enter a group ID")
	}
	if cmd.DisplayName == "" {
		return group.Meta{}, shared.ErrInvalidInput("Please enter your display name")
	}

	identity, err := h.saveIdentity(ctx, cmd.DisplayName)
	if err != nil {
		return group.Meta{}, err
	}

	g, err := h.api.JoinGroup(ctx, cmd.GroupID, identity)
	if err != nil {
		return group.Meta{}, err
	}

	meta := group.MetaFromGroup(g)
	meta.GroupID = cmd.GroupID
	if err := h.meta.Put(ctx, meta); err != nil {
		return group.Meta{}, err
	}

	h.logger.Info("Joined group",
		zap.String("group_id", cmd.GroupID),
		zap.String("member_id", identity.MemberID))
	return meta, nil
}

func (h *GroupCommandHandler) handleDeleteGroup(ctx context.Context, cmd command.DeleteGroupCommand) error {
	if cmd.GroupID == "" {
		return shared.ErrInvalidInput("Please enter a group ID")
	}
	if err := h.api.DeleteGroup(ctx, cmd.GroupID); err != nil {
		return shared.NewDomainErrorf(shared.ErrCodeDeleteFailed, "failed to delete group: %v", err)
	}
	if err := h.meta.Delete(ctx, cmd.GroupID); err != nil {
		h.logger.Warn("Failed to forget group metadata", zap.String("group_id", cmd.GroupID), zap.Error(err))
	}
	return nil
}

func (h *GroupCommandHandler) saveIdentity(ctx context.Context, displayName string) (group.Identity, error) {
	if err := h.identity.SetDisplayName(ctx, displayName); err != nil {
		return group.Identity{}, err
	}
	return h.identity.Identity(ctx)
}
