package libshare

import (
	"context"
	"fmt"

	"libshare/internal/model"
)

// GroupRepoCreator creates a repo and attaches it to a group in one
// operation, with compensating cleanup when the second step fails.
type GroupRepoCreator struct {
	repos  RepoService
	shares *ShareRegistry
	dir    Directory
	events EventSink
	logger Logger
	clock  Clock
}

// NewGroupRepoCreator creates a GroupRepoCreator with the provided
// dependencies.
func NewGroupRepoCreator(repos RepoService, shares *ShareRegistry, dir Directory, events EventSink, logger Logger, clock Clock) *GroupRepoCreator {
	return &GroupRepoCreator{
		repos:  repos,
		shares: shares,
		dir:    dir,
		events: events,
		logger: logger,
		clock:  clock,
	}
}

// CreateGroupRepo creates a repo owned by the actor and shares it
// read-write to the group. The actor must be a member of the group.
//
// If the share attach fails after the repo was created, the repo is
// removed again so the net visible state stays consistent; the caller
// sees a single ErrInternal.
func (g *GroupRepoCreator) CreateGroupRepo(ctx context.Context, actor *model.User, groupID int64, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: repo name required", ErrInvalidArgument)
	}

	if _, err := g.dir.GetGroup(ctx, groupID); err != nil {
		return "", fmt.Errorf("looking up group %d: %w", groupID, err)
	}

	member, err := g.dir.IsGroupMember(ctx, groupID, actor.Email)
	if err != nil {
		return "", fmt.Errorf("checking group membership: %w", err)
	}
	if !member {
		return "", fmt.Errorf("%w: %s is not a member of group %d", ErrPermissionDenied, actor.Email, groupID)
	}

	repoID, err := g.repos.CreateRepo(ctx, name, actor.Email, actor.OrgID)
	if err != nil {
		return "", fmt.Errorf("creating repo: %w", err)
	}

	if _, err := g.shares.Share(ctx, actor, repoID, "/", model.GroupTarget(groupID), model.PermReadWrite); err != nil {
		// The repo exists but nobody can reach it through the group;
		// roll it back rather than leak a half-created state.
		if rmErr := g.repos.RemoveRepo(ctx, repoID); rmErr != nil {
			g.logger.Error("could not remove repo after failed group share", "repo", repoID, "err", rmErr)
		}
		g.logger.Error("group share failed after repo creation", "repo", repoID, "group", groupID, "err", err)
		return "", fmt.Errorf("%w: creating group repo", ErrInternal)
	}

	ev := Event{Type: EventGroupRepoCreated, Actor: actor.Email, RepoID: repoID, At: g.clock.Now()}
	if err := g.events.Emit(ev); err != nil {
		g.logger.Warn("group repo event not delivered", "repo", repoID, "err", err)
	}
	g.logger.Info("group repo created", "repo", repoID, "group", groupID, "by", actor.Email)
	return repoID, nil
}
