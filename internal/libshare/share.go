package libshare

import (
	"context"
	"errors"
	"fmt"
	"path"

	"libshare/internal/model"
)

// ShareRegistry manages direct grants of a repo (or a virtual sub-repo
// rooted at one of its folders) to users, groups and all members.
type ShareRegistry struct {
	store     Store
	directory Directory
	repos     RepoService
	events    EventSink
	logger    Logger
	clock     Clock
}

// NewShareRegistry creates a ShareRegistry with the provided dependencies.
func NewShareRegistry(store Store, directory Directory, repos RepoService, events EventSink, logger Logger, clock Clock) *ShareRegistry {
	return &ShareRegistry{
		store:     store,
		directory: directory,
		repos:     repos,
		events:    events,
		logger:    logger,
		clock:     clock,
	}
}

// Share grants target the given permission on (repoID, sharePath).
//
// When sharePath is not the repo root, a virtual sub-repo rooted at that
// folder is resolved or created first and the grant attaches to it, so
// sibling folders stay out of reach. The grant is an idempotent upsert:
// re-sharing the same target replaces the stored permission.
func (s *ShareRegistry) Share(ctx context.Context, actor *model.User, repoID, sharePath string, target model.ShareTarget, perm model.Permission) (*model.DirectShare, error) {
	if perm != model.PermReadOnly && perm != model.PermReadWrite {
		return nil, fmt.Errorf("%w: share permission must be r or rw", ErrInvalidArgument)
	}

	repo, err := s.repos.GetRepo(ctx, repoID)
	if err != nil {
		return nil, fmt.Errorf("looking up repo %s: %w", repoID, err)
	}

	sharedRepoID, err := s.resolveSharedRepo(ctx, actor, repo, sharePath)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeShare(ctx, actor, sharedRepoID, target); err != nil {
		return nil, err
	}

	if err := s.checkTarget(ctx, actor, target); err != nil {
		return nil, err
	}

	share := &model.DirectShare{
		RepoID:    sharedRepoID,
		Target:    target,
		SharedBy:  actor.Email,
		Perm:      perm,
		CreatedAt: s.clock.Now(),
	}
	created, err := s.store.UpsertShare(ctx, share)
	if err != nil {
		return nil, fmt.Errorf("storing share: %w", err)
	}

	if created {
		if err := s.events.Emit(shareEvent(EventShareCompleted, actor.Email, share, s.clock.Now())); err != nil {
			s.logger.Warn("share event not delivered", "repo", sharedRepoID, "err", err)
		}
	}
	s.logger.Info("repo shared", "repo", sharedRepoID, "target", target.Key(), "perm", perm.String(), "by", actor.Email)
	return share, nil
}

// Unshare removes the grant for (repoID, target).
//
// The repo owner may always unshare. For group targets, staff members of
// that group may as well. Removing a grant that does not exist returns
// ErrNotFound so callers can tell "nothing removed" apart from success.
func (s *ShareRegistry) Unshare(ctx context.Context, actor *model.User, repoID string, target model.ShareTarget) error {
	if _, err := s.repos.GetRepo(ctx, repoID); err != nil {
		return fmt.Errorf("looking up repo %s: %w", repoID, err)
	}

	allowed, err := s.mayUnshare(ctx, actor, repoID, target)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: %s may not unshare repo %s", ErrPermissionDenied, actor.Email, repoID)
	}

	if err := s.store.DeleteShare(ctx, repoID, target); err != nil {
		return fmt.Errorf("removing share: %w", err)
	}

	share := &model.DirectShare{RepoID: repoID, Target: target}
	if err := s.events.Emit(shareEvent(EventShareRemoved, actor.Email, share, s.clock.Now())); err != nil {
		s.logger.Warn("unshare event not delivered", "repo", repoID, "err", err)
	}
	s.logger.Info("repo unshared", "repo", repoID, "target", target.Key(), "by", actor.Email)
	return nil
}

// ListSharesForRepo returns every grant on a repo. Only the owner and
// administrators may list.
func (s *ShareRegistry) ListSharesForRepo(ctx context.Context, actor *model.User, repoID string) ([]*model.DirectShare, error) {
	owner, err := s.repos.IsRepoOwner(ctx, actor.Email, repoID)
	if err != nil {
		return nil, fmt.Errorf("checking repo owner: %w", err)
	}
	if !owner && !actor.SiteAdmin {
		return nil, fmt.Errorf("%w: %s may not list shares of repo %s", ErrPermissionDenied, actor.Email, repoID)
	}
	return s.store.SharesForRepo(ctx, repoID)
}

// ListSharesByOwner returns every grant the actor has created.
func (s *ShareRegistry) ListSharesByOwner(ctx context.Context, actor *model.User) ([]*model.DirectShare, error) {
	return s.store.SharesByOwner(ctx, actor.Email)
}

// RemoveSharesForRepo drops every grant on a repo. Called when the repo
// itself goes away.
func (s *ShareRegistry) RemoveSharesForRepo(ctx context.Context, repoID string) error {
	return s.store.DeleteSharesForRepo(ctx, repoID)
}

// resolveSharedRepo maps (repo, path) to the repo id the grant attaches
// to: the repo itself for the root path, otherwise a virtual sub-repo
// that is created on first use. Concurrent creators converge on one
// mapping through the store's insert-or-get.
func (s *ShareRegistry) resolveSharedRepo(ctx context.Context, actor *model.User, repo *model.Repo, sharePath string) (string, error) {
	if isRootPath(sharePath) {
		return repo.ID, nil
	}

	sharePath, err := normalizeDirPath(sharePath)
	if err != nil {
		return "", err
	}

	ok, err := s.repos.DirExists(ctx, repo.ID, sharePath)
	if err != nil {
		return "", fmt.Errorf("checking directory: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: directory %s in repo %s", ErrNotFound, sharePath, repo.ID)
	}

	// Fast path: mapping already cached locally.
	if vr, err := s.store.VirtualRepo(ctx, repo.ID, sharePath); err == nil {
		return vr.RepoID, nil
	} else if !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("looking up virtual repo: %w", err)
	}

	sub, err := s.repos.GetVirtualRepo(ctx, repo.ID, sharePath, actor.Email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("looking up virtual repo: %w", err)
	}

	var subID string
	if sub != nil {
		subID = sub.ID
	} else {
		name := path.Base(path.Clean(sharePath))
		subID, err = s.repos.CreateVirtualRepo(ctx, repo.ID, sharePath, name, actor.Email)
		if err != nil {
			return "", fmt.Errorf("creating virtual repo: %w", err)
		}
	}

	vr := &model.VirtualRepo{
		ParentID:  repo.ID,
		Path:      sharePath,
		RepoID:    subID,
		CreatedAt: s.clock.Now(),
	}
	surviving, _, err := s.store.InsertOrGetVirtualRepo(ctx, vr)
	if err != nil {
		return "", fmt.Errorf("recording virtual repo: %w", err)
	}
	return surviving.RepoID, nil
}

// authorizeShare enforces who may create a grant: the repo owner in
// personal context, additionally group staff for group targets, and
// owner-or-staff for public shares.
func (s *ShareRegistry) authorizeShare(ctx context.Context, actor *model.User, repoID string, target model.ShareTarget) error {
	owner, err := s.repos.IsRepoOwner(ctx, actor.Email, repoID)
	if err != nil {
		return fmt.Errorf("checking repo owner: %w", err)
	}

	switch target.Kind {
	case model.TargetGroup:
		if owner {
			return nil
		}
		staff, err := s.directory.IsGroupStaff(ctx, target.GroupID, actor.Email)
		if err != nil {
			return fmt.Errorf("checking group staff: %w", err)
		}
		if staff {
			return nil
		}
	case model.TargetPublic:
		if owner || actor.SiteAdmin || (actor.OrgID != "" && actor.OrgStaff) {
			return nil
		}
	default:
		if owner {
			return nil
		}
	}
	return fmt.Errorf("%w: only the owner of the repo may share it", ErrPermissionDenied)
}

// checkTarget validates the grant target itself.
func (s *ShareRegistry) checkTarget(ctx context.Context, actor *model.User, target model.ShareTarget) error {
	switch target.Kind {
	case model.TargetUser:
		if target.Email == actor.Email {
			return fmt.Errorf("%w: cannot share a repo with yourself", ErrConflict)
		}
		if !ValidEmail(target.Email) {
			return fmt.Errorf("%w: invalid email: %s", ErrInvalidArgument, target.Email)
		}
		// In organizational context the recipient must live in the same
		// organization; elsewhere it must simply be registered.
		exists, err := s.directory.UserExists(ctx, target.Email, actor.OrgID)
		if err != nil {
			return fmt.Errorf("checking user: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: user %s is not registered", ErrInvalidArgument, target.Email)
		}
	case model.TargetGroup:
		group, err := s.directory.GetGroup(ctx, target.GroupID)
		if err != nil {
			return fmt.Errorf("looking up group %d: %w", target.GroupID, err)
		}
		if actor.OrgID != "" && group.OrgID != actor.OrgID {
			return fmt.Errorf("%w: group %d is outside your organization", ErrInvalidArgument, target.GroupID)
		}
	case model.TargetPublic:
		// No further checks.
	}
	return nil
}

// mayUnshare decides whether the actor can remove the grant.
func (s *ShareRegistry) mayUnshare(ctx context.Context, actor *model.User, repoID string, target model.ShareTarget) (bool, error) {
	owner, err := s.repos.IsRepoOwner(ctx, actor.Email, repoID)
	if err != nil {
		return false, fmt.Errorf("checking repo owner: %w", err)
	}
	if owner {
		return true, nil
	}

	switch target.Kind {
	case model.TargetGroup:
		staff, err := s.directory.IsGroupStaff(ctx, target.GroupID, actor.Email)
		if err != nil {
			return false, fmt.Errorf("checking group staff: %w", err)
		}
		return staff, nil
	case model.TargetPublic:
		if actor.SiteAdmin || (actor.OrgID != "" && actor.OrgStaff) {
			return true, nil
		}
	}
	return false, nil
}
