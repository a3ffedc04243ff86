package libshare

import (
	"context"
	"fmt"

	"libshare/internal/model"
)

// TrashManager lists, restores and purges soft-deleted repos. Every
// operation requires the administrator capability; there is no other
// authorization path.
type TrashManager struct {
	repos  RepoService
	store  Store
	logger Logger
}

// NewTrashManager creates a TrashManager with the provided dependencies.
func NewTrashManager(repos RepoService, store Store, logger Logger) *TrashManager {
	return &TrashManager{repos: repos, store: store, logger: logger}
}

// List returns trashed repos. With a non-empty owner only that owner's
// trashed repos are returned; the owner must be a valid email.
func (t *TrashManager) List(ctx context.Context, actor *model.User, owner string) ([]*model.Repo, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if owner != "" && !ValidEmail(owner) {
		return nil, fmt.Errorf("%w: invalid owner: %s", ErrInvalidArgument, owner)
	}
	repos, err := t.repos.ListTrash(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("listing trash: %w", err)
	}
	return repos, nil
}

// Restore moves a repo out of trash back to active state. Fails with
// ErrNotFound when the repo is not presently in trash.
func (t *TrashManager) Restore(ctx context.Context, actor *model.User, repoID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := t.repos.RestoreFromTrash(ctx, repoID); err != nil {
		return fmt.Errorf("restoring repo %s: %w", repoID, err)
	}
	t.logger.Info("repo restored from trash", "repo", repoID, "by", actor.Email)
	return nil
}

// PurgeOne permanently deletes one trashed repo, along with any grants
// still recorded against it. Irreversible.
func (t *TrashManager) PurgeOne(ctx context.Context, actor *model.User, repoID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := t.repos.PurgeFromTrash(ctx, repoID); err != nil {
		return fmt.Errorf("purging repo %s: %w", repoID, err)
	}
	if err := t.store.DeleteSharesForRepo(ctx, repoID); err != nil {
		// The repo is gone; stale grants are harmless but noisy.
		t.logger.Warn("purged repo but could not drop its shares", "repo", repoID, "err", err)
	}
	t.logger.Info("repo purged from trash", "repo", repoID, "by", actor.Email)
	return nil
}

// PurgeAll empties the trash, globally or for one owner. Irreversible.
func (t *TrashManager) PurgeAll(ctx context.Context, actor *model.User, owner string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if owner != "" && !ValidEmail(owner) {
		return fmt.Errorf("%w: invalid owner: %s", ErrInvalidArgument, owner)
	}
	if err := t.repos.EmptyTrash(ctx, owner); err != nil {
		return fmt.Errorf("emptying trash: %w", err)
	}
	t.logger.Info("trash emptied", "owner", owner, "by", actor.Email)
	return nil
}

func requireAdmin(actor *model.User) error {
	if actor == nil || !actor.SiteAdmin {
		return fmt.Errorf("%w: administrator capability required", ErrPermissionDenied)
	}
	return nil
}
