package libshare

import (
	"context"
	"errors"
	"fmt"

	"libshare/internal/model"
)

// Resolver computes the effective permission a principal has on a repo
// path by combining ownership, direct user shares, group shares and
// public shares. When several grants apply, the highest permission wins.
type Resolver struct {
	store     Store
	directory Directory
	repos     RepoService
}

// NewResolver creates a Resolver with the provided dependencies.
func NewResolver(store Store, directory Directory, repos RepoService) *Resolver {
	return &Resolver{store: store, directory: directory, repos: repos}
}

// Resolve returns the effective permission of user on (repoID, path).
// Organization context changes which principals the directory recognizes,
// never the precedence: owner dominates, then the maximum over every
// applicable grant, else none.
func (r *Resolver) Resolve(ctx context.Context, user *model.User, repoID, path string) (model.Permission, error) {
	if user == nil {
		return model.PermNone, nil
	}

	owner, err := r.repos.IsRepoOwner(ctx, user.Email, repoID)
	if err != nil {
		return model.PermNone, fmt.Errorf("checking repo owner: %w", err)
	}
	if owner {
		return model.PermReadWrite, nil
	}

	path, err = normalizePath(path)
	if err != nil {
		return model.PermNone, err
	}

	groups, err := r.directory.GroupsForUser(ctx, user.Email)
	if err != nil {
		return model.PermNone, fmt.Errorf("listing groups: %w", err)
	}

	perm, err := r.permFromShares(ctx, user, groups, repoID)
	if err != nil {
		return model.PermNone, err
	}

	// Folder-level grants live on virtual repos rooted inside this repo.
	// Only grants whose root covers the queried path apply.
	vrepos, err := r.store.VirtualReposForParent(ctx, repoID)
	if err != nil {
		return model.PermNone, fmt.Errorf("listing virtual repos: %w", err)
	}
	for _, vr := range vrepos {
		if !pathWithin(path, vr.Path) {
			continue
		}
		vp, err := r.permFromShares(ctx, user, groups, vr.RepoID)
		if err != nil {
			return model.PermNone, err
		}
		perm = perm.Max(vp)
	}

	return perm, nil
}

// permFromShares returns the maximum permission granted to user on the
// exact repo id through direct, group or public shares.
func (r *Resolver) permFromShares(ctx context.Context, user *model.User, groups []int64, repoID string) (model.Permission, error) {
	shares, err := r.store.SharesForRepo(ctx, repoID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.PermNone, nil
		}
		return model.PermNone, fmt.Errorf("listing shares: %w", err)
	}

	inGroup := make(map[int64]bool, len(groups))
	for _, g := range groups {
		inGroup[g] = true
	}

	perm := model.PermNone
	for _, s := range shares {
		switch s.Target.Kind {
		case model.TargetUser:
			if s.Target.Email == user.Email {
				perm = perm.Max(s.Perm)
			}
		case model.TargetGroup:
			if inGroup[s.Target.GroupID] {
				perm = perm.Max(s.Perm)
			}
		case model.TargetPublic:
			perm = perm.Max(s.Perm)
		}
	}
	return perm, nil
}
