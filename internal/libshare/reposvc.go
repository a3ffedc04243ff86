package libshare

import (
	"context"

	"libshare/internal/model"
)

// RepoService is the external repo/content service. It owns repos and
// their bytes; this system only queries identity/existence and drives the
// trash lifecycle. Implementations must classify transport failures as
// ErrUpstreamUnavailable and absent resources as ErrNotFound.
//
// Calls may be slow network calls. No caller holds an internal lock
// across them.
type RepoService interface {
	// GetRepo returns an active (non-trashed) repo.
	GetRepo(ctx context.Context, repoID string) (*model.Repo, error)

	// FileExists reports whether a file exists at path inside the repo.
	FileExists(ctx context.Context, repoID, path string) (bool, error)

	// DirExists reports whether a directory exists at path inside the repo.
	DirExists(ctx context.Context, repoID, path string) (bool, error)

	// CreateRepo creates a new repo owned by owner and returns its id.
	// orgID may be empty.
	CreateRepo(ctx context.Context, name, owner, orgID string) (string, error)

	// RemoveRepo permanently deletes a repo, bypassing trash. Used for
	// compensating cleanup when a creation sequence fails halfway.
	RemoveRepo(ctx context.Context, repoID string) error

	// GetVirtualRepo returns the virtual repo rooted at path inside
	// parent, or ErrNotFound if none was materialized yet.
	GetVirtualRepo(ctx context.Context, parentID, path, owner string) (*model.Repo, error)

	// CreateVirtualRepo materializes a virtual repo rooted at path inside
	// parent and returns its id. The service guarantees at most one
	// virtual repo per (parent, path); concurrent creators converge on
	// the same id.
	CreateVirtualRepo(ctx context.Context, parentID, path, name, owner string) (string, error)

	// IsRepoOwner reports whether email owns the repo.
	IsRepoOwner(ctx context.Context, email, repoID string) (bool, error)

	// GetRepoOwner returns the owner email of a repo.
	GetRepoOwner(ctx context.Context, repoID string) (string, error)

	// Trash operations

	// ListTrash lists trashed repos. With a non-empty owner, only that
	// owner's trashed repos are returned.
	ListTrash(ctx context.Context, owner string) ([]*model.Repo, error)

	// RestoreFromTrash moves a trashed repo back to active state.
	// Returns ErrNotFound if the repo is not presently in trash.
	RestoreFromTrash(ctx context.Context, repoID string) error

	// PurgeFromTrash permanently deletes one trashed repo.
	PurgeFromTrash(ctx context.Context, repoID string) error

	// EmptyTrash permanently deletes all trashed repos, or only owner's
	// when owner is non-empty.
	EmptyTrash(ctx context.Context, owner string) error

	// Close releases the connection to the service.
	Close() error
}
