package libshare

import (
	"context"

	"libshare/internal/model"
)

// Store persists shares, links and the virtual-repo mapping.
//
// The insert-or-get operations are the store's atomicity contract: under
// concurrent creators for the same uniqueness key, exactly one record
// survives and every caller gets it back. Implementations settle the race
// with a unique constraint, not with process-level locking.
type Store interface {
	// Direct shares

	// UpsertShare creates the grant or, if one already exists for
	// (RepoID, Target), replaces its permission.
	UpsertShare(ctx context.Context, share *model.DirectShare) (created bool, err error)

	// DeleteShare removes the grant for (repoID, target). Returns
	// ErrNotFound when no grant exists.
	DeleteShare(ctx context.Context, repoID string, target model.ShareTarget) error

	// SharesForRepo returns all grants on a repo.
	SharesForRepo(ctx context.Context, repoID string) ([]*model.DirectShare, error)

	// SharesByOwner returns all grants created by the given user.
	SharesByOwner(ctx context.Context, email string) ([]*model.DirectShare, error)

	// DeleteSharesForRepo removes every grant on a repo (repo deletion).
	DeleteSharesForRepo(ctx context.Context, repoID string) error

	// Download links

	// InsertOrGetDownloadLink inserts the link unless one already exists
	// for (Owner, RepoID, Path); the surviving record is returned along
	// with whether this call created it.
	InsertOrGetDownloadLink(ctx context.Context, link *model.ShareLink) (*model.ShareLink, bool, error)

	// DownloadLinkByToken returns the link or ErrNotFound.
	DownloadLinkByToken(ctx context.Context, token string) (*model.ShareLink, error)

	// DownloadLinkByPath returns the owner's link for (repoID, path),
	// or ErrNotFound.
	DownloadLinkByPath(ctx context.Context, owner, repoID, path string) (*model.ShareLink, error)

	// DeleteDownloadLink removes the link by token. ErrNotFound when absent.
	DeleteDownloadLink(ctx context.Context, token string) error

	// DownloadLinksByOwner returns all download links owned by email.
	DownloadLinksByOwner(ctx context.Context, email string) ([]*model.ShareLink, error)

	// Upload links

	InsertOrGetUploadLink(ctx context.Context, link *model.UploadLink) (*model.UploadLink, bool, error)
	UploadLinkByToken(ctx context.Context, token string) (*model.UploadLink, error)
	UploadLinkByPath(ctx context.Context, owner, repoID, path string) (*model.UploadLink, error)
	DeleteUploadLink(ctx context.Context, token string) error
	UploadLinksByOwner(ctx context.Context, email string) ([]*model.UploadLink, error)

	// Virtual repo mapping

	// InsertOrGetVirtualRepo records the (parent, path) -> repo id
	// mapping, returning the surviving record.
	InsertOrGetVirtualRepo(ctx context.Context, vr *model.VirtualRepo) (*model.VirtualRepo, bool, error)

	// VirtualRepo returns the mapping for (parentID, path) or ErrNotFound.
	VirtualRepo(ctx context.Context, parentID, path string) (*model.VirtualRepo, error)

	// VirtualReposForParent returns all virtual repos rooted inside parent.
	VirtualReposForParent(ctx context.Context, parentID string) ([]*model.VirtualRepo, error)

	// Close closes the store.
	Close() error
}

// Directory resolves principals: registered users, groups, membership and
// staff standing. The share registry consults it and never mutates it.
type Directory interface {
	// UserExists reports whether email is a registered user. With a
	// non-empty orgID, the user must belong to that organization.
	UserExists(ctx context.Context, email, orgID string) (bool, error)

	// GetUser returns the user record or ErrNotFound.
	GetUser(ctx context.Context, email string) (*model.User, error)

	// GetGroup returns the group or ErrNotFound.
	GetGroup(ctx context.Context, groupID int64) (*model.Group, error)

	// IsGroupMember reports whether email belongs to the group.
	IsGroupMember(ctx context.Context, groupID int64, email string) (bool, error)

	// IsGroupStaff reports whether email is a staff member of the group.
	IsGroupStaff(ctx context.Context, groupID int64, email string) (bool, error)

	// GroupsForUser returns ids of every group email belongs to.
	GroupsForUser(ctx context.Context, email string) ([]int64, error)
}
