package model

import (
	"fmt"
	"time"
)

// Permission is the access level a principal has on a repo path.
// The values are ordered so that the resolver's maximum-wins rule is a
// plain numeric comparison.
type Permission int

const (
	PermNone Permission = iota
	PermReadOnly
	PermReadWrite
)

// Max returns the higher of two permissions.
func (p Permission) Max(o Permission) Permission {
	if o > p {
		return o
	}
	return p
}

// String renders the wire form used by the store and the CLI ("r"/"rw").
func (p Permission) String() string {
	switch p {
	case PermReadOnly:
		return "r"
	case PermReadWrite:
		return "rw"
	default:
		return "none"
	}
}

// ParsePermission parses the wire form of a permission.
func ParsePermission(s string) (Permission, error) {
	switch s {
	case "r":
		return PermReadOnly, nil
	case "rw":
		return PermReadWrite, nil
	case "none", "":
		return PermNone, nil
	default:
		return PermNone, fmt.Errorf("unknown permission: %q", s)
	}
}

// TargetKind discriminates the closed set of share target variants.
type TargetKind int

const (
	TargetUser TargetKind = iota
	TargetGroup
	TargetPublic
)

// ShareTarget identifies who a direct share grants access to: a single
// user, a group, or all members (public). Exactly one payload field is
// meaningful, selected by Kind.
type ShareTarget struct {
	Kind    TargetKind
	Email   string // Kind == TargetUser
	GroupID int64  // Kind == TargetGroup
}

func UserTarget(email string) ShareTarget { return ShareTarget{Kind: TargetUser, Email: email} }
func GroupTarget(id int64) ShareTarget    { return ShareTarget{Kind: TargetGroup, GroupID: id} }
func PublicTarget() ShareTarget           { return ShareTarget{Kind: TargetPublic} }

// Key returns the stable storage key for the target, used by the
// (repo, target) uniqueness constraint.
func (t ShareTarget) Key() string {
	switch t.Kind {
	case TargetUser:
		return "u:" + t.Email
	case TargetGroup:
		return fmt.Sprintf("g:%d", t.GroupID)
	default:
		return "public"
	}
}

func (t ShareTarget) String() string {
	switch t.Kind {
	case TargetUser:
		return t.Email
	case TargetGroup:
		return fmt.Sprintf("group %d", t.GroupID)
	default:
		return "all members"
	}
}

// User is a registered principal.
type User struct {
	Email          string
	OrgID          string // empty outside organizational context
	SiteAdmin      bool   // may manage trash and other users' links
	OrgStaff       bool   // staff within OrgID
	CanCreateLinks bool   // guest account classes have this revoked
}

// Group is a named set of users.
type Group struct {
	ID        int64
	Name      string
	OrgID     string
	CreatedAt time.Time
}

// Repo is a library as known to the repo/content service. This system
// reads repos and moves their trash state; it never owns them.
type Repo struct {
	ID        string // UUID
	Name      string
	Owner     string // owner email
	OrgID     string
	DeletedAt *time.Time // set while the repo sits in trash
}

// VirtualRepo maps a folder of a parent repo to its own repo id. It is
// created lazily the first time a non-root folder is shared; at most one
// exists per (parent, path) pair.
type VirtualRepo struct {
	ParentID  string
	Path      string
	RepoID    string
	CreatedAt time.Time
}

// DirectShare is a non-token grant of a repo to a target.
// Unique per (RepoID, Target.Key()); re-sharing updates Perm in place.
type DirectShare struct {
	RepoID    string
	Target    ShareTarget
	SharedBy  string // email of the granting user
	Perm      Permission
	CreatedAt time.Time
}

// LinkKind says whether a download link points at a file or a directory.
type LinkKind string

const (
	LinkFile LinkKind = "f"
	LinkDir  LinkKind = "d"
)

// ShareLink is a tokenized download link.
// Unique per (Owner, RepoID, Path); a repeat request returns the existing
// link with its original password and expiry intact.
type ShareLink struct {
	Token        string
	Owner        string
	RepoID       string
	Path         string
	Kind         LinkKind
	PasswordHash []byte     // nil: link is not password protected
	ExpiresAt    *time.Time // nil: link never expires
	CreatedAt    time.Time
}

// Protected reports whether redeeming the link requires a password.
func (l *ShareLink) Protected() bool { return len(l.PasswordHash) > 0 }

// Expired reports whether the link is past its expiry at the given time.
func (l *ShareLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// UploadLink is a tokenized link for uploading into a directory.
// Path always ends with a path separator. Upload links never expire.
type UploadLink struct {
	Token        string
	Owner        string
	RepoID       string
	Path         string
	PasswordHash []byte
	CreatedAt    time.Time
}

func (l *UploadLink) Protected() bool { return len(l.PasswordHash) > 0 }
