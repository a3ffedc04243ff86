package libshare

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"libshare/internal/model"
)

// LinkPolicy carries the deployment's link settings.
type LinkPolicy struct {
	// PasswordMinLength is the minimum accepted link password length.
	PasswordMinLength int
	// BaseURL is the public prefix redemption URLs are derived from,
	// e.g. "https://files.example.com".
	BaseURL string
}

// LinkEngine issues and redeems tokenized download and upload links.
type LinkEngine struct {
	store    Store
	repos    RepoService
	resolver *Resolver
	events   EventSink
	logger   Logger
	clock    Clock
	tokens   TokenSource
	policy   LinkPolicy
}

// NewLinkEngine creates a LinkEngine with the provided dependencies.
func NewLinkEngine(store Store, repos RepoService, resolver *Resolver, events EventSink, logger Logger, clock Clock, tokens TokenSource, policy LinkPolicy) *LinkEngine {
	return &LinkEngine{
		store:    store,
		repos:    repos,
		resolver: resolver,
		events:   events,
		logger:   logger,
		clock:    clock,
		tokens:   tokens,
		policy:   policy,
	}
}

// GetOrCreateDownloadLink returns the actor's download link for
// (repoID, path), creating one if none exists.
//
// The operation is idempotent per (actor, repo, path): when a link is
// already active it is returned unchanged and the requested password and
// expiry are ignored; the first-created link's settings persist until
// the link is revoked. expireDays <= 0 means the link never expires.
func (e *LinkEngine) GetOrCreateDownloadLink(ctx context.Context, actor *model.User, repoID, linkPath string, kind model.LinkKind, password string, expireDays int) (*model.ShareLink, error) {
	if kind != model.LinkFile && kind != model.LinkDir {
		return nil, fmt.Errorf("%w: link kind must be f or d", ErrInvalidArgument)
	}

	linkPath, err := e.checkTarget(ctx, repoID, linkPath, kind)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(ctx, actor, repoID, linkPath); err != nil {
		return nil, err
	}

	hash, err := e.hashPassword(password)
	if err != nil {
		return nil, err
	}

	var expiresAt *time.Time
	if expireDays > 0 {
		t := e.clock.Now().AddDate(0, 0, expireDays)
		expiresAt = &t
	}

	link := &model.ShareLink{
		Token:        e.tokens.Token(),
		Owner:        actor.Email,
		RepoID:       repoID,
		Path:         linkPath,
		Kind:         kind,
		PasswordHash: hash,
		ExpiresAt:    expiresAt,
		CreatedAt:    e.clock.Now(),
	}
	surviving, created, err := e.store.InsertOrGetDownloadLink(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("storing download link: %w", err)
	}

	if created {
		e.emitLinkEvent(EventLinkCreated, actor.Email, repoID)
		e.logger.Info("download link created", "repo", repoID, "path", linkPath, "owner", actor.Email)
	}
	return surviving, nil
}

// GetOrCreateUploadLink returns the actor's upload link for the directory
// at (repoID, dirPath), creating one if none exists. Upload links carry
// no expiry; idempotence and password rules match download links.
func (e *LinkEngine) GetOrCreateUploadLink(ctx context.Context, actor *model.User, repoID, dirPath string, password string) (*model.UploadLink, error) {
	dirPath, err := e.checkTarget(ctx, repoID, dirPath, model.LinkDir)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(ctx, actor, repoID, dirPath); err != nil {
		return nil, err
	}

	hash, err := e.hashPassword(password)
	if err != nil {
		return nil, err
	}

	link := &model.UploadLink{
		Token:        e.tokens.Token(),
		Owner:        actor.Email,
		RepoID:       repoID,
		Path:         dirPath,
		PasswordHash: hash,
		CreatedAt:    e.clock.Now(),
	}
	surviving, created, err := e.store.InsertOrGetUploadLink(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("storing upload link: %w", err)
	}

	if created {
		e.emitLinkEvent(EventLinkCreated, actor.Email, repoID)
		e.logger.Info("upload link created", "repo", repoID, "path", dirPath, "owner", actor.Email)
	}
	return surviving, nil
}

// LookupDownloadLink returns the actor's existing download link for
// (repoID, path) without creating one, or ErrNotFound.
func (e *LinkEngine) LookupDownloadLink(ctx context.Context, actor *model.User, repoID, linkPath string, kind model.LinkKind) (*model.ShareLink, error) {
	if kind == model.LinkDir {
		var err error
		if linkPath, err = normalizeDirPath(linkPath); err != nil {
			return nil, err
		}
	}
	return e.store.DownloadLinkByPath(ctx, actor.Email, repoID, linkPath)
}

// LookupUploadLink returns the actor's existing upload link for
// (repoID, dirPath) without creating one, or ErrNotFound.
func (e *LinkEngine) LookupUploadLink(ctx context.Context, actor *model.User, repoID, dirPath string) (*model.UploadLink, error) {
	dirPath, err := normalizeDirPath(dirPath)
	if err != nil {
		return nil, err
	}
	return e.store.UploadLinkByPath(ctx, actor.Email, repoID, dirPath)
}

// ListDownloadLinks returns every download link the actor owns.
func (e *LinkEngine) ListDownloadLinks(ctx context.Context, actor *model.User) ([]*model.ShareLink, error) {
	return e.store.DownloadLinksByOwner(ctx, actor.Email)
}

// ListUploadLinks returns every upload link the actor owns.
func (e *LinkEngine) ListUploadLinks(ctx context.Context, actor *model.User) ([]*model.UploadLink, error) {
	return e.store.UploadLinksByOwner(ctx, actor.Email)
}

// Redemption is what a successful redeem hands to the caller: enough to
// stream or browse the content through the repo service.
type Redemption struct {
	RepoID string
	Path   string
	Kind   model.LinkKind
	Owner  string
}

// Redeem exchanges a download link token for a content reference.
// Failures are classified as exactly one of ErrNotFound, ErrExpired,
// ErrPasswordRequired or ErrPasswordIncorrect; nothing else about the
// link's existence leaks.
func (e *LinkEngine) Redeem(ctx context.Context, token, password string) (*Redemption, error) {
	link, err := e.store.DownloadLinkByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("looking up link: %w", err)
	}

	if link.Expired(e.clock.Now()) {
		return nil, fmt.Errorf("%w: token %s", ErrExpired, token)
	}
	if err := checkLinkPassword(link.PasswordHash, password); err != nil {
		return nil, err
	}

	return &Redemption{RepoID: link.RepoID, Path: link.Path, Kind: link.Kind, Owner: link.Owner}, nil
}

// RedeemUpload exchanges an upload link token for the target directory.
// Upload links never expire; the password gate matches Redeem.
func (e *LinkEngine) RedeemUpload(ctx context.Context, token, password string) (*Redemption, error) {
	link, err := e.store.UploadLinkByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("looking up link: %w", err)
	}
	if err := checkLinkPassword(link.PasswordHash, password); err != nil {
		return nil, err
	}
	return &Redemption{RepoID: link.RepoID, Path: link.Path, Kind: model.LinkDir, Owner: link.Owner}, nil
}

// TokenActive reports whether the token belongs to any live link,
// download or upload, that has not expired. Used to gate audit-code
// issuance for anonymous visitors.
func (e *LinkEngine) TokenActive(ctx context.Context, token string) (bool, error) {
	if link, err := e.store.DownloadLinkByToken(ctx, token); err == nil {
		return !link.Expired(e.clock.Now()), nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if _, err := e.store.UploadLinkByToken(ctx, token); err == nil {
		return true, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	return false, nil
}

// Revoke removes a download link. Only the owning user or an
// administrator may revoke.
func (e *LinkEngine) Revoke(ctx context.Context, actor *model.User, token string) error {
	link, err := e.store.DownloadLinkByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("looking up link: %w", err)
	}
	if link.Owner != actor.Email && !actor.SiteAdmin {
		return fmt.Errorf("%w: %s does not own link %s", ErrPermissionDenied, actor.Email, token)
	}
	if err := e.store.DeleteDownloadLink(ctx, token); err != nil {
		return fmt.Errorf("removing link: %w", err)
	}
	e.emitLinkEvent(EventLinkRevoked, actor.Email, link.RepoID)
	e.logger.Info("download link revoked", "token", token, "by", actor.Email)
	return nil
}

// RevokeUpload removes an upload link under the same authorization rule
// as Revoke.
func (e *LinkEngine) RevokeUpload(ctx context.Context, actor *model.User, token string) error {
	link, err := e.store.UploadLinkByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("looking up link: %w", err)
	}
	if link.Owner != actor.Email && !actor.SiteAdmin {
		return fmt.Errorf("%w: %s does not own link %s", ErrPermissionDenied, actor.Email, token)
	}
	if err := e.store.DeleteUploadLink(ctx, token); err != nil {
		return fmt.Errorf("removing link: %w", err)
	}
	e.emitLinkEvent(EventLinkRevoked, actor.Email, link.RepoID)
	e.logger.Info("upload link revoked", "token", token, "by", actor.Email)
	return nil
}

// DownloadURL derives the public redemption URL for a download link.
func (e *LinkEngine) DownloadURL(link *model.ShareLink) string {
	return fmt.Sprintf("%s/%s/%s/", strings.TrimSuffix(e.policy.BaseURL, "/"), link.Kind, link.Token)
}

// UploadURL derives the public redemption URL for an upload link.
func (e *LinkEngine) UploadURL(link *model.UploadLink) string {
	return fmt.Sprintf("%s/u/d/%s/", strings.TrimSuffix(e.policy.BaseURL, "/"), link.Token)
}

// checkTarget validates the repo and the linked object, returning the
// canonical path (directories gain a trailing separator).
func (e *LinkEngine) checkTarget(ctx context.Context, repoID, linkPath string, kind model.LinkKind) (string, error) {
	if _, err := e.repos.GetRepo(ctx, repoID); err != nil {
		return "", fmt.Errorf("looking up repo %s: %w", repoID, err)
	}

	if kind == model.LinkFile {
		linkPath, err := normalizePath(linkPath)
		if err != nil {
			return "", err
		}
		ok, err := e.repos.FileExists(ctx, repoID, linkPath)
		if err != nil {
			return "", fmt.Errorf("checking file: %w", err)
		}
		if !ok {
			return "", fmt.Errorf("%w: file %s in repo %s", ErrNotFound, linkPath, repoID)
		}
		return linkPath, nil
	}

	linkPath, err := normalizeDirPath(linkPath)
	if err != nil {
		return "", err
	}
	ok, err := e.repos.DirExists(ctx, repoID, linkPath)
	if err != nil {
		return "", fmt.Errorf("checking directory: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: directory %s in repo %s", ErrNotFound, linkPath, repoID)
	}
	return linkPath, nil
}

// authorize requires resolved read-write on the path and the account
// capability to create links. Guest account classes are refused even
// when their resolved permission would suffice.
func (e *LinkEngine) authorize(ctx context.Context, actor *model.User, repoID, linkPath string) error {
	if !actor.CanCreateLinks {
		return fmt.Errorf("%w: account class may not generate share links", ErrPermissionDenied)
	}
	perm, err := e.resolver.Resolve(ctx, actor, repoID, linkPath)
	if err != nil {
		return fmt.Errorf("resolving permission: %w", err)
	}
	if perm != model.PermReadWrite {
		return fmt.Errorf("%w: read-write access required to create a link", ErrPermissionDenied)
	}
	return nil
}

// hashPassword enforces the configured minimum length and returns the
// bcrypt hash, or nil for an empty password.
func (e *LinkEngine) hashPassword(password string) ([]byte, error) {
	if password == "" {
		return nil, nil
	}
	if len(password) < e.policy.PasswordMinLength {
		return nil, fmt.Errorf("%w: password shorter than %d characters", ErrInvalidArgument, e.policy.PasswordMinLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	return hash, nil
}

// checkLinkPassword applies the password gate for redemption.
func checkLinkPassword(hash []byte, password string) error {
	if len(hash) == 0 {
		return nil
	}
	if password == "" {
		return ErrPasswordRequired
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return ErrPasswordIncorrect
	}
	return nil
}

func (e *LinkEngine) emitLinkEvent(typ, actor, repoID string) {
	ev := Event{Type: typ, Actor: actor, RepoID: repoID, At: e.clock.Now()}
	if err := e.events.Emit(ev); err != nil {
		e.logger.Warn("link event not delivered", "type", typ, "repo", repoID, "err", err)
	}
}
