// Package app is the application layer between the CLI and the share
// services. It constructs all dependencies from config, exposes
// high-level operations that accept raw strings, and manages resource
// lifecycles on Close.
package app

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"libshare/internal/cache"
	"libshare/internal/config"
	"libshare/internal/database"
	"libshare/internal/directory"
	"libshare/internal/event"
	"libshare/internal/libshare"
	"libshare/internal/mail"
	"libshare/internal/model"
	"libshare/internal/reposvc"
)

// ShareApp wires store, directory, repo service, cache, events and mail
// into the share services. The caller must call Close when done.
type ShareApp struct {
	cfg     *config.Config
	store   *database.SQLiteStore
	dir     *directory.SQLiteDirectory
	repos   libshare.RepoService
	cache   libshare.Cache
	events  libshare.EventSink
	mailer  libshare.Mailer
	logFile *os.File

	Shares     *libshare.ShareRegistry
	Links      *libshare.LinkEngine
	Resolver   *libshare.Resolver
	Trash      *libshare.TrashManager
	Codes      *libshare.AuditCodeService
	GroupRepos *libshare.GroupRepoCreator
}

// NewShareApp creates a fully wired ShareApp from the given config.
// operation identifies the CLI command being run (e.g. "ShareAdd",
// "LinkCreate") and is stamped on every log line.
func NewShareApp(ctx context.Context, cfg *config.Config, operation string) (*ShareApp, error) {
	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	if cfg.Database.Type == "memory" {
		if err := store.MigrateUp(); err != nil {
			store.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
	} else if err := store.CheckMigrations(); err != nil {
		store.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	dir := directory.NewSQLiteDirectory(store.DB())

	repos, err := reposvc.NewRepoServiceFromConfig(cfg.RepoService)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating repo service: %w", err)
	}

	cch, err := cache.NewCacheFromConfig(ctx, cfg.Cache)
	if err != nil {
		store.Close()
		repos.Close()
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	mailer, err := mail.NewMailerFromConfig(cfg.Mail)
	if err != nil {
		store.Close()
		repos.Close()
		cch.Close()
		return nil, fmt.Errorf("creating mailer: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z") + "-" + operation
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		store.Close()
		repos.Close()
		cch.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	events, err := event.NewSinkFromConfig(cfg.Events, logger)
	if err != nil {
		store.Close()
		repos.Close()
		cch.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating event sink: %w", err)
	}

	clock := libshare.RealClock{}
	tokens := libshare.RandomTokenSource{}
	policy := libshare.LinkPolicy{
		PasswordMinLength: cfg.Links.PasswordMinLength,
		BaseURL:           cfg.Links.BaseURL,
	}

	resolver := libshare.NewResolver(store, dir, repos)
	shares := libshare.NewShareRegistry(store, dir, repos, events, logger, clock)
	links := libshare.NewLinkEngine(store, repos, resolver, events, logger, clock, tokens, policy)
	trash := libshare.NewTrashManager(repos, store, logger)
	codes := libshare.NewAuditCodeService(cch, mailer, tokens, links, logger)
	groupRepos := libshare.NewGroupRepoCreator(repos, shares, dir, events, logger, clock)

	return &ShareApp{
		cfg:        cfg,
		store:      store,
		dir:        dir,
		repos:      repos,
		cache:      cch,
		events:     events,
		mailer:     mailer,
		logFile:    logFile,
		Shares:     shares,
		Links:      links,
		Resolver:   resolver,
		Trash:      trash,
		Codes:      codes,
		GroupRepos: groupRepos,
	}, nil
}

// Directory exposes the principal directory for seeding commands.
func (a *ShareApp) Directory() *directory.SQLiteDirectory { return a.dir }

// actor loads the acting user by email.
func (a *ShareApp) actor(ctx context.Context, email string) (*model.User, error) {
	u, err := a.dir.GetUser(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("loading user %s: %w", email, err)
	}
	return u, nil
}

// ParseTarget parses the CLI spelling of a share target: an email
// address, "group:<id>", or "public".
func ParseTarget(spec string) (model.ShareTarget, error) {
	switch {
	case spec == "public":
		return model.PublicTarget(), nil
	case strings.HasPrefix(spec, "group:"):
		id, err := strconv.ParseInt(strings.TrimPrefix(spec, "group:"), 10, 64)
		if err != nil {
			return model.ShareTarget{}, fmt.Errorf("%w: invalid group id in %q", libshare.ErrInvalidArgument, spec)
		}
		return model.GroupTarget(id), nil
	default:
		return model.UserTarget(spec), nil
	}
}

// Share grants target the permission ("r" or "rw") on (repoID, path).
func (a *ShareApp) Share(ctx context.Context, actorEmail, repoID, path, targetSpec, permStr string) (*model.DirectShare, error) {
	actor, err := a.actor(ctx, actorEmail)
	if err != nil {
		return nil, err
	}
	target, err := ParseTarget(targetSpec)
	if err != nil {
		return nil, err
	}
	perm, err := model.ParsePermission(permStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", libshare.ErrInvalidArgument, err)
	}
	return a.Shares.Share(ctx, actor, repoID, path, target, perm)
}

// Unshare removes the grant for (repoID, target).
func (a *ShareApp) Unshare(ctx context.Context, actorEmail, repoID, targetSpec string) error {
	actor, err := a.actor(ctx, actorEmail)
	if err != nil {
		return err
	}
	target, err := ParseTarget(targetSpec)
	if err != nil {
		return err
	}
	return a.Shares.Unshare(ctx, actor, repoID, target)
}

// ListShares lists grants: on one repo when repoID is non-empty,
// otherwise everything the actor has shared.
func (a *ShareApp) ListShares(ctx context.Context, actorEmail, repoID string) ([]*model.DirectShare, error) {
	actor, err := a.actor(ctx, actorEmail)
	if err != nil {
		return nil, err
	}
	if repoID != "" {
		return a.Shares.ListSharesForRepo(ctx, actor, repoID)
	}
	return a.Shares.ListSharesByOwner(ctx, actor)
}

// LinkResult pairs a created or fetched link with its public URL.
type LinkResult struct {
	Token     string
	URL       string
	Kind      model.LinkKind
	RepoID    string
	Path      string
	Protected bool
	ExpiresAt *time.Time
	CreatedAt time.Time
}

func (a *ShareApp) downloadResult(link *model.ShareLink) *LinkResult {
	return &LinkResult{
		Token:     link.Token,
		URL:       a.Links.DownloadURL(link),
		Kind:      link.Kind,
		RepoID:    link.RepoID,
		Path:      link.Path,
		Protected: link.Protected(),
		ExpiresAt: link.ExpiresAt,
		CreatedAt: link.CreatedAt,
	}
}

func (a *ShareApp) uploadResult(link *model.UploadLink) *LinkResult {
	return &LinkResult{
		Token:     link.Token,
		URL:       a.Links.UploadURL(link),
		Kind:      model.LinkDir,
		RepoID:    link.RepoID,
		Path:      link.Path,
		Protected: link.Protected(),
		CreatedAt: link.CreatedAt,
	}
}

// CreateDownloadLink returns the actor's download link for (repoID, path),
// creating one if none exists. dir selects a directory link.
func (a *ShareApp) CreateDownloadLink(ctx context.Context, actorEmail, repoID, path string, dir bool, password string, expireDays int) (*LinkResult, error) {
	actor, err := a.actor(ctx, actorEmail)
	if err != nil {
		return nil, err
	}
	kind := model.LinkFile
	if dir {
		kind = model.LinkDir
	}
	link, err := a.Links.GetOrCreateDownloadLink(ctx, actor, repoID, path, kind, password, expireDays)
	if err != nil {
		return nil, err
	}
	return a.downloadResult(link), nil
}

// CreateUploadLink returns the actor's upload link for the directory at
// (repoID, path), creating one if none exists.
func (a *ShareApp) CreateUploadLink(ctx context.Context, actorEmail, repoID, path, password string) (*LinkResult, error) {
	actor, err := a.actor(ctx, actorEmail)
	if err != nil {
		return nil, err
	}
	link, err := a.Links.GetOrCreateUploadLink(ctx, actor, repoID, path, password)
	if err != nil {
		return nil, err
	}
	return a.uploadResult(link), nil
}

// GetDownloadLink returns the actor's existing download link without
// creating one.
func (a *ShareApp) GetDownloadLink(ctx context.Context, actorEmail, repoID, path string, dir bool) (*LinkResult, error) {
	actor, err := a.actor(ctx, actorEmail)
	if err != nil {
		return nil, err
	}
	kind := model.LinkFile
	if dir {
		kind = model.LinkDir
	}
	link, err := a.Links.LookupDownloadLink(ctx, actor, repoID, path, kind)
	if err != nil {
		return nil, err
	}
	return a.downloadResult(link), nil
}

// ListLinks returns every link the actor owns, download and upload.
func (a *ShareApp) ListLinks(ctx context.Context, actorEmail string) ([]*LinkResult, error) {
	actor, err := a.actor(ctx, actorEmail)
	if err != nil {
		return nil, err
	}
	downloads, err := a.Links.ListDownloadLinks(ctx, actor)
	if err != nil {
		return nil, err
	}
	uploads, err := a.Links.ListUploadLinks(ctx, actor)
	if err != nil {
		return nil, err
	}
	results := make([]*LinkResult, 0, len(downloads)+len(uploads))
	for _, l := range downloads {
		results = append(results, a.downloadResult(l))
	}
	for _, l := range uploads {
		results = append(results, a.uploadResult(l))
	}
	return results, nil
}

// RevokeLink removes the link with the given token, whichever table it
// lives in.
func (a *ShareApp) RevokeLink(ctx context.Context, actorEmail, token string) error {
	actor, err := a.actor(ctx, actorEmail)
	if err != nil {
		return err
	}
	err = a.Links.Revoke(ctx, actor, token)
	if err == nil {
		return nil
	}
	if upErr := a.Links.RevokeUpload(ctx, actor, token); upErr == nil {
		return nil
	}
	return err
}

// Redeem exchanges a download link token for a content reference.
func (a *ShareApp) Redeem(ctx context.Context, token, password string) (*libshare.Redemption, error) {
	return a.Links.Redeem(ctx, token, password)
}

// RedeemUpload exchanges an upload link token for its target directory.
func (a *ShareApp) RedeemUpload(ctx context.Context, token, password string) (*libshare.Redemption, error) {
	return a.Links.RedeemUpload(ctx, token, password)
}

// ListTrash lists trashed repos, optionally filtered to one owner.
func (a *ShareApp) ListTrash(ctx context.Context, actorEmail, owner string) ([]*model.Repo, error) {
	actor, err := a.actor(ctx, actorEmail)
	if err != nil {
		return nil, err
	}
	return a.Trash.List(ctx, actor, owner)
}

// RestoreTrash moves a repo out of trash.
func (a *ShareApp) RestoreTrash(ctx context.Context, actorEmail, repoID string) error {
	actor, err := a.actor(ctx, actorEmail)
	if err != nil {
		return err
	}
	return a.Trash.Restore(ctx, actor, repoID)
}

// PurgeTrash permanently deletes one trashed repo.
func (a *ShareApp) PurgeTrash(ctx context.Context, actorEmail, repoID string) error {
	actor, err := a.actor(ctx, actorEmail)
	if err != nil {
		return err
	}
	return a.Trash.PurgeOne(ctx, actor, repoID)
}

// EmptyTrash permanently deletes all trashed repos, or one owner's.
func (a *ShareApp) EmptyTrash(ctx context.Context, actorEmail, owner string) error {
	actor, err := a.actor(ctx, actorEmail)
	if err != nil {
		return err
	}
	return a.Trash.PurgeAll(ctx, actor, owner)
}

// IssueCode issues an audit code for email against a live link token.
func (a *ShareApp) IssueCode(ctx context.Context, linkToken, email string) error {
	return a.Codes.Issue(ctx, linkToken, email)
}

// VerifyCode reports whether code matches the one issued for email.
func (a *ShareApp) VerifyCode(ctx context.Context, email, code string) (bool, error) {
	return a.Codes.Verify(ctx, email, code)
}

// CreateGroupRepo creates a repo and shares it read-write to the group.
func (a *ShareApp) CreateGroupRepo(ctx context.Context, actorEmail string, groupID int64, name string) (string, error) {
	actor, err := a.actor(ctx, actorEmail)
	if err != nil {
		return "", err
	}
	return a.GroupRepos.CreateGroupRepo(ctx, actor, groupID, name)
}

// Close releases every resource the app holds.
func (a *ShareApp) Close() error {
	var firstErr error

	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}
	if err := a.repos.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing repo service: %w", err)
	}
	if err := a.cache.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing cache: %w", err)
	}
	if closer, ok := a.events.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing event sink: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
