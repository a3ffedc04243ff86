package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"libshare/internal/database/migrations"
	"libshare/internal/libshare"
	"libshare/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements the libshare.Store interface using SQLite.
//
// All insert-or-get operations lean on the schema's unique constraints:
// a bare INSERT ... ON CONFLICT DO NOTHING followed by a re-select, so
// concurrent creators for the same key converge on one surviving row
// without any process-level locking.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens a SQLite store at path.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// NewSQLiteStoreFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenConnection opens and configures a SQLite connection with the
// PRAGMAs this store depends on. Exported for tools and tests.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Writers back off instead of failing immediately on a locked database.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// CheckMigrations verifies the schema is at the latest version.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrateUp brings the schema to the latest version.
func (s *SQLiteStore) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// DB exposes the underlying connection for sibling stores sharing it.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Direct shares

func (s *SQLiteStore) UpsertShare(ctx context.Context, share *model.DirectShare) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO direct_shares (repo_id, target_key, target_kind, target_email, target_group_id, shared_by, permission, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_id, target_key) DO NOTHING`,
		share.RepoID, share.Target.Key(), share.Target.Kind, share.Target.Email,
		share.Target.GroupID, share.SharedBy, share.Perm.String(), share.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("inserting share: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking affected rows: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	// The grant already exists; only the permission and grantor move.
	_, err = s.db.ExecContext(ctx, `
		UPDATE direct_shares SET permission = ?, shared_by = ?
		WHERE repo_id = ? AND target_key = ?`,
		share.Perm.String(), share.SharedBy, share.RepoID, share.Target.Key())
	if err != nil {
		return false, fmt.Errorf("updating share: %w", err)
	}
	return false, nil
}

func (s *SQLiteStore) DeleteShare(ctx context.Context, repoID string, target model.ShareTarget) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM direct_shares WHERE repo_id = ? AND target_key = ?",
		repoID, target.Key())
	if err != nil {
		return fmt.Errorf("deleting share: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: share of repo %s to %s", libshare.ErrNotFound, repoID, target.Key())
	}
	return nil
}

func (s *SQLiteStore) SharesForRepo(ctx context.Context, repoID string) ([]*model.DirectShare, error) {
	return s.queryShares(ctx,
		"SELECT repo_id, target_kind, target_email, target_group_id, shared_by, permission, created_at FROM direct_shares WHERE repo_id = ?",
		repoID)
}

func (s *SQLiteStore) SharesByOwner(ctx context.Context, email string) ([]*model.DirectShare, error) {
	return s.queryShares(ctx,
		"SELECT repo_id, target_kind, target_email, target_group_id, shared_by, permission, created_at FROM direct_shares WHERE shared_by = ?",
		email)
}

func (s *SQLiteStore) DeleteSharesForRepo(ctx context.Context, repoID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM direct_shares WHERE repo_id = ?", repoID); err != nil {
		return fmt.Errorf("deleting shares for repo: %w", err)
	}
	return nil
}

func (s *SQLiteStore) queryShares(ctx context.Context, query string, args ...any) ([]*model.DirectShare, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying shares: %w", err)
	}
	defer rows.Close()

	shares := []*model.DirectShare{}
	for rows.Next() {
		var (
			share   model.DirectShare
			kind    int
			email   string
			groupID int64
			perm    string
		)
		if err := rows.Scan(&share.RepoID, &kind, &email, &groupID, &share.SharedBy, &perm, &share.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning share: %w", err)
		}
		switch model.TargetKind(kind) {
		case model.TargetUser:
			share.Target = model.UserTarget(email)
		case model.TargetGroup:
			share.Target = model.GroupTarget(groupID)
		default:
			share.Target = model.PublicTarget()
		}
		share.Perm, err = model.ParsePermission(perm)
		if err != nil {
			return nil, fmt.Errorf("scanning share: %w", err)
		}
		shares = append(shares, &share)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating shares: %w", err)
	}
	return shares, nil
}

// Download links

func (s *SQLiteStore) InsertOrGetDownloadLink(ctx context.Context, link *model.ShareLink) (*model.ShareLink, bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO download_links (token, owner, repo_id, path, kind, password_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		link.Token, link.Owner, link.RepoID, link.Path, string(link.Kind),
		link.PasswordHash, nullTime(link.ExpiresAt), link.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("inserting download link: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("checking affected rows: %w", err)
	}

	surviving, err := s.DownloadLinkByPath(ctx, link.Owner, link.RepoID, link.Path)
	if err != nil {
		return nil, false, err
	}
	return surviving, n == 1, nil
}

func (s *SQLiteStore) DownloadLinkByToken(ctx context.Context, token string) (*model.ShareLink, error) {
	return s.scanDownloadLink(s.db.QueryRowContext(ctx,
		"SELECT token, owner, repo_id, path, kind, password_hash, expires_at, created_at FROM download_links WHERE token = ?",
		token), "token "+token)
}

func (s *SQLiteStore) DownloadLinkByPath(ctx context.Context, owner, repoID, path string) (*model.ShareLink, error) {
	return s.scanDownloadLink(s.db.QueryRowContext(ctx,
		"SELECT token, owner, repo_id, path, kind, password_hash, expires_at, created_at FROM download_links WHERE owner = ? AND repo_id = ? AND path = ?",
		owner, repoID, path), fmt.Sprintf("link for %s on %s%s", owner, repoID, path))
}

func (s *SQLiteStore) DeleteDownloadLink(ctx context.Context, token string) error {
	return s.deleteByToken(ctx, "download_links", token)
}

func (s *SQLiteStore) DownloadLinksByOwner(ctx context.Context, email string) ([]*model.ShareLink, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT token, owner, repo_id, path, kind, password_hash, expires_at, created_at FROM download_links WHERE owner = ? ORDER BY created_at",
		email)
	if err != nil {
		return nil, fmt.Errorf("querying download links: %w", err)
	}
	defer rows.Close()

	links := []*model.ShareLink{}
	for rows.Next() {
		var (
			link    model.ShareLink
			kind    string
			expires sql.NullTime
		)
		if err := rows.Scan(&link.Token, &link.Owner, &link.RepoID, &link.Path, &kind, &link.PasswordHash, &expires, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning download link: %w", err)
		}
		link.Kind = model.LinkKind(kind)
		if expires.Valid {
			t := expires.Time
			link.ExpiresAt = &t
		}
		links = append(links, &link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating download links: %w", err)
	}
	return links, nil
}

func (s *SQLiteStore) scanDownloadLink(row *sql.Row, desc string) (*model.ShareLink, error) {
	var (
		link    model.ShareLink
		kind    string
		expires sql.NullTime
	)
	err := row.Scan(&link.Token, &link.Owner, &link.RepoID, &link.Path, &kind, &link.PasswordHash, &expires, &link.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: download link: %s", libshare.ErrNotFound, desc)
		}
		return nil, fmt.Errorf("finding download link: %w", err)
	}
	link.Kind = model.LinkKind(kind)
	if expires.Valid {
		t := expires.Time
		link.ExpiresAt = &t
	}
	return &link, nil
}

// Upload links

func (s *SQLiteStore) InsertOrGetUploadLink(ctx context.Context, link *model.UploadLink) (*model.UploadLink, bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO upload_links (token, owner, repo_id, path, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		link.Token, link.Owner, link.RepoID, link.Path, link.PasswordHash, link.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("inserting upload link: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("checking affected rows: %w", err)
	}

	surviving, err := s.UploadLinkByPath(ctx, link.Owner, link.RepoID, link.Path)
	if err != nil {
		return nil, false, err
	}
	return surviving, n == 1, nil
}

func (s *SQLiteStore) UploadLinkByToken(ctx context.Context, token string) (*model.UploadLink, error) {
	return s.scanUploadLink(s.db.QueryRowContext(ctx,
		"SELECT token, owner, repo_id, path, password_hash, created_at FROM upload_links WHERE token = ?",
		token), "token "+token)
}

func (s *SQLiteStore) UploadLinkByPath(ctx context.Context, owner, repoID, path string) (*model.UploadLink, error) {
	return s.scanUploadLink(s.db.QueryRowContext(ctx,
		"SELECT token, owner, repo_id, path, password_hash, created_at FROM upload_links WHERE owner = ? AND repo_id = ? AND path = ?",
		owner, repoID, path), fmt.Sprintf("link for %s on %s%s", owner, repoID, path))
}

func (s *SQLiteStore) DeleteUploadLink(ctx context.Context, token string) error {
	return s.deleteByToken(ctx, "upload_links", token)
}

func (s *SQLiteStore) UploadLinksByOwner(ctx context.Context, email string) ([]*model.UploadLink, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT token, owner, repo_id, path, password_hash, created_at FROM upload_links WHERE owner = ? ORDER BY created_at",
		email)
	if err != nil {
		return nil, fmt.Errorf("querying upload links: %w", err)
	}
	defer rows.Close()

	links := []*model.UploadLink{}
	for rows.Next() {
		var link model.UploadLink
		if err := rows.Scan(&link.Token, &link.Owner, &link.RepoID, &link.Path, &link.PasswordHash, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning upload link: %w", err)
		}
		links = append(links, &link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating upload links: %w", err)
	}
	return links, nil
}

func (s *SQLiteStore) scanUploadLink(row *sql.Row, desc string) (*model.UploadLink, error) {
	var link model.UploadLink
	err := row.Scan(&link.Token, &link.Owner, &link.RepoID, &link.Path, &link.PasswordHash, &link.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: upload link: %s", libshare.ErrNotFound, desc)
		}
		return nil, fmt.Errorf("finding upload link: %w", err)
	}
	return &link, nil
}

// Virtual repos

func (s *SQLiteStore) InsertOrGetVirtualRepo(ctx context.Context, vr *model.VirtualRepo) (*model.VirtualRepo, bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO virtual_repos (parent_id, path, repo_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		vr.ParentID, vr.Path, vr.RepoID, vr.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("inserting virtual repo: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("checking affected rows: %w", err)
	}

	surviving, err := s.VirtualRepo(ctx, vr.ParentID, vr.Path)
	if err != nil {
		return nil, false, err
	}
	return surviving, n == 1, nil
}

func (s *SQLiteStore) VirtualRepo(ctx context.Context, parentID, path string) (*model.VirtualRepo, error) {
	var vr model.VirtualRepo
	err := s.db.QueryRowContext(ctx,
		"SELECT parent_id, path, repo_id, created_at FROM virtual_repos WHERE parent_id = ? AND path = ?",
		parentID, path).Scan(&vr.ParentID, &vr.Path, &vr.RepoID, &vr.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: virtual repo at %s%s", libshare.ErrNotFound, parentID, path)
		}
		return nil, fmt.Errorf("finding virtual repo: %w", err)
	}
	return &vr, nil
}

func (s *SQLiteStore) VirtualReposForParent(ctx context.Context, parentID string) ([]*model.VirtualRepo, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT parent_id, path, repo_id, created_at FROM virtual_repos WHERE parent_id = ?",
		parentID)
	if err != nil {
		return nil, fmt.Errorf("querying virtual repos: %w", err)
	}
	defer rows.Close()

	vrepos := []*model.VirtualRepo{}
	for rows.Next() {
		var vr model.VirtualRepo
		if err := rows.Scan(&vr.ParentID, &vr.Path, &vr.RepoID, &vr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning virtual repo: %w", err)
		}
		vrepos = append(vrepos, &vr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating virtual repos: %w", err)
	}
	return vrepos, nil
}

func (s *SQLiteStore) deleteByToken(ctx context.Context, table, token string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE token = ?", token)
	if err != nil {
		return fmt.Errorf("deleting link: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: link token %s", libshare.ErrNotFound, token)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
