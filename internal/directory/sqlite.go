// Package directory resolves principals: registered users, groups,
// membership and staff standing. It is consulted, never mutated, by the
// share registry; the seeding operations exist for administration and
// tests.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"libshare/internal/libshare"
	"libshare/internal/model"
)

// SQLiteDirectory implements libshare.Directory over the same SQLite
// connection the store uses.
type SQLiteDirectory struct {
	db *sql.DB
}

// NewSQLiteDirectory wraps an existing connection. The caller owns the
// connection's lifecycle.
func NewSQLiteDirectory(db *sql.DB) *SQLiteDirectory {
	return &SQLiteDirectory{db: db}
}

func (d *SQLiteDirectory) UserExists(ctx context.Context, email, orgID string) (bool, error) {
	query := "SELECT count(*) FROM users WHERE email = ?"
	args := []any{email}
	if orgID != "" {
		query += " AND org_id = ?"
		args = append(args, orgID)
	}
	var n int
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("checking user: %w", err)
	}
	return n > 0, nil
}

func (d *SQLiteDirectory) GetUser(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := d.db.QueryRowContext(ctx,
		"SELECT email, org_id, site_admin, org_staff, can_create_links FROM users WHERE email = ?",
		email).Scan(&u.Email, &u.OrgID, &u.SiteAdmin, &u.OrgStaff, &u.CanCreateLinks)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", libshare.ErrNotFound, email)
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return &u, nil
}

func (d *SQLiteDirectory) GetGroup(ctx context.Context, groupID int64) (*model.Group, error) {
	var g model.Group
	err := d.db.QueryRowContext(ctx,
		"SELECT id, name, org_id, created_at FROM user_groups WHERE id = ?",
		groupID).Scan(&g.ID, &g.Name, &g.OrgID, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: group %d", libshare.ErrNotFound, groupID)
		}
		return nil, fmt.Errorf("finding group: %w", err)
	}
	return &g, nil
}

func (d *SQLiteDirectory) IsGroupMember(ctx context.Context, groupID int64, email string) (bool, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		"SELECT count(*) FROM group_members WHERE group_id = ? AND email = ?",
		groupID, email).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking group membership: %w", err)
	}
	return n > 0, nil
}

func (d *SQLiteDirectory) IsGroupStaff(ctx context.Context, groupID int64, email string) (bool, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		"SELECT count(*) FROM group_members WHERE group_id = ? AND email = ? AND is_staff = 1",
		groupID, email).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking group staff: %w", err)
	}
	return n > 0, nil
}

func (d *SQLiteDirectory) GroupsForUser(ctx context.Context, email string) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT group_id FROM group_members WHERE email = ?", email)
	if err != nil {
		return nil, fmt.Errorf("querying group membership: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning group id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating group ids: %w", err)
	}
	return ids, nil
}

// Seeding operations

// AddUser registers a user. Re-adding an existing email replaces the
// account flags.
func (d *SQLiteDirectory) AddUser(ctx context.Context, u *model.User) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO users (email, org_id, site_admin, org_staff, can_create_links, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			org_id = excluded.org_id,
			site_admin = excluded.site_admin,
			org_staff = excluded.org_staff,
			can_create_links = excluded.can_create_links`,
		u.Email, u.OrgID, u.SiteAdmin, u.OrgStaff, u.CanCreateLinks, time.Now())
	if err != nil {
		return fmt.Errorf("adding user: %w", err)
	}
	return nil
}

// AddGroup creates a group and returns its id.
func (d *SQLiteDirectory) AddGroup(ctx context.Context, name, orgID string) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		"INSERT INTO user_groups (name, org_id, created_at) VALUES (?, ?, ?)",
		name, orgID, time.Now())
	if err != nil {
		return 0, fmt.Errorf("adding group: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading group id: %w", err)
	}
	return id, nil
}

// AddMember puts email into the group, optionally as staff.
func (d *SQLiteDirectory) AddMember(ctx context.Context, groupID int64, email string, staff bool) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO group_members (group_id, email, is_staff)
		VALUES (?, ?, ?)
		ON CONFLICT(group_id, email) DO UPDATE SET is_staff = excluded.is_staff`,
		groupID, email, staff)
	if err != nil {
		return fmt.Errorf("adding group member: %w", err)
	}
	return nil
}

// RemoveMember takes email out of the group.
func (d *SQLiteDirectory) RemoveMember(ctx context.Context, groupID int64, email string) error {
	if _, err := d.db.ExecContext(ctx,
		"DELETE FROM group_members WHERE group_id = ? AND email = ?",
		groupID, email); err != nil {
		return fmt.Errorf("removing group member: %w", err)
	}
	return nil
}
