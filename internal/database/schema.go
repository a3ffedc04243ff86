package database

// Schema is the complete current schema, kept in step with the
// migrations under migrations/files. Tests apply it directly instead of
// running the migration chain.
const Schema = `
CREATE TABLE users (
    email TEXT PRIMARY KEY,
    org_id TEXT NOT NULL DEFAULT '',
    site_admin INTEGER NOT NULL DEFAULT 0,
    org_staff INTEGER NOT NULL DEFAULT 0,
    can_create_links INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE user_groups (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    org_id TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE group_members (
    group_id INTEGER NOT NULL REFERENCES user_groups(id) ON DELETE CASCADE,
    email TEXT NOT NULL,
    is_staff INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (group_id, email)
);

CREATE TABLE direct_shares (
    repo_id TEXT NOT NULL,
    target_key TEXT NOT NULL,
    target_kind INTEGER NOT NULL,
    target_email TEXT NOT NULL DEFAULT '',
    target_group_id INTEGER NOT NULL DEFAULT 0,
    shared_by TEXT NOT NULL,
    permission TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (repo_id, target_key)
);

CREATE INDEX idx_direct_shares_shared_by ON direct_shares(shared_by);

CREATE TABLE download_links (
    token TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    repo_id TEXT NOT NULL,
    path TEXT NOT NULL,
    kind TEXT NOT NULL,
    password_hash BLOB,
    expires_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX idx_download_links_owner_repo_path
    ON download_links(owner, repo_id, path);

CREATE TABLE upload_links (
    token TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    repo_id TEXT NOT NULL,
    path TEXT NOT NULL,
    password_hash BLOB,
    created_at TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX idx_upload_links_owner_repo_path
    ON upload_links(owner, repo_id, path);

CREATE TABLE virtual_repos (
    parent_id TEXT NOT NULL,
    path TEXT NOT NULL,
    repo_id TEXT NOT NULL UNIQUE,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (parent_id, path)
);
`
