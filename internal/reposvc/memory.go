// Package reposvc provides implementations of the external repo/content
// service boundary: an in-memory service for tests and single-node
// deployments, and an HTTP client for a remote daemon.
package reposvc

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"libshare/internal/libshare"
	"libshare/internal/model"
)

// MemoryRepoService is a complete in-process repo service. Repos, their
// trash state, virtual repos and path existence all live in memory.
type MemoryRepoService struct {
	mu      sync.Mutex
	ids     libshare.IDGenerator
	repos   map[string]*model.Repo
	virtual map[string]string          // parentID + "\x00" + path -> repo id
	files   map[string]map[string]bool // repo id -> file path set
	dirs    map[string]map[string]bool // repo id -> dir path set
}

// NewMemoryRepoService creates an empty in-memory repo service. New repo
// ids come from the given generator.
func NewMemoryRepoService(ids libshare.IDGenerator) *MemoryRepoService {
	return &MemoryRepoService{
		ids:     ids,
		repos:   make(map[string]*model.Repo),
		virtual: make(map[string]string),
		files:   make(map[string]map[string]bool),
		dirs:    make(map[string]map[string]bool),
	}
}

func (m *MemoryRepoService) GetRepo(_ context.Context, repoID string) (*model.Repo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	repo, ok := m.repos[repoID]
	if !ok || repo.DeletedAt != nil {
		return nil, fmt.Errorf("%w: repo %s", libshare.ErrNotFound, repoID)
	}
	cp := *repo
	return &cp, nil
}

func (m *MemoryRepoService) FileExists(_ context.Context, repoID, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[repoID][path], nil
}

func (m *MemoryRepoService) DirExists(_ context.Context, repoID, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if path == "/" {
		_, ok := m.repos[repoID]
		return ok, nil
	}
	return m.dirs[repoID][path], nil
}

func (m *MemoryRepoService) CreateRepo(_ context.Context, name, owner, orgID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.ids.New()
	m.repos[id] = &model.Repo{ID: id, Name: name, Owner: owner, OrgID: orgID}
	return id, nil
}

func (m *MemoryRepoService) RemoveRepo(_ context.Context, repoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.repos[repoID]; !ok {
		return fmt.Errorf("%w: repo %s", libshare.ErrNotFound, repoID)
	}
	delete(m.repos, repoID)
	delete(m.files, repoID)
	delete(m.dirs, repoID)
	return nil
}

func (m *MemoryRepoService) GetVirtualRepo(_ context.Context, parentID, path, _ string) (*model.Repo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.virtual[virtualKey(parentID, path)]
	if !ok {
		return nil, fmt.Errorf("%w: virtual repo at %s%s", libshare.ErrNotFound, parentID, path)
	}
	cp := *m.repos[id]
	return &cp, nil
}

func (m *MemoryRepoService) CreateVirtualRepo(_ context.Context, parentID, path, name string, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := virtualKey(parentID, path)
	// At most one virtual repo per (parent, path); a concurrent creator
	// gets the survivor back.
	if id, ok := m.virtual[key]; ok {
		return id, nil
	}
	parent, ok := m.repos[parentID]
	if !ok {
		return "", fmt.Errorf("%w: repo %s", libshare.ErrNotFound, parentID)
	}
	id := m.ids.New()
	m.repos[id] = &model.Repo{ID: id, Name: name, Owner: parent.Owner, OrgID: parent.OrgID}
	m.virtual[key] = id
	return id, nil
}

func (m *MemoryRepoService) IsRepoOwner(_ context.Context, email, repoID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	repo, ok := m.repos[repoID]
	return ok && repo.Owner == email, nil
}

func (m *MemoryRepoService) GetRepoOwner(_ context.Context, repoID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	repo, ok := m.repos[repoID]
	if !ok {
		return "", fmt.Errorf("%w: repo %s", libshare.ErrNotFound, repoID)
	}
	return repo.Owner, nil
}

func (m *MemoryRepoService) ListTrash(_ context.Context, owner string) ([]*model.Repo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	trashed := []*model.Repo{}
	for _, repo := range m.repos {
		if repo.DeletedAt == nil {
			continue
		}
		if owner != "" && repo.Owner != owner {
			continue
		}
		cp := *repo
		trashed = append(trashed, &cp)
	}
	return trashed, nil
}

func (m *MemoryRepoService) RestoreFromTrash(_ context.Context, repoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	repo, ok := m.repos[repoID]
	if !ok || repo.DeletedAt == nil {
		return fmt.Errorf("%w: repo %s is not in trash", libshare.ErrNotFound, repoID)
	}
	repo.DeletedAt = nil
	return nil
}

func (m *MemoryRepoService) PurgeFromTrash(_ context.Context, repoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	repo, ok := m.repos[repoID]
	if !ok || repo.DeletedAt == nil {
		return fmt.Errorf("%w: repo %s is not in trash", libshare.ErrNotFound, repoID)
	}
	delete(m.repos, repoID)
	delete(m.files, repoID)
	delete(m.dirs, repoID)
	return nil
}

func (m *MemoryRepoService) EmptyTrash(_ context.Context, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, repo := range m.repos {
		if repo.DeletedAt == nil {
			continue
		}
		if owner != "" && repo.Owner != owner {
			continue
		}
		delete(m.repos, id)
		delete(m.files, id)
		delete(m.dirs, id)
	}
	return nil
}

func (m *MemoryRepoService) Close() error { return nil }

// Seeding helpers for tests and single-node bootstrap.

// AddRepo registers an existing repo.
func (m *MemoryRepoService) AddRepo(repo *model.Repo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *repo
	m.repos[repo.ID] = &cp
}

// AddFile marks a file path as existing inside a repo.
func (m *MemoryRepoService) AddFile(repoID, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files[repoID] == nil {
		m.files[repoID] = make(map[string]bool)
	}
	m.files[repoID][path] = true
	// Parent directories exist implicitly.
	m.addDirsLocked(repoID, path)
}

// AddDir marks a directory path (trailing-slash form) as existing.
func (m *MemoryRepoService) AddDir(repoID, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dirs[repoID] == nil {
		m.dirs[repoID] = make(map[string]bool)
	}
	m.dirs[repoID][path] = true
}

// ActiveRepos returns every repo not in trash, optionally filtered to
// one owner.
func (m *MemoryRepoService) ActiveRepos(owner string) []*model.Repo {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := []*model.Repo{}
	for _, repo := range m.repos {
		if repo.DeletedAt != nil {
			continue
		}
		if owner != "" && repo.Owner != owner {
			continue
		}
		cp := *repo
		active = append(active, &cp)
	}
	return active
}

// Trash moves a repo into trash at the given time.
func (m *MemoryRepoService) Trash(repoID string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if repo, ok := m.repos[repoID]; ok {
		repo.DeletedAt = &at
	}
}

func (m *MemoryRepoService) addDirsLocked(repoID, filePath string) {
	if m.dirs[repoID] == nil {
		m.dirs[repoID] = make(map[string]bool)
	}
	parts := strings.Split(strings.TrimPrefix(filePath, "/"), "/")
	prefix := "/"
	for _, p := range parts[:len(parts)-1] {
		prefix += p + "/"
		m.dirs[repoID][prefix] = true
	}
}

func virtualKey(parentID, path string) string {
	return parentID + "\x00" + path
}
