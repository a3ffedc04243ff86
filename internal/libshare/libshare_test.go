package libshare_test

import (
	"context"
	"errors"
	"testing"

	"libshare/internal/cache"
	"libshare/internal/directory"
	"libshare/internal/libshare"
	"libshare/internal/model"
	"libshare/internal/reposvc"
	"libshare/internal/testutil"
)

// env wires the services against in-memory backends for tests.
type env struct {
	dir    *directory.SQLiteDirectory
	repos  *reposvc.MemoryRepoService
	sink   *testutil.RecordingSink
	mailer *testutil.RecordingMailer
	cache  *cache.MemoryCache
	clock  *testutil.StubClock
	tokens *testutil.StubTokenSource
	ids    *testutil.StubIDGenerator

	resolver *libshare.Resolver
	shares   *libshare.ShareRegistry
	links    *libshare.LinkEngine
	trash    *libshare.TrashManager
	codes    *libshare.AuditCodeService
	groups   *libshare.GroupRepoCreator
}

func newEnv(t *testing.T) *env {
	t.Helper()

	store := testutil.NewTestDatabase(t)
	dir := testutil.NewTestDirectory(t, store)
	ids := testutil.NewStubIDGenerator()
	repos := reposvc.NewMemoryRepoService(ids)
	sink := testutil.NewRecordingSink()
	mailer := testutil.NewRecordingMailer()
	cch := cache.NewMemoryCache()
	clock := testutil.FixedClock()
	tokens := testutil.NewStubTokenSource()
	logger := libshare.NewNopLogger()

	policy := libshare.LinkPolicy{
		PasswordMinLength: 8,
		BaseURL:           "https://files.example.com",
	}

	resolver := libshare.NewResolver(store, dir, repos)
	shares := libshare.NewShareRegistry(store, dir, repos, sink, logger, clock)
	links := libshare.NewLinkEngine(store, repos, resolver, sink, logger, clock, tokens, policy)
	trash := libshare.NewTrashManager(repos, store, logger)
	codes := libshare.NewAuditCodeService(cch, mailer, tokens, links, logger)
	groups := libshare.NewGroupRepoCreator(repos, shares, dir, sink, logger, clock)

	return &env{
		dir:      dir,
		repos:    repos,
		sink:     sink,
		mailer:   mailer,
		cache:    cch,
		clock:    clock,
		tokens:   tokens,
		ids:      ids,
		resolver: resolver,
		shares:   shares,
		links:    links,
		trash:    trash,
		codes:    codes,
		groups:   groups,
	}
}

// user registers a user and returns it.
func (e *env) user(t *testing.T, email string, mod ...func(*model.User)) *model.User {
	t.Helper()
	u := &model.User{Email: email, CanCreateLinks: true}
	for _, m := range mod {
		m(u)
	}
	if err := e.dir.AddUser(context.Background(), u); err != nil {
		t.Fatalf("AddUser(%s) error = %v", email, err)
	}
	return u
}

func asAdmin(u *model.User) { u.SiteAdmin = true }

func asGuest(u *model.User) { u.CanCreateLinks = false }

// group creates a group with the given members; staff lists staff emails.
func (e *env) group(t *testing.T, name string, members []string, staff ...string) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := e.dir.AddGroup(ctx, name, "")
	if err != nil {
		t.Fatalf("AddGroup(%s) error = %v", name, err)
	}
	isStaff := map[string]bool{}
	for _, s := range staff {
		isStaff[s] = true
	}
	for _, m := range members {
		if err := e.dir.AddMember(ctx, id, m, isStaff[m]); err != nil {
			t.Fatalf("AddMember(%s) error = %v", m, err)
		}
	}
	for _, s := range staff {
		if !contains(members, s) {
			if err := e.dir.AddMember(ctx, id, s, true); err != nil {
				t.Fatalf("AddMember(%s) error = %v", s, err)
			}
		}
	}
	return id
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// testStore returns a fresh in-memory store.
func testStore(t *testing.T) libshare.Store {
	t.Helper()
	return testutil.NewTestDatabase(t)
}

// failingStore fails every share write.
type failingStore struct {
	libshare.Store
}

func (failingStore) UpsertShare(context.Context, *model.DirectShare) (bool, error) {
	return false, errors.New("share table unavailable")
}

// repo registers a repo with a file at /report.pdf and a directory /docs/
// holding /docs/notes.txt.
func (e *env) repo(t *testing.T, id, owner string) *model.Repo {
	t.Helper()
	r := &model.Repo{ID: id, Name: id, Owner: owner}
	e.repos.AddRepo(r)
	e.repos.AddFile(id, "/report.pdf")
	e.repos.AddDir(id, "/docs/")
	e.repos.AddFile(id, "/docs/notes.txt")
	return r
}
