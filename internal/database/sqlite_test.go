package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"libshare/internal/libshare"
	"libshare/internal/model"
)

// newTestStore creates a new in-memory store with schema applied.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	// Every pool connection to :memory: would get its own database, so
	// pin the pool to one connection.
	store.db.SetMaxOpenConns(1)

	if _, err := store.db.Exec(Schema); err != nil {
		store.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func TestSQLiteStore_UpsertShare(t *testing.T) {
	ctx := context.Background()

	t.Run("creates new share", func(t *testing.T) {
		store := newTestStore(t)

		created, err := store.UpsertShare(ctx, &model.DirectShare{
			RepoID:    "repo-1",
			Target:    model.UserTarget("bob@example.com"),
			SharedBy:  "alice@example.com",
			Perm:      model.PermReadOnly,
			CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("UpsertShare() error = %v", err)
		}
		if !created {
			t.Error("UpsertShare() created = false, want true")
		}

		shares, err := store.SharesForRepo(ctx, "repo-1")
		if err != nil {
			t.Fatalf("SharesForRepo() error = %v", err)
		}
		if len(shares) != 1 {
			t.Fatalf("SharesForRepo() returned %d shares, want 1", len(shares))
		}
		if shares[0].Target.Email != "bob@example.com" {
			t.Errorf("Target.Email = %v, want bob@example.com", shares[0].Target.Email)
		}
		if shares[0].Perm != model.PermReadOnly {
			t.Errorf("Perm = %v, want %v", shares[0].Perm, model.PermReadOnly)
		}
	})

	t.Run("updates permission on existing share", func(t *testing.T) {
		store := newTestStore(t)

		share := &model.DirectShare{
			RepoID:    "repo-1",
			Target:    model.UserTarget("bob@example.com"),
			SharedBy:  "alice@example.com",
			Perm:      model.PermReadOnly,
			CreatedAt: time.Now(),
		}
		if _, err := store.UpsertShare(ctx, share); err != nil {
			t.Fatalf("first UpsertShare() error = %v", err)
		}

		share.Perm = model.PermReadWrite
		created, err := store.UpsertShare(ctx, share)
		if err != nil {
			t.Fatalf("second UpsertShare() error = %v", err)
		}
		if created {
			t.Error("second UpsertShare() created = true, want false")
		}

		shares, err := store.SharesForRepo(ctx, "repo-1")
		if err != nil {
			t.Fatalf("SharesForRepo() error = %v", err)
		}
		if len(shares) != 1 {
			t.Fatalf("SharesForRepo() returned %d shares, want 1", len(shares))
		}
		if shares[0].Perm != model.PermReadWrite {
			t.Errorf("Perm = %v, want %v", shares[0].Perm, model.PermReadWrite)
		}
	})

	t.Run("racing creators report one creation", func(t *testing.T) {
		store := newTestStore(t)

		const racers = 8
		var wg sync.WaitGroup
		createdFlags := make([]bool, racers)
		errs := make([]error, racers)

		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				created, err := store.UpsertShare(ctx, &model.DirectShare{
					RepoID:    "repo-1",
					Target:    model.UserTarget("bob@example.com"),
					SharedBy:  "alice@example.com",
					Perm:      model.PermReadOnly,
					CreatedAt: time.Now(),
				})
				createdFlags[i] = created
				errs[i] = err
			}(i)
		}
		wg.Wait()

		for i, err := range errs {
			if err != nil {
				t.Fatalf("racer %d error = %v", i, err)
			}
		}
		createdCount := 0
		for _, c := range createdFlags {
			if c {
				createdCount++
			}
		}
		if createdCount != 1 {
			t.Errorf("created reported true %d times, want exactly 1", createdCount)
		}

		shares, err := store.SharesForRepo(ctx, "repo-1")
		if err != nil {
			t.Fatalf("SharesForRepo() error = %v", err)
		}
		if len(shares) != 1 {
			t.Errorf("SharesForRepo() returned %d shares, want 1", len(shares))
		}
	})

	t.Run("group and public targets round-trip", func(t *testing.T) {
		store := newTestStore(t)

		for _, target := range []model.ShareTarget{
			model.GroupTarget(42),
			model.PublicTarget(),
		} {
			_, err := store.UpsertShare(ctx, &model.DirectShare{
				RepoID:    "repo-1",
				Target:    target,
				SharedBy:  "alice@example.com",
				Perm:      model.PermReadOnly,
				CreatedAt: time.Now(),
			})
			if err != nil {
				t.Fatalf("UpsertShare(%s) error = %v", target.Key(), err)
			}
		}

		shares, err := store.SharesForRepo(ctx, "repo-1")
		if err != nil {
			t.Fatalf("SharesForRepo() error = %v", err)
		}
		if len(shares) != 2 {
			t.Fatalf("SharesForRepo() returned %d shares, want 2", len(shares))
		}
		keys := map[string]bool{}
		for _, s := range shares {
			keys[s.Target.Key()] = true
		}
		if !keys["g:42"] || !keys["public"] {
			t.Errorf("share keys = %v, want g:42 and public", keys)
		}
	})
}

func TestSQLiteStore_DeleteShare(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes existing share", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.UpsertShare(ctx, &model.DirectShare{
			RepoID:    "repo-1",
			Target:    model.UserTarget("bob@example.com"),
			SharedBy:  "alice@example.com",
			Perm:      model.PermReadOnly,
			CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("UpsertShare() error = %v", err)
		}

		if err := store.DeleteShare(ctx, "repo-1", model.UserTarget("bob@example.com")); err != nil {
			t.Fatalf("DeleteShare() error = %v", err)
		}

		shares, err := store.SharesForRepo(ctx, "repo-1")
		if err != nil {
			t.Fatalf("SharesForRepo() error = %v", err)
		}
		if len(shares) != 0 {
			t.Errorf("SharesForRepo() returned %d shares, want 0", len(shares))
		}
	})

	t.Run("returns not found for missing share", func(t *testing.T) {
		store := newTestStore(t)

		err := store.DeleteShare(ctx, "repo-1", model.UserTarget("bob@example.com"))
		if !errors.Is(err, libshare.ErrNotFound) {
			t.Errorf("DeleteShare() error = %v, want ErrNotFound", err)
		}
	})
}

func TestSQLiteStore_InsertOrGetDownloadLink(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts new link", func(t *testing.T) {
		store := newTestStore(t)

		link, created, err := store.InsertOrGetDownloadLink(ctx, &model.ShareLink{
			Token:     "tok-1",
			Owner:     "alice@example.com",
			RepoID:    "repo-1",
			Path:      "/report.pdf",
			Kind:      model.LinkFile,
			CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("InsertOrGetDownloadLink() error = %v", err)
		}
		if !created {
			t.Error("created = false, want true")
		}
		if link.Token != "tok-1" {
			t.Errorf("Token = %v, want tok-1", link.Token)
		}
	})

	t.Run("returns surviving link for same owner and path", func(t *testing.T) {
		store := newTestStore(t)

		first := &model.ShareLink{
			Token:     "tok-1",
			Owner:     "alice@example.com",
			RepoID:    "repo-1",
			Path:      "/report.pdf",
			Kind:      model.LinkFile,
			CreatedAt: time.Now(),
		}
		if _, _, err := store.InsertOrGetDownloadLink(ctx, first); err != nil {
			t.Fatalf("first InsertOrGetDownloadLink() error = %v", err)
		}

		second := &model.ShareLink{
			Token:     "tok-2",
			Owner:     "alice@example.com",
			RepoID:    "repo-1",
			Path:      "/report.pdf",
			Kind:      model.LinkFile,
			CreatedAt: time.Now(),
		}
		link, created, err := store.InsertOrGetDownloadLink(ctx, second)
		if err != nil {
			t.Fatalf("second InsertOrGetDownloadLink() error = %v", err)
		}
		if created {
			t.Error("created = true, want false")
		}
		if link.Token != "tok-1" {
			t.Errorf("Token = %v, want surviving tok-1", link.Token)
		}
	})

	t.Run("different owners get separate links", func(t *testing.T) {
		store := newTestStore(t)

		for i, owner := range []string{"alice@example.com", "bob@example.com"} {
			link := &model.ShareLink{
				Token:     []string{"tok-a", "tok-b"}[i],
				Owner:     owner,
				RepoID:    "repo-1",
				Path:      "/report.pdf",
				Kind:      model.LinkFile,
				CreatedAt: time.Now(),
			}
			_, created, err := store.InsertOrGetDownloadLink(ctx, link)
			if err != nil {
				t.Fatalf("InsertOrGetDownloadLink(%s) error = %v", owner, err)
			}
			if !created {
				t.Errorf("created = false for %s, want true", owner)
			}
		}
	})

	t.Run("racing creators converge on one link", func(t *testing.T) {
		store := newTestStore(t)

		const racers = 8
		var wg sync.WaitGroup
		tokens := make([]string, racers)
		createdFlags := make([]bool, racers)
		errs := make([]error, racers)

		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				link, created, err := store.InsertOrGetDownloadLink(ctx, &model.ShareLink{
					Token:     fmt.Sprintf("tok-%d", i),
					Owner:     "alice@example.com",
					RepoID:    "repo-1",
					Path:      "/report.pdf",
					Kind:      model.LinkFile,
					CreatedAt: time.Now(),
				})
				if err != nil {
					errs[i] = err
					return
				}
				tokens[i] = link.Token
				createdFlags[i] = created
			}(i)
		}
		wg.Wait()

		for i, err := range errs {
			if err != nil {
				t.Fatalf("racer %d error = %v", i, err)
			}
		}

		createdCount := 0
		for i := 1; i < racers; i++ {
			if tokens[i] != tokens[0] {
				t.Errorf("racer %d got token %v, racer 0 got %v", i, tokens[i], tokens[0])
			}
		}
		for _, c := range createdFlags {
			if c {
				createdCount++
			}
		}
		if createdCount != 1 {
			t.Errorf("created reported true %d times, want exactly 1", createdCount)
		}

		links, err := store.DownloadLinksByOwner(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("DownloadLinksByOwner() error = %v", err)
		}
		if len(links) != 1 {
			t.Errorf("surviving links = %d, want 1", len(links))
		}
	})

	t.Run("expiry round-trips", func(t *testing.T) {
		store := newTestStore(t)

		expires := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second)
		_, _, err := store.InsertOrGetDownloadLink(ctx, &model.ShareLink{
			Token:     "tok-1",
			Owner:     "alice@example.com",
			RepoID:    "repo-1",
			Path:      "/report.pdf",
			Kind:      model.LinkFile,
			ExpiresAt: &expires,
			CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("InsertOrGetDownloadLink() error = %v", err)
		}

		link, err := store.DownloadLinkByToken(ctx, "tok-1")
		if err != nil {
			t.Fatalf("DownloadLinkByToken() error = %v", err)
		}
		if link.ExpiresAt == nil {
			t.Fatal("ExpiresAt is nil, want value")
		}
		if !link.ExpiresAt.Equal(expires) {
			t.Errorf("ExpiresAt = %v, want %v", link.ExpiresAt, expires)
		}
	})
}

func TestSQLiteStore_DeleteDownloadLink(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, _, err := store.InsertOrGetDownloadLink(ctx, &model.ShareLink{
		Token:     "tok-1",
		Owner:     "alice@example.com",
		RepoID:    "repo-1",
		Path:      "/report.pdf",
		Kind:      model.LinkFile,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("InsertOrGetDownloadLink() error = %v", err)
	}

	if err := store.DeleteDownloadLink(ctx, "tok-1"); err != nil {
		t.Fatalf("DeleteDownloadLink() error = %v", err)
	}

	if _, err := store.DownloadLinkByToken(ctx, "tok-1"); !errors.Is(err, libshare.ErrNotFound) {
		t.Errorf("DownloadLinkByToken() error = %v, want ErrNotFound", err)
	}

	if err := store.DeleteDownloadLink(ctx, "tok-1"); !errors.Is(err, libshare.ErrNotFound) {
		t.Errorf("second DeleteDownloadLink() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_InsertOrGetUploadLink(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first := &model.UploadLink{
		Token:     "up-1",
		Owner:     "alice@example.com",
		RepoID:    "repo-1",
		Path:      "/inbox/",
		CreatedAt: time.Now(),
	}
	link, created, err := store.InsertOrGetUploadLink(ctx, first)
	if err != nil {
		t.Fatalf("InsertOrGetUploadLink() error = %v", err)
	}
	if !created || link.Token != "up-1" {
		t.Errorf("got (token=%v, created=%v), want (up-1, true)", link.Token, created)
	}

	second := &model.UploadLink{
		Token:     "up-2",
		Owner:     "alice@example.com",
		RepoID:    "repo-1",
		Path:      "/inbox/",
		CreatedAt: time.Now(),
	}
	link, created, err = store.InsertOrGetUploadLink(ctx, second)
	if err != nil {
		t.Fatalf("second InsertOrGetUploadLink() error = %v", err)
	}
	if created || link.Token != "up-1" {
		t.Errorf("got (token=%v, created=%v), want (up-1, false)", link.Token, created)
	}
}

func TestSQLiteStore_VirtualRepos(t *testing.T) {
	ctx := context.Background()

	t.Run("insert or get converges on one mapping", func(t *testing.T) {
		store := newTestStore(t)

		first := &model.VirtualRepo{
			ParentID:  "parent-1",
			Path:      "/docs/",
			RepoID:    "sub-1",
			CreatedAt: time.Now(),
		}
		vr, created, err := store.InsertOrGetVirtualRepo(ctx, first)
		if err != nil {
			t.Fatalf("InsertOrGetVirtualRepo() error = %v", err)
		}
		if !created || vr.RepoID != "sub-1" {
			t.Errorf("got (repo=%v, created=%v), want (sub-1, true)", vr.RepoID, created)
		}

		second := &model.VirtualRepo{
			ParentID:  "parent-1",
			Path:      "/docs/",
			RepoID:    "sub-2",
			CreatedAt: time.Now(),
		}
		vr, created, err = store.InsertOrGetVirtualRepo(ctx, second)
		if err != nil {
			t.Fatalf("second InsertOrGetVirtualRepo() error = %v", err)
		}
		if created || vr.RepoID != "sub-1" {
			t.Errorf("got (repo=%v, created=%v), want (sub-1, false)", vr.RepoID, created)
		}
	})

	t.Run("lists mappings for parent", func(t *testing.T) {
		store := newTestStore(t)

		for i, path := range []string{"/docs/", "/photos/"} {
			_, _, err := store.InsertOrGetVirtualRepo(ctx, &model.VirtualRepo{
				ParentID:  "parent-1",
				Path:      path,
				RepoID:    []string{"sub-1", "sub-2"}[i],
				CreatedAt: time.Now(),
			})
			if err != nil {
				t.Fatalf("InsertOrGetVirtualRepo(%s) error = %v", path, err)
			}
		}

		vrepos, err := store.VirtualReposForParent(ctx, "parent-1")
		if err != nil {
			t.Fatalf("VirtualReposForParent() error = %v", err)
		}
		if len(vrepos) != 2 {
			t.Errorf("VirtualReposForParent() returned %d mappings, want 2", len(vrepos))
		}
	})

	t.Run("missing mapping returns not found", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.VirtualRepo(ctx, "parent-1", "/docs/")
		if !errors.Is(err, libshare.ErrNotFound) {
			t.Errorf("VirtualRepo() error = %v, want ErrNotFound", err)
		}
	})
}
