package libshare_test

import (
	"context"
	"testing"

	"libshare/internal/model"
)

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("owner always has read-write", func(t *testing.T) {
		e := newEnv(t)
		alice := e.user(t, "alice@example.com")
		e.repo(t, "repo-1", alice.Email)

		perm, err := e.resolver.Resolve(ctx, alice, "repo-1", "/docs/notes.txt")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if perm != model.PermReadWrite {
			t.Errorf("Resolve() = %v, want %v", perm, model.PermReadWrite)
		}
	})

	t.Run("no grant means no access", func(t *testing.T) {
		e := newEnv(t)
		alice := e.user(t, "alice@example.com")
		bob := e.user(t, "bob@example.com")
		e.repo(t, "repo-1", alice.Email)

		perm, err := e.resolver.Resolve(ctx, bob, "repo-1", "/report.pdf")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if perm != model.PermNone {
			t.Errorf("Resolve() = %v, want %v", perm, model.PermNone)
		}
	})

	t.Run("direct user share applies to whole repo", func(t *testing.T) {
		e := newEnv(t)
		alice := e.user(t, "alice@example.com")
		bob := e.user(t, "bob@example.com")
		e.repo(t, "repo-1", alice.Email)

		_, err := e.shares.Share(ctx, alice, "repo-1", "/", model.UserTarget(bob.Email), model.PermReadOnly)
		if err != nil {
			t.Fatalf("Share() error = %v", err)
		}

		perm, err := e.resolver.Resolve(ctx, bob, "repo-1", "/report.pdf")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if perm != model.PermReadOnly {
			t.Errorf("Resolve() = %v, want %v", perm, model.PermReadOnly)
		}
	})

	t.Run("highest grant wins", func(t *testing.T) {
		e := newEnv(t)
		alice := e.user(t, "alice@example.com")
		bob := e.user(t, "bob@example.com")
		e.repo(t, "repo-1", alice.Email)
		groupID := e.group(t, "eng", []string{bob.Email})

		if _, err := e.shares.Share(ctx, alice, "repo-1", "/", model.UserTarget(bob.Email), model.PermReadOnly); err != nil {
			t.Fatalf("Share(user) error = %v", err)
		}
		if _, err := e.shares.Share(ctx, alice, "repo-1", "/", model.GroupTarget(groupID), model.PermReadWrite); err != nil {
			t.Fatalf("Share(group) error = %v", err)
		}

		perm, err := e.resolver.Resolve(ctx, bob, "repo-1", "/report.pdf")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if perm != model.PermReadWrite {
			t.Errorf("Resolve() = %v, want %v", perm, model.PermReadWrite)
		}
	})

	t.Run("public share reaches any registered user", func(t *testing.T) {
		e := newEnv(t)
		alice := e.user(t, "alice@example.com")
		bob := e.user(t, "bob@example.com")
		e.repo(t, "repo-1", alice.Email)

		if _, err := e.shares.Share(ctx, alice, "repo-1", "/", model.PublicTarget(), model.PermReadOnly); err != nil {
			t.Fatalf("Share() error = %v", err)
		}

		perm, err := e.resolver.Resolve(ctx, bob, "repo-1", "/report.pdf")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if perm != model.PermReadOnly {
			t.Errorf("Resolve() = %v, want %v", perm, model.PermReadOnly)
		}
	})

	t.Run("folder share covers only its subtree", func(t *testing.T) {
		e := newEnv(t)
		alice := e.user(t, "alice@example.com")
		bob := e.user(t, "bob@example.com")
		e.repo(t, "repo-1", alice.Email)

		_, err := e.shares.Share(ctx, alice, "repo-1", "/docs/", model.UserTarget(bob.Email), model.PermReadOnly)
		if err != nil {
			t.Fatalf("Share() error = %v", err)
		}

		perm, err := e.resolver.Resolve(ctx, bob, "repo-1", "/docs/notes.txt")
		if err != nil {
			t.Fatalf("Resolve(/docs/notes.txt) error = %v", err)
		}
		if perm != model.PermReadOnly {
			t.Errorf("Resolve(/docs/notes.txt) = %v, want %v", perm, model.PermReadOnly)
		}

		perm, err = e.resolver.Resolve(ctx, bob, "repo-1", "/report.pdf")
		if err != nil {
			t.Fatalf("Resolve(/report.pdf) error = %v", err)
		}
		if perm != model.PermNone {
			t.Errorf("Resolve(/report.pdf) = %v, want %v", perm, model.PermNone)
		}
	})

	t.Run("nil user has no access", func(t *testing.T) {
		e := newEnv(t)
		alice := e.user(t, "alice@example.com")
		e.repo(t, "repo-1", alice.Email)

		perm, err := e.resolver.Resolve(ctx, nil, "repo-1", "/report.pdf")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if perm != model.PermNone {
			t.Errorf("Resolve() = %v, want %v", perm, model.PermNone)
		}
	})
}
