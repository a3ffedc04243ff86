package libshare_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"libshare/internal/libshare"
	"libshare/internal/model"
)

func TestLinkEngine_GetOrCreateDownloadLink(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a file link", func(t *testing.T) {
		e := newEnv(t)
		alice := e.user(t, "alice@example.com")
		e.repo(t, "repo-1", alice.Email)

		link, err := e.links.GetOrCreateDownloadLink(ctx, alice, "repo-1", "/report.pdf", model.LinkFile, "", 0)
		if err != nil {
			t.Fatalf("GetOrCreateDownloadLink() error = %v", err)
		}
		if link.Token == "" {
			t.Error("Token is empty")
		}
		if link.ExpiresAt != nil {
			t.Errorf("ExpiresAt = %v, want nil", link.ExpiresAt)
		}
		if link.Protected() {
			t.Error("Protected() = true, want false")
		}

		url := e.links.DownloadURL(link)
		want := "https://files.example.com/f/" + link.Token + "/"
		if url != want {
			t.Errorf("DownloadURL() = %q, want %q", url, want)
		}
	})

	t.Run("repeat request returns the same link unchanged", func(t *testing.T) {
		e := newEnv(t)
		alice := e.user(t, "alice@example.com")
		e.repo(t, "repo-1", alice.Email)

		first, err := e.links.GetOrCreateDownloadLink(ctx, alice, "repo-1", "/report.pdf", model.LinkFile, "", 3)
		if err != nil {
			t.Fatalf("first GetOrCreateDownloadLink() error = %v", err)
		}

		// Different password and expiry on the repeat are ignored.
		second, err := e.links.GetOrCreateDownloadLink(ctx, alice, "repo-1", "/report.pdf", model.LinkFile, "hunter2hunter2", 30)
		if err != nil {
			t.Fatalf("second GetOrCreateDownloadLink() error = %v", err)
		}
		if second.Token != first.Token {
			t.Errorf("Token = %v, want %v", second.Token, first.Token)
		}
		if second.Protected() {
			t.Error("repeat request attached a password to the original link")
		}
		if !second.ExpiresAt.Equal(*first.ExpiresAt) {
			t.Errorf("ExpiresAt = %v, want %v", second.ExpiresAt, first.ExpiresAt)
		}
		if got := len(e.sink.Events()); got != 1 {
			t.Errorf("got %d events, want 1", got)
		}
	})

	t.Run("expiry counts days from now", func(t *testing.T) {
		e := newEnv(t)
		alice := e.user(t, "alice@example.com")
		e.repo(t, "repo-1", alice.Email)

		link, err := e.links.GetOrCreateDownloadLink(ctx, alice, "repo-1", "/report.pdf", model.LinkFile, "", 3)
		if err != nil {
			t.Fatalf("GetOrCreateDownloadLink() error = %v", err)
		}
		want := e.clock.Now().AddDate(0, 0, 3)
		if link.ExpiresAt == nil || !link.ExpiresAt.Equal(want) {
			t.Errorf("ExpiresAt = %v, want %v", link.ExpiresAt, want)
		}
	})

	t.Run("short password rejected", func(t *testing.T) {
		e := newEnv(t)
		alice := e.user(t, "alice@example.com")
		e.repo(t, "repo-1", alice.Email)

		_, err := e.links.GetOrCreateDownloadLink(ctx, alice, "repo-1", "/report.pdf", model.LinkFile, "short", 0)
		if !errors.Is(err, libshare.ErrInvalidArgument) {
			t.Errorf("GetOrCreateDownloadLink() error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("guest accounts may not create links", func(t *testing.T) {
		e := newEnv(t)
		guest := e.user(t, "guest@example.com", asGuest)
		e.repo(t, "repo-1", guest.Email)

		_, err := e.links.GetOrCreateDownloadLink(ctx, guest, "repo-1", "/report.pdf", model.LinkFile, "", 0)
		if !errors.Is(err, libshare.ErrPermissionDenied) {
			t.Errorf("GetOrCreateDownloadLink() error = %v, want ErrPermissionDenied", err)
		}
	})

	t.Run("read-only access is not enough", func(t *testing.T) {
		e := newEnv(t)
		alice := e.user(t, "alice@example.com")
		bob := e.user(t, "bob@example.com")
		e.repo(t, "repo-1", alice.Email)

		if _, err := e.shares.Share(ctx, alice, "repo-1", "/", model.UserTarget(bob.Email), model.PermReadOnly); err != nil {
			t.Fatalf("Share() error = %v", err)
		}

		_, err := e.links.GetOrCreateDownloadLink(ctx, bob, "repo-1", "/report.pdf", model.LinkFile, "", 0)
		if !errors.Is(err, libshare.ErrPermissionDenied) {
			t.Errorf("GetOrCreateDownloadLink() error = %v, want ErrPermissionDenied", err)
		}
	})

	t.Run("missing file rejected", func(t *testing.T) {
		e := newEnv(t)
		alice := e.user(t, "alice@example.com")
		e.repo(t, "repo-1", alice.Email)

		_, err := e.links.GetOrCreateDownloadLink(ctx, alice, "repo-1", "/missing.pdf", model.LinkFile, "", 0)
		if !errors.Is(err, libshare.ErrNotFound) {
			t.Errorf("GetOrCreateDownloadLink() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("directory link normalizes the path", func(t *testing.T) {
		e := newEnv(t)
		alice := e.user(t, "alice@example.com")
		e.repo(t, "repo-1", alice.Email)

		link, err := e.links.GetOrCreateDownloadLink(ctx, alice, "repo-1", "/docs", model.LinkDir, "", 0)
		if err != nil {
			t.Fatalf("GetOrCreateDownloadLink() error = %v", err)
		}
		if link.Path != "/docs/" {
			t.Errorf("Path = %q, want /docs/", link.Path)
		}
		if !strings.Contains(e.links.DownloadURL(link), "/d/") {
			t.Errorf("DownloadURL() = %q, want /d/ segment", e.links.DownloadURL(link))
		}
	})
}

func TestLinkEngine_Redeem(t *testing.T) {
	ctx := context.Background()

	t.Run("open link redeems without password", func(t *testing.T) {
		e := newEnv(t)
		alice := e.user(t, "alice@example.com")
		e.repo(t, "repo-1", alice.Email)

		link, err := e.links.GetOrCreateDownloadLink(ctx, alice, "repo-1", "/report.pdf", model.LinkFile, "", 0)
		if err != nil {
			t.Fatalf("GetOrCreateDownloadLink() error = %v", err)
		}

		r, err := e.links.Redeem(ctx, link.Token, "")
		if err != nil {
			t.Fatalf("Redeem() error = %v", err)
		}
		if r.RepoID != "repo-1" || r.Path != "/report.pdf" || r.Owner != alice.Email {
			t.Errorf("Redeem() = %+v", r)
		}
	})

	t.Run("password gate classifies failures", func(t *testing.T) {
		e := newEnv(t)
		alice := e.user(t, "alice@example.com")
		e.repo(t, "repo-1", alice.Email)

		link, err := e.links.GetOrCreateDownloadLink(ctx, alice, "repo-1", "/report.pdf", model.LinkFile, "correcthorse", 0)
		if err != nil {
			t.Fatalf("GetOrCreateDownloadLink() error = %v", err)
		}

		if _, err := e.links.Redeem(ctx, link.Token, ""); !errors.Is(err, libshare.ErrPasswordRequired) {
			t.Errorf("Redeem(no password) error = %v, want ErrPasswordRequired", err)
		}
		if _, err := e.links.Redeem(ctx, link.Token, "wrongwrong"); !errors.Is(err, libshare.ErrPasswordIncorrect) {
			t.Errorf("Redeem(wrong password) error = %v, want ErrPasswordIncorrect", err)
		}
		if _, err := e.links.Redeem(ctx, link.Token, "correcthorse"); err != nil {
			t.Errorf("Redeem(correct password) error = %v", err)
		}
	})

	t.Run("expired link refuses redemption", func(t *testing.T) {
		e := newEnv(t)
		alice := e.user(t, "alice@example.com")
		e.repo(t, "repo-1", alice.Email)

		link, err := e.links.GetOrCreateDownloadLink(ctx, alice, "repo-1", "/report.pdf", model.LinkFile, "", 3)
		if err != nil {
			t.Fatalf("GetOrCreateDownloadLink() error = %v", err)
		}

		e.clock.Advance(2 * 24 * time.Hour)
		if _, err := e.links.Redeem(ctx, link.Token, ""); err != nil {
			t.Fatalf("Redeem() before expiry error = %v", err)
		}

		e.clock.Advance(2 * 24 * time.Hour)
		if _, err := e.links.Redeem(ctx, link.Token, ""); !errors.Is(err, libshare.ErrExpired) {
			t.Errorf("Redeem() after expiry error = %v, want ErrExpired", err)
		}
	})

	t.Run("unknown token is not found", func(t *testing.T) {
		e := newEnv(t)

		_, err := e.links.Redeem(ctx, "no-such-token", "")
		if !errors.Is(err, libshare.ErrNotFound) {
			t.Errorf("Redeem() error = %v, want ErrNotFound", err)
		}
	})
}

func TestLinkEngine_UploadLinks(t *testing.T) {
	ctx := context.Background()

	t.Run("create and redeem", func(t *testing.T) {
		e := newEnv(t)
		alice := e.user(t, "alice@example.com")
		e.repo(t, "repo-1", alice.Email)

		link, err := e.links.GetOrCreateUploadLink(ctx, alice, "repo-1", "/docs/", "")
		if err != nil {
			t.Fatalf("GetOrCreateUploadLink() error = %v", err)
		}
		want := "https://files.example.com/u/d/" + link.Token + "/"
		if got := e.links.UploadURL(link); got != want {
			t.Errorf("UploadURL() = %q, want %q", got, want)
		}

		r, err := e.links.RedeemUpload(ctx, link.Token, "")
		if err != nil {
			t.Fatalf("RedeemUpload() error = %v", err)
		}
		if r.Path != "/docs/" || r.Kind != model.LinkDir {
			t.Errorf("RedeemUpload() = %+v", r)
		}
	})

	t.Run("upload links never expire", func(t *testing.T) {
		e := newEnv(t)
		alice := e.user(t, "alice@example.com")
		e.repo(t, "repo-1", alice.Email)

		link, err := e.links.GetOrCreateUploadLink(ctx, alice, "repo-1", "/docs/", "")
		if err != nil {
			t.Fatalf("GetOrCreateUploadLink() error = %v", err)
		}

		e.clock.Advance(365 * 24 * time.Hour)
		if _, err := e.links.RedeemUpload(ctx, link.Token, ""); err != nil {
			t.Errorf("RedeemUpload() error = %v", err)
		}
	})

	t.Run("repeat request is idempotent", func(t *testing.T) {
		e := newEnv(t)
		alice := e.user(t, "alice@example.com")
		e.repo(t, "repo-1", alice.Email)

		first, err := e.links.GetOrCreateUploadLink(ctx, alice, "repo-1", "/docs/", "")
		if err != nil {
			t.Fatalf("first GetOrCreateUploadLink() error = %v", err)
		}
		second, err := e.links.GetOrCreateUploadLink(ctx, alice, "repo-1", "/docs", "")
		if err != nil {
			t.Fatalf("second GetOrCreateUploadLink() error = %v", err)
		}
		if second.Token != first.Token {
			t.Errorf("Token = %v, want %v", second.Token, first.Token)
		}
	})
}

func TestLinkEngine_Revoke(t *testing.T) {
	ctx := context.Background()

	t.Run("owner revokes and token dies", func(t *testing.T) {
		e := newEnv(t)
		alice := e.user(t, "alice@example.com")
		e.repo(t, "repo-1", alice.Email)

		link, err := e.links.GetOrCreateDownloadLink(ctx, alice, "repo-1", "/report.pdf", model.LinkFile, "", 0)
		if err != nil {
			t.Fatalf("GetOrCreateDownloadLink() error = %v", err)
		}

		if err := e.links.Revoke(ctx, alice, link.Token); err != nil {
			t.Fatalf("Revoke() error = %v", err)
		}
		if _, err := e.links.Redeem(ctx, link.Token, ""); !errors.Is(err, libshare.ErrNotFound) {
			t.Errorf("Redeem() after revoke error = %v, want ErrNotFound", err)
		}

		// A fresh request mints a new token.
		again, err := e.links.GetOrCreateDownloadLink(ctx, alice, "repo-1", "/report.pdf", model.LinkFile, "", 0)
		if err != nil {
			t.Fatalf("recreate error = %v", err)
		}
		if again.Token == link.Token {
			t.Error("recreated link reused the revoked token")
		}
	})

	t.Run("only the owner or an admin may revoke", func(t *testing.T) {
		e := newEnv(t)
		alice := e.user(t, "alice@example.com")
		bob := e.user(t, "bob@example.com")
		admin := e.user(t, "root@example.com", asAdmin)
		e.repo(t, "repo-1", alice.Email)

		link, err := e.links.GetOrCreateDownloadLink(ctx, alice, "repo-1", "/report.pdf", model.LinkFile, "", 0)
		if err != nil {
			t.Fatalf("GetOrCreateDownloadLink() error = %v", err)
		}

		if err := e.links.Revoke(ctx, bob, link.Token); !errors.Is(err, libshare.ErrPermissionDenied) {
			t.Errorf("Revoke() error = %v, want ErrPermissionDenied", err)
		}
		if err := e.links.Revoke(ctx, admin, link.Token); err != nil {
			t.Errorf("admin Revoke() error = %v", err)
		}
	})
}

func TestLinkEngine_TokenActive(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.user(t, "alice@example.com")
	e.repo(t, "repo-1", alice.Email)

	download, err := e.links.GetOrCreateDownloadLink(ctx, alice, "repo-1", "/report.pdf", model.LinkFile, "", 1)
	if err != nil {
		t.Fatalf("GetOrCreateDownloadLink() error = %v", err)
	}
	upload, err := e.links.GetOrCreateUploadLink(ctx, alice, "repo-1", "/docs/", "")
	if err != nil {
		t.Fatalf("GetOrCreateUploadLink() error = %v", err)
	}

	for _, token := range []string{download.Token, upload.Token} {
		active, err := e.links.TokenActive(ctx, token)
		if err != nil {
			t.Fatalf("TokenActive(%s) error = %v", token, err)
		}
		if !active {
			t.Errorf("TokenActive(%s) = false, want true", token)
		}
	}

	if active, _ := e.links.TokenActive(ctx, "no-such-token"); active {
		t.Error("TokenActive(unknown) = true, want false")
	}

	e.clock.Advance(48 * time.Hour)
	if active, _ := e.links.TokenActive(ctx, download.Token); active {
		t.Error("TokenActive(expired download) = true, want false")
	}
	if active, _ := e.links.TokenActive(ctx, upload.Token); !active {
		t.Error("TokenActive(upload) = false, want true")
	}
}
