package libshare_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"libshare/internal/libshare"
	"libshare/internal/model"
)

func TestAuditCodeService(t *testing.T) {
	ctx := context.Background()

	// issueLink creates a live download link to bind codes to.
	issueLink := func(t *testing.T, e *env) string {
		t.Helper()
		alice := e.user(t, "alice@example.com")
		e.repo(t, "repo-1", alice.Email)
		link, err := e.links.GetOrCreateDownloadLink(ctx, alice, "repo-1", "/report.pdf", model.LinkFile, "", 0)
		if err != nil {
			t.Fatalf("GetOrCreateDownloadLink() error = %v", err)
		}
		return link.Token
	}

	t.Run("issue mails the code and verify accepts it", func(t *testing.T) {
		e := newEnv(t)
		token := issueLink(t, e)

		if err := e.codes.Issue(ctx, token, "visitor@example.com"); err != nil {
			t.Fatalf("Issue() error = %v", err)
		}

		sent := e.mailer.Sent()
		if len(sent) != 1 || sent[0].To != "visitor@example.com" {
			t.Fatalf("sent mail = %+v, want one to visitor@example.com", sent)
		}
		code := "100001"
		if !strings.Contains(sent[0].Body, code) {
			t.Errorf("mail body %q does not contain code %s", sent[0].Body, code)
		}

		ok, err := e.codes.Verify(ctx, "visitor@example.com", code)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if !ok {
			t.Error("Verify() = false, want true")
		}
	})

	t.Run("verify does not consume the code", func(t *testing.T) {
		e := newEnv(t)
		token := issueLink(t, e)

		if err := e.codes.Issue(ctx, token, "visitor@example.com"); err != nil {
			t.Fatalf("Issue() error = %v", err)
		}

		for i := 0; i < 3; i++ {
			ok, err := e.codes.Verify(ctx, "visitor@example.com", "100001")
			if err != nil {
				t.Fatalf("Verify() #%d error = %v", i, err)
			}
			if !ok {
				t.Errorf("Verify() #%d = false, want true", i)
			}
		}
	})

	t.Run("wrong or absent code fails without error", func(t *testing.T) {
		e := newEnv(t)
		token := issueLink(t, e)

		if ok, err := e.codes.Verify(ctx, "visitor@example.com", "100001"); err != nil || ok {
			t.Errorf("Verify(no code issued) = (%v, %v), want (false, nil)", ok, err)
		}

		if err := e.codes.Issue(ctx, token, "visitor@example.com"); err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		if ok, err := e.codes.Verify(ctx, "visitor@example.com", "999999"); err != nil || ok {
			t.Errorf("Verify(wrong code) = (%v, %v), want (false, nil)", ok, err)
		}
		if ok, err := e.codes.Verify(ctx, "visitor@example.com", ""); err != nil || ok {
			t.Errorf("Verify(empty code) = (%v, %v), want (false, nil)", ok, err)
		}
	})

	t.Run("reissue replaces the previous code", func(t *testing.T) {
		e := newEnv(t)
		token := issueLink(t, e)

		if err := e.codes.Issue(ctx, token, "visitor@example.com"); err != nil {
			t.Fatalf("first Issue() error = %v", err)
		}
		if err := e.codes.Issue(ctx, token, "visitor@example.com"); err != nil {
			t.Fatalf("second Issue() error = %v", err)
		}

		if ok, _ := e.codes.Verify(ctx, "visitor@example.com", "100001"); ok {
			t.Error("old code still verifies after reissue")
		}
		if ok, _ := e.codes.Verify(ctx, "visitor@example.com", "100002"); !ok {
			t.Error("new code does not verify")
		}
	})

	t.Run("requires a live link token", func(t *testing.T) {
		e := newEnv(t)
		issueLink(t, e)

		err := e.codes.Issue(ctx, "no-such-token", "visitor@example.com")
		if !errors.Is(err, libshare.ErrNotFound) {
			t.Errorf("Issue() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("rejects an invalid email", func(t *testing.T) {
		e := newEnv(t)
		token := issueLink(t, e)

		err := e.codes.Issue(ctx, token, "not-an-email")
		if !errors.Is(err, libshare.ErrInvalidArgument) {
			t.Errorf("Issue() error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("code stays cached when mail delivery fails", func(t *testing.T) {
		e := newEnv(t)
		token := issueLink(t, e)
		e.mailer.Err = errors.New("relay down")

		if err := e.codes.Issue(ctx, token, "visitor@example.com"); err == nil {
			t.Fatal("Issue() expected error when mail fails")
		}

		ok, err := e.codes.Verify(ctx, "visitor@example.com", "100001")
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if !ok {
			t.Error("Verify() = false, want true: code should survive a mail failure")
		}
	})
}
