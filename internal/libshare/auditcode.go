package libshare

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// auditCodeTTL is how long an issued code stays valid.
const auditCodeTTL = time.Hour

const auditCodeKeyPrefix = "share_link_audit_"

// AuditCodeService issues short-lived verification codes bound to an
// email address, used to gate anonymous access to a share link through a
// secondary channel. Codes live only in the cache; the cache backend
// enforces the time-to-live.
type AuditCodeService struct {
	cache  Cache
	mailer Mailer
	tokens TokenSource
	links  *LinkEngine
	logger Logger
}

// NewAuditCodeService creates an AuditCodeService with the provided
// dependencies.
func NewAuditCodeService(cache Cache, mailer Mailer, tokens TokenSource, links *LinkEngine, logger Logger) *AuditCodeService {
	return &AuditCodeService{
		cache:  cache,
		mailer: mailer,
		tokens: tokens,
		links:  links,
		logger: logger,
	}
}

// Issue generates a fresh code for email, stores it for one hour
// (overwriting any prior unexpired code) and triggers delivery. The
// linkToken must name a live share or upload link: codes exist only to
// clear anonymous visitors into an existing link.
func (a *AuditCodeService) Issue(ctx context.Context, linkToken, email string) error {
	if !ValidEmail(email) {
		return fmt.Errorf("%w: invalid email: %s", ErrInvalidArgument, email)
	}

	active, err := a.links.TokenActive(ctx, linkToken)
	if err != nil {
		return fmt.Errorf("checking link token: %w", err)
	}
	if !active {
		return fmt.Errorf("%w: share link for token", ErrNotFound)
	}

	code := a.tokens.Code()
	if err := a.cache.Set(ctx, auditCodeKey(email), code, auditCodeTTL); err != nil {
		return fmt.Errorf("caching audit code: %w", err)
	}

	subject := "Verification code for visiting share links"
	body := fmt.Sprintf("Your verification code is %s. It expires in one hour.", code)
	if err := a.mailer.Send(ctx, email, subject, body); err != nil {
		// The code stays cached; the caller may retry delivery.
		a.logger.Error("audit code mail not delivered", "email", email, "err", err)
		return fmt.Errorf("sending audit code: %w", err)
	}

	a.logger.Info("audit code issued", "email", email)
	return nil
}

// Verify reports whether code matches the one stored for email. The code
// is not consumed: repeated verification within the TTL window keeps
// succeeding. Callers needing single-use semantics layer that on top.
func (a *AuditCodeService) Verify(ctx context.Context, email, code string) (bool, error) {
	stored, err := a.cache.Get(ctx, auditCodeKey(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("reading audit code: %w", err)
	}
	return code != "" && stored == code, nil
}

// auditCodeKey normalizes the email into the cache key.
func auditCodeKey(email string) string {
	key := auditCodeKeyPrefix + strings.ToLower(strings.TrimSpace(email))
	return strings.ReplaceAll(key, " ", "_")
}
